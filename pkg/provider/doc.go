// Package provider calls external HTTP APIs (DataForSEO, OpenAI, Polar)
// from worker handlers.
//
// Every request made through a Client goes through three layers, outermost
// first:
//
//   - retry.Do with the client's Policy, classifying errors with IsTransient
//     unless the policy says otherwise;
//   - the provider's gate.Gate, acquired per attempt so a caller sleeping in
//     backoff does not hold a permit;
//   - a per-attempt timeout that starts once the permit is held.
//
// An optional CircuitBreaker fails attempts fast with ErrCircuitOpen after a
// run of transient failures. Non-2xx responses become *StatusError, which
// matches ErrProviderStatus.
package provider
