// Package retry re-runs a failing call with exponential backoff.
//
// The engine never decides on its own what is retryable: every call site
// passes a Policy whose RetryOn predicate classifies errors. When the
// predicate says no, or the attempt budget is spent, Do returns the
// original error unchanged so callers can still match it with errors.Is
// or errors.As, or compare it directly.
//
// Each Do call keeps its own attempt counter; a Policy value carries no
// mutable state and can be shared between goroutines.
//
//	page, err := retry.Do(ctx, func(ctx context.Context) (*Page, error) {
//	    return client.Fetch(ctx, url)
//	}, retry.Policy{
//	    Label:          "dataforseo",
//	    RetryOn:        provider.IsTransient,
//	    OnRetry:        retry.LogRetries(log, "dataforseo"),
//	    AttemptTimeout: 30 * time.Second,
//	})
package retry
