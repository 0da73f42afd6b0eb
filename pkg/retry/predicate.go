package retry

import "errors"

// Always retries every error.
func Always(error) bool { return true }

// Never treats every error as terminal.
func Never(error) bool { return false }

// Any retries when at least one predicate does.
func Any(preds ...func(error) bool) func(error) bool {
	return func(err error) bool {
		for _, p := range preds {
			if p != nil && p(err) {
				return true
			}
		}
		return false
	}
}

// Is retries errors matching any of targets via errors.Is.
func Is(targets ...error) func(error) bool {
	return func(err error) bool {
		for _, t := range targets {
			if errors.Is(err, t) {
				return true
			}
		}
		return false
	}
}

// Not inverts a predicate.
func Not(pred func(error) bool) func(error) bool {
	return func(err error) bool {
		return pred == nil || !pred(err)
	}
}
