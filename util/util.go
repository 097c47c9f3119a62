package util

import "cmp"

// ErrWrap returns a function that yields the value
// or the fallback if the accompanying error is not nil:
// > util.ErrWrap(20)(cmd.Flags().GetInt("limit"))
func ErrWrap[T any](fallback T) func(T, error) T {
	return func(value T, err error) T {
		if err != nil {
			return fallback
		}
		return value
	}
}

// ErrSuppress explicitly drops an error
func ErrSuppress(_ error) {}

func Clamp[T cmp.Ordered](value, low, high T) T {
	return max(low, min(high, value))
}

// Excerpt shortens a string for single-line display
func Excerpt(value string, length int) string {
	runes := []rune(value)
	if len(runes) <= length || length < 4 {
		return value
	}
	return string(runes[:length-3]) + "..."
}
