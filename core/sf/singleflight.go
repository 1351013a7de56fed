package sf

import "golang.org/x/sync/singleflight"

// Group deduplicates concurrent function calls with the same key. Only the
// first caller executes the function; others wait and receive the same
// result.
type Group[T any] struct {
	group singleflight.Group
}

// Do executes fn for the given key, deduplicating concurrent calls. If a
// call is already in flight for this key, Do blocks until it completes and
// returns the same result.
func (g *Group[T]) Do(key string, fn func() (T, error)) (T, error) {
	v, err, _ := g.group.Do(key, func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
