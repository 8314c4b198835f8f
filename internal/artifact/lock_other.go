//go:build !unix

package artifact

import "context"

// lockKey is a no-op where flock is unavailable; the atomic rename alone
// still keeps partial files invisible.
func lockKey(ctx context.Context, path string) (func(), error) {
	return func() {}, ctx.Err()
}
