package stock

import (
	"context"
	"slices"

	"github.com/google/uuid"
)

// ProductLocker serialises stock mutations on the same product across
// requests and processes. Keys are locked in sorted order.
type ProductLocker interface {
	Lock(ctx context.Context, keys ...string) (unlock func(), err error)
}

// ReconcileLockKey guards the full reconciliation sweep
const ReconcileLockKey = "stock:reconcile"

// ProductLockKey returns the lock key for a product
func ProductLockKey(productID uuid.UUID) string {
	return "stock:product:" + productID.String()
}

// ProductLockKeys returns sorted, de-duplicated lock keys for products
func ProductLockKeys(productIDs ...uuid.UUID) []string {
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, ProductLockKey(id))
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, ...string) (func(), error) {
	return func() {}, nil
}

// NoopLocker returns a locker that never blocks. Row locks taken inside
// the transaction still serialise writers on a single database.
func NoopLocker() ProductLocker {
	return noopLocker{}
}
