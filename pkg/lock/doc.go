// Package lock provides a TTL-bounded distributed lock built on a shared
// key-value store's atomic set-if-absent and compare-and-delete operations.
//
// Each acquisition uses a unique holder token so a lock that expired and was
// reacquired elsewhere cannot be released by its previous holder. The lock
// guarantees mutual exclusion only within the TTL window; holders must size
// the TTL to cover their critical section.
//
// Usage:
//
//	locker, err := lock.New(store)
//	if err != nil {
//		return err
//	}
//
//	token := lock.NewToken()
//	ok, err := locker.Acquire(ctx, "reminder:"+id, token, 30*time.Second)
//	if err != nil || !ok {
//		return err
//	}
//	defer locker.Release(ctx, "reminder:"+id, token)
package lock
