// Package lock provides per-account locking for balance operations.
// Every accounting operation is a read-modify-write sequence on one account
// (referral processing touches two), so callers serialize through here.
package lock

import (
	"context"
	"sync"
	"time"
)

// accountMutex wraps a mutex with reference counting for pooling.
type accountMutex struct {
	mu       sync.Mutex
	refCount int
}

// AccountLock provides per-account mutual exclusion keyed by account id.
type AccountLock struct {
	locks sync.Map // map[int64]*accountMutex
	pool  sync.Pool
}

// NewAccountLock creates a new AccountLock instance.
func NewAccountLock() *AccountLock {
	return &AccountLock{
		pool: sync.Pool{
			New: func() any {
				return &accountMutex{}
			},
		},
	}
}

// getLock retrieves or creates a mutex for the given account id.
func (al *AccountLock) getLock(accountID int64) *accountMutex {
	if v, ok := al.locks.Load(accountID); ok {
		return v.(*accountMutex)
	}

	newLock := al.pool.Get().(*accountMutex)
	newLock.refCount = 0

	actual, loaded := al.locks.LoadOrStore(accountID, newLock)
	if loaded {
		// Another goroutine created the lock first, return ours to pool.
		al.pool.Put(newLock)
	}
	return actual.(*accountMutex)
}

// Lock acquires the lock for an account. Call before any read-modify-write
// on the account's balances or gating state.
func (al *AccountLock) Lock(accountID int64) {
	lock := al.getLock(accountID)
	lock.mu.Lock()
	lock.refCount++
}

// Unlock releases the lock for an account.
func (al *AccountLock) Unlock(accountID int64) {
	if v, ok := al.locks.Load(accountID); ok {
		lock := v.(*accountMutex)
		lock.refCount--
		lock.mu.Unlock()
	}
}

// TryLock attempts to acquire the lock without blocking.
func (al *AccountLock) TryLock(accountID int64) bool {
	lock := al.getLock(accountID)
	if lock.mu.TryLock() {
		lock.refCount++
		return true
	}
	return false
}

// LockWithTimeout attempts to acquire the lock within the timeout.
func (al *AccountLock) LockWithTimeout(ctx context.Context, accountID int64, timeout time.Duration) bool {
	lock := al.getLock(accountID)

	done := make(chan struct{})
	go func() {
		lock.mu.Lock()
		close(done)
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-done:
		lock.refCount++
		return true
	case <-timeoutCtx.Done():
		// The waiting goroutine will eventually acquire the lock;
		// release it as soon as that happens.
		go func() {
			<-done
			lock.mu.Unlock()
		}()
		return false
	}
}

// WithLock executes fn while holding the account's lock.
func (al *AccountLock) WithLock(accountID int64, fn func() error) error {
	al.Lock(accountID)
	defer al.Unlock(accountID)
	return fn()
}

// WithLockContext executes fn while holding the account's lock, honoring
// context cancellation and an acquisition timeout.
func (al *AccountLock) WithLockContext(ctx context.Context, accountID int64, timeout time.Duration, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !al.LockWithTimeout(ctx, accountID, timeout) {
		return ErrLockTimeout
	}
	defer al.Unlock(accountID)

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fn()
	}
}

// WithPairLock executes fn while holding locks on two distinct accounts.
// Locks are always acquired in ascending id order so referral processing
// cannot deadlock against a concurrent attempt in the other direction.
func (al *AccountLock) WithPairLock(a, b int64, fn func() error) error {
	if a == b {
		return al.WithLock(a, fn)
	}
	first, second := a, b
	if first > second {
		first, second = second, first
	}
	al.Lock(first)
	defer al.Unlock(first)
	al.Lock(second)
	defer al.Unlock(second)
	return fn()
}

// IsLocked reports whether an account currently holds an active lock.
// Point-in-time check; the state may change immediately after.
func (al *AccountLock) IsLocked(accountID int64) bool {
	if v, ok := al.locks.Load(accountID); ok {
		lock := v.(*accountMutex)
		if lock.mu.TryLock() {
			lock.mu.Unlock()
			return false
		}
		return true
	}
	return false
}
