// Package rwlock provides a reader/writer lock with an upgradeable read mode.
//
// The standard library's sync.RWMutex cannot promote a read lock to a write
// lock without releasing it first, which lets another writer run between the
// decision made under the read lock and the mutation that follows. [Mutex]
// closes that gap with a gate: every writer and the single upgradeable reader
// hold the gate, so promoting the upgradeable reader can only ever wait on
// plain readers, never on a competing writer.
//
// Lock modes:
//
//   - shared ([Mutex.RLock]): any number of holders.
//   - exclusive ([Mutex.Lock]): one holder, excludes everybody.
//   - upgradeable ([Mutex.UpgradeableRLock]): one holder at a time, compatible
//     with shared holders, promotable to exclusive via [Upgradeable.Upgrade].
//
// The mode queries ([Mutex.IsLocked], [Mutex.IsRLocked],
// [Mutex.IsUpgradeableLocked]) report whether any goroutine holds a mode.
// They exist for assertions in code that requires a lock to be held.
package rwlock

import (
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// Mutex is a reader/writer mutual exclusion lock with an upgradeable read
// mode. The zero value is an unlocked mutex. A Mutex must not be copied after
// first use.
type Mutex struct {
	gate sync.Mutex
	rw   sync.RWMutex

	readers     atomic.Int32
	writer      atomic.Bool
	upgradeable atomic.Bool
}

// RLock acquires a shared lock.
func (m *Mutex) RLock() {
	m.rw.RLock()
	m.readers.Add(1)
}

// RUnlock releases a shared lock. It panics if no shared lock is held.
func (m *Mutex) RUnlock() {
	if m.readers.Add(-1) < 0 {
		m.readers.Add(1)
		panic(errors.AssertionFailedf("rwlock: RUnlock of unlocked mutex"))
	}
	m.rw.RUnlock()
}

// Lock acquires the exclusive lock.
func (m *Mutex) Lock() {
	m.gate.Lock()
	m.rw.Lock()
	m.writer.Store(true)
}

// Unlock releases the exclusive lock. It panics if the exclusive lock is not
// held.
func (m *Mutex) Unlock() {
	if !m.writer.CompareAndSwap(true, false) {
		panic(errors.AssertionFailedf("rwlock: Unlock of mutex not locked for writing"))
	}
	m.rw.Unlock()
	m.gate.Unlock()
}

// UpgradeableRLock acquires the upgradeable read lock and returns a handle
// to it. The handle must be released with [Upgradeable.Release]; deferring
// the release right after acquisition covers every exit path.
func (m *Mutex) UpgradeableRLock() *Upgradeable {
	m.gate.Lock()
	m.rw.RLock()
	m.readers.Add(1)
	m.upgradeable.Store(true)
	return &Upgradeable{m: m, state: stateUpgradeable}
}

// IsLocked reports whether the exclusive lock is held.
func (m *Mutex) IsLocked() bool {
	return m.writer.Load()
}

// IsRLocked reports whether at least one shared lock (plain or upgradeable)
// is held.
func (m *Mutex) IsRLocked() bool {
	return m.readers.Load() > 0
}

// IsUpgradeableLocked reports whether the upgradeable read lock is held, in
// either its read or its upgraded form.
func (m *Mutex) IsUpgradeableLocked() bool {
	return m.upgradeable.Load()
}

type upgradeableState int

const (
	stateReleased upgradeableState = iota
	stateUpgradeable
	stateUpgraded
	stateDowngraded
)

// Upgradeable is a held upgradeable read lock. It is not safe for use by
// more than one goroutine.
type Upgradeable struct {
	m     *Mutex
	state upgradeableState
}

// Upgrade promotes the upgradeable read lock to the exclusive lock. No other
// writer can acquire the lock between the read and the write phase.
func (u *Upgradeable) Upgrade() {
	if u.state != stateUpgradeable {
		panic(errors.AssertionFailedf("rwlock: Upgrade in state %d", u.state))
	}
	m := u.m
	m.readers.Add(-1)
	m.rw.RUnlock()
	m.rw.Lock()
	m.writer.Store(true)
	u.state = stateUpgraded
}

// Downgrade turns the upgradeable read lock into a plain shared lock and
// gives up the right to upgrade, letting the next writer or upgradeable
// reader queue behind the remaining shared holders.
func (u *Upgradeable) Downgrade() {
	if u.state != stateUpgradeable {
		panic(errors.AssertionFailedf("rwlock: Downgrade in state %d", u.state))
	}
	u.m.upgradeable.Store(false)
	u.m.gate.Unlock()
	u.state = stateDowngraded
}

// Release releases whatever the handle currently holds. Calling Release on
// an already released handle is a no-op.
func (u *Upgradeable) Release() {
	m := u.m
	switch u.state {
	case stateUpgradeable:
		m.upgradeable.Store(false)
		m.readers.Add(-1)
		m.rw.RUnlock()
		m.gate.Unlock()
	case stateUpgraded:
		m.upgradeable.Store(false)
		m.writer.Store(false)
		m.rw.Unlock()
		m.gate.Unlock()
	case stateDowngraded:
		m.RUnlock()
	case stateReleased:
		return
	}
	u.state = stateReleased
}
