package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Clock supplies ledger time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ManualClock is a clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a clock frozen at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Ledger serializes every state transition. Each Transact is one atomic
// step: it either commits entirely or leaves the state untouched.
type Ledger struct {
	mu    sync.Mutex
	state *State
}

// New creates an empty ledger.
func New(chainID uint64, clock Clock) *Ledger {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Ledger{state: newState(chainID, clock)}
}

// ChainID returns the chain identifier.
func (l *Ledger) ChainID() uint64 {
	return l.state.chainID
}

// Transact runs fn as a single atomic transition.
func (l *Ledger) Transact(ctx context.Context, fn func(st *State) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	st := l.state
	snap := st.Snapshot()
	if err := fn(st); err != nil {
		st.RevertToSnapshot(snap)
		return err
	}
	st.journal = nil
	return nil
}

// View runs fn against the current state. fn must not mutate it.
func (l *Ledger) View(fn func(st *State)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.state)
}

// Apply executes msg as its own transaction.
func (l *Ledger) Apply(ctx context.Context, msg *Message) ([]byte, error) {
	var out []byte
	err := l.Transact(ctx, func(st *State) error {
		var err error
		out, err = st.Call(ctx, msg)
		return err
	})
	return out, err
}

// Balance returns the committed balance of addr.
func (l *Ledger) Balance(addr common.Address) (balance *uint256.Int) {
	l.View(func(st *State) { balance = st.Balance(addr) })
	return balance
}
