package ledger

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	apperrors "github.com/better-wallet/smart-account/pkg/errors"
)

// MaxCallDepth bounds nested contract calls.
const MaxCallDepth = 64

// Message is a single value-carrying call between two addresses.
type Message struct {
	From  common.Address
	To    common.Address
	Value *uint256.Int
	Data  []byte
}

// Contract is code deployed at an address. Call runs with the world state
// locked; any returned error reverts every effect of the call.
type Contract interface {
	Call(ctx context.Context, st *State, msg *Message) ([]byte, error)
}

// State is the journaled world state: balances, per-address storage slots
// and deployed code. It is only reachable through Ledger.Transact and
// Ledger.View, which serialize access.
type State struct {
	chainID  uint64
	clock    Clock
	balances map[common.Address]*uint256.Int
	storage  map[common.Address]map[common.Hash][]byte
	code     map[common.Address]Contract
	journal  []func()
	depth    int
}

func newState(chainID uint64, clock Clock) *State {
	return &State{
		chainID:  chainID,
		clock:    clock,
		balances: make(map[common.Address]*uint256.Int),
		storage:  make(map[common.Address]map[common.Hash][]byte),
		code:     make(map[common.Address]Contract),
	}
}

// ChainID returns the chain identifier signatures are bound to.
func (s *State) ChainID() uint64 {
	return s.chainID
}

// Now returns the current ledger time.
func (s *State) Now() time.Time {
	return s.clock.Now()
}

// Balance returns a copy of the balance of addr.
func (s *State) Balance(addr common.Address) *uint256.Int {
	if b, ok := s.balances[addr]; ok {
		return new(uint256.Int).Set(b)
	}
	return new(uint256.Int)
}

func (s *State) setBalance(addr common.Address, amount *uint256.Int) {
	prev, existed := s.balances[addr]
	s.journal = append(s.journal, func() {
		if existed {
			s.balances[addr] = prev
		} else {
			delete(s.balances, addr)
		}
	})
	s.balances[addr] = amount
}

// Mint credits amount to addr out of thin air.
func (s *State) Mint(addr common.Address, amount *uint256.Int) {
	s.setBalance(addr, new(uint256.Int).Add(s.Balance(addr), amount))
}

// Transfer moves amount from one address to another.
func (s *State) Transfer(from, to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	balance := s.Balance(from)
	if balance.Lt(amount) {
		return apperrors.InvalidInput(apperrors.ReasonInsufficientBalance,
			fmt.Sprintf("%s has %s, needs %s", from.Hex(), balance.Dec(), amount.Dec()))
	}
	s.setBalance(from, new(uint256.Int).Sub(balance, amount))
	s.setBalance(to, new(uint256.Int).Add(s.Balance(to), amount))
	return nil
}

// Deploy installs code at addr.
func (s *State) Deploy(addr common.Address, c Contract) {
	prev, existed := s.code[addr]
	s.journal = append(s.journal, func() {
		if existed {
			s.code[addr] = prev
		} else {
			delete(s.code, addr)
		}
	})
	s.code[addr] = c
}

// Code returns the contract at addr, if any.
func (s *State) Code(addr common.Address) (Contract, bool) {
	c, ok := s.code[addr]
	return c, ok
}

// HasCode reports whether a contract is deployed at addr.
func (s *State) HasCode(addr common.Address) bool {
	_, ok := s.code[addr]
	return ok
}

// GetState returns a copy of the value stored at key for addr.
func (s *State) GetState(addr common.Address, key common.Hash) []byte {
	v, ok := s.storage[addr][key]
	if !ok {
		return nil
	}
	return bytes.Clone(v)
}

// SetState stores value at key for addr. An empty value clears the slot.
func (s *State) SetState(addr common.Address, key common.Hash, value []byte) {
	slots, ok := s.storage[addr]
	if !ok {
		slots = make(map[common.Hash][]byte)
		s.storage[addr] = slots
	}
	prev, existed := slots[key]
	s.journal = append(s.journal, func() {
		if existed {
			slots[key] = prev
		} else {
			delete(slots, key)
		}
	})
	if len(value) == 0 {
		delete(slots, key)
		return
	}
	slots[key] = bytes.Clone(value)
}

// Snapshot returns an identifier for the current state.
func (s *State) Snapshot() int {
	return len(s.journal)
}

// RevertToSnapshot undoes every change made after id was taken.
func (s *State) RevertToSnapshot(id int) {
	for i := len(s.journal) - 1; i >= id; i-- {
		s.journal[i]()
	}
	s.journal = s.journal[:id]
}

// Call transfers msg.Value and runs the code at msg.To, if any. A failing
// call leaves no trace in the state.
func (s *State) Call(ctx context.Context, msg *Message) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.depth >= MaxCallDepth {
		return nil, apperrors.InvalidInput(apperrors.ReasonCallFailed, "max call depth exceeded")
	}

	snap := s.Snapshot()
	if err := s.Transfer(msg.From, msg.To, msg.Value); err != nil {
		return nil, err
	}

	c, ok := s.code[msg.To]
	if !ok {
		return nil, nil
	}

	s.depth++
	out, err := c.Call(ctx, s, msg)
	s.depth--
	if err != nil {
		s.RevertToSnapshot(snap)
		return nil, err
	}
	return out, nil
}

// Invoke calls target from caller without transferring value.
func (s *State) Invoke(ctx context.Context, caller, target common.Address, data []byte) ([]byte, error) {
	return s.Call(ctx, &Message{From: caller, To: target, Data: data})
}
