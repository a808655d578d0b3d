package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/better-wallet/smart-account/pkg/errors"
)

var (
	alice = common.HexToAddress("0xa11ce00000000000000000000000000000000001")
	bob   = common.HexToAddress("0xb0b0000000000000000000000000000000000002")
	vault = common.HexToAddress("0x7a17000000000000000000000000000000000003")
	slot  = common.HexToHash("0x01")
)

// recorder stores the call data in slot 1 and fails when asked to.
type recorder struct {
	fail bool
}

func (r *recorder) Call(_ context.Context, st *State, msg *Message) ([]byte, error) {
	st.SetState(msg.To, slot, msg.Data)
	if r.fail {
		return nil, errors.New("boom")
	}
	return []byte("ok"), nil
}

func TestTransfer(t *testing.T) {
	l := New(31337, nil)
	ctx := context.Background()

	require.NoError(t, l.Transact(ctx, func(st *State) error {
		st.Mint(alice, uint256.NewInt(10))
		return nil
	}))

	_, err := l.Apply(ctx, &Message{From: alice, To: bob, Value: uint256.NewInt(4)})
	require.NoError(t, err)
	assert.Equal(t, uint64(6), l.Balance(alice).Uint64())
	assert.Equal(t, uint64(4), l.Balance(bob).Uint64())

	_, err = l.Apply(ctx, &Message{From: alice, To: bob, Value: uint256.NewInt(7)})
	assert.True(t, apperrors.HasReason(err, apperrors.ReasonInsufficientBalance))
	assert.Equal(t, uint64(6), l.Balance(alice).Uint64())
}

func TestCallRevertsOnFailure(t *testing.T) {
	l := New(31337, nil)
	ctx := context.Background()
	c := &recorder{}

	require.NoError(t, l.Transact(ctx, func(st *State) error {
		st.Mint(alice, uint256.NewInt(5))
		st.Deploy(vault, c)
		return nil
	}))

	out, err := l.Apply(ctx, &Message{From: alice, To: vault, Value: uint256.NewInt(1), Data: []byte{1}})
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), out)

	c.fail = true
	_, err = l.Apply(ctx, &Message{From: alice, To: vault, Value: uint256.NewInt(1), Data: []byte{2}})
	require.Error(t, err)

	l.View(func(st *State) {
		assert.Equal(t, []byte{1}, st.GetState(vault, slot))
		assert.Equal(t, uint64(4), st.Balance(alice).Uint64())
		assert.Equal(t, uint64(1), st.Balance(vault).Uint64())
	})
}

func TestSnapshotNested(t *testing.T) {
	l := New(1, nil)
	err := l.Transact(context.Background(), func(st *State) error {
		st.SetState(vault, slot, []byte{1})
		snap := st.Snapshot()
		st.SetState(vault, slot, []byte{2})
		st.Mint(bob, uint256.NewInt(3))
		st.RevertToSnapshot(snap)

		assert.Equal(t, []byte{1}, st.GetState(vault, slot))
		assert.True(t, st.Balance(bob).IsZero())

		st.SetState(vault, slot, nil)
		assert.Nil(t, st.GetState(vault, slot))
		return nil
	})
	require.NoError(t, err)
}

func TestTransactRollback(t *testing.T) {
	l := New(1, nil)
	ctx := context.Background()

	err := l.Transact(ctx, func(st *State) error {
		st.Mint(alice, uint256.NewInt(1))
		st.Deploy(vault, &recorder{})
		return errors.New("abort")
	})
	require.Error(t, err)

	l.View(func(st *State) {
		assert.True(t, st.Balance(alice).IsZero())
		assert.False(t, st.HasCode(vault))
	})
}

func TestTransactCanceledContext(t *testing.T) {
	l := New(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := l.Transact(ctx, func(st *State) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestManualClock(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewManualClock(start)
	l := New(1, clock)

	clock.Advance(time.Hour)
	l.View(func(st *State) {
		assert.Equal(t, start.Add(time.Hour), st.Now())
	})
	assert.Equal(t, uint64(1), l.ChainID())
}
