// Package recovery implements the cloud and social recovery modules. Both
// replace the owners of an account after a timelock, once a guardian (cloud)
// or a quorum of guardians (social) signed the recovery data.
package recovery

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/better-wallet/smart-account/internal/account"
	"github.com/better-wallet/smart-account/internal/ledger"
	"github.com/better-wallet/smart-account/internal/logger"
	"github.com/better-wallet/smart-account/pkg/auth"
	apperrors "github.com/better-wallet/smart-account/pkg/errors"
	"github.com/better-wallet/smart-account/pkg/types"
)

var stateKey = []byte("RecoveryModule.state")

// state is the per-account record a module keeps in its own storage.
// Nonce survives Disable so signatures over old nonces never become valid again.
type state struct {
	Inited    bool
	Nonce     uint64
	Guardian  common.Address
	Threshold uint64
	Timelock  uint64
	Guardians []common.Address
	Pending   pending
}

type pending struct {
	Active    bool
	NewOwner  []byte
	StartedAt uint64
	ReadyAt   uint64
	Approvals []common.Address
}

// base holds what cloud and social modules share: the EIP-712 domain,
// the per-account record and the execute/stop flow.
type base struct {
	address common.Address
	name    string
	version string
	abi     abi.ABI
}

// Address returns the address the module is deployed at.
func (b *base) Address() common.Address { return b.address }

// IsModule marks recovery contracts as account modules.
func (b *base) IsModule() bool { return true }

func (b *base) slot(acct common.Address) common.Hash {
	return crypto.Keccak256Hash(stateKey, acct.Bytes())
}

func (b *base) load(st *ledger.State, acct common.Address) (*state, error) {
	s := new(state)
	raw := st.GetState(b.address, b.slot(acct))
	if len(raw) == 0 {
		return s, nil
	}
	if err := rlp.DecodeBytes(raw, s); err != nil {
		return nil, apperrors.Internal(fmt.Sprintf("decode recovery state: %v", err))
	}
	return s, nil
}

func (b *base) store(st *ledger.State, acct common.Address, s *state) error {
	raw, err := rlp.EncodeToBytes(s)
	if err != nil {
		return apperrors.Internal(fmt.Sprintf("encode recovery state: %v", err))
	}
	st.SetState(b.address, b.slot(acct), raw)
	return nil
}

// Domain returns the EIP-712 domain guardians sign under.
func (b *base) Domain(chainID uint64) auth.Domain {
	return auth.Domain{
		Name:              b.name,
		Version:           b.version,
		ChainID:           chainID,
		VerifyingContract: b.address,
	}
}

// Eip712Hash returns the hash guardians must sign for data.
func (b *base) Eip712Hash(st *ledger.State, data types.RecoveryData) (common.Hash, error) {
	return auth.RecoveryHash(b.Domain(st.ChainID()), data)
}

// IsInited reports whether acct initialized the module.
func (b *base) IsInited(st *ledger.State, acct common.Address) bool {
	s, err := b.load(st, acct)
	return err == nil && s.Inited
}

// IsRecovering reports whether acct has a pending recovery.
func (b *base) IsRecovering(st *ledger.State, acct common.Address) bool {
	s, err := b.load(st, acct)
	return err == nil && s.Pending.Active
}

// RecoveryNonce returns the nonce the next recovery of acct must carry.
func (b *base) RecoveryNonce(st *ledger.State, acct common.Address) uint64 {
	s, err := b.load(st, acct)
	if err != nil {
		return 0
	}
	return s.Nonce
}

// Status summarizes the recovery state of acct.
func (b *base) Status(st *ledger.State, acct common.Address) (types.RecoveryStatus, error) {
	s, err := b.load(st, acct)
	if err != nil {
		return types.RecoveryStatus{}, err
	}
	status := types.RecoveryStatus{
		Account:    acct,
		Inited:     s.Inited,
		Recovering: s.Pending.Active,
		Nonce:      s.Nonce,
	}
	if s.Pending.Active {
		started := time.Unix(int64(s.Pending.StartedAt), 0).UTC()
		ready := time.Unix(int64(s.Pending.ReadyAt), 0).UTC()
		status.NewOwner = s.Pending.NewOwner
		status.StartedAt = &started
		status.ReadyAt = &ready
		status.Approvals = s.Pending.Approvals
	}
	return status, nil
}

// Disable drops the configuration and any pending recovery of acct.
func (b *base) Disable(ctx context.Context, st *ledger.State, acct common.Address) error {
	s, err := b.load(st, acct)
	if err != nil {
		return err
	}
	nonce := s.Nonce
	if s.Pending.Active {
		nonce++
	}
	logger.Info(ctx, "recovery module disabled", "module", b.address.Hex(), "account", acct.Hex())
	return b.store(st, acct, &state{Nonce: nonce})
}

// beginRecovery checks data against the stored record and returns the hash
// guardians must have signed.
func (b *base) beginRecovery(st *ledger.State, data types.RecoveryData) (*state, common.Hash, error) {
	s, err := b.load(st, data.RecoveringAddress)
	if err != nil {
		return nil, common.Hash{}, err
	}
	if !s.Inited {
		return nil, common.Hash{}, apperrors.StateConflict(apperrors.ReasonRecoveryNotInited, data.RecoveringAddress.Hex())
	}
	if s.Pending.Active {
		return nil, common.Hash{}, apperrors.StateConflict(apperrors.ReasonRecoveryInProgress, data.RecoveringAddress.Hex())
	}
	if data.Nonce != s.Nonce {
		return nil, common.Hash{}, apperrors.ReplayRejected(apperrors.ReasonInvalidRecoveryNonce,
			fmt.Sprintf("expected %d, got %d", s.Nonce, data.Nonce))
	}
	if err := checkNewOwner(data.NewOwner); err != nil {
		return nil, common.Hash{}, err
	}
	hash, err := b.Eip712Hash(st, data)
	if err != nil {
		return nil, common.Hash{}, apperrors.Internal(err.Error())
	}
	return s, hash, nil
}

// markPending stores data as the pending recovery of its account, executable
// timelock after now.
func (b *base) markPending(ctx context.Context, st *ledger.State, s *state, data types.RecoveryData, timelock time.Duration, approvals []common.Address) error {
	now := st.Now()
	s.Pending = pending{
		Active:    true,
		NewOwner:  bytes.Clone(data.NewOwner),
		StartedAt: uint64(now.Unix()),
		ReadyAt:   uint64(now.Add(timelock).Unix()),
		Approvals: approvals,
	}
	if err := b.store(st, data.RecoveringAddress, s); err != nil {
		return err
	}
	logger.Info(ctx, "recovery started",
		"module", b.address.Hex(),
		"account", data.RecoveringAddress.Hex(),
		"nonce", data.Nonce,
		"ready_at", s.Pending.ReadyAt,
	)
	return nil
}

// executeRecovery resets the owners of acct to the pending new owner once
// the timelock has passed. Anyone may trigger it.
func (b *base) executeRecovery(ctx context.Context, st *ledger.State, acct common.Address) error {
	s, err := b.load(st, acct)
	if err != nil {
		return err
	}
	if !s.Pending.Active {
		return apperrors.StateConflict(apperrors.ReasonRecoveryNotStarted, acct.Hex())
	}
	if now := uint64(st.Now().Unix()); now < s.Pending.ReadyAt {
		return apperrors.StateConflict(apperrors.ReasonTimelockNotPassed,
			fmt.Sprintf("ready in %ds", s.Pending.ReadyAt-now))
	}

	input, err := account.ABI.Pack("resetOwners", s.Pending.NewOwner)
	if err != nil {
		return apperrors.Internal(err.Error())
	}
	if _, err := st.Invoke(ctx, b.address, acct, input); err != nil {
		return fmt.Errorf("reset owners: %w", err)
	}

	s.Nonce++
	s.Pending = pending{}
	if err := b.store(st, acct, s); err != nil {
		return err
	}
	logger.Info(ctx, "recovery executed", "module", b.address.Hex(), "account", acct.Hex())
	return nil
}

// stopRecovery cancels the pending recovery of the calling account.
func (b *base) stopRecovery(ctx context.Context, st *ledger.State, acct common.Address) error {
	s, err := b.load(st, acct)
	if err != nil {
		return err
	}
	if !s.Pending.Active {
		return apperrors.StateConflict(apperrors.ReasonRecoveryNotStarted, acct.Hex())
	}
	s.Nonce++
	s.Pending = pending{}
	if err := b.store(st, acct, s); err != nil {
		return err
	}
	logger.Info(ctx, "recovery stopped", "module", b.address.Hex(), "account", acct.Hex())
	return nil
}

// requireConfigurable rejects configuration changes from accounts that have
// not initialized the module or are being recovered.
func (b *base) requireConfigurable(st *ledger.State, acct common.Address) (*state, error) {
	s, err := b.load(st, acct)
	if err != nil {
		return nil, err
	}
	if !s.Inited {
		return nil, apperrors.StateConflict(apperrors.ReasonRecoveryNotInited, acct.Hex())
	}
	if s.Pending.Active {
		return nil, apperrors.StateConflict(apperrors.ReasonRecoveryInProgress, acct.Hex())
	}
	return s, nil
}

func (b *base) requireNotInited(st *ledger.State, acct common.Address) (*state, error) {
	s, err := b.load(st, acct)
	if err != nil {
		return nil, err
	}
	if s.Inited {
		return nil, apperrors.StateConflict(apperrors.ReasonAlreadyInitialized, acct.Hex())
	}
	return s, nil
}

// unpack resolves the selector of data against the module ABI.
func (b *base) unpack(data []byte) (*abi.Method, []interface{}, error) {
	if len(data) < 4 {
		return nil, nil, apperrors.InvalidInput(apperrors.ReasonUnknownMethod, "call data shorter than a selector")
	}
	method, err := b.abi.MethodById(data[:4])
	if err != nil {
		return nil, nil, apperrors.InvalidInput(apperrors.ReasonUnknownMethod, fmt.Sprintf("%x", data[:4]))
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, apperrors.InvalidInput(apperrors.ReasonInvalidLength, fmt.Sprintf("%s: %v", method.Name, err))
	}
	return method, args, nil
}

// checkNewOwner rejects owners that resetOwners would refuse, so a
// pending recovery can always be executed.
func checkNewOwner(owner []byte) error {
	switch len(owner) {
	case common.AddressLength:
		return requireAddress(common.BytesToAddress(owner), "new owner")
	case types.R1PublicKeyLength:
		if _, err := auth.ParseR1PublicKey(types.R1PublicKey(owner)); err != nil {
			return apperrors.InvalidInput(apperrors.ReasonInvalidKey, "new owner: "+err.Error())
		}
		return nil
	default:
		return apperrors.InvalidInput(apperrors.ReasonInvalidLength,
			fmt.Sprintf("new owner must be %d or %d bytes, got %d", common.AddressLength, types.R1PublicKeyLength, len(owner)))
	}
}

func requireAddress(addr common.Address, what string) error {
	if addr == (common.Address{}) {
		return apperrors.InvalidInput(apperrors.ReasonZeroAddress, what)
	}
	return nil
}
