package app

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/better-wallet/smart-account/internal/ledger"
	"github.com/better-wallet/smart-account/internal/logger"
	"github.com/better-wallet/smart-account/internal/recovery"
	apperrors "github.com/better-wallet/smart-account/pkg/errors"
	"github.com/better-wallet/smart-account/pkg/types"
)

// RecoveryKind selects a recovery module.
type RecoveryKind string

const (
	RecoveryCloud  RecoveryKind = "cloud"
	RecoverySocial RecoveryKind = "social"
)

// recoveryModule is the read surface shared by both recovery modules.
type recoveryModule interface {
	Address() common.Address
	Eip712Hash(st *ledger.State, data types.RecoveryData) (common.Hash, error)
	Status(st *ledger.State, acct common.Address) (types.RecoveryStatus, error)
}

func (s *AccountService) module(kind RecoveryKind) (recoveryModule, abi.ABI, error) {
	switch kind {
	case RecoveryCloud:
		return s.cloud, recovery.CloudABI, nil
	case RecoverySocial:
		return s.social, recovery.SocialABI, nil
	}
	return nil, abi.ABI{}, apperrors.NotFound(apperrors.ReasonNotExists, "recovery module "+string(kind))
}

// RecoveryHash returns the EIP-712 hash guardians sign for data.
func (s *AccountService) RecoveryHash(kind RecoveryKind, data types.RecoveryData) (hash common.Hash, err error) {
	m, _, err := s.module(kind)
	if err != nil {
		return common.Hash{}, err
	}
	s.ledger.View(func(st *ledger.State) { hash, err = m.Eip712Hash(st, data) })
	return hash, err
}

// RecoveryStatus returns the recovery state of acct in the module.
func (s *AccountService) RecoveryStatus(_ context.Context, kind RecoveryKind, acct common.Address) (status types.RecoveryStatus, err error) {
	m, _, err := s.module(kind)
	if err != nil {
		return status, err
	}
	s.ledger.View(func(st *ledger.State) { status, err = m.Status(st, acct) })
	return status, err
}

// SocialConfig returns the guardian configuration of acct.
func (s *AccountService) SocialConfig(_ context.Context, acct common.Address) (cfg types.SocialRecoveryConfig, err error) {
	s.ledger.View(func(st *ledger.State) { cfg, err = s.social.GetConfig(st, acct) })
	return cfg, err
}

// StartCloudRecovery submits the guardian-signed recovery data.
func (s *AccountService) StartCloudRecovery(ctx context.Context, data types.RecoveryData, signature []byte) (*types.Receipt, error) {
	input, err := recovery.EncodeCloudStart(data, signature)
	if err != nil {
		return nil, apperrors.InvalidInput(apperrors.ReasonInvalidLength, err.Error())
	}
	return s.startRecovery(ctx, RecoveryCloud, data, input)
}

// StartSocialRecovery submits recovery data approved by guardians.
func (s *AccountService) StartSocialRecovery(ctx context.Context, data types.RecoveryData, approvals []types.GuardianData) (*types.Receipt, error) {
	input, err := recovery.EncodeSocialStart(data, approvals)
	if err != nil {
		return nil, apperrors.InvalidInput(apperrors.ReasonInvalidLength, err.Error())
	}
	return s.startRecovery(ctx, RecoverySocial, data, input)
}

func (s *AccountService) startRecovery(ctx context.Context, kind RecoveryKind, data types.RecoveryData, input []byte) (*types.Receipt, error) {
	ctx = logger.WithAccount(ctx, data.RecoveringAddress.Hex())
	hash, err := s.RecoveryHash(kind, data)
	if err != nil {
		return nil, err
	}
	m, _, _ := s.module(kind)
	err = s.ledger.Transact(ctx, func(st *ledger.State) error {
		_, err := st.Invoke(ctx, s.addrs.Relayer, m.Address(), input)
		return err
	})
	s.metrics.ObserveRecovery(string(kind), "start", err)
	return s.record(ctx, types.ReceiptKindRecoveryStart, data.RecoveringAddress, hash, err)
}

// ExecuteRecovery finishes the pending recovery of acct once its timelock passed.
func (s *AccountService) ExecuteRecovery(ctx context.Context, kind RecoveryKind, acct common.Address) (*types.Receipt, error) {
	ctx = logger.WithAccount(ctx, acct.Hex())
	m, contract, err := s.module(kind)
	if err != nil {
		return nil, err
	}
	input, err := contract.Pack("executeRecovery", acct)
	if err != nil {
		return nil, apperrors.Internal(err.Error())
	}

	var hash common.Hash
	err = s.ledger.Transact(ctx, func(st *ledger.State) error {
		status, err := m.Status(st, acct)
		if err != nil {
			return err
		}
		if status.Recovering {
			hash, err = m.Eip712Hash(st, types.RecoveryData{RecoveringAddress: acct, NewOwner: status.NewOwner, Nonce: status.Nonce})
			if err != nil {
				return apperrors.Internal(err.Error())
			}
		}
		_, err = st.Invoke(ctx, s.addrs.Relayer, m.Address(), input)
		return err
	})
	s.metrics.ObserveRecovery(string(kind), "execute", err)
	return s.record(ctx, types.ReceiptKindRecoveryExecute, acct, hash, err)
}

// CloudGuardian returns the cloud guardian registered for acct, or the zero
// address when the cloud module is not enabled.
func (s *AccountService) CloudGuardian(acct common.Address) (guardian common.Address) {
	s.ledger.View(func(st *ledger.State) { guardian = s.cloud.GetGuardian(st, acct) })
	return guardian
}
