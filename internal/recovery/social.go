package recovery

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/better-wallet/smart-account/internal/ledger"
	"github.com/better-wallet/smart-account/internal/logger"
	"github.com/better-wallet/smart-account/pkg/auth"
	apperrors "github.com/better-wallet/smart-account/pkg/errors"
	"github.com/better-wallet/smart-account/pkg/types"
)

// SocialModule recovers an account once a threshold of its guardians signed
// the same recovery data. Each account picks its own guardians, threshold and
// timelock within the module minimums.
type SocialModule struct {
	base
	minTimelock  time.Duration
	minThreshold uint64
}

// NewSocialModule creates a social recovery module deployed at addr.
func NewSocialModule(addr common.Address, name, version string, minTimelock time.Duration, minThreshold uint64) *SocialModule {
	if minThreshold == 0 {
		minThreshold = 1
	}
	return &SocialModule{
		base:         base{address: addr, name: name, version: version, abi: SocialABI},
		minTimelock:  minTimelock,
		minThreshold: minThreshold,
	}
}

// Init stores the guardian configuration of acct. initData is the ABI
// encoded (threshold, timelock, guardians) tuple.
func (m *SocialModule) Init(ctx context.Context, st *ledger.State, acct common.Address, initData []byte) error {
	s, err := m.requireNotInited(st, acct)
	if err != nil {
		return err
	}
	args, err := configArgs.Unpack(initData)
	if err != nil {
		return apperrors.InvalidInput(apperrors.ReasonInvalidLength, "social init data: "+err.Error())
	}
	if err := m.applyConfig(s, args[0]); err != nil {
		return err
	}
	s.Inited = true
	logger.Info(ctx, "social recovery inited", "account", acct.Hex(), "threshold", s.Threshold, "guardians", len(s.Guardians))
	return m.store(st, acct, s)
}

// GetConfig returns the guardian configuration of acct.
func (m *SocialModule) GetConfig(st *ledger.State, acct common.Address) (types.SocialRecoveryConfig, error) {
	s, err := m.load(st, acct)
	if err != nil {
		return types.SocialRecoveryConfig{}, err
	}
	return types.SocialRecoveryConfig{
		Threshold: s.Threshold,
		Timelock:  time.Duration(s.Timelock) * time.Second,
		Guardians: append([]common.Address{}, s.Guardians...),
	}, nil
}

func (m *SocialModule) Call(ctx context.Context, st *ledger.State, msg *ledger.Message) ([]byte, error) {
	method, args, err := m.unpack(msg.Data)
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "startRecovery":
		return nil, m.startRecovery(ctx, st, args[0], args[1])
	case "executeRecovery":
		return nil, m.executeRecovery(ctx, st, args[0].(common.Address))
	case "stopRecovery":
		return nil, m.stopRecovery(ctx, st, msg.From)
	case "updateConfig":
		return nil, m.updateConfig(ctx, st, msg.From, args[0])
	}
	return nil, apperrors.InvalidInput(apperrors.ReasonUnknownMethod, method.Name)
}

func (m *SocialModule) startRecovery(ctx context.Context, st *ledger.State, rawData, rawApprovals interface{}) error {
	data, ok := fromRecoveryTuple(rawData)
	if !ok {
		return apperrors.ReplayRejected(apperrors.ReasonInvalidRecoveryNonce, "nonce overflows uint64")
	}
	s, hash, err := m.beginRecovery(st, data)
	if err != nil {
		return err
	}

	tuples := *abi.ConvertType(rawApprovals, new([]guardianDataT)).(*[]guardianDataT)
	approvals := make([]types.GuardianData, len(tuples))
	for i, t := range tuples {
		approvals[i] = types.GuardianData{Guardian: t.Guardian, Signature: t.Signature}
	}
	valid, err := auth.VerifyGuardianQuorum(hash, approvals, s.Guardians, s.Threshold)
	if err != nil {
		return apperrors.Unauthorized(apperrors.ReasonInsufficientGuardians, err.Error())
	}
	return m.markPending(ctx, st, s, data, time.Duration(s.Timelock)*time.Second, valid)
}

func (m *SocialModule) updateConfig(ctx context.Context, st *ledger.State, acct common.Address, raw interface{}) error {
	s, err := m.requireConfigurable(st, acct)
	if err != nil {
		return err
	}
	if err := m.applyConfig(s, raw); err != nil {
		return err
	}
	logger.Info(ctx, "social recovery config updated", "account", acct.Hex(), "threshold", s.Threshold, "guardians", len(s.Guardians))
	return m.store(st, acct, s)
}

// applyConfig validates an ABI config tuple and copies it into s.
func (m *SocialModule) applyConfig(s *state, raw interface{}) error {
	cfg := *abi.ConvertType(raw, new(configT)).(*configT)

	seen := make(map[common.Address]bool, len(cfg.Guardians))
	for _, g := range cfg.Guardians {
		if err := requireAddress(g, "guardian"); err != nil {
			return err
		}
		if seen[g] {
			return apperrors.InvalidInput(apperrors.ReasonAlreadyExists, "guardian "+g.Hex())
		}
		seen[g] = true
	}

	if !cfg.Threshold.IsUint64() {
		return apperrors.InvalidInput(apperrors.ReasonInvalidThreshold, "threshold overflows uint64")
	}
	threshold := cfg.Threshold.Uint64()
	if threshold < m.minThreshold || threshold > uint64(len(cfg.Guardians)) {
		return apperrors.InvalidInput(apperrors.ReasonInvalidThreshold,
			fmt.Sprintf("threshold %d must be within [%d, %d]", threshold, m.minThreshold, len(cfg.Guardians)))
	}

	if !cfg.Timelock.IsUint64() || cfg.Timelock.Uint64() > uint64(math.MaxInt64/int64(time.Second)) {
		return apperrors.InvalidInput(apperrors.ReasonInvalidTimelock, "timelock out of range")
	}
	timelock := cfg.Timelock.Uint64()
	if time.Duration(timelock)*time.Second < m.minTimelock {
		return apperrors.InvalidInput(apperrors.ReasonInvalidTimelock,
			fmt.Sprintf("timelock %ds below minimum %s", timelock, m.minTimelock))
	}

	s.Threshold = threshold
	s.Timelock = timelock
	s.Guardians = cfg.Guardians
	return nil
}
