package recovery

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/better-wallet/smart-account/internal/ledger"
	"github.com/better-wallet/smart-account/internal/logger"
	"github.com/better-wallet/smart-account/pkg/auth"
	apperrors "github.com/better-wallet/smart-account/pkg/errors"
)

// CloudModule lets a single guardian, typically a service holding a backup
// key, recover an account after a module-wide timelock.
type CloudModule struct {
	base
	timelock time.Duration
}

// NewCloudModule creates a cloud recovery module deployed at addr.
func NewCloudModule(addr common.Address, name, version string, timelock time.Duration) *CloudModule {
	return &CloudModule{
		base:     base{address: addr, name: name, version: version, abi: CloudABI},
		timelock: timelock,
	}
}

// Timelock returns the delay between startRecovery and executeRecovery.
func (m *CloudModule) Timelock() time.Duration { return m.timelock }

// Init stores the guardian acct chose. initData is abi.encode(address).
func (m *CloudModule) Init(ctx context.Context, st *ledger.State, acct common.Address, initData []byte) error {
	s, err := m.requireNotInited(st, acct)
	if err != nil {
		return err
	}
	args, err := addressArgs.Unpack(initData)
	if err != nil {
		return apperrors.InvalidInput(apperrors.ReasonInvalidLength, "cloud init data: "+err.Error())
	}
	guardian := args[0].(common.Address)
	if err := requireAddress(guardian, "guardian"); err != nil {
		return err
	}

	s.Inited = true
	s.Guardian = guardian
	logger.Info(ctx, "cloud recovery inited", "account", acct.Hex(), "guardian", guardian.Hex())
	return m.store(st, acct, s)
}

// GetGuardian returns the guardian of acct, zero if not inited.
func (m *CloudModule) GetGuardian(st *ledger.State, acct common.Address) common.Address {
	s, err := m.load(st, acct)
	if err != nil {
		return common.Address{}
	}
	return s.Guardian
}

func (m *CloudModule) Call(ctx context.Context, st *ledger.State, msg *ledger.Message) ([]byte, error) {
	method, args, err := m.unpack(msg.Data)
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "startRecovery":
		return nil, m.startRecovery(ctx, st, args[0], args[1].([]byte))
	case "executeRecovery":
		return nil, m.executeRecovery(ctx, st, args[0].(common.Address))
	case "stopRecovery":
		return nil, m.stopRecovery(ctx, st, msg.From)
	case "updateGuardian":
		return nil, m.updateGuardian(ctx, st, msg.From, args[0].(common.Address))
	}
	return nil, apperrors.InvalidInput(apperrors.ReasonUnknownMethod, method.Name)
}

func (m *CloudModule) startRecovery(ctx context.Context, st *ledger.State, rawData interface{}, signature []byte) error {
	data, ok := fromRecoveryTuple(rawData)
	if !ok {
		return apperrors.ReplayRejected(apperrors.ReasonInvalidRecoveryNonce, "nonce overflows uint64")
	}
	s, hash, err := m.beginRecovery(st, data)
	if err != nil {
		return err
	}
	if !auth.VerifyK1(hash, signature, s.Guardian) {
		return apperrors.InvalidSignature("guardian signature does not match " + s.Guardian.Hex())
	}
	return m.markPending(ctx, st, s, data, m.timelock, []common.Address{s.Guardian})
}

func (m *CloudModule) updateGuardian(ctx context.Context, st *ledger.State, acct, guardian common.Address) error {
	s, err := m.requireConfigurable(st, acct)
	if err != nil {
		return err
	}
	if err := requireAddress(guardian, "guardian"); err != nil {
		return err
	}
	s.Guardian = guardian
	logger.Info(ctx, "cloud guardian updated", "account", acct.Hex(), "guardian", guardian.Hex())
	return m.store(st, acct, s)
}
