package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/better-wallet/smart-account/internal/account"
	"github.com/better-wallet/smart-account/internal/factory"
	"github.com/better-wallet/smart-account/internal/ledger"
	"github.com/better-wallet/smart-account/internal/logger"
	"github.com/better-wallet/smart-account/internal/metrics"
	"github.com/better-wallet/smart-account/internal/recovery"
	"github.com/better-wallet/smart-account/internal/storage"
	"github.com/better-wallet/smart-account/internal/validator"
	"github.com/better-wallet/smart-account/pkg/auth"
	apperrors "github.com/better-wallet/smart-account/pkg/errors"
	"github.com/better-wallet/smart-account/pkg/types"
)

// Addresses are the well-known contract addresses of a deployment.
type Addresses struct {
	Kernel           common.Address `json:"kernel"`
	EOAValidator     common.Address `json:"eoaValidator"`
	TEEValidator     common.Address `json:"teeValidator"`
	PasskeyValidator common.Address `json:"passkeyValidator"`
	CloudRecovery    common.Address `json:"cloudRecovery"`
	SocialRecovery   common.Address `json:"socialRecovery"`
	Factory          common.Address `json:"factory"`
	Registry         common.Address `json:"registry"`
	// Relayer submits calls on behalf of API clients.
	Relayer common.Address `json:"relayer"`
}

// DefaultAddresses returns the addresses the service deploys system contracts at.
func DefaultAddresses() Addresses {
	return Addresses{
		Kernel:           common.HexToAddress("0x0000000000000000000000000000000000001001"),
		EOAValidator:     common.HexToAddress("0x0000000000000000000000000000000000002001"),
		TEEValidator:     common.HexToAddress("0x0000000000000000000000000000000000002002"),
		PasskeyValidator: common.HexToAddress("0x0000000000000000000000000000000000002003"),
		CloudRecovery:    common.HexToAddress("0x0000000000000000000000000000000000003001"),
		SocialRecovery:   common.HexToAddress("0x0000000000000000000000000000000000003002"),
		Factory:          common.HexToAddress("0x0000000000000000000000000000000000004001"),
		Registry:         common.HexToAddress("0x0000000000000000000000000000000000004002"),
		Relayer:          common.HexToAddress("0x0000000000000000000000000000000000005001"),
	}
}

// Options configures a new AccountService.
type Options struct {
	ChainID                    uint64
	Clock                      ledger.Clock
	RecoveryDomainName         string
	RecoveryDomainVersion      string
	CloudRecoveryTimelock      time.Duration
	SocialRecoveryMinTimelock  time.Duration
	SocialRecoveryMinThreshold uint64
}

// AccountService runs account deployments, operations and recoveries against
// one ledger and records a receipt for each of them.
type AccountService struct {
	ledger   *ledger.Ledger
	addrs    Addresses
	factory  *factory.Factory
	registry *factory.Registry
	cloud    *recovery.CloudModule
	social   *recovery.SocialModule
	receipts storage.ReceiptStore
	metrics  *metrics.Metrics
}

// NewAccountService deploys the system contracts on a fresh ledger.
func NewAccountService(ctx context.Context, opts Options, receipts storage.ReceiptStore, m *metrics.Metrics) (*AccountService, error) {
	addrs := DefaultAddresses()
	s := &AccountService{
		ledger:   ledger.New(opts.ChainID, opts.Clock),
		addrs:    addrs,
		factory:  factory.New(addrs.Factory, addrs.Kernel, addrs.Registry),
		registry: factory.NewRegistry(addrs.Registry, addrs.Relayer),
		cloud:    recovery.NewCloudModule(addrs.CloudRecovery, opts.RecoveryDomainName, opts.RecoveryDomainVersion, opts.CloudRecoveryTimelock),
		social: recovery.NewSocialModule(addrs.SocialRecovery, opts.RecoveryDomainName, opts.RecoveryDomainVersion,
			opts.SocialRecoveryMinTimelock, opts.SocialRecoveryMinThreshold),
		receipts: receipts,
		metrics:  m,
	}

	setFactory, err := factory.RegistryABI.Pack("setFactory", addrs.Factory)
	if err != nil {
		return nil, fmt.Errorf("failed to pack setFactory: %w", err)
	}
	err = s.ledger.Transact(ctx, func(st *ledger.State) error {
		st.Deploy(addrs.Kernel, account.NewKernel(addrs.Kernel))
		st.Deploy(addrs.EOAValidator, validator.NewEOAValidator())
		st.Deploy(addrs.TEEValidator, validator.NewTEEValidator())
		st.Deploy(addrs.PasskeyValidator, validator.NewPasskeyValidator())
		st.Deploy(addrs.CloudRecovery, s.cloud)
		st.Deploy(addrs.SocialRecovery, s.social)
		st.Deploy(addrs.Factory, s.factory)
		st.Deploy(addrs.Registry, s.registry)
		_, err := st.Invoke(ctx, addrs.Relayer, addrs.Registry, setFactory)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to deploy system contracts: %w", err)
	}

	logger.Info(ctx, "system contracts deployed", "chain_id", opts.ChainID, "kernel", addrs.Kernel.Hex(), "factory", addrs.Factory.Hex())
	return s, nil
}

// Addresses returns the system contract addresses.
func (s *AccountService) Addresses() Addresses {
	return s.addrs
}

// ChainID returns the chain ID operations are signed for.
func (s *AccountService) ChainID() uint64 {
	return s.ledger.ChainID()
}

// DeployRequest describes a new account.
type DeployRequest struct {
	Owner       common.Address  `json:"owner"`
	Validator   common.Address  `json:"validator"`
	Modules     []hexutil.Bytes `json:"modules"`
	InitialCall types.Call      `json:"initialCall"`
	Value       *uint256.Int    `json:"value"`
}

// DeployAccount creates the account of req.Owner through the factory. The
// value is minted to the relayer and forwarded with the deployment.
func (s *AccountService) DeployAccount(ctx context.Context, req DeployRequest) (*types.Receipt, error) {
	validatorAddr := req.Validator
	if validatorAddr == (common.Address{}) {
		validatorAddr = s.addrs.EOAValidator
	}
	modules := make([][]byte, len(req.Modules))
	for i, m := range req.Modules {
		modules[i] = m
	}
	initializer, err := account.EncodeInitializer(req.Owner, validatorAddr, modules, req.InitialCall)
	if err != nil {
		return nil, apperrors.InvalidInput(apperrors.ReasonInvalidInitializer, err.Error())
	}
	salt := factory.SaltForOwner(req.Owner)
	data, err := factory.EncodeDeploy(salt, initializer)
	if err != nil {
		return nil, apperrors.Internal(err.Error())
	}
	value := req.Value
	if value == nil {
		value = new(uint256.Int)
	}

	addr := s.factory.AddressForSalt(salt)
	ctx = logger.WithAccount(ctx, addr.Hex())
	err = s.ledger.Transact(ctx, func(st *ledger.State) error {
		st.Mint(s.addrs.Relayer, value)
		_, err := st.Call(ctx, &ledger.Message{From: s.addrs.Relayer, To: s.addrs.Factory, Value: value, Data: data})
		return err
	})
	s.metrics.ObserveDeployment(err)
	return s.record(ctx, types.ReceiptKindDeploy, addr, salt, err)
}

// OperationHash returns the hash owners sign for tx on account.
func (s *AccountService) OperationHash(account common.Address, tx types.Transaction) (common.Hash, error) {
	hash, err := auth.OperationHash(s.ChainID(), account, tx)
	if err != nil {
		return common.Hash{}, apperrors.InvalidInput(apperrors.ReasonInvalidLength, err.Error())
	}
	return hash, nil
}

// SubmitOperation validates and executes a signed operation.
func (s *AccountService) SubmitOperation(ctx context.Context, op *types.Operation) (*types.Receipt, error) {
	ctx = logger.WithAccount(ctx, op.Account.Hex())
	hash, err := s.OperationHash(op.Account, op.Transaction)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	err = s.ledger.Transact(ctx, func(st *ledger.State) error {
		_, err := account.HandleOperation(ctx, st, op)
		return err
	})
	s.metrics.ObserveOperation(reasonOf(err), err, time.Since(start))
	return s.record(ctx, types.ReceiptKindOperation, op.Account, hash, err)
}

// GetAccount returns the registries, nonce and balance of an account.
func (s *AccountService) GetAccount(_ context.Context, addr common.Address) (types.AccountView, error) {
	var (
		view types.AccountView
		err  error
	)
	s.ledger.View(func(st *ledger.State) {
		var snap *account.Snapshot
		if snap, err = account.Load(st, addr); err == nil {
			view = snap.View(st)
		}
	})
	return view, err
}

// IsAccount reports whether addr was deployed by the factory.
func (s *AccountService) IsAccount(addr common.Address) (ok bool) {
	s.ledger.View(func(st *ledger.State) { ok = s.registry.IsAccount(st, addr) })
	return ok
}

// ListReceipts returns the newest receipts of account.
func (s *AccountService) ListReceipts(ctx context.Context, addr common.Address, limit int) ([]*types.Receipt, error) {
	return s.receipts.ListByAccount(ctx, addr, limit)
}

// record persists the receipt of a finished call. The call error is
// returned alongside the receipt so callers can report both.
func (s *AccountService) record(ctx context.Context, kind string, addr common.Address, hash common.Hash, callErr error) (*types.Receipt, error) {
	receipt := &types.Receipt{
		Account: addr,
		Kind:    kind,
		Hash:    hash,
		Success: callErr == nil,
	}
	if appErr, ok := apperrors.IsAppError(callErr); ok {
		receipt.ErrorCode = appErr.Code
		receipt.Reason = appErr.Reason
	} else if callErr != nil {
		receipt.ErrorCode = apperrors.ErrCodeInternalError
	}

	if err := storage.Seal(receipt, s.now()); err != nil {
		return nil, apperrors.Internal(err.Error())
	}
	if err := s.receipts.Save(ctx, receipt); err != nil {
		logger.Error(ctx, "failed to save receipt", "kind", kind, "error", err)
		return nil, apperrors.Internal("failed to save receipt")
	}

	if callErr != nil {
		logger.Info(ctx, "call reverted", "kind", kind, "code", receipt.ErrorCode, "reason", receipt.Reason)
		return receipt, callErr
	}
	logger.Info(ctx, "call succeeded", "kind", kind, "receipt_id", receipt.ID.String())
	return receipt, nil
}

func (s *AccountService) now() (now time.Time) {
	s.ledger.View(func(st *ledger.State) { now = st.Now() })
	return now
}

func reasonOf(err error) string {
	if appErr, ok := apperrors.IsAppError(err); ok {
		return appErr.Reason
	}
	return ""
}
