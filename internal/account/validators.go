package account

import (
	"context"
	"slices"

	"github.com/ethereum/go-ethereum/common"

	"github.com/better-wallet/smart-account/internal/ledger"
	"github.com/better-wallet/smart-account/internal/logger"
	apperrors "github.com/better-wallet/smart-account/pkg/errors"
)

func (k *Kernel) k1AddValidator(ctx context.Context, st *ledger.State, c *call) ([]byte, error) {
	rec, err := authorized(st, c)
	if err != nil {
		return nil, err
	}
	if err := addK1Validator(st, rec, argAddress(c, 0)); err != nil {
		return nil, err
	}
	logger.Info(ctx, "k1 validator added", "validator", argAddress(c, 0).Hex())
	return nil, storeRecord(st, c.self, rec)
}

func (k *Kernel) k1RemoveValidator(ctx context.Context, st *ledger.State, c *call) ([]byte, error) {
	rec, err := authorized(st, c)
	if err != nil {
		return nil, err
	}
	validator := argAddress(c, 0)
	var ok bool
	if rec.K1Validators, ok = remove(rec.K1Validators, validator); !ok {
		return nil, apperrors.NotFound(apperrors.ReasonNotExists, "k1 validator "+validator.Hex())
	}
	logger.Info(ctx, "k1 validator removed", "validator", validator.Hex())
	return nil, storeRecord(st, c.self, rec)
}

func (k *Kernel) r1AddValidator(ctx context.Context, st *ledger.State, c *call) ([]byte, error) {
	rec, err := authorized(st, c)
	if err != nil {
		return nil, err
	}
	validator := argAddress(c, 0)
	if err := requireNonZero(validator, "r1 validator"); err != nil {
		return nil, err
	}
	if _, ok := probe[R1Validator](st, validator); !ok {
		return nil, apperrors.InvalidInput(apperrors.ReasonNoInterface, "r1 validator "+validator.Hex())
	}
	if slices.Contains(rec.R1Validators, validator) {
		return nil, apperrors.StateConflict(apperrors.ReasonAlreadyExists, "r1 validator "+validator.Hex())
	}
	rec.R1Validators = append(rec.R1Validators, validator)
	logger.Info(ctx, "r1 validator added", "validator", validator.Hex())
	return nil, storeRecord(st, c.self, rec)
}

func (k *Kernel) r1RemoveValidator(ctx context.Context, st *ledger.State, c *call) ([]byte, error) {
	rec, err := authorized(st, c)
	if err != nil {
		return nil, err
	}
	validator := argAddress(c, 0)
	var ok bool
	if rec.R1Validators, ok = remove(rec.R1Validators, validator); !ok {
		return nil, apperrors.NotFound(apperrors.ReasonNotExists, "r1 validator "+validator.Hex())
	}
	logger.Info(ctx, "r1 validator removed", "validator", validator.Hex())
	return nil, storeRecord(st, c.self, rec)
}

func addK1Validator(st *ledger.State, rec *record, validator common.Address) error {
	if err := requireNonZero(validator, "k1 validator"); err != nil {
		return err
	}
	if _, ok := probe[K1Validator](st, validator); !ok {
		return apperrors.InvalidInput(apperrors.ReasonNoInterface, "k1 validator "+validator.Hex())
	}
	if slices.Contains(rec.K1Validators, validator) {
		return apperrors.StateConflict(apperrors.ReasonAlreadyExists, "k1 validator "+validator.Hex())
	}
	rec.K1Validators = append(rec.K1Validators, validator)
	return nil
}

func requireNonZero(addr common.Address, what string) error {
	if addr == (common.Address{}) {
		return apperrors.InvalidInput(apperrors.ReasonZeroAddress, what)
	}
	return nil
}
