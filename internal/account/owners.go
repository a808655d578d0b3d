package account

import (
	"context"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"

	"github.com/better-wallet/smart-account/internal/ledger"
	"github.com/better-wallet/smart-account/internal/logger"
	"github.com/better-wallet/smart-account/pkg/auth"
	apperrors "github.com/better-wallet/smart-account/pkg/errors"
	"github.com/better-wallet/smart-account/pkg/types"
)

func (k *Kernel) k1AddOwner(ctx context.Context, st *ledger.State, c *call) ([]byte, error) {
	rec, err := authorized(st, c)
	if err != nil {
		return nil, err
	}
	if err := addK1Owner(rec, argAddress(c, 0)); err != nil {
		return nil, err
	}
	logger.Info(ctx, "k1 owner added", "owner", argAddress(c, 0).Hex())
	return nil, storeRecord(st, c.self, rec)
}

func (k *Kernel) k1RemoveOwner(ctx context.Context, st *ledger.State, c *call) ([]byte, error) {
	rec, err := authorized(st, c)
	if err != nil {
		return nil, err
	}
	owner := argAddress(c, 0)
	var ok bool
	if rec.K1Owners, ok = remove(rec.K1Owners, owner); !ok {
		return nil, apperrors.NotFound(apperrors.ReasonNotExists, "k1 owner "+owner.Hex())
	}
	if !rec.hasOwners() {
		return nil, apperrors.StateConflict(apperrors.ReasonEmptyOwners, "cannot remove the last owner")
	}
	logger.Info(ctx, "k1 owner removed", "owner", owner.Hex())
	return nil, storeRecord(st, c.self, rec)
}

func (k *Kernel) r1AddOwner(ctx context.Context, st *ledger.State, c *call) ([]byte, error) {
	rec, err := authorized(st, c)
	if err != nil {
		return nil, err
	}
	key, err := parseR1Key(argBytes(c, 0))
	if err != nil {
		return nil, err
	}
	if err := addR1Owner(rec, key); err != nil {
		return nil, err
	}
	logger.Info(ctx, "r1 owner added", "owner", key.Hex())
	return nil, storeRecord(st, c.self, rec)
}

func (k *Kernel) r1RemoveOwner(ctx context.Context, st *ledger.State, c *call) ([]byte, error) {
	rec, err := authorized(st, c)
	if err != nil {
		return nil, err
	}
	key, err := parseR1Key(argBytes(c, 0))
	if err != nil {
		return nil, err
	}
	var ok bool
	if rec.R1Owners, ok = remove(rec.R1Owners, key); !ok {
		return nil, apperrors.NotFound(apperrors.ReasonNotExists, "r1 owner "+key.Hex())
	}
	if !rec.hasOwners() {
		return nil, apperrors.StateConflict(apperrors.ReasonEmptyOwners, "cannot remove the last owner")
	}
	logger.Info(ctx, "r1 owner removed", "owner", key.Hex())
	return nil, storeRecord(st, c.self, rec)
}

// resetOwners replaces both owner sets with a single owner in one write.
// A 20-byte key is a k1 address, a 64-byte key an r1 public key.
func (k *Kernel) resetOwners(ctx context.Context, st *ledger.State, c *call) ([]byte, error) {
	rec, err := authorized(st, c)
	if err != nil {
		return nil, err
	}

	raw := argBytes(c, 0)
	rec.K1Owners = nil
	rec.R1Owners = nil
	switch len(raw) {
	case common.AddressLength:
		if err := addK1Owner(rec, common.BytesToAddress(raw)); err != nil {
			return nil, err
		}
	default:
		key, err := parseR1Key(raw)
		if err != nil {
			return nil, err
		}
		if err := addR1Owner(rec, key); err != nil {
			return nil, err
		}
	}

	logger.Info(ctx, "owners reset", "caller", c.msg.From.Hex(), "key_length", len(raw))
	return nil, storeRecord(st, c.self, rec)
}

func addK1Owner(rec *record, owner common.Address) error {
	if owner == (common.Address{}) {
		return apperrors.InvalidInput(apperrors.ReasonZeroAddress, "k1 owner")
	}
	if slices.Contains(rec.K1Owners, owner) {
		return apperrors.StateConflict(apperrors.ReasonAlreadyExists, "k1 owner "+owner.Hex())
	}
	rec.K1Owners = append(rec.K1Owners, owner)
	return nil
}

func addR1Owner(rec *record, key types.R1PublicKey) error {
	if _, err := auth.ParseR1PublicKey(key); err != nil {
		return apperrors.InvalidInput(apperrors.ReasonInvalidKey, "r1 owner "+key.Hex()+" is not on P-256")
	}
	if slices.Contains(rec.R1Owners, key) {
		return apperrors.StateConflict(apperrors.ReasonAlreadyExists, "r1 owner "+key.Hex())
	}
	rec.R1Owners = append(rec.R1Owners, key)
	return nil
}

func parseR1Key(raw []byte) (types.R1PublicKey, error) {
	key, err := types.R1PublicKeyFromBytes(raw)
	if err != nil {
		return key, apperrors.InvalidInput(apperrors.ReasonInvalidLength, fmt.Sprintf("r1 public key: %v", err))
	}
	return key, nil
}
