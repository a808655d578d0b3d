package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/gowebpki/jcs"

	"github.com/better-wallet/smart-account/pkg/types"
)

// DefaultListLimit bounds receipt listings when the caller gives no limit.
const DefaultListLimit = 100

// ReceiptStore persists the receipts of state-changing calls.
type ReceiptStore interface {
	Save(ctx context.Context, receipt *types.Receipt) error
	Get(ctx context.Context, id uuid.UUID) (*types.Receipt, error)
	ListByAccount(ctx context.Context, account common.Address, limit int) ([]*types.Receipt, error)
}

// Seal assigns an ID and timestamp to r if missing and sets its digest.
func Seal(r *types.Receipt, now time.Time) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now.UTC().Truncate(time.Microsecond)
	}
	digest, err := Digest(r)
	if err != nil {
		return err
	}
	r.Digest = digest
	return nil
}

// Digest returns the hex SHA-256 of the RFC 8785 canonical JSON of r,
// computed without its Digest field.
func Digest(r *types.Receipt) (string, error) {
	unsigned := *r
	unsigned.Digest = ""
	raw, err := json.Marshal(unsigned)
	if err != nil {
		return "", fmt.Errorf("marshal receipt: %w", err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize receipt: %w", err)
	}

	digest := sha256.Sum256(canonical)
	return hex.EncodeToString(digest[:]), nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}
