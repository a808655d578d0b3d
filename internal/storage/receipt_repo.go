package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/better-wallet/smart-account/pkg/types"
)

// ReceiptRepository stores receipts in PostgreSQL.
type ReceiptRepository struct {
	db DBTX
}

// NewReceiptRepository creates a new receipt repository
func NewReceiptRepository(db DBTX) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

const receiptColumns = `id, account, kind, hash, success, error_code, reason, digest, created_at`

// Save inserts a sealed receipt.
func (r *ReceiptRepository) Save(ctx context.Context, receipt *types.Receipt) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO receipts (`+receiptColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		receipt.ID,
		receipt.Account.Bytes(),
		receipt.Kind,
		receipt.Hash.Bytes(),
		receipt.Success,
		receipt.ErrorCode,
		receipt.Reason,
		receipt.Digest,
		receipt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save receipt: %w", err)
	}
	return nil
}

// Get retrieves a receipt by ID, nil if absent.
func (r *ReceiptRepository) Get(ctx context.Context, id uuid.UUID) (*types.Receipt, error) {
	row := r.db.QueryRow(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE id = $1`, id)
	receipt, err := scanReceipt(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	return receipt, nil
}

// ListByAccount returns the newest receipts of account first.
func (r *ReceiptRepository) ListByAccount(ctx context.Context, account common.Address, limit int) ([]*types.Receipt, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+receiptColumns+`
		FROM receipts
		WHERE account = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`, account.Bytes(), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	defer rows.Close()

	receipts := make([]*types.Receipt, 0)
	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		receipts = append(receipts, receipt)
	}
	return receipts, rows.Err()
}

func scanReceipt(row pgx.Row) (*types.Receipt, error) {
	var (
		receipt       types.Receipt
		account, hash []byte
	)
	if err := row.Scan(
		&receipt.ID,
		&account,
		&receipt.Kind,
		&hash,
		&receipt.Success,
		&receipt.ErrorCode,
		&receipt.Reason,
		&receipt.Digest,
		&receipt.CreatedAt,
	); err != nil {
		return nil, err
	}
	receipt.Account = common.BytesToAddress(account)
	receipt.Hash = common.BytesToHash(hash)
	receipt.CreatedAt = receipt.CreatedAt.UTC()
	return &receipt, nil
}
