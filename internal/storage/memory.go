package storage

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	apperrors "github.com/better-wallet/smart-account/pkg/errors"
	"github.com/better-wallet/smart-account/pkg/types"
)

// MemoryReceiptStore keeps receipts in process memory.
type MemoryReceiptStore struct {
	mu        sync.RWMutex
	byID      map[uuid.UUID]*types.Receipt
	byAccount map[common.Address][]*types.Receipt
}

// NewMemoryReceiptStore creates an empty in-memory store.
func NewMemoryReceiptStore() *MemoryReceiptStore {
	return &MemoryReceiptStore{
		byID:      make(map[uuid.UUID]*types.Receipt),
		byAccount: make(map[common.Address][]*types.Receipt),
	}
}

func (s *MemoryReceiptStore) Save(_ context.Context, receipt *types.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[receipt.ID]; ok {
		return apperrors.StateConflict(apperrors.ReasonAlreadyExists, "receipt "+receipt.ID.String())
	}
	stored := *receipt
	s.byID[stored.ID] = &stored
	s.byAccount[stored.Account] = append(s.byAccount[stored.Account], &stored)
	return nil
}

func (s *MemoryReceiptStore) Get(_ context.Context, id uuid.UUID) (*types.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	out := *r
	return &out, nil
}

// ListByAccount returns the newest receipts of account first.
func (s *MemoryReceiptStore) ListByAccount(_ context.Context, account common.Address, limit int) ([]*types.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.byAccount[account]
	limit = clampLimit(limit)
	out := make([]*types.Receipt, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		r := *all[i]
		out = append(out, &r)
	}
	return out, nil
}
