package services

import (
	"context"
	"errors"
	"fmt"

	"catalog-service/internal/models"
	"catalog-service/internal/repository"
)

// WalletService exposes wallet balance and ledger reads. Crediting happens
// only through webhook settlement in PaymentService.
type WalletService struct {
	paymentRepo repository.PaymentRepository
}

// NewWalletService creates a new wallet service
func NewWalletService(paymentRepo repository.PaymentRepository) *WalletService {
	return &WalletService{paymentRepo: paymentRepo}
}

// GetWallet returns a user's wallet
func (s *WalletService) GetWallet(ctx context.Context, userID uint64) (*models.Wallet, error) {
	wallet, err := s.paymentRepo.GetWallet(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFoundError("wallet", fmt.Sprintf("user %d has no wallet", userID))
		}
		return nil, err
	}
	return wallet, nil
}

// ListHistory returns the wallet's ledger entries, newest first
func (s *WalletService) ListHistory(ctx context.Context, userID uint64, limit, offset int) ([]models.WalletHistory, error) {
	wallet, err := s.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	return s.paymentRepo.ListWalletHistory(ctx, wallet.ID, limit, offset)
}
