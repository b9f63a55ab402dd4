package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"catalog-service/internal/models"
	"catalog-service/internal/repository"
)

func TestGetWalletNotFound(t *testing.T) {
	repo := &MockPaymentRepository{}
	repo.On("GetWallet", mock.Anything, uint64(404)).Return(nil, repository.ErrNotFound)

	svc := NewWalletService(repo)
	_, err := svc.GetWallet(context.Background(), 404)
	_, ok := IsNotFoundError(err)
	assert.True(t, ok)
}

func TestListHistoryClampsPaging(t *testing.T) {
	repo := &MockPaymentRepository{}
	wallet := &models.Wallet{ID: 70, UserID: 7}
	entries := []models.WalletHistory{{ID: 1, WalletID: 70, Type: "topup", Price: 50}}

	repo.On("GetWallet", mock.Anything, uint64(7)).Return(wallet, nil)
	repo.On("ListWalletHistory", mock.Anything, uint64(70), 20, 0).Return(entries, nil)

	svc := NewWalletService(repo)

	// Out-of-range paging falls back to the defaults
	history, err := svc.ListHistory(context.Background(), 7, 500, -3)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	repo.AssertCalled(t, "ListWalletHistory", mock.Anything, uint64(70), 20, 0)
}
