package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"catalog-service/internal/models"
)

// PaymentRepository handles payment processes, transactions and wallets
type PaymentRepository interface {
	// UpsertProcess records a checkout attempt, superseding any previous
	// attempt for the same (user, order) pair
	UpsertProcess(ctx context.Context, key ProcessKey, token string, data *models.PaymentProcessData) (*models.PaymentProcess, error)

	// FindProcessByToken loads a pending process with its order and the
	// order's transaction. Returns ErrNotFound when the token is unknown.
	FindProcessByToken(ctx context.Context, token string) (*models.PaymentProcess, error)

	// DeleteProcess removes a consumed process row
	DeleteProcess(ctx context.Context, token string) error

	// GetOrder loads an order with its user
	GetOrder(ctx context.Context, orderID uint64) (*models.Order, error)

	// UpdateOrderTotal persists a recomputed order total
	UpdateOrderTotal(ctx context.Context, orderID uint64, total float64) error

	// UpdateTransactionStatus applies a canonical status and the vendor
	// transaction reference to a transaction
	UpdateTransactionStatus(ctx context.Context, transactionID uint64, token string, status models.TransactionStatus) error

	// GetTransaction loads a transaction by id
	GetTransaction(ctx context.Context, transactionID uint64) (*models.Transaction, error)

	// CreateTransaction persists a new transaction row
	CreateTransaction(ctx context.Context, transaction *models.Transaction) error

	// CreditWallet increments a user's wallet balance and appends a ledger
	// entry, atomically
	CreditWallet(ctx context.Context, userID uint64, amount float64, transaction *models.Transaction) error

	// GetWallet loads a user's wallet
	GetWallet(ctx context.Context, userID uint64) (*models.Wallet, error)

	// ListWalletHistory returns ledger entries of a wallet, newest first
	ListWalletHistory(ctx context.Context, walletID uint64, limit, offset int) ([]models.WalletHistory, error)

	// PurgeStaleProcesses deletes process rows older than the cutoff and
	// returns how many were removed
	PurgeStaleProcesses(ctx context.Context, olderThan time.Duration) (int64, error)
}

// paymentRepository is the GORM-backed implementation
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) UpsertProcess(ctx context.Context, key ProcessKey, token string, data *models.PaymentProcessData) (*models.PaymentProcess, error) {
	payload, err := models.NewJSONB(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode process payload: %w", err)
	}

	process := models.PaymentProcess{
		ID:      token,
		UserID:  key.UserID,
		OrderID: key.OrderID,
		Data:    payload,
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The vendor token is the primary key, so a superseding attempt
		// replaces the old row rather than updating it in place
		query := tx.Where("user_id = ?", key.UserID)
		if key.OrderID != nil {
			query = query.Where("order_id = ?", *key.OrderID)
		} else {
			query = query.Where("order_id IS NULL")
		}
		if err := query.Delete(&models.PaymentProcess{}).Error; err != nil {
			return err
		}
		return tx.Create(&process).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record payment process: %w", err)
	}

	return &process, nil
}

func (r *paymentRepository) FindProcessByToken(ctx context.Context, token string) (*models.PaymentProcess, error) {
	var process models.PaymentProcess
	err := r.db.WithContext(ctx).
		Preload("Order.Transaction").
		Where("id = ?", token).
		First(&process).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("payment process %s: %w", token, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load payment process %s: %w", token, err)
	}
	return &process, nil
}

func (r *paymentRepository) DeleteProcess(ctx context.Context, token string) error {
	if err := r.db.WithContext(ctx).
		Where("id = ?", token).
		Delete(&models.PaymentProcess{}).Error; err != nil {
		return fmt.Errorf("failed to delete payment process %s: %w", token, err)
	}
	return nil
}

func (r *paymentRepository) GetOrder(ctx context.Context, orderID uint64) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Transaction").
		First(&order, orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load order %d: %w", orderID, err)
	}
	return &order, nil
}

func (r *paymentRepository) UpdateOrderTotal(ctx context.Context, orderID uint64, total float64) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("total_price", total).Error; err != nil {
		return fmt.Errorf("failed to update total of order %d: %w", orderID, err)
	}
	return nil
}

func (r *paymentRepository) UpdateTransactionStatus(ctx context.Context, transactionID uint64, token string, status models.TransactionStatus) error {
	updates := map[string]interface{}{
		"payment_trx_id": token,
		"status":         status,
	}
	if status == models.TransactionStatusPaid {
		updates["perform_time"] = time.Now()
	}

	if err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", transactionID).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update transaction %d: %w", transactionID, err)
	}
	return nil
}

func (r *paymentRepository) GetTransaction(ctx context.Context, transactionID uint64) (*models.Transaction, error) {
	var transaction models.Transaction
	err := r.db.WithContext(ctx).First(&transaction, transactionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("transaction %d: %w", transactionID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load transaction %d: %w", transactionID, err)
	}
	return &transaction, nil
}

func (r *paymentRepository) CreateTransaction(ctx context.Context, transaction *models.Transaction) error {
	if err := r.db.WithContext(ctx).Create(transaction).Error; err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *paymentRepository) CreditWallet(ctx context.Context, userID uint64, amount float64, transaction *models.Transaction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var wallet models.Wallet
		if err := tx.Where("user_id = ?", userID).First(&wallet).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("wallet of user %d: %w", userID, ErrNotFound)
			}
			return fmt.Errorf("failed to load wallet of user %d: %w", userID, err)
		}

		if err := tx.Model(&models.Wallet{}).
			Where("id = ?", wallet.ID).
			Update("price", gorm.Expr("price + ?", amount)).Error; err != nil {
			return fmt.Errorf("failed to credit wallet %d: %w", wallet.ID, err)
		}

		history := models.WalletHistory{
			UUID:          uuid.NewString(),
			WalletID:      wallet.ID,
			TransactionID: transaction.ID,
			Type:          "topup",
			Price:         transaction.Price,
			Note:          fmt.Sprintf("Payment #%d via Wallet", wallet.ID),
			Status:        models.TransactionStatusPaid,
			CreatedBy:     transaction.UserID,
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to append wallet history: %w", err)
		}
		return nil
	})
}

func (r *paymentRepository) GetWallet(ctx context.Context, userID uint64) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("wallet of user %d: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load wallet of user %d: %w", userID, err)
	}
	return &wallet, nil
}

func (r *paymentRepository) ListWalletHistory(ctx context.Context, walletID uint64, limit, offset int) ([]models.WalletHistory, error) {
	var histories []models.WalletHistory
	err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&histories).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list history of wallet %d: %w", walletID, err)
	}
	return histories, nil
}

func (r *paymentRepository) PurgeStaleProcesses(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.PaymentProcess{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge stale payment processes: %w", result.Error)
	}
	return result.RowsAffected, nil
}
