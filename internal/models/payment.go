package models

import (
	"time"

	"gorm.io/gorm"
)

// TransactionStatus is the canonical three-value payment status every gateway
// vocabulary maps onto
type TransactionStatus string

const (
	TransactionStatusProgress TransactionStatus = "progress"
	TransactionStatusPaid     TransactionStatus = "paid"
	TransactionStatusCanceled TransactionStatus = "canceled"
)

// IsTerminal reports whether the status ends the payment lifecycle
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusPaid || s == TransactionStatusCanceled
}

// UserRole values gate dashboard access
const (
	RoleAdmin       = "admin"
	RoleSeller      = "seller"
	RoleDeliveryman = "deliveryman"
	RoleUser        = "user"
)

// User is a platform account
type User struct {
	ID           uint64         `json:"id" gorm:"primaryKey;autoIncrement"`
	UUID         string         `json:"uuid" gorm:"type:uuid;uniqueIndex;not null"`
	Email        string         `json:"email" gorm:"uniqueIndex;not null"`
	Firstname    string         `json:"firstname"`
	Lastname     string         `json:"lastname"`
	Phone        string         `json:"phone"`
	PasswordHash string         `json:"-" gorm:"not null"`
	Role         string         `json:"role" gorm:"type:varchar(20);default:'user';index"`
	Active       bool           `json:"active" gorm:"default:true"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`

	Wallet *Wallet `json:"wallet,omitempty" gorm:"foreignKey:UserID"`
}

// Order is a purchase awaiting or holding payment
type Order struct {
	ID         uint64         `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID     uint64         `json:"user_id" gorm:"index;not null"`
	ShopID     uint64         `json:"shop_id" gorm:"index;not null"`
	TotalPrice float64        `json:"total_price" gorm:"not null"`
	Rate       float64        `json:"rate" gorm:"default:1"`
	Currency   string         `json:"currency" gorm:"type:varchar(10);default:'USD'"`
	Status     string         `json:"status" gorm:"type:varchar(20);default:'new';index"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`

	User        *User        `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Transaction *Transaction `json:"transaction,omitempty" gorm:"polymorphic:Payable;polymorphicValue:order"`
}

// RateTotalPrice returns the order total converted at the order's rate
func (o *Order) RateTotalPrice() float64 {
	return o.TotalPrice * o.Rate
}

// Transaction is the durable payment record; its Status is the union target
// of all gateway webhook mappings
type Transaction struct {
	ID                uint64            `json:"id" gorm:"primaryKey;autoIncrement"`
	PayableID         uint64            `json:"payable_id" gorm:"index:idx_transactions_payable;not null"`
	PayableType       string            `json:"payable_type" gorm:"index:idx_transactions_payable;not null"`
	UserID            uint64            `json:"user_id" gorm:"index;not null"`
	Price             float64           `json:"price" gorm:"not null"`
	PaymentTrxID      *string           `json:"payment_trx_id" gorm:"index"`
	Status            TransactionStatus `json:"status" gorm:"type:varchar(20);default:'progress';index"`
	StatusDescription string            `json:"status_description"`
	Note              string            `json:"note"`
	PerformTime       *time.Time        `json:"perform_time"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// PaymentProcess is the ephemeral record bridging a checkout attempt to its
// vendor transaction token. The vendor token is the primary key; each new
// attempt for the same (user, order) supersedes the previous row.
type PaymentProcess struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(255)"`
	UserID    uint64    `json:"user_id" gorm:"uniqueIndex:idx_payment_processes_attempt,priority:1;not null"`
	OrderID   *uint64   `json:"order_id" gorm:"uniqueIndex:idx_payment_processes_attempt,priority:2"`
	Data      JSONB     `json:"data" gorm:"type:jsonb;default:'{}'"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Order *Order `json:"order,omitempty" gorm:"foreignKey:OrderID"`
}

// PaymentProcessData is the JSONB payload of a PaymentProcess
type PaymentProcessData struct {
	URL     string  `json:"url,omitempty"`
	Price   float64 `json:"price,omitempty"`
	OrderID uint64  `json:"order_id,omitempty"`
	Type    string  `json:"type,omitempty"` // "wallet" marks an internal top-up
	TrxID   uint64  `json:"trx_id,omitempty"`
	UserID  uint64  `json:"user_id,omitempty"`
}

// Wallet holds a user's internal balance
type Wallet struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	UUID      string    `json:"uuid" gorm:"type:uuid;uniqueIndex;not null"`
	UserID    uint64    `json:"user_id" gorm:"uniqueIndex;not null"`
	Price     float64   `json:"price" gorm:"default:0"`
	Currency  string    `json:"currency" gorm:"type:varchar(10);default:'USD'"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Histories []WalletHistory `json:"histories,omitempty" gorm:"foreignKey:WalletID"`
}

// WalletHistory is an append-only ledger entry for wallet movements
type WalletHistory struct {
	ID            uint64            `json:"id" gorm:"primaryKey;autoIncrement"`
	UUID          string            `json:"uuid" gorm:"type:uuid;uniqueIndex;not null"`
	WalletID      uint64            `json:"wallet_id" gorm:"index;not null"`
	TransactionID uint64            `json:"transaction_id" gorm:"index"`
	Type          string            `json:"type" gorm:"type:varchar(20);not null"` // topup, withdraw
	Price         float64           `json:"price" gorm:"not null"`
	Note          string            `json:"note"`
	Status        TransactionStatus `json:"status" gorm:"type:varchar(20);default:'progress'"`
	CreatedBy     uint64            `json:"created_by"`
	CreatedAt     time.Time         `json:"created_at"`
}
