package services

import (
	"errors"
	"fmt"
)

// ValidationError represents a validation failure with suggestions
type ValidationError struct {
	Field       string   `json:"field"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func (e *ValidationError) Error() string {
	if len(e.Suggestions) > 0 {
		return fmt.Sprintf("%s: %s. Suggestions: %v", e.Field, e.Message, e.Suggestions)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string, suggestions []string) *ValidationError {
	return &ValidationError{
		Field:       field,
		Message:     message,
		Suggestions: suggestions,
	}
}

// IsValidationError checks if an error is a ValidationError
func IsValidationError(err error) (*ValidationError, bool) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr, true
	}
	return nil, false
}

// NotFoundError represents a missing resource
type NotFoundError struct {
	Resource string `json:"resource"`
	Message  string `json:"message"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Message)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// IsNotFoundError checks if an error is a NotFoundError
func IsNotFoundError(err error) (*NotFoundError, bool) {
	var notFoundErr *NotFoundError
	if errors.As(err, &notFoundErr) {
		return notFoundErr, true
	}
	return nil, false
}

// SyncError records why replication of a single product failed. A batch sync
// collects these instead of aborting on the first bad id.
type SyncError struct {
	ProductID uint64 `json:"product_id"`
	Message   string `json:"message"`
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("product %d: %s", e.ProductID, e.Message)
}

// NewSyncError creates a new per-product sync error
func NewSyncError(productID uint64, message string) *SyncError {
	return &SyncError{
		ProductID: productID,
		Message:   message,
	}
}

// GatewayError represents a failure reported by a payment provider
type GatewayError struct {
	Gateway string `json:"gateway"`
	Message string `json:"message"`
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %s", e.Gateway, e.Message)
}

// IsGatewayError checks if an error is a GatewayError
func IsGatewayError(err error) (*GatewayError, bool) {
	var gatewayErr *GatewayError
	if errors.As(err, &gatewayErr) {
		return gatewayErr, true
	}
	return nil, false
}
