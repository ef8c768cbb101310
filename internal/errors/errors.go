// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrRateLimited      = errors.New("rate limited")
	ErrConnectionFailed = errors.New("connection failed")
	ErrTimeout          = errors.New("operation timed out")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrDatabaseError    = errors.New("database error")
	ErrSymbolNotFound   = errors.New("symbol not found")
	ErrTradeNotFound    = errors.New("trade not found")
	ErrTradeClosed      = errors.New("trade already closed")
	ErrDuplicateTrade   = errors.New("duplicate trade id")
	ErrInvalidMode      = errors.New("invalid mode")
	ErrBrokerNotFound   = errors.New("broker not found")
	ErrModelNotFound    = errors.New("model not found")
	ErrNoPrice          = errors.New("no price available")
	ErrInsufficientData = errors.New("insufficient data")
)

// BrokerError represents an error from a broker API.
type BrokerError struct {
	Broker      string
	Code        string
	Message     string
	RateLimited bool
	Retryable   bool
	Err         error
}

func (e *BrokerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("broker error [%s/%s]: %s: %v", e.Broker, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("broker error [%s/%s]: %s", e.Broker, e.Code, e.Message)
}

func (e *BrokerError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrRateLimited) match rate-limited broker errors.
func (e *BrokerError) Is(target error) bool {
	return target == ErrRateLimited && e.RateLimited
}

// NewBrokerError creates a new BrokerError.
func NewBrokerError(broker, code, message string, err error) *BrokerError {
	return &BrokerError{
		Broker:  broker,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewRateLimitError creates a BrokerError flagged as rate limited.
func NewRateLimitError(broker, code, message string) *BrokerError {
	return &BrokerError{
		Broker:      broker,
		Code:        code,
		Message:     message,
		RateLimited: true,
		Retryable:   true,
	}
}

// IsRateLimited reports whether err was caused by a rate-limit response.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsRetryable reports whether a broker call that failed with err may be retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrConnectionFailed) || errors.Is(err, ErrTimeout) {
		return true
	}
	var be *BrokerError
	if errors.As(err, &be) {
		return be.Retryable
	}
	return false
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// DataError represents a data-related error.
type DataError struct {
	DataType string
	Symbol   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, symbol, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Symbol:   symbol,
		Message:  message,
		Err:      err,
	}
}

// RiskError represents a risk rule that rejected a trade.
type RiskError struct {
	Rule    string
	Symbol  string
	Message string
}

func (e *RiskError) Error() string {
	return fmt.Sprintf("risk check %s failed for %s: %s", e.Rule, e.Symbol, e.Message)
}

// NewRiskError creates a new RiskError.
func NewRiskError(rule, symbol, message string) *RiskError {
	return &RiskError{
		Rule:    rule,
		Symbol:  symbol,
		Message: message,
	}
}

// TradeError represents a failure while operating on a single trade.
type TradeError struct {
	TradeID string
	Symbol  string
	Action  string
	Err     error
}

func (e *TradeError) Error() string {
	return fmt.Sprintf("trade error [%s] %s %s: %v", e.TradeID, e.Action, e.Symbol, e.Err)
}

func (e *TradeError) Unwrap() error {
	return e.Err
}

// NewTradeError creates a new TradeError.
func NewTradeError(tradeID, symbol, action string, err error) *TradeError {
	return &TradeError{
		TradeID: tradeID,
		Symbol:  symbol,
		Action:  action,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}
