package services

import "fmt"

// StoreError is the typed error returned by the order service. Two
// StoreErrors match under errors.Is when their codes match, so callers
// compare against the sentinels below.
type StoreError struct {
	Code    string
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is matches any StoreError carrying the same code
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	return ok && t.Code == e.Code
}

var (
	ErrOrderNotFound     = &StoreError{Code: "ORDER_NOT_FOUND", Message: "Order not found"}
	ErrItemNotFound      = &StoreError{Code: "ITEM_NOT_FOUND", Message: "Order item not found"}
	ErrParentNotFound    = &StoreError{Code: "PARENT_NOT_FOUND", Message: "Order for item not found"}
	ErrInvalidData       = &StoreError{Code: "INVALID_DATA", Message: "Invalid item data"}
	ErrTransactionFailed = &StoreError{Code: "TRANSACTION_FAILED", Message: "Transaction could not be completed"}
)

func invalidData(format string, args ...interface{}) error {
	return &StoreError{Code: ErrInvalidData.Code, Message: fmt.Sprintf(format, args...)}
}

func transactionFailed(err error) error {
	return &StoreError{Code: ErrTransactionFailed.Code, Message: ErrTransactionFailed.Message, Err: err}
}
