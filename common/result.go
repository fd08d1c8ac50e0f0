package common

import "fmt"

// OperationResult represents the outcome of an operation on one image
type OperationResult struct {
	Applied bool
	Message string
	Value   uint64 // Counter value observed or written
}

// NewSkipped creates a result for operations that changed nothing
func NewSkipped(reason string) *OperationResult {
	return &OperationResult{
		Applied: false,
		Message: reason,
	}
}

// NewApplied creates a result for operations that rewrote the image
func NewApplied(message string, value uint64) *OperationResult {
	return &OperationResult{
		Applied: true,
		Message: message,
		Value:   value,
	}
}

// NewReport creates a result for read-only operations
func NewReport(message string, value uint64) *OperationResult {
	return &OperationResult{
		Applied: false,
		Message: message,
		Value:   value,
	}
}

// String returns a human-readable representation
func (r *OperationResult) String() string {
	if r.Applied {
		return fmt.Sprintf("APPLIED (%s, counter=%d)", r.Message, r.Value)
	}
	if r.Message == "" {
		return fmt.Sprintf("counter=%d", r.Value)
	}
	return r.Message
}
