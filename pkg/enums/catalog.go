package enums

import "fmt"

// ModerationStatus is the catalog review state of an item.
type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
)

var validModerationStatuses = []ModerationStatus{
	ModerationPending,
	ModerationApproved,
	ModerationRejected,
}

// IsValid reports whether the value is a known ModerationStatus.
func (m ModerationStatus) IsValid() bool {
	for _, candidate := range validModerationStatuses {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseModerationStatus converts raw input into a ModerationStatus.
func ParseModerationStatus(value string) (ModerationStatus, error) {
	for _, candidate := range validModerationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid moderation status %q", value)
}

// StockStatus is the availability label derived from stock and the alert threshold.
type StockStatus string

const (
	StockInStock    StockStatus = "in_stock"
	StockLowStock   StockStatus = "low_stock"
	StockOutOfStock StockStatus = "out_of_stock"
)

func (s StockStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StockStatus.
func (s StockStatus) IsValid() bool {
	switch s {
	case StockInStock, StockLowStock, StockOutOfStock:
		return true
	}
	return false
}
