package common

import (
	"github.com/google/uuid"
)

// NewItemID generates a unique news item ID with the "item_" prefix
// Format: item_<uuid>
func NewItemID() string {
	return "item_" + uuid.New().String()
}

// NewAlertID generates a unique alert ID with the "alert_" prefix
func NewAlertID() string {
	return "alert_" + uuid.New().String()
}

// NewCycleID generates a unique pipeline cycle ID with the "cycle_" prefix
func NewCycleID() string {
	return "cycle_" + uuid.New().String()
}
