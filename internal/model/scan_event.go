package model

import "time"

// ScanEvent is one journaled scan attempt, successful or not.
type ScanEvent struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Kind       string    `gorm:"size:16" json:"kind"`
	Identifier string    `gorm:"size:128;index" json:"identifier"`
	DriverID   string    `gorm:"size:64;index" json:"driver_id,omitempty"`
	DriverName string    `gorm:"size:256" json:"driver_name,omitempty"`
	Action     string    `gorm:"size:16" json:"action,omitempty"`
	Result     string    `gorm:"size:16;not null" json:"result"`
	Message    string    `gorm:"type:text" json:"message"`
	ScannedAt  time.Time `gorm:"not null;index" json:"scanned_at"`
}
