package model

import "time"

// PushSubscription holds the information for a dispatcher's browser push subscription.
// ClockIn and ClockOut select which turn events the dispatcher is notified about.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey" json:"endpoint"`
	P256DH    string    `gorm:"column:p256dh;not null" json:"p256dh"`
	Auth      string    `gorm:"not null" json:"auth"`
	ClockIn   bool      `gorm:"not null" json:"clock_in"`
	ClockOut  bool      `gorm:"not null" json:"clock_out"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
