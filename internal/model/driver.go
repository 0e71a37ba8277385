package model

import "strings"

// AvailabilityState is a driver's availability as owned by the fleet API.
type AvailabilityState string

const (
	StateAvailable   AvailabilityState = "available"
	StateOnRoute     AvailabilityState = "on_route"
	StateDayOff      AvailabilityState = "day_off"
	StateUnavailable AvailabilityState = "unavailable"
)

// Driver is a roster entry. ID is opaque and assigned by the fleet API.
type Driver struct {
	ID         string            `json:"id"`
	NationalID string            `json:"national_id"`
	FirstName  string            `json:"first_name"`
	LastName   string            `json:"last_name"`
	State      AvailabilityState `json:"availability_state"`
}

// FullName joins first and last name the way identity cards print them.
func (d Driver) FullName() string {
	return strings.TrimSpace(d.FirstName + " " + d.LastName)
}
