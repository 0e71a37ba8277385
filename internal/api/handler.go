package api

import (
	"context"

	"github.com/SherClockHolmes/webpush-go"

	"fleet-checkpoint/internal/model"
	"fleet-checkpoint/internal/scan"
	"fleet-checkpoint/internal/store"
)

// Scanner is the live scan controller. Manual toggles go through it so they share
// the scanner lock with camera scans.
type Scanner interface {
	Session() scan.Session
	Subscribe() (<-chan scan.Session, func())
	Submit(payload string) error
	Manual(ctx context.Context, d model.Driver) (scan.Result, error)
}

// RosterReader exposes the current roster.
type RosterReader interface {
	Snapshot() []model.Driver
	Loaded() bool
	Get(id string) (model.Driver, bool)
}

// Pinger checks that a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	webpush  *webpush.Options
	scanner  Scanner
	roster   RosterReader
	upstream Pinger
}

// Deps lists the collaborators of the API. Any of them may be nil in tests; the
// matching endpoints then answer 503.
type Deps struct {
	Store    store.Store
	Webpush  *webpush.Options
	Scanner  Scanner
	Roster   RosterReader
	Upstream Pinger
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		store:    d.Store,
		webpush:  d.Webpush,
		scanner:  d.Scanner,
		roster:   d.Roster,
		upstream: d.Upstream,
	}
}
