package roster

import (
	"errors"
	"strings"

	"fleet-checkpoint/internal/model"
	"fleet-checkpoint/internal/parse"
)

var (
	ErrNotFound          = errors.New("driver not found")
	ErrAmbiguous         = errors.New("more than one driver matches")
	ErrNameMatchDisabled = errors.New("name matching is disabled")
)

// ResolveOptions tunes the resolver.
type ResolveOptions struct {
	// AllowNameMatch enables the full-name fallback channel. Name matches must be
	// unique; duplicates resolve to ErrAmbiguous.
	AllowNameMatch bool
}

// Resolve maps an extracted identifier to a roster entry.
//
// National IDs compare digits exactly and the check character case-insensitively.
// Name queries compare against "first last", trimmed and lower-cased.
func Resolve(ex parse.Extraction, drivers []model.Driver, opts ResolveOptions) (model.Driver, error) {
	if ex.IsNationalID() {
		want := parse.NormalizeNationalID(ex.Value)
		for _, d := range drivers {
			if parse.NormalizeNationalID(d.NationalID) == want {
				return d, nil
			}
		}
		return model.Driver{}, ErrNotFound
	}

	if !opts.AllowNameMatch {
		return model.Driver{}, ErrNameMatchDisabled
	}

	var (
		match model.Driver
		found int
	)
	for _, d := range drivers {
		if strings.ToLower(d.FullName()) == ex.Value {
			match = d
			found++
		}
	}
	switch found {
	case 0:
		return model.Driver{}, ErrNotFound
	case 1:
		return match, nil
	}
	return model.Driver{}, ErrAmbiguous
}
