package fleetapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"fleet-checkpoint/internal/model"
)

// Wire values of estado_disponibilidad.
const (
	wireAvailable   = "disponible"
	wireOnRoute     = "en_ruta"
	wireDayOff      = "dia_libre"
	wireUnavailable = "no_disponible"
)

// rosterPage models the paginated variant of GET /conductores/.
type rosterPage struct {
	Count   int         `json:"count"`
	Next    *string     `json:"next"`
	Results []driverDTO `json:"results"`
}

// driverDTO is a single driver as returned by the API. Fields the scanner does not
// use (license, phone, photo, ...) are ignored.
type driverDTO struct {
	ID       flexibleID `json:"id"`
	Run      string     `json:"run"`
	Nombre   string     `json:"nombre"`
	Apellido string     `json:"apellido"`
	Estado   string     `json:"estado_disponibilidad"`
}

func (d driverDTO) toModel() model.Driver {
	return model.Driver{
		ID:         string(d.ID),
		NationalID: strings.TrimSpace(d.Run),
		FirstName:  d.Nombre,
		LastName:   d.Apellido,
		State:      StateFromWire(d.Estado),
	}
}

// StateFromWire maps the API's availability value to the model state. Unknown values
// are passed through unchanged so that callers can reject them explicitly.
func StateFromWire(v string) model.AvailabilityState {
	switch v {
	case wireAvailable:
		return model.StateAvailable
	case wireOnRoute:
		return model.StateOnRoute
	case wireDayOff:
		return model.StateDayOff
	case wireUnavailable:
		return model.StateUnavailable
	}
	return model.AvailabilityState(v)
}

// flexibleID accepts both numeric and string identifiers.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("driver id: %w", err)
	}
	*f = flexibleID(n.String())
	return nil
}
