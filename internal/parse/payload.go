package parse

import (
	"net/url"
	"regexp"
	"strings"
)

// CivilRegistryMarker identifies QR codes printed on national identity cards.
const CivilRegistryMarker = "portal.sidiv.registrocivil.cl"

var (
	runParamRe   = regexp.MustCompile(`RUN=([^&]*)`)
	nationalIDRe = regexp.MustCompile(`^\d{7,8}-[\dkK]$`)
)

// Kind classifies a decoded payload.
type Kind string

const (
	KindURL       Kind = "url"
	KindBareID    Kind = "bare_id"
	KindNameQuery Kind = "name_query"
)

// Extraction is the identifier pulled out of a decoded payload.
type Extraction struct {
	Kind  Kind
	Value string
}

// IsNationalID reports whether the extraction carries a national ID rather than a name.
func (e Extraction) IsNationalID() bool {
	return e.Kind == KindURL || e.Kind == KindBareID
}

// Extract classifies a decoded QR payload and returns the normalized identifier.
// It returns false when no identifier can be pulled out: a blank payload, or a
// Civil Registry URL without a RUN parameter.
func Extract(payload string) (Extraction, bool) {
	if strings.Contains(payload, CivilRegistryMarker) {
		m := runParamRe.FindStringSubmatch(payload)
		if m == nil {
			return Extraction{}, false
		}
		raw := m[1]
		if decoded, err := url.QueryUnescape(raw); err == nil {
			raw = decoded
		}
		value := strings.TrimSpace(raw)
		if value == "" {
			return Extraction{}, false
		}
		return Extraction{Kind: KindURL, Value: value}, true
	}

	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return Extraction{}, false
	}
	if nationalIDRe.MatchString(trimmed) {
		return Extraction{Kind: KindBareID, Value: trimmed}, true
	}
	return Extraction{Kind: KindNameQuery, Value: strings.ToLower(trimmed)}, true
}

// NormalizeNationalID upper-cases the trailing check character so that "12345678-k"
// and "12345678-K" compare equal. Digits are left untouched.
func NormalizeNationalID(id string) string {
	id = strings.TrimSpace(id)
	i := strings.LastIndex(id, "-")
	if i < 0 || i == len(id)-1 {
		return id
	}
	return id[:i+1] + strings.ToUpper(id[i+1:])
}
