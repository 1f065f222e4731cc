package segmentation

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/hemoconecta/donor-portal-api/internal/app/apperr"
	"github.com/hemoconecta/donor-portal-api/internal/domain"
)

// Sentinel criterion values that disable or redirect a filter.
const (
	Any       = "any"
	FirstTime = "first-time"
)

// Criteria is a parsed segmentation query. It is never persisted.
type Criteria struct {
	BloodTypes []domain.BloodType
	Gender     string
	// Cities are case-sensitive substrings matched against the donor address, OR'd.
	Cities         []string
	Interest       string
	Classification string
	MinAge         *int
	MaxAge         *int
	ConsentOnly    bool
}

// Request is the inbound segmentation object. Ages may be JSON numbers or numeric strings.
type Request struct {
	BloodTypes     []string        `json:"bloodTypes"`
	Gender         string          `json:"gender"`
	Cities         []string        `json:"cities"`
	Interest       string          `json:"interest"`
	Classification string          `json:"classification"`
	MinAge         json.RawMessage `json:"minAge"`
	MaxAge         json.RawMessage `json:"maxAge"`
	ConsentOnly    bool            `json:"consentOnly"`
}

// ParseCriteria validates r. Unknown blood types are kept and simply match no donor.
func ParseCriteria(r Request) (Criteria, error) {
	c := Criteria{
		Gender:         strings.TrimSpace(r.Gender),
		Interest:       strings.TrimSpace(r.Interest),
		Classification: strings.TrimSpace(r.Classification),
		ConsentOnly:    r.ConsentOnly,
	}
	for _, raw := range r.BloodTypes {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if bt, ok := domain.ParseBloodType(raw); ok {
			c.BloodTypes = append(c.BloodTypes, bt)
		} else {
			c.BloodTypes = append(c.BloodTypes, domain.BloodType(raw))
		}
	}
	// Cities are matched as literal substrings, surrounding spaces included.
	for _, city := range r.Cities {
		if city != "" {
			c.Cities = append(c.Cities, city)
		}
	}

	details := map[string]any{}
	var err error
	if c.MinAge, err = parseAge(r.MinAge); err != nil {
		details["minAge"] = err.Error()
	}
	if c.MaxAge, err = parseAge(r.MaxAge); err != nil {
		details["maxAge"] = err.Error()
	}
	if len(details) == 0 && c.MinAge != nil && c.MaxAge != nil && *c.MinAge > *c.MaxAge {
		details["minAge"] = "must not exceed maxAge"
	}
	if ve := apperr.Validation(details); ve != nil {
		return Criteria{}, ve
	}
	return c, nil
}

func parseAge(raw json.RawMessage) (*int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, errors.New("must be a whole number")
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, nil
		}
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return nil, errors.New("must be a whole number")
	}
	if n < 0 {
		return nil, errors.New("must not be negative")
	}
	return &n, nil
}

// AgeBounded reports whether either age bound is set.
func (c Criteria) AgeBounded() bool {
	return c.MinAge != nil || c.MaxAge != nil
}
