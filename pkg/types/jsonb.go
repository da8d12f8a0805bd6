package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// ShippingAddress is the address snapshot stored on an order at creation.
type ShippingAddress struct {
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
}

// Value serializes the snapshot to JSON.
func (a ShippingAddress) Value() (driver.Value, error) {
	if strings.TrimSpace(a.Line1) == "" {
		return nil, fmt.Errorf("shipping address: missing line1")
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan decodes JSONB into the snapshot.
func (a *ShippingAddress) Scan(value interface{}) error {
	if value == nil {
		*a = ShippingAddress{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, a)
}

// DisplayPayload is what the buyer needs to complete a gateway payment.
type DisplayPayload struct {
	Kind        string `json:"kind"`
	RedirectURL string `json:"redirect_url,omitempty"`
	QRContent   string `json:"qr_content,omitempty"`
}

// IsZero reports whether nothing has been recorded yet.
func (d DisplayPayload) IsZero() bool {
	return d.Kind == "" && d.RedirectURL == "" && d.QRContent == ""
}

// Value serializes the payload to JSON; an empty payload is stored as NULL.
func (d DisplayPayload) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan decodes JSONB into the payload.
func (d *DisplayPayload) Scan(value interface{}) error {
	if value == nil {
		*d = DisplayPayload{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, d)
}

func asJSON(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported scan type %T", value)
	}
}
