package webauthn

import (
	"crypto/subtle"
	"encoding/json"
)

// CeremonyType distinguishes registration from authentication in the client
// data `type` field.
type CeremonyType string

const (
	// CeremonyCreate is the registration ceremony type.
	CeremonyCreate CeremonyType = "webauthn.create"
	// CeremonyGet is the authentication ceremony type.
	CeremonyGet CeremonyType = "webauthn.get"
)

// ClientData is the browser-produced collectedClientData JSON. Unknown
// fields are ignored; browsers are allowed to add them.
type ClientData struct {
	Type        string `json:"type"`
	Challenge   string `json:"challenge"`
	Origin      string `json:"origin"`
	CrossOrigin bool   `json:"crossOrigin"`
}

// ParseClientData decodes collectedClientData JSON.
func ParseClientData(raw []byte) (*ClientData, error) {
	var cd ClientData
	if err := json.Unmarshal(raw, &cd); err != nil {
		return nil, ErrInvalidInput
	}
	if cd.Type == "" || cd.Challenge == "" || cd.Origin == "" {
		return nil, ErrInvalidInput
	}
	return &cd, nil
}

// Verify checks the ceremony type, the expected origin, and that the
// request was not cross-origin. The embedded challenge is checked
// separately against the single-use server record by the caller.
func (c *ClientData) Verify(ceremony CeremonyType, origin string) error {
	if c.Type != string(ceremony) {
		return ErrClientDataMismatch
	}
	if subtle.ConstantTimeCompare([]byte(c.Origin), []byte(origin)) != 1 {
		return ErrClientDataMismatch
	}
	if c.CrossOrigin {
		return ErrClientDataMismatch
	}
	return nil
}
