package session

// Session defines a public type used by goPasskey APIs.
//
// ID is the storage identifier, the hash of the bearer token. The factor
// flags are set once at issuance; escalation replaces the whole session
// rather than mutating these in place.
type Session struct {
	ID     string
	UserID string

	TwoFactorVerified bool
	PasskeyVerified   bool

	CreatedAt int64
	ExpiresAt int64
}
