package domain

import "time"

// CredentialMode distinguishes paper/demo trading from live venue access.
type CredentialMode string

const (
	CredentialModeDemo CredentialMode = "demo"
	CredentialModeLive CredentialMode = "live"
)

// TradingCredential holds an encrypted per-user, per-venue credential blob.
// (userId, venue) is unique. Decryption is performed by the CredentialVault
// using a process-scoped key that is never persisted alongside the blob.
type TradingCredential struct {
	UserID         string
	Venue          string
	Mode           CredentialMode
	EncryptedBlob  []byte
	Enabled        bool
	LastUsedAt     *time.Time
	FailedAttempts int
	CooldownUntil  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// InCooldown reports whether the credential is currently cooling down from
// repeated failures, relative to now.
func (c TradingCredential) InCooldown(now time.Time) bool {
	return c.CooldownUntil != nil && c.CooldownUntil.After(now)
}
