// Package vault implements CredentialVault: decrypted access to per-user,
// per-venue trading credentials, gated by a failure-cooldown policy so a
// venue returning repeated auth errors doesn't get hammered with retries.
package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/agenthub/venuecore/internal/crypto"
	"github.com/agenthub/venuecore/internal/domain"
)

// ErrCooldown is returned by Get when a credential is in cooldown.
var ErrCooldown = errors.New("vault: credential in cooldown")

const (
	// failureThreshold is the number of consecutive failures tolerated
	// before a credential enters cooldown.
	failureThreshold = 3
	// baseBackoff is the exponential backoff base; the Nth cooldown after
	// the threshold lasts baseBackoff * 2^(N-1), capped at maxBackoff.
	baseBackoff = 30 * time.Second
	maxBackoff  = 30 * time.Minute
)

// Blob is the plaintext structure encrypted into
// TradingCredential.EncryptedBlob. Fields are venue-specific; adapters read
// only the ones their auth scheme needs.
type Blob struct {
	APIKey        string            `json:"apiKey,omitempty"`
	APISecret     string            `json:"apiSecret,omitempty"`
	Passphrase    string            `json:"passphrase,omitempty"`
	WalletAddress string            `json:"walletAddress,omitempty"`
	PrivateKeyHex string            `json:"privateKeyHex,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// Vault decrypts and refreshes TradingCredential rows. The decryption
// passphrase is process-scoped and never persisted alongside the
// credentials it unlocks.
type Vault struct {
	store      domain.CredentialStore
	passphrase string
}

// New creates a Vault over store, unlocked with passphrase (normally read
// once at startup from VENUECORE_VAULT_PASSPHRASE).
func New(store domain.CredentialStore, passphrase string) *Vault {
	return &Vault{store: store, passphrase: passphrase}
}

// Put encrypts blob and upserts it as the credential for (userID, venue).
func (v *Vault) Put(ctx context.Context, userID, venue string, mode domain.CredentialMode, blob Blob) error {
	plaintext, err := json.Marshal(blob)
	if err != nil {
		return fmt.Errorf("vault: marshal credential blob: %w", err)
	}
	encrypted, err := crypto.EncryptBlob(plaintext, v.passphrase)
	if err != nil {
		return fmt.Errorf("vault: encrypt credential: %w", err)
	}

	now := time.Now().UTC()
	return v.store.Upsert(ctx, domain.TradingCredential{
		UserID:        userID,
		Venue:         venue,
		Mode:          mode,
		EncryptedBlob: encrypted,
		Enabled:       true,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

// Get decrypts and returns the credential blob for (userID, venue). It
// refuses to return a credential currently in cooldown.
func (v *Vault) Get(ctx context.Context, userID, venue string) (Blob, error) {
	cred, err := v.store.Get(ctx, userID, venue)
	if err != nil {
		return Blob{}, fmt.Errorf("vault: get credential %s/%s: %w", userID, venue, err)
	}
	if !cred.Enabled {
		return Blob{}, fmt.Errorf("vault: credential %s/%s disabled", userID, venue)
	}
	if cred.InCooldown(time.Now()) {
		return Blob{}, ErrCooldown
	}

	plaintext, err := crypto.DecryptBlob(cred.EncryptedBlob, v.passphrase)
	if err != nil {
		return Blob{}, fmt.Errorf("vault: decrypt credential %s/%s: %w", userID, venue, err)
	}

	var blob Blob
	if err := json.Unmarshal(plaintext, &blob); err != nil {
		return Blob{}, fmt.Errorf("vault: unmarshal credential blob %s/%s: %w", userID, venue, err)
	}
	return blob, nil
}

// RecordFailure increments the credential's failure counter and, once it
// reaches failureThreshold, sets an exponentially growing cooldown window.
func (v *Vault) RecordFailure(ctx context.Context, userID, venue string) error {
	cred, err := v.store.Get(ctx, userID, venue)
	if err != nil {
		return fmt.Errorf("vault: record failure %s/%s: %w", userID, venue, err)
	}

	var cooldownUntil *time.Time
	nextFailures := cred.FailedAttempts + 1
	if nextFailures >= failureThreshold {
		backoff := backoffFor(nextFailures - failureThreshold + 1)
		until := time.Now().Add(backoff).UTC()
		cooldownUntil = &until
	}

	if err := v.store.RecordFailure(ctx, userID, venue, cooldownUntil); err != nil {
		return fmt.Errorf("vault: record failure %s/%s: %w", userID, venue, err)
	}
	return nil
}

// RecordSuccess clears the failure counter and any active cooldown.
func (v *Vault) RecordSuccess(ctx context.Context, userID, venue string) error {
	if err := v.store.RecordSuccess(ctx, userID, venue); err != nil {
		return fmt.Errorf("vault: record success %s/%s: %w", userID, venue, err)
	}
	return nil
}

// backoffFor returns baseBackoff*2^(n-1) capped at maxBackoff, for n >= 1.
func backoffFor(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := time.Duration(float64(baseBackoff) * math.Pow(2, float64(n-1)))
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
