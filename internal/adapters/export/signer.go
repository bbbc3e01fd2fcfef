package export

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Signing constants.
const (
	// NonceFreshnessWindow bounds how old a nonce timestamp may be.
	NonceFreshnessWindow = 300 * time.Second

	nonceRandomBytes = 8
)

// Signer produces and verifies HMAC signatures over upload envelopes.
// Signatures are computed over a canonical signing string, never over raw
// serialized bytes, so formatting differences cannot break verification.
type Signer struct {
	secret []byte
}

// NewSigner creates a signer with the given shared secret.
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret}
}

// NewNonce generates a single-use nonce of the form
// {unix_timestamp}_{random_hex}.
func NewNonce(now time.Time) (string, error) {
	buf := make([]byte, nonceRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return strconv.FormatInt(now.Unix(), 10) + "_" + hex.EncodeToString(buf), nil
}

// NonceTimestamp extracts the unix timestamp prefix of a nonce.
func NonceTimestamp(nonce string) (time.Time, error) {
	prefix, _, ok := strings.Cut(nonce, "_")
	if !ok {
		return time.Time{}, fmt.Errorf("%w: missing separator", ErrInvalidNonce)
	}
	ts, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp prefix", ErrInvalidNonce)
	}
	return time.Unix(ts, 0), nil
}

// CanonicalString builds the signing input from the request components
// and the SHA-256 of the body.
func CanonicalString(method, path, tenant, timestamp, nonce string, body []byte) string {
	bodyHash := sha256.Sum256(body)
	return strings.Join([]string{
		method,
		path,
		tenant,
		timestamp,
		nonce,
		hex.EncodeToString(bodyHash[:]),
	}, "\n")
}

// Sign computes the hex HMAC-SHA256 signature for the request components.
func (s *Signer) Sign(method, path, tenant, timestamp, nonce string, body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(CanonicalString(method, path, tenant, timestamp, nonce, body)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the signature and nonce freshness of an inbound envelope.
// Used by the loopback ingest endpoint, mirroring the server-side checks.
// Replay rejection is the caller's concern (see ReplayGuard).
func (s *Signer) Verify(method, path, tenant, timestamp, nonce, signature string, body []byte, now time.Time) error {
	nts, err := NonceTimestamp(nonce)
	if err != nil {
		return err
	}
	age := now.Sub(nts)
	if age < -NonceFreshnessWindow || age > NonceFreshnessWindow {
		return fmt.Errorf("%w: nonce outside freshness window", ErrInvalidNonce)
	}

	want := s.Sign(method, path, tenant, timestamp, nonce, body)
	if subtle.ConstantTimeCompare([]byte(want), []byte(signature)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}
