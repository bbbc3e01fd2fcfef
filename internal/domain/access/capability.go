// Package access implements the two-factor access-control decision: app
// capability AND user consent, combined per (module, verb, consent type).
package access

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/synheart-ai/synheart-core/internal/domain/model"
)

// CapabilityToken is the parsed, verified app authorization. Immutable
// once parsed; a refresh replaces it wholesale.
type CapabilityToken struct {
	TenantID  string
	AppID     string
	Tier      model.Tier
	Grants    map[string][]model.Verb // module -> permitted verbs
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// capabilityClaims is the JWT claim shape for capability tokens.
type capabilityClaims struct {
	Tenant string              `json:"tenant"`
	Tier   string              `json:"tier"`
	Grants map[string][]string `json:"grants"`
	jwt.RegisteredClaims
}

// ParseCapabilityToken verifies the HS256 signature and expiry of a raw
// token blob and returns the immutable parsed form. Anything that fails
// verification is rejected outright.
func ParseCapabilityToken(blob string, secret []byte, now time.Time) (*CapabilityToken, error) {
	claims := &capabilityClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	tok, err := parser.ParseWithClaims(blob, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if !tok.Valid {
		return nil, ErrTokenInvalid
	}

	tier := model.Tier(claims.Tier)
	if !tier.Valid() {
		return nil, fmt.Errorf("%w: unknown tier %q", ErrTokenInvalid, claims.Tier)
	}
	if claims.Tenant == "" || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing tenant or app id", ErrTokenInvalid)
	}

	grants := make(map[string][]model.Verb, len(claims.Grants))
	for module, verbs := range claims.Grants {
		vs := make([]model.Verb, 0, len(verbs))
		for _, v := range verbs {
			vs = append(vs, model.Verb(v))
		}
		grants[module] = vs
	}

	ct := &CapabilityToken{
		TenantID: claims.Tenant,
		AppID:    claims.Subject,
		Tier:     tier,
		Grants:   grants,
	}
	if claims.IssuedAt != nil {
		ct.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		ct.ExpiresAt = claims.ExpiresAt.Time
	}
	return ct, nil
}

// SignCapabilityToken mints a capability token blob. Used by tests and the
// loopback tooling; issuance proper lives outside the core.
func SignCapabilityToken(tok CapabilityToken, secret []byte) (string, error) {
	grants := make(map[string][]string, len(tok.Grants))
	for module, verbs := range tok.Grants {
		vs := make([]string, 0, len(verbs))
		for _, v := range verbs {
			vs = append(vs, string(v))
		}
		grants[module] = vs
	}
	claims := &capabilityClaims{
		Tenant: tok.TenantID,
		Tier:   string(tok.Tier),
		Grants: grants,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   tok.AppID,
			IssuedAt:  jwt.NewNumericDate(tok.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(tok.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign capability token: %w", err)
	}
	return signed, nil
}

// Expired reports whether the token is past its expiry at the given time.
func (t *CapabilityToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// Permits reports whether the token grants verb on module.
func (t *CapabilityToken) Permits(module string, verb model.Verb) bool {
	for _, v := range t.Grants[module] {
		if v == verb {
			return true
		}
	}
	return false
}
