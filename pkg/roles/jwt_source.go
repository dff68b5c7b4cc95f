package roles

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AgentClaims extends standard JWT claims with the registry's role claim.
type AgentClaims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
}

// TokenSource resolves roles from signed agent tokens issued by the external
// identity provider. Tokens are registered per agent (the wallet hands them
// over out of band) and validated on every lookup so revocation by expiry
// takes effect without a restart.
type TokenSource struct {
	mu     sync.RWMutex
	pubKey ed25519.PublicKey
	issuer string
	tokens map[string]string // agentID -> compact JWT
}

func NewTokenSource(pubKey ed25519.PublicKey, issuer string) *TokenSource {
	return &TokenSource{
		pubKey: pubKey,
		issuer: issuer,
		tokens: make(map[string]string),
	}
}

// Register stores the agent's current token, replacing any previous one.
func (t *TokenSource) Register(agentID, token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tokens[agentID] = token
}

func (t *TokenSource) GetRoles(_ context.Context, agentID string) ([]Role, error) {
	t.mu.RLock()
	raw, ok := t.tokens[agentID]
	t.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	claims := &AgentClaims{}
	token, err := jwt.ParseWithClaims(raw, claims,
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodEd25519); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", tok.Header["alg"])
			}
			return t.pubKey, nil
		},
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("agent token invalid: %w", err)
	}
	if !token.Valid || claims.Subject != agentID {
		return nil, fmt.Errorf("agent token subject mismatch")
	}

	out := make([]Role, len(claims.Roles))
	for i, r := range claims.Roles {
		out[i] = Role(r)
	}
	return out, nil
}

// IssueToken signs a role-bearing token for an agent. Used by tests and by
// deployments that co-locate the identity provider.
func IssueToken(priv ed25519.PrivateKey, issuer, agentID string, held []Role, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	rs := make([]string, len(held))
	for i, r := range held {
		rs[i] = string(r)
	}
	claims := AgentClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   agentID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Roles: rs,
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(priv)
}
