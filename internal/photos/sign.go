package photos

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/everpage/internal/platform/errors"
)

// DefaultSignedURLTTL is how long a signed photo URL stays valid.
const DefaultSignedURLTTL = time.Hour

// Signer issues and verifies time-limited photo access tokens.
type Signer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewSigner creates a signer with the given HMAC key. A non-positive TTL
// means the default.
func NewSigner(key []byte, ttl time.Duration) (*Signer, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("signing key is required")
	}
	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}
	return &Signer{key: key, ttl: ttl, now: time.Now}, nil
}

// SignedPath returns a relative serving path for a photo reference with an
// embedded expiry token.
func (s *Signer) SignedPath(reference string) (string, error) {
	token, err := s.Sign(reference)
	if err != nil {
		return "", err
	}
	return "/files/" + url.PathEscape(reference) + "?token=" + url.QueryEscape(token), nil
}

// Sign issues a token granting access to one photo reference until expiry.
func (s *Signer) Sign(reference string) (string, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return "", fmt.Errorf("photo reference is required")
	}
	now := s.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   reference,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign photo token: %w", err)
	}
	return signed, nil
}

// Verify checks a token against a photo reference. Expired, forged or
// mismatched tokens all map to the same access error.
func (s *Signer) Verify(tokenString, reference string) error {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.key, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }))
	if err != nil || !token.Valid {
		return apperrors.Wrap(apperrors.CodeSignedURLInvalid, "photo token rejected", err)
	}
	if claims.Subject != reference {
		return apperrors.New(apperrors.CodeSignedURLInvalid, "photo token does not match reference")
	}
	return nil
}
