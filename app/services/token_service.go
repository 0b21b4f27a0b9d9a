// Package services provides technical concerns shared by handlers, such as bearer token verification
package services

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token service error constants
var (
	ErrTokenExpired   = errors.New("token has expired")
	ErrTokenInvalid   = errors.New("invalid token")
	ErrTokenForbidden = errors.New("token lacks the required role")
)

// Roles carried in the "role" claim
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// TokenService verifies bearer tokens issued by the club's auth service.
// The portal never issues tokens itself.
type TokenService interface {
	ValidateToken(token string) (*TokenClaims, error)
	ValidateAdminToken(token string) (*TokenClaims, error)
}

// TokenClaims represents the claims the portal reads from a verified JWT
type TokenClaims struct {
	Subject   string    `json:"sub"`
	Role      string    `json:"role"`
	TokenID   string    `json:"jti"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenServiceImpl implements TokenService
type TokenServiceImpl struct {
	publicKey  *rsa.PublicKey
	secretKey  []byte
	useRSAKeys bool
	issuer     string
	audience   string
	now        func() time.Time
}

// NewTokenService creates a verifier for HS256 tokens, or RS256 tokens when useRSAKeys is set
func NewTokenService(issuer, audience string, useRSAKeys bool, publicKeyPEM, secretKey string) (TokenService, error) {
	svc := &TokenServiceImpl{
		useRSAKeys: useRSAKeys,
		issuer:     issuer,
		audience:   audience,
		now:        time.Now,
	}

	if useRSAKeys {
		publicKey, err := parseRSAPublicKey(publicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
		}
		svc.publicKey = publicKey
	} else {
		if secretKey == "" {
			return nil, fmt.Errorf("secret key is required when not using RSA keys")
		}
		svc.secretKey = []byte(secretKey)
	}

	return svc, nil
}

func parseRSAPublicKey(publicKeyPEM string) (*rsa.PublicKey, error) {
	if publicKeyPEM == "" {
		return nil, fmt.Errorf("public key is required")
	}

	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("failed to decode public key")
	}

	publicKey, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	rsaPublicKey, ok := publicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA")
	}
	return rsaPublicKey, nil
}

func (s *TokenServiceImpl) keyFunc(token *jwt.Token) (any, error) {
	if s.useRSAKeys {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.publicKey, nil
	}
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return s.secretKey, nil
}

// ValidateToken verifies signature, issuer, audience and expiry and returns the claims
func (s *TokenServiceImpl) ValidateToken(token string) (*TokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, s.keyFunc, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, ErrTokenInvalid
	}
	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return nil, ErrTokenInvalid
	}

	out := &TokenClaims{Subject: subject, Role: role}
	if jti, ok := claims["jti"].(string); ok {
		out.TokenID = jti
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

// ValidateAdminToken is ValidateToken plus a role=admin check
func (s *TokenServiceImpl) ValidateAdminToken(token string) (*TokenClaims, error) {
	claims, err := s.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	if claims.Role != RoleAdmin {
		return nil, ErrTokenForbidden
	}
	return claims, nil
}
