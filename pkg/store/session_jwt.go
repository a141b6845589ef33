package store

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	defaultJWTIssuer   = "kreatorboard-auth"
	defaultJWTAudience = "kreatorboard-api"
	defaultSigningKid  = "auth-active"
)

var defaultJWTLeeway = 30 * time.Second

// ErrSessionTokenInvalid marks a session token that failed validation:
// malformed, expired, bad signature, wrong claims or revoked. Callers use it
// to tell "this session is dead, log in again" apart from infrastructure
// failures such as an unreachable revocation store.
var ErrSessionTokenInvalid = errors.New("invalid session token")

// RS256SessionConfig configures the JWT session store. VerifyKeyFiles maps
// kid to public key path and can carry previous keys during rotation.
type RS256SessionConfig struct {
	PrivateKeyPath string
	PublicKeyPath  string
	KeyID          string
	VerifyKeyFiles map[string]string
	TTL            time.Duration
	Revoker        TokenRevoker
	Issuer         string
	Audience       string
	Leeway         time.Duration
}

// JWTSessionStore issues and validates RS256 session tokens with kid/JWKS.
type JWTSessionStore struct {
	ttl     time.Duration
	revoker TokenRevoker

	signer    *rsa.PrivateKey
	signerKid string
	verifiers map[string]*rsa.PublicKey

	issuer   string
	audience string
	leeway   time.Duration
}

// NewRS256SessionStore builds the session store from PEM key files.
func NewRS256SessionStore(cfg RS256SessionConfig) (*JWTSessionStore, error) {
	privateKey, err := loadRSAPrivateKeyFromPEMFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load session signing key: %w", err)
	}
	kid := strings.TrimSpace(cfg.KeyID)
	if kid == "" {
		kid = defaultSigningKid
	}

	verifiers := make(map[string]*rsa.PublicKey)
	activePub := &privateKey.PublicKey
	if strings.TrimSpace(cfg.PublicKeyPath) != "" {
		activePub, err = loadRSAPublicKeyFromPEMFile(cfg.PublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load session public key: %w", err)
		}
	}
	verifiers[kid] = activePub

	for verifyKid, path := range cfg.VerifyKeyFiles {
		verifyKid = strings.TrimSpace(verifyKid)
		path = strings.TrimSpace(path)
		if verifyKid == "" || path == "" {
			continue
		}
		pub, err := loadRSAPublicKeyFromPEMFile(path)
		if err != nil {
			return nil, fmt.Errorf("load verify key %q: %w", verifyKid, err)
		}
		verifiers[verifyKid] = pub
	}

	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultJWTIssuer
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = defaultJWTAudience
	}
	leeway := cfg.Leeway
	if leeway <= 0 {
		leeway = defaultJWTLeeway
	}

	return &JWTSessionStore{
		ttl:       cfg.TTL,
		revoker:   cfg.Revoker,
		signer:    privateKey,
		signerKid: kid,
		verifiers: verifiers,
		issuer:    issuer,
		audience:  audience,
		leeway:    leeway,
	}, nil
}

// NewSession creates a signed session token for the user ID.
func (s *JWTSessionStore) NewSession(userID string) (string, error) {
	if s.signer == nil {
		return "", errors.New("session store has no signing key")
	}
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    s.issuer,
		Audience:  jwt.ClaimStrings{s.audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        newSessionID(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.signerKid
	return token.SignedString(s.signer)
}

// GetUserIDByToken validates a session token and returns the subject.
// Validation failures wrap ErrSessionTokenInvalid; only revocation-store
// lookups can surface other errors.
func (s *JWTSessionStore) GetUserIDByToken(token string) (string, bool, error) {
	claims, err := s.parseAndVerify(token)
	if err != nil {
		return "", false, err
	}
	if s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(claims.ID)
		if err != nil {
			return "", false, fmt.Errorf("revocation lookup: %w", err)
		}
		if revoked {
			return "", false, fmt.Errorf("%w: token revoked", ErrSessionTokenInvalid)
		}
		if userRevoker, ok := s.revoker.(UserTokenRevoker); ok {
			cutoff, err := userRevoker.RevokedAfter(claims.Subject)
			if err != nil {
				return "", false, fmt.Errorf("revocation lookup: %w", err)
			}
			if !cutoff.IsZero() {
				if claims.IssuedAt == nil || !claims.IssuedAt.Time.UTC().After(cutoff) {
					return "", false, fmt.Errorf("%w: user sessions revoked", ErrSessionTokenInvalid)
				}
			}
		}
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", false, fmt.Errorf("%w: subject missing", ErrSessionTokenInvalid)
	}
	return claims.Subject, true, nil
}

// DeleteSession revokes the token until it would have expired.
func (s *JWTSessionStore) DeleteSession(token string) error {
	if s.revoker == nil {
		return nil
	}
	claims, err := s.parseAndVerify(token)
	if err != nil {
		// Already unusable; nothing to revoke.
		return nil
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	return s.revoker.Revoke(claims.ID, time.Until(claims.ExpiresAt.Time))
}

// RevokeUserSessions revokes all sessions for a user issued before the cutoff.
func (s *JWTSessionStore) RevokeUserSessions(userID string, since time.Time) error {
	if s.revoker == nil {
		return nil
	}
	userRevoker, ok := s.revoker.(UserTokenRevoker)
	if !ok {
		return errors.New("session revoker does not support user revocation")
	}
	return userRevoker.RevokeUser(userID, since)
}

// JWKS returns the verification keys as JSON Web Keys.
func (s *JWTSessionStore) JWKS() []JWK {
	if len(s.verifiers) == 0 {
		return nil
	}
	kids := make([]string, 0, len(s.verifiers))
	for kid := range s.verifiers {
		kids = append(kids, kid)
	}
	sort.Strings(kids)
	out := make([]JWK, 0, len(kids))
	for _, kid := range kids {
		pub := s.verifiers[kid]
		out = append(out, JWK{
			Kty: "RSA",
			Use: "sig",
			Kid: kid,
			Alg: "RS256",
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		})
	}
	return out
}

func (s *JWTSessionStore) parseAndVerify(token string) (jwt.RegisteredClaims, error) {
	claims := jwt.RegisteredClaims{}
	token = strings.TrimSpace(token)
	if token == "" {
		return claims, fmt.Errorf("%w: empty token", ErrSessionTokenInvalid)
	}
	if len(s.verifiers) == 0 {
		return claims, errors.New("session store has no verification keys")
	}

	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		kid = strings.TrimSpace(kid)
		if kid == "" {
			return nil, errors.New("token key id required")
		}
		pub, ok := s.verifiers[kid]
		if !ok {
			return nil, errors.New("unknown token key")
		}
		return pub, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(s.leeway),
	)
	if err != nil {
		return claims, fmt.Errorf("%w: %v", ErrSessionTokenInvalid, err)
	}
	if !parsed.Valid {
		return claims, ErrSessionTokenInvalid
	}
	if strings.TrimSpace(claims.ID) == "" {
		return claims, fmt.Errorf("%w: jti missing", ErrSessionTokenInvalid)
	}
	return claims, nil
}

func loadRSAPrivateKeyFromPEMFile(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("invalid pem")
	}
	if pkcs1, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return pkcs1, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	privateKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not rsa")
	}
	return privateKey, nil
}

func loadRSAPublicKeyFromPEMFile(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("invalid pem")
	}
	pubAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := pubAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not rsa")
	}
	return pub, nil
}

func newSessionID() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("%x", buf)
}
