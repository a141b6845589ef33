package usertoken

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	defaultIssuer       = "kreatorboard-auth"
	defaultAudience     = "kreatorboard-api"
	defaultLeeway       = 30 * time.Second
	defaultJWKSCacheTTL = 5 * time.Minute
)

// ErrTokenInvalid marks an access token that failed validation against the
// auth service's published keys.
var ErrTokenInvalid = errors.New("invalid access token")

var errUnknownKey = errors.New("unknown token key")

// Config configures user access-token verification.
type Config struct {
	JWKSURL    string
	Issuer     string
	Audience   string
	Leeway     time.Duration
	HTTPClient *http.Client
}

// Verifier validates RS256 access tokens minted by the auth service. It
// caches the JWKS document and refreshes it when a token carries a kid the
// cache does not know, which is how key rotation propagates.
type Verifier struct {
	issuer     string
	audience   string
	leeway     time.Duration
	jwksURL    string
	httpClient *http.Client

	mu         sync.RWMutex
	keys       map[string]*rsa.PublicKey
	keysExpire time.Time
}

// NewVerifier creates a verifier and performs the initial JWKS fetch so a
// bad URL fails at startup rather than on the first request.
func NewVerifier(cfg Config) (*Verifier, error) {
	jwksURL := strings.TrimSpace(cfg.JWKSURL)
	if jwksURL == "" {
		return nil, errors.New("token verifier requires jwksURL")
	}

	v := &Verifier{
		issuer:     strings.TrimSpace(cfg.Issuer),
		audience:   strings.TrimSpace(cfg.Audience),
		leeway:     cfg.Leeway,
		jwksURL:    jwksURL,
		httpClient: cfg.HTTPClient,
	}
	if v.issuer == "" {
		v.issuer = defaultIssuer
	}
	if v.audience == "" {
		v.audience = defaultAudience
	}
	if v.leeway <= 0 {
		v.leeway = defaultLeeway
	}
	if v.httpClient == nil {
		v.httpClient = &http.Client{Timeout: 5 * time.Second}
	}

	if err := v.refreshKeys(); err != nil {
		return nil, err
	}
	return v, nil
}

// VerifySubject validates the token and returns the subject user ID.
func (v *Verifier) VerifySubject(token string) (string, error) {
	claims, err := v.verify(token)
	if err != nil {
		return "", err
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", fmt.Errorf("%w: subject missing", ErrTokenInvalid)
	}
	return subject, nil
}

func (v *Verifier) verify(token string) (jwt.RegisteredClaims, error) {
	claims, err := v.parse(token)
	if err == nil {
		return claims, nil
	}
	// An unknown kid (or an expired cache) may just mean the auth service
	// rotated keys; refresh once and retry.
	if !errors.Is(err, errUnknownKey) && !v.keysStale() {
		return claims, err
	}
	if refreshErr := v.refreshKeys(); refreshErr != nil {
		return claims, refreshErr
	}
	return v.parse(token)
}

func (v *Verifier) parse(token string) (jwt.RegisteredClaims, error) {
	claims := jwt.RegisteredClaims{}
	keys := v.snapshotKeys()
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		kid = strings.TrimSpace(kid)
		if kid == "" {
			return nil, errUnknownKey
		}
		key, ok := keys[kid]
		if !ok {
			return nil, errUnknownKey
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.leeway),
	)
	switch {
	case errors.Is(err, errUnknownKey):
		return claims, errUnknownKey
	case err != nil:
		return claims, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	case !parsed.Valid:
		return claims, ErrTokenInvalid
	}
	return claims, nil
}

func (v *Verifier) keysStale() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return time.Now().UTC().After(v.keysExpire)
}

func (v *Verifier) snapshotKeys() map[string]*rsa.PublicKey {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[string]*rsa.PublicKey, len(v.keys))
	for kid, key := range v.keys {
		out[kid] = key
	}
	return out
}

type jwksDocument struct {
	Keys []struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

func (v *Verifier) refreshKeys() error {
	req, err := http.NewRequest(http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return err
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch jwks: status %d", resp.StatusCode)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return err
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if strings.ToUpper(strings.TrimSpace(k.Kty)) != "RSA" {
			continue
		}
		kid := strings.TrimSpace(k.Kid)
		if kid == "" {
			continue
		}
		pub, err := decodeRSAPublicKey(k.N, k.E)
		if err != nil {
			continue
		}
		keys[kid] = pub
	}
	if len(keys) == 0 {
		return errors.New("jwks contains no usable rsa keys")
	}

	ttl := cacheTTLFromHeader(resp.Header.Get("Cache-Control"))
	if ttl <= 0 {
		ttl = defaultJWKSCacheTTL
	}

	v.mu.Lock()
	v.keys = keys
	v.keysExpire = time.Now().UTC().Add(ttl)
	v.mu.Unlock()
	return nil
}

func decodeRSAPublicKey(nRaw, eRaw string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(nRaw))
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(eRaw))
	if err != nil {
		return nil, err
	}
	n := new(big.Int).SetBytes(nBytes)
	eBig := new(big.Int).SetBytes(eBytes)
	if n.Sign() <= 0 || !eBig.IsInt64() {
		return nil, errors.New("invalid rsa key")
	}
	e := int(eBig.Int64())
	if e <= 0 {
		return nil, errors.New("invalid rsa exponent")
	}
	return &rsa.PublicKey{N: n, E: e}, nil
}

func cacheTTLFromHeader(cacheControl string) time.Duration {
	for _, directive := range strings.Split(cacheControl, ",") {
		directive = strings.ToLower(strings.TrimSpace(directive))
		raw, ok := strings.CutPrefix(directive, "max-age=")
		if !ok {
			continue
		}
		secs, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	return 0
}
