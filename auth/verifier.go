package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuerPrefix = "https://securetoken.google.com/"

	// minCertsTTL keeps a certificate set that came without max-age from
	// being refetched on every request.
	minCertsTTL = time.Minute
)

// idTokenClaims are the claims of an identity provider ID token that the
// API reads. The subject is the user's uid.
type idTokenClaims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenVerifier checks RS256 ID tokens against the provider's published
// x509 signing certificates.
type TokenVerifier struct {
	projectID string
	issuer    string
	certsURL  string
	client    *http.Client
	now       func() time.Time

	// refreshMu lets a single request refetch an expired set.
	refreshMu sync.Mutex
	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	expires   time.Time
}

func NewTokenVerifier(projectID, certsURL string, client *http.Client) *TokenVerifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &TokenVerifier{
		projectID: projectID,
		issuer:    issuerPrefix + projectID,
		certsURL:  certsURL,
		client:    client,
		now:       time.Now,
	}
}

func (v *TokenVerifier) Verify(ctx context.Context, raw string) (Identity, error) {
	claims := &idTokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("token has no kid header")
			}
			return v.key(ctx, kid)
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.projectID),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}

	return Identity{
		UID:   claims.Subject,
		Name:  claims.Name,
		Email: claims.Email,
	}, nil
}

// key returns the signing key for kid. The certificate set is refetched only
// once it has expired, so an unknown kid in a fresh set is rejected without
// contacting the provider.
func (v *TokenVerifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	keys, fresh := v.cached()
	if !fresh {
		v.refreshMu.Lock()
		keys, fresh = v.cached()
		if !fresh {
			if err := v.refresh(ctx); err != nil {
				v.refreshMu.Unlock()
				return nil, err
			}
			keys, _ = v.cached()
		}
		v.refreshMu.Unlock()
	}

	if k, ok := keys[kid]; ok {
		return k, nil
	}
	return nil, fmt.Errorf("unknown signing key %q", kid)
}

func (v *TokenVerifier) cached() (map[string]*rsa.PublicKey, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.keys, v.keys != nil && v.now().Before(v.expires)
}

func (v *TokenVerifier) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.certsURL, nil)
	if err != nil {
		return err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("could not fetch signing certificates: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("could not fetch signing certificates: status %d", resp.StatusCode)
	}

	var certs map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&certs); err != nil {
		return fmt.Errorf("could not decode signing certificates: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, pem := range certs {
		k, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
		if err != nil {
			return fmt.Errorf("could not parse signing certificate %q: %w", kid, err)
		}
		keys[kid] = k
	}

	v.mu.Lock()
	v.keys = keys
	v.expires = v.now().Add(max(maxAge(resp.Header.Get("Cache-Control")), minCertsTTL))
	v.mu.Unlock()
	return nil
}

// maxAge reads max-age from a Cache-Control header, or 0 without one.
func maxAge(cacheControl string) time.Duration {
	for _, directive := range strings.Split(cacheControl, ",") {
		name, value, found := strings.Cut(strings.TrimSpace(directive), "=")
		if !found || !strings.EqualFold(name, "max-age") {
			continue
		}
		if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}
