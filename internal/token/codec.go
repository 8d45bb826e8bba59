package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Reason explains why Verify rejected a link token.  It is meant for logs
// only; clients see a generic failure.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonExpired           Reason = "expired"
	ReasonTampered          Reason = "tampered"
	ReasonNamespaceMismatch Reason = "namespace mismatch"
	ReasonIdentityMismatch  Reason = "identity mismatch"
)

// Result is the outcome of Codec.Verify.
type Result struct {
	Valid    bool
	Identity string
	Reason   Reason
}

// Codec produces URL-safe tokens binding an identity to a namespace and an
// issuance time.  Nothing is persisted; expiry is decided by the verifier's
// maxAge.
type Codec struct {
	key []byte
	now func() time.Time
}

// NewCodec returns a codec signing with key (see Keys.Link).
func NewCodec(key []byte, opts ...Option) *Codec {
	o := buildOptions(opts)
	return &Codec{key: key, now: o.now}
}

// ErrEmptyIdentity is returned by Sign for an empty identity.
var ErrEmptyIdentity = errors.New("sign link token: empty identity")

// Sign returns a token for identity in namespace.  The issuance time is kept
// in milliseconds so the full maxAge window is honoured.
func (c *Codec) Sign(identity, namespace string) (string, error) {
	if identity == "" {
		return "", ErrEmptyIdentity
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id": identity,
		"ns": namespace,
		"ts": c.now().UTC().UnixMilli(),
	})
	return t.SignedString(c.key)
}

// Verify checks signature, namespace, age and (when expectedIdentity is not
// empty) identity, in that order.  A token is valid while
// now < issuedAt + maxAge.  Malformed input yields ReasonTampered.
func (c *Codec) Verify(token, namespace, expectedIdentity string, maxAge time.Duration) Result {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return c.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil || !parsed.Valid {
		return Result{Reason: ReasonTampered}
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Result{Reason: ReasonTampered}
	}
	identity, _ := claims["id"].(string)
	ns, _ := claims["ns"].(string)
	ts, ok := claims["ts"].(float64)
	if !ok || identity == "" {
		return Result{Reason: ReasonTampered}
	}
	if ns != namespace {
		return Result{Identity: identity, Reason: ReasonNamespaceMismatch}
	}
	issued := time.UnixMilli(int64(ts))
	if !c.now().Before(issued.Add(maxAge)) {
		return Result{Identity: identity, Reason: ReasonExpired}
	}
	if expectedIdentity != "" && expectedIdentity != identity {
		return Result{Identity: identity, Reason: ReasonIdentityMismatch}
	}
	return Result{Valid: true, Identity: identity}
}
