package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/maintenance-auth/internal/model"
)

// Claim names set by the issuer.  Callers cannot override them.
const (
	ClaimJTI     = "jti"
	ClaimType    = "type"
	ClaimSubject = "sub"
	ClaimIssued  = "iat"
	ClaimExpires = "exp"
)

// Flags carried by the verification-code workflow.
const (
	ClaimVerification = "verification_token"
	ClaimVerified     = "verified_token"
	ClaimCodeDigest   = "code_digest"
	ClaimAccess       = "user_access_token"
)

var reserved = map[string]bool{
	ClaimJTI: true, ClaimType: true, ClaimSubject: true, ClaimIssued: true, ClaimExpires: true,
}

// ErrMalformedToken is returned by Decode for any signature, format or
// expiry failure.
var ErrMalformedToken = errors.New("malformed token")

// Issued describes a freshly minted token.  It carries everything the ledger
// needs to record it.
type Issued struct {
	Token     string
	JTI       string
	Type      model.TokenType
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Record converts the token into its ledger row.
func (i Issued) Record() model.TokenRecord {
	return model.TokenRecord{
		JTI:          i.JTI,
		TokenType:    i.Type,
		UserIdentity: i.Subject,
		ExpiresAt:    i.ExpiresAt,
	}
}

// Decoded is the verified payload of a bearer token.
type Decoded struct {
	JTI       string
	Type      model.TokenType
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Claims    jwt.MapClaims
}

// Flag reports whether the boolean claim name is present and true.
func (d *Decoded) Flag(name string) bool {
	v, _ := d.Claims[name].(bool)
	return v
}

// StringClaim returns a string claim or "".
func (d *Decoded) StringClaim(name string) string {
	v, _ := d.Claims[name].(string)
	return v
}

// Issuer mints HS256 bearer tokens with a random jti.
type Issuer struct {
	key []byte
	now func() time.Time
}

// NewIssuer returns an issuer signing with key (see Keys.Access).
func NewIssuer(key []byte, opts ...Option) *Issuer {
	o := buildOptions(opts)
	return &Issuer{key: key, now: o.now}
}

// Now exposes the issuer's clock.
func (i *Issuer) Now() time.Time { return i.now().UTC() }

// Issue signs a token for identity valid for ttl.  Extra claims are merged
// under the reserved ones.
func (i *Issuer) Issue(identity string, typ model.TokenType, ttl time.Duration, claims map[string]any) (Issued, error) {
	if identity == "" {
		return Issued{}, errors.New("issue token: empty identity")
	}
	if ttl < time.Second {
		return Issued{}, fmt.Errorf("issue token: ttl %s too short", ttl)
	}
	iat := i.now().UTC().Truncate(time.Second)
	exp := iat.Add(ttl).Truncate(time.Second)
	jti := uuid.NewString()

	mc := jwt.MapClaims{}
	for k, v := range claims {
		if !reserved[k] {
			mc[k] = v
		}
	}
	mc[ClaimJTI] = jti
	mc[ClaimType] = string(typ)
	mc[ClaimSubject] = identity
	mc[ClaimIssued] = iat.Unix()
	mc[ClaimExpires] = exp.Unix()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(i.key)
	if err != nil {
		return Issued{}, fmt.Errorf("sign token: %w", err)
	}
	return Issued{
		Token:     signed,
		JTI:       jti,
		Type:      typ,
		Subject:   identity,
		IssuedAt:  iat,
		ExpiresAt: exp,
	}, nil
}

// Decode verifies signature and expiry and returns the payload.  A token
// whose exp equals the current second is already expired.
func (i *Issuer) Decode(raw string) (*Decoded, error) {
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformedToken
	}

	d := &Decoded{Claims: mc}
	d.JTI, _ = mc[ClaimJTI].(string)
	d.Subject, _ = mc[ClaimSubject].(string)
	typ, _ := mc[ClaimType].(string)
	d.Type = model.TokenType(typ)
	if d.JTI == "" || d.Subject == "" || typ == "" {
		return nil, fmt.Errorf("%w: missing jti, sub or type", ErrMalformedToken)
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		d.ExpiresAt = exp.Time.UTC()
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		d.IssuedAt = iat.Time.UTC()
	}
	return d, nil
}
