package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/maintenance-auth/internal/model"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestDeriveKeysDistinct(t *testing.T) {
	k := DeriveKeys("a-very-long-signing-secret-for-tests")
	assert.NotEqual(t, k.Access, k.Link)
	assert.NotEqual(t, k.Access, k.Code)
	assert.NotEqual(t, k.Link, k.Code)
	assert.Equal(t, k, DeriveKeys("a-very-long-signing-secret-for-tests"))
}

func TestIssueAndDecode(t *testing.T) {
	clock := newClock()
	iss := NewIssuer([]byte("key"), WithClock(clock.Now))

	issued, err := iss.Issue("ada@example.com", model.TokenVerification, 10*time.Minute, map[string]any{
		ClaimVerification: true,
		ClaimSubject:      "mallory@example.com",
		ClaimJTI:          "fixed",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, issued.JTI)
	assert.NotEqual(t, "fixed", issued.JTI)
	assert.Equal(t, clock.t, issued.IssuedAt)
	assert.Equal(t, clock.t.Add(10*time.Minute), issued.ExpiresAt)

	d, err := iss.Decode(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, issued.JTI, d.JTI)
	assert.Equal(t, "ada@example.com", d.Subject)
	assert.Equal(t, model.TokenVerification, d.Type)
	assert.True(t, d.Flag(ClaimVerification))
	assert.False(t, d.Flag(ClaimVerified))
	assert.Equal(t, issued.ExpiresAt, d.ExpiresAt)

	rec := issued.Record()
	assert.Equal(t, issued.JTI, rec.JTI)
	assert.Equal(t, "ada@example.com", rec.UserIdentity)
	assert.False(t, rec.Revoked)
}

func TestIssueUniqueJTI(t *testing.T) {
	iss := NewIssuer([]byte("key"))
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		issued, err := iss.Issue("ada@example.com", model.TokenAccess, time.Hour, nil)
		require.NoError(t, err)
		require.False(t, seen[issued.JTI])
		seen[issued.JTI] = true
	}
}

func TestIssueRejectsBadInput(t *testing.T) {
	iss := NewIssuer([]byte("key"))
	_, err := iss.Issue("", model.TokenAccess, time.Hour, nil)
	assert.Error(t, err)
	_, err = iss.Issue("ada@example.com", model.TokenAccess, 0, nil)
	assert.Error(t, err)
}

func TestDecodeExpiryBoundary(t *testing.T) {
	clock := newClock()
	iss := NewIssuer([]byte("key"), WithClock(clock.Now))
	issued, err := iss.Issue("ada@example.com", model.TokenAccess, time.Hour, nil)
	require.NoError(t, err)

	clock.Advance(time.Hour - time.Second)
	_, err = iss.Decode(issued.Token)
	assert.NoError(t, err)

	clock.Advance(time.Second)
	_, err = iss.Decode(issued.Token)
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestDecodeRejects(t *testing.T) {
	iss := NewIssuer([]byte("key"))
	issued, err := iss.Issue("ada@example.com", model.TokenAccess, time.Hour, nil)
	require.NoError(t, err)

	other := NewIssuer([]byte("other-key"))
	_, err = other.Decode(issued.Token)
	assert.ErrorIs(t, err, ErrMalformedToken)

	parts := strings.Split(issued.Token, ".")
	require.Len(t, parts, 3)
	_, err = iss.Decode(parts[0] + "." + parts[1] + ".AAAA")
	assert.ErrorIs(t, err, ErrMalformedToken)

	for _, raw := range []string{"", "garbage", "a.b.c"} {
		_, err = iss.Decode(raw)
		assert.ErrorIs(t, err, ErrMalformedToken, raw)
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"jti": "x", "sub": "ada@example.com", "type": "access", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = iss.Decode(none)
	assert.ErrorIs(t, err, ErrMalformedToken)

	noJTI, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ada@example.com", "type": "access", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("key"))
	require.NoError(t, err)
	_, err = iss.Decode(noJTI)
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestCodec(t *testing.T) {
	clock := newClock()
	codec := NewCodec([]byte("link-key"), WithClock(clock.Now))

	tok, err := codec.Sign("ada@example.com", "email-confirmation")
	require.NoError(t, err)

	res := codec.Verify(tok, "email-confirmation", "", 10*time.Minute)
	assert.True(t, res.Valid)
	assert.Equal(t, "ada@example.com", res.Identity)

	res = codec.Verify(tok, "email-confirmation", "ada@example.com", 10*time.Minute)
	assert.True(t, res.Valid)

	res = codec.Verify(tok, "password-reset", "", 10*time.Minute)
	assert.False(t, res.Valid)
	assert.Equal(t, ReasonNamespaceMismatch, res.Reason)

	res = codec.Verify(tok, "email-confirmation", "bob@example.com", 10*time.Minute)
	assert.False(t, res.Valid)
	assert.Equal(t, ReasonIdentityMismatch, res.Reason)

	res = NewCodec([]byte("other"), WithClock(clock.Now)).Verify(tok, "email-confirmation", "", 10*time.Minute)
	assert.Equal(t, ReasonTampered, res.Reason)

	for _, raw := range []string{"", "%%%", "a.b.c", tok + "x"} {
		res = codec.Verify(raw, "email-confirmation", "", time.Minute)
		assert.False(t, res.Valid)
		assert.Equal(t, ReasonTampered, res.Reason, raw)
	}
}

func TestCodecAgeBoundary(t *testing.T) {
	clock := newClock()
	codec := NewCodec([]byte("link-key"), WithClock(clock.Now))
	tok, err := codec.Sign("ada@example.com", "ns")
	require.NoError(t, err)

	clock.Advance(600*time.Second - time.Nanosecond)
	assert.True(t, codec.Verify(tok, "ns", "", 600*time.Second).Valid)

	clock.Advance(time.Nanosecond)
	res := codec.Verify(tok, "ns", "", 600*time.Second)
	assert.False(t, res.Valid)
	assert.Equal(t, ReasonExpired, res.Reason)
}

func TestCodecSubSecondIssuance(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 900_000_000, time.UTC)}
	codec := NewCodec([]byte("link-key"), WithClock(clock.Now))
	tok, err := codec.Sign("ada@example.com", "ns")
	require.NoError(t, err)

	clock.Advance(599500 * time.Millisecond)
	res := codec.Verify(tok, "ns", "", 600*time.Second)
	assert.True(t, res.Valid, res.Reason)

	clock.Advance(500 * time.Millisecond)
	res = codec.Verify(tok, "ns", "", 600*time.Second)
	assert.False(t, res.Valid)
	assert.Equal(t, ReasonExpired, res.Reason)
}

func TestCodecRejectsEmptyIdentity(t *testing.T) {
	codec := NewCodec([]byte("link-key"))
	_, err := codec.Sign("", "ns")
	assert.ErrorIs(t, err, ErrEmptyIdentity)
}
