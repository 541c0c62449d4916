package token_test

import (
	"testing"
	"time"

	"github.com/dukex/flujo/pkg/token"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clock_testing "k8s.io/utils/clock/testing"
)

func newCodec(t *testing.T, clock *clock_testing.FakeClock, opts ...token.Option) *token.Codec {
	t.Helper()

	codec, err := token.NewCodec("test-secret", append([]token.Option{token.WithClock(clock)}, opts...)...)
	require.NoError(t, err)

	return codec
}

func TestNewCodec_EmptySecret(t *testing.T) {
	t.Parallel()

	codec, err := token.NewCodec("")
	assert.ErrorIs(t, err, token.ErrEmptySecret)
	assert.Nil(t, codec)
}

func TestCodec_SignVerify(t *testing.T) {
	t.Parallel()

	clock := clock_testing.NewFakeClock(time.Date(2024, time.April, 19, 0, 0, 0, 0, time.UTC))
	codec := newCodec(t, clock)

	signed, err := codec.Sign(token.Payload{FlujoID: "flujo-1"}, 60)
	require.NoError(t, err)

	payload, ok := codec.Verify(signed)
	require.True(t, ok)
	assert.Equal(t, "flujo-1", payload.FlujoID)
}

func TestCodec_Expiry(t *testing.T) {
	t.Parallel()

	clock := clock_testing.NewFakeClock(time.Date(2024, time.April, 19, 0, 0, 0, 0, time.UTC))
	codec := newCodec(t, clock)

	signed, err := codec.Sign(token.Payload{FlujoID: "flujo-1"}, 60)
	require.NoError(t, err)

	clock.Step(59 * time.Second)

	_, ok := codec.Verify(signed)
	assert.True(t, ok)

	clock.Step(time.Second)

	_, ok = codec.Verify(signed)
	assert.False(t, ok)
}

func TestCodec_ZeroExpiryIsNeverValid(t *testing.T) {
	t.Parallel()

	clock := clock_testing.NewFakeClock(time.Date(2024, time.April, 19, 0, 0, 0, 0, time.UTC))
	codec := newCodec(t, clock)

	signed, err := codec.Sign(token.Payload{FlujoID: "flujo-1"}, 0)
	require.NoError(t, err)

	_, ok := codec.Verify(signed)
	assert.False(t, ok)
}

func TestCodec_RejectsForeignTokens(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.April, 19, 0, 0, 0, 0, time.UTC)
	clock := clock_testing.NewFakeClock(now)
	codec := newCodec(t, clock)

	other, err := token.NewCodec("another-secret", token.WithClock(clock))
	require.NoError(t, err)

	misSigned, err := other.Sign(token.Payload{FlujoID: "flujo-1"}, 60)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"id":  "flujo-1",
		"exp": now.Add(time.Minute).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id": "flujo-1",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	noFlujo, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": now.Add(time.Minute).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"empty":      "",
		"garbage":    "not-a-token",
		"mis-signed": misSigned,
		"alg none":   unsigned,
		"no expiry":  noExpiry,
		"no flujo":   noFlujo,
	} {
		t.Run(name, func(t *testing.T) {
			payload, ok := codec.Verify(tok)
			assert.False(t, ok)
			assert.Nil(t, payload)
		})
	}
}

func TestCodec_Issuer(t *testing.T) {
	t.Parallel()

	clock := clock_testing.NewFakeClock(time.Date(2024, time.April, 19, 0, 0, 0, 0, time.UTC))
	withIssuer := newCodec(t, clock, token.WithIssuer("flujo-api"))
	withoutIssuer := newCodec(t, clock)

	signed, err := withoutIssuer.Sign(token.Payload{FlujoID: "flujo-1"}, 60)
	require.NoError(t, err)

	_, ok := withIssuer.Verify(signed)
	assert.False(t, ok)

	signed, err = withIssuer.Sign(token.Payload{FlujoID: "flujo-1"}, 60)
	require.NoError(t, err)

	_, ok = withIssuer.Verify(signed)
	assert.True(t, ok)
}
