package utils_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evermart/storefront-api/internal/utils"
)

const testSecret = "unit-test-signing-secret"

func TestTokenRoundTrip(t *testing.T) {
	tok, err := utils.NewToken(testSecret, 42, 15*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, tok.Value)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), tok.Exp, 5*time.Second)

	userID, err := utils.VerifyToken(testSecret, tok.Value)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), userID)
}

func TestVerifyTokenExpired(t *testing.T) {
	tok, err := utils.NewToken(testSecret, 7, -time.Minute)
	require.NoError(t, err)

	_, err = utils.VerifyToken(testSecret, tok.Value)
	assert.ErrorIs(t, err, utils.ErrTokenExpired)
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	tok, err := utils.NewToken(testSecret, 7, time.Minute)
	require.NoError(t, err)

	_, err = utils.VerifyToken("a-different-secret", tok.Value)
	assert.ErrorIs(t, err, utils.ErrTokenInvalid)
}

func TestVerifyTokenGarbage(t *testing.T) {
	_, err := utils.VerifyToken(testSecret, "not.a.jwt")
	assert.ErrorIs(t, err, utils.ErrTokenInvalid)
}

func TestNewCouponCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		code, err := utils.NewCouponCode(6)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(code, "GIFT"))
		assert.Len(t, code, len("GIFT")+6)
		seen[code] = true
	}
	// Collisions over 20 draws from a 36^6 space would indicate a
	// broken random source.
	assert.Len(t, seen, 20)
}
