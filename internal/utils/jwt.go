package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/rand" // secure random bytes for coupon codes
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// Sentinel verification errors. Handlers distinguish an expired
// token from a malformed or forged one so clients can tell
// "refresh now" apart from "log in again".
var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Token is a signed HS256 JWT together with its expiry. The same
// shape serves both access tokens (short-lived, signed with the
// access secret) and refresh tokens (long-lived, signed with a
// distinct refresh secret). The only claim payload is the user id.
type Token struct {
	Value string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewToken builds and signs an HS256 JWT for a user. Claims follow
// the usual layout: sub carries the user id, exp the expiry and iat
// the issue time.
func NewToken(secret string, userID uint64, ttl time.Duration) (Token, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(userID, 10),
		"exp": exp.Unix(),
		"iat": now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return Token{}, err
	}
	return Token{Value: signed, Exp: exp}, nil
}

// VerifyToken parses a signed token and returns the user id from its
// sub claim. Expired tokens return ErrTokenExpired; any other parse
// or signature failure returns ErrTokenInvalid. Only HMAC-signed
// tokens are accepted.
func VerifyToken(secret, raw string) (uint64, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, ErrTokenInvalid
	}
	if !tok.Valid {
		return 0, ErrTokenInvalid
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrTokenInvalid
	}
	switch sub := claims["sub"].(type) {
	case string:
		id, perr := strconv.ParseUint(sub, 10, 64)
		if perr != nil || id == 0 {
			return 0, ErrTokenInvalid
		}
		return id, nil
	case float64:
		// Numeric subs appear when tokens were minted elsewhere.
		if sub <= 0 {
			return 0, ErrTokenInvalid
		}
		return uint64(sub), nil
	default:
		return 0, ErrTokenInvalid
	}
}

// couponAlphabet matches the base-36 uppercase codes the storefront
// has always handed out.
const couponAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewCouponCode returns "GIFT" followed by n random base-36
// characters, e.g. GIFTX4K29A.
func NewCouponCode(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = couponAlphabet[int(b)%len(couponAlphabet)]
	}
	return "GIFT" + string(out), nil
}
