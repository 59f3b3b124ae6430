package utils // package utils provides helper functions for token creation and hashing

import (
    "crypto/rand"
    "crypto/sha256"
    "encoding/hex"
    "errors"
    "fmt"
    "strconv"
    "time"

    "github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned by ParseAccessToken for any token that is
// malformed, expired, signed with another key or algorithm, or missing
// the subject claim.
var ErrInvalidToken = errors.New("invalid token")

// Claims carried by access tokens.  The subject is the decimal user id.
type Claims struct {
    Role string `json:"role"`
    jwt.RegisteredClaims
}

// UserID returns the numeric subject of the token.
func (c *Claims) UserID() (uint64, error) {
    return strconv.ParseUint(c.Subject, 10, 64)
}

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
    Token string
    Exp   time.Time
}

// RefreshToken is the raw opaque token handed to the client.  Only its
// SHA-256 hash is persisted.
type RefreshToken struct {
    Raw string
    Exp time.Time
}

// NewAccessToken builds and signs an HS256 JWT for a user.  The token
// includes sub, role, exp and iat.
func NewAccessToken(secret string, userID uint64, role string, ttlMin int) (AccessToken, error) {
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlMin) * time.Minute)
    claims := Claims{
        Role: role,
        RegisteredClaims: jwt.RegisteredClaims{
            Subject:   strconv.FormatUint(userID, 10),
            ExpiresAt: jwt.NewNumericDate(exp),
            IssuedAt:  jwt.NewNumericDate(now),
        },
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, fmt.Errorf("sign access token: %w", err)
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies the signature and expiry of raw and returns its
// claims.  Only HMAC-signed tokens are accepted.
func ParseAccessToken(secret, raw string) (*Claims, error) {
    var claims Claims
    tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
        }
        return []byte(secret), nil
    }, jwt.WithExpirationRequired())
    if err != nil || !tok.Valid {
        return nil, ErrInvalidToken
    }
    if _, err := claims.UserID(); err != nil {
        return nil, ErrInvalidToken
    }
    return &claims, nil
}

// NewRefreshToken returns a random 96 character token and its expiry.
func NewRefreshToken(ttlDays int) (RefreshToken, error) {
    raw, err := randomHex(48)
    if err != nil {
        return RefreshToken{}, err
    }
    return RefreshToken{
        Raw: raw,
        Exp: time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour),
    }, nil
}

// HashRefreshRaw returns the hex SHA-256 digest of a raw refresh token.
func HashRefreshRaw(raw string) string {
    sum := sha256.Sum256([]byte(raw))
    return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}
