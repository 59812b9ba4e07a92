package utils

import (
	"errors"  // Sentinel for unusable tokens
	"strconv" // Subject encoding
	"time"    // Token lifetimes

	"github.com/golang-jwt/jwt/v5" // JWT library
	"github.com/google/uuid"       // Token identifiers
)

// Issuer is written to the iss claim and required when parsing
const Issuer = "traveltogether"

// ErrInvalidToken is returned for tokens that verify but name no account
var ErrInvalidToken = errors.New("token does not identify an account")

// Claims carried by session tokens. The jti identifies the token on the
// revocation list.
type Claims struct {
	UserID uint `json:"user_id"` // Account the session belongs to
	jwt.RegisteredClaims
}

// GenerateJWT signs an HS256 session token for userID that expires after ttl
func GenerateJWT(userID uint, secret string, ttl time.Duration) (string, error) {
	issued := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    Issuer,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseJWT verifies signature, algorithm, issuer and expiry and returns the claims
func ParseJWT(tokenStr, secret string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims,
		func(*jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(5*time.Second),
	)
	if err != nil {
		return nil, err
	}
	if claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
