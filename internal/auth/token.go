package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/apnisec/apiserver/internal/apperr"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the token payload: the user id rides in the registered
// subject, the email in a private claim.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// IssueToken mints a signed HS256 token for the user with the given
// lifetime.
func IssueToken(userID int, email string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// VerifyToken checks signature and expiry and returns the embedded
// user id and email. Every failure mode collapses into one
// authentication fault; callers only learn "valid or not".
func VerifyToken(tokenString string, secret []byte) (int, string, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return 0, "", apperr.Authentication("Invalid or expired token")
	}

	userID, err := strconv.Atoi(strings.TrimSpace(claims.Subject))
	if err != nil || userID < 1 {
		return 0, "", apperr.Authentication("Invalid or expired token")
	}
	return userID, claims.Email, nil
}
