package service

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	purposeSession       = "session"
	purposePasswordReset = "password_reset"
)

// tokenClaims is the JWT payload shared by session and reset tokens. The
// purpose claim keeps one kind from being accepted as the other.
type tokenClaims struct {
	jwt.RegisteredClaims
	Purpose string `json:"purpose"`
}

var errWrongPurpose = errors.New("token purpose mismatch")

func signToken(secret []byte, claims tokenClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// parseToken verifies signature, algorithm, expiry and purpose.
func parseToken(secret []byte, tokenString, purpose string, now func() time.Time) (*tokenClaims, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenNotValidYet
	}
	if claims.Purpose != purpose {
		return nil, errWrongPurpose
	}
	return claims, nil
}

func subjectUserID(claims *tokenClaims) (int64, error) {
	return strconv.ParseInt(claims.Subject, 10, 64)
}
