package sessions

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/educhain/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// GenerateToken signs an HS256 token whose ID claim is the session id.
func GenerateToken(sessionID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetSessionIDFromToken validates the token and returns its session id.
func GetSessionIDFromToken(tokenString string, secretKey []byte) (string, error) {
	return parse(tokenString, secretKey)
}

// sessionIDIgnoringExpiry checks only the signature. Logout uses it so that
// tearing down an expired session still succeeds.
func sessionIDIgnoringExpiry(tokenString string, secretKey []byte) (string, error) {
	return parse(tokenString, secretKey, jwt.WithoutClaimsValidation())
}

func parse(tokenString string, secretKey []byte, opts ...jwt.ParserOption) (string, error) {
	claims := &jwt.RegisteredClaims{}
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}

	if !token.Valid || claims.ID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.ID, nil
}
