package guardrail

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// CallerClaims are the claims expected on a caller attribution token.
type CallerClaims struct {
	jwt.RegisteredClaims
	Team string `json:"team,omitempty"`
}

// CallerFromToken validates an HS256 caller attribution token and returns
// the subject for denial/grant logs. Attribution only: authorization stays
// purpose-based regardless of who the caller is.
func CallerFromToken(tokenStr string, key []byte) (string, error) {
	claims := &CallerClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return "", fmt.Errorf("caller token validation failed: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("caller token has no valid subject")
	}
	if claims.Team != "" {
		return claims.Team + "/" + claims.Subject, nil
	}
	return claims.Subject, nil
}
