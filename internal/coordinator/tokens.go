package coordinator

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = time.Hour

// ErrInvalidToken is returned for callback tokens that fail validation.
var ErrInvalidToken = errors.New("invalid callback token")

// Claims identify the executor a callback token was issued to.
type Claims struct {
	JobID      string
	Action     string
	ExecutorID string
}

func (c *Coordinator) generateToken(claims Claims) (string, error) {
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"job_id":      claims.JobID,
		"action":      claims.Action,
		"executor_id": claims.ExecutorID,
		"exp":         jwt.NewNumericDate(now.Add(tokenTTL)),
		"nbf":         jwt.NewNumericDate(now),
		"iat":         jwt.NewNumericDate(now),
	})
	signed, err := token.SignedString(c.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken checks the signature and expiry of a callback token and
// returns its claims.
func (c *Coordinator) ValidateToken(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.jwtSecret, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	var claims Claims
	for key, dst := range map[string]*string{
		"job_id":      &claims.JobID,
		"action":      &claims.Action,
		"executor_id": &claims.ExecutorID,
	} {
		v, ok := mc[key].(string)
		if !ok || v == "" {
			return Claims{}, fmt.Errorf("%w: %s claim missing", ErrInvalidToken, key)
		}
		*dst = v
	}
	return claims, nil
}

// callbackAddress appends the token to base as the "token" query parameter.
func callbackAddress(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse callback base %q: %w", base, err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
