package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	apierr "github.com/0xDevNinja/neuro-mesh/pkg/api/types/errors"
	"github.com/0xDevNinja/neuro-mesh/pkg/domain"
)

var ErrInvalidToken = errors.New("invalid token")

// context key under which the authenticated account is stored.
const accountContextKey = "neuro-mesh/account"

// LoadKey reads an HS256 signing key from a file, trimming trailing
// whitespace.
func LoadKey(filepath string) ([]byte, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}
	key := []byte(strings.TrimSpace(string(content)))
	if len(key) == 0 {
		return nil, fmt.Errorf("signing key file %s is empty", filepath)
	}
	return key, nil
}

// NewToken signs a token for account, valid for ttl from now.
func NewToken(key []byte, account domain.AccountID, ttl time.Duration) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   string(account),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return tok.SignedString(key)
}

// VerifyToken parses token and returns the account it was issued to.
//
// Malformed, forged and expired tokens unwrap to ErrInvalidToken.
func VerifyToken(key []byte, token string) (domain.AccountID, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(
		token, claims,
		func(t *jwt.Token) (interface{}, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) ||
			errors.Is(err, jwt.ErrSignatureInvalid) ||
			errors.Is(err, jwt.ErrTokenExpired) {
			return "", errors.Join(ErrInvalidToken, err)
		}
		return "", err
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return domain.AccountID(claims.Subject), nil
}

// Middleware authenticates requests by their Authorization Bearer token
// and records the account for handlers.
func Middleware(key []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				return apierr.Unauthorized("send an Authorization: Bearer token", nil)
			}

			account, err := VerifyToken(key, token)
			if err != nil {
				if errors.Is(err, ErrInvalidToken) {
					return apierr.Unauthorized("token is expired or not issued by this server", err)
				}
				return apierr.InternalServerError(err)
			}

			WithAccount(c, account)
			return next(c)
		}
	}
}

// WithAccount records the authenticated account on the request context.
func WithAccount(c echo.Context, account domain.AccountID) {
	c.Set(accountContextKey, account)
}

// Account returns the authenticated account of the request, set by Middleware.
func Account(c echo.Context) (domain.AccountID, bool) {
	account, ok := c.Get(accountContextKey).(domain.AccountID)
	return account, ok
}
