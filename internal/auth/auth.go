package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier проверяет bearer-токены внешнего сервиса аутентификации.
// Токен непрозрачен для ядра: наружу отдается только id аккаунта.
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(cfg *Config) *Verifier {
	return &Verifier{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
	}
}

type claims struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Identity — данные аккаунта из проверенного токена
type Identity struct {
	ID       string
	Email    string
	Username string
}

// VerifyToken извлекает и проверяет bearer-токен запроса, возвращает id аккаунта.
func (v *Verifier) VerifyToken(r *http.Request) (string, error) {
	identity, err := v.VerifyRequest(r)
	if err != nil {
		return "", err
	}
	return identity.ID, nil
}

// VerifyRequest проверяет bearer-токен запроса и возвращает identity целиком.
func (v *Verifier) VerifyRequest(r *http.Request) (*Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, fmt.Errorf("no authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, fmt.Errorf("invalid authorization header")
	}

	return v.VerifyRawToken(parts[1])
}

func (v *Verifier) VerifyRawToken(tokenString string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	if v.issuer != "" && c.Issuer != v.issuer {
		return nil, fmt.Errorf("unexpected token issuer")
	}

	if c.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	return &Identity{
		ID:       c.Subject,
		Email:    c.Email,
		Username: c.Username,
	}, nil
}
