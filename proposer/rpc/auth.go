package rpc

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
)

// authClockSkew bounds how far a token's issued-at claim may drift from the
// node's clock, matching execution-engine auth.
const authClockSkew = 60 * time.Second

// LoadAuthSecret reads the 32-byte hex secret the generate-auth-secret
// subcommand writes. An optional 0x prefix and surrounding whitespace are
// accepted.
func LoadAuthSecret(path string) ([]byte, error) {
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, errors.Wrapf(err, "could not read auth secret file %s", path)
	}
	encoded := strings.TrimPrefix(strings.TrimSpace(string(raw)), "0x")
	secret, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "auth secret is not valid hex")
	}
	if len(secret) != 32 {
		return nil, errors.Errorf("auth secret must be 32 bytes, got %d", len(secret))
	}
	return secret, nil
}

// CreateToken issues a bearer token over the shared secret. The only claim
// is issued-at; validation accepts it within authClockSkew of now.
func CreateToken(secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		IssuedAt: jwt.NewNumericDate(time.Now()),
	})
	return token.SignedString(secret)
}

// requireAuth guards a mutating route with bearer-token auth when a secret
// is configured. A missing header is 401, a header that is not in Bearer
// form is 400, and a token that fails validation is 403.
func (s *Service) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(s.cfg.AuthSecret) == 0 {
			next(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		if header == "" {
			authFailureCount.Inc()
			writeJSON(w, http.StatusUnauthorized, &errorJson{
				Status: http.StatusUnauthorized,
				Error:  "unauthorized: no Authorization header passed",
			})
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header {
			authFailureCount.Inc()
			writeJSON(w, http.StatusBadRequest, &errorJson{
				Status: http.StatusBadRequest,
				Error:  "token malformed, format is 'Bearer {token}'",
			})
			return
		}
		if err := s.validateJWT(token); err != nil {
			authFailureCount.Inc()
			writeJSON(w, http.StatusForbidden, &errorJson{
				Status: http.StatusForbidden,
				Error:  err.Error(),
			})
			return
		}
		next(w, r)
	}
}

func (s *Service) validateJWT(tokenString string) error {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected JWT signing method %v", token.Header["alg"])
		}
		return s.cfg.AuthSecret, nil
	})
	if err != nil {
		return errors.Wrap(err, "could not parse JWT token")
	}
	if claims.IssuedAt == nil {
		return errors.New("token is missing the issued-at claim")
	}
	if drift := time.Since(claims.IssuedAt.Time); drift > authClockSkew || drift < -authClockSkew {
		return errors.New("token issued-at is too far from the current time")
	}
	return nil
}
