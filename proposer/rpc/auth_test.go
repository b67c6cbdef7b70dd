package rpc

import (
	"context"
	"encoding/hex"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	dbtest "github.com/latticelabs/lattice/proposer/db/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthedService(t *testing.T, secret []byte) *Service {
	t.Helper()
	return NewService(context.Background(), &Config{
		AuthSecret:     secret,
		SubmissionRate: 100,
		Submitter:      &fakeSubmitter{exec: sampleExec(t)},
		Store:          dbtest.SetupStore(t),
		Content:        &fakeContent{},
	})
}

func issuedAtToken(t *testing.T, secret []byte, issuedAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		IssuedAt: jwt.NewNumericDate(issuedAt),
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func TestRequireAuthTokenMatrix(t *testing.T) {
	secret := []byte("12345678901234567890123456789012")
	svc := newAuthedService(t, secret)
	token, err := CreateToken(secret)
	require.NoError(t, err)
	foreign, err := CreateToken([]byte("abcdefghijklmnopqrstuvwxyz012345"))
	require.NoError(t, err)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		IssuedAt: jwt.NewNumericDate(time.Now()),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"no authorization header", "", http.StatusUnauthorized},
		{"token without bearer prefix", token, http.StatusBadRequest},
		{"no space after bearer", "Bearer" + token, http.StatusBadRequest},
		{"token signed with wrong secret", "Bearer " + foreign, http.StatusForbidden},
		{"unsigned token", "Bearer " + unsigned, http.StatusForbidden},
		{"garbage token", "Bearer not.a.jwt", http.StatusForbidden},
		{"valid token", "Bearer " + token, http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptestRequest(http.MethodPost, "/lattice/v1/intentions", submissionBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := record(svc, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRequireAuthRejectsDriftedIssuedAt(t *testing.T) {
	secret := []byte("12345678901234567890123456789012")
	svc := newAuthedService(t, secret)

	for name, issuedAt := range map[string]time.Time{
		"stale":  time.Now().Add(-2 * time.Hour),
		"future": time.Now().Add(2 * time.Hour),
	} {
		t.Run(name, func(t *testing.T) {
			req := httptestRequest(http.MethodPost, "/lattice/v1/intentions", submissionBody)
			req.Header.Set("Authorization", "Bearer "+issuedAtToken(t, secret, issuedAt))
			rec := record(svc, req)
			assert.Equal(t, http.StatusForbidden, rec.Code)
		})
	}
}

func TestRequireAuthRejectsMissingIssuedAt(t *testing.T) {
	secret := []byte("12345678901234567890123456789012")
	svc := newAuthedService(t, secret)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{}).SignedString(secret)
	require.NoError(t, err)
	req := httptestRequest(http.MethodPost, "/lattice/v1/intentions", submissionBody)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := record(svc, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthDisabledWithoutSecret(t *testing.T) {
	svc, _, _ := newTestService(t)

	rec := do(svc, http.MethodPost, "/lattice/v1/intentions", submissionBody)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestQueryRoutesSkipAuth(t *testing.T) {
	svc := newAuthedService(t, []byte("12345678901234567890123456789012"))

	rec := do(svc, http.MethodGet, "/lattice/v1/node/version", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoadAuthSecret(t *testing.T) {
	secret := make([]byte, 32)
	for i := range secret {
		secret[i] = byte(i)
	}
	path := filepath.Join(t.TempDir(), "auth.secret")
	require.NoError(t, os.WriteFile(path, []byte("0x"+hex.EncodeToString(secret)+"\n"), 0600))

	loaded, err := LoadAuthSecret(path)
	require.NoError(t, err)
	assert.Equal(t, secret, loaded)

	// A token minted from the loaded secret authenticates.
	svc := newAuthedService(t, loaded)
	token, err := CreateToken(loaded)
	require.NoError(t, err)
	require.NoError(t, svc.validateJWT(token))
}

func TestLoadAuthSecretRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	short := filepath.Join(dir, "short")
	require.NoError(t, os.WriteFile(short, []byte("abcd"), 0600))
	_, err := LoadAuthSecret(short)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32 bytes")

	garbage := filepath.Join(dir, "garbage")
	require.NoError(t, os.WriteFile(garbage, []byte("not hex at all"), 0600))
	_, err = LoadAuthSecret(garbage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid hex")

	_, err = LoadAuthSecret(filepath.Join(dir, "missing"))
	require.Error(t, err)
}
