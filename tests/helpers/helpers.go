// Package helpers provides common test utilities for the smart-account test suite.
package helpers

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/better-wallet/smart-account/pkg/auth"
	"github.com/better-wallet/smart-account/pkg/types"
)

// K1Key is a secp256k1 owner or guardian key.
type K1Key struct {
	PrivateKey *ecdsa.PrivateKey
	Address    common.Address
}

// R1Key is a secp256r1 (TEE or passkey) owner key.
type R1Key struct {
	PrivateKey *ecdsa.PrivateKey
	PublicKey  types.R1PublicKey
}

// NewK1Key generates a secp256k1 key.
func NewK1Key(t *testing.T) *K1Key {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &K1Key{PrivateKey: key, Address: crypto.PubkeyToAddress(key.PublicKey)}
}

// Sign signs hash with r||s||v.
func (k *K1Key) Sign(t *testing.T, hash common.Hash) []byte {
	t.Helper()
	sig, err := auth.SignK1(hash, k.PrivateKey)
	require.NoError(t, err)
	return sig
}

// NewR1Key generates a secp256r1 key.
func NewR1Key(t *testing.T) *R1Key {
	t.Helper()
	key, err := auth.GenerateR1Key()
	require.NoError(t, err)
	pub, err := auth.R1PublicKey(&key.PublicKey)
	require.NoError(t, err)
	return &R1Key{PrivateKey: key, PublicKey: pub}
}

// SignPasskey produces a WebAuthn assertion over hash.
func (k *R1Key) SignPasskey(t *testing.T, hash common.Hash) []byte {
	t.Helper()
	sig, err := auth.SignPasskey(hash, k.PrivateKey, "localhost", "http://localhost")
	require.NoError(t, err)
	return sig
}

// SignRaw signs hash with raw r||s as a TEE would.
func (k *R1Key) SignRaw(t *testing.T, hash common.Hash) []byte {
	t.Helper()
	sig, err := auth.SignR1(hash.Bytes(), k.PrivateKey)
	require.NoError(t, err)
	return sig
}

// DoJSON sends body as JSON to h and returns the recorded response.
func DoJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// DecodeJSON unmarshals the response body into v.
func DecodeJSON(t *testing.T, resp *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), v), resp.Body.String())
}

// NewTestContext creates a context with timeout for tests.
func NewTestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// AssertErrorResponse checks that an HTTP response is an error with expected status.
func AssertErrorResponse(t *testing.T, resp *httptest.ResponseRecorder, expectedStatus int) {
	t.Helper()
	require.Equal(t, expectedStatus, resp.Code,
		"Expected status %d, got %d. Body: %s",
		expectedStatus, resp.Code, resp.Body.String())
}

// AssertSuccessResponse checks that an HTTP response is successful (2xx).
func AssertSuccessResponse(t *testing.T, resp *httptest.ResponseRecorder) {
	t.Helper()
	require.True(t, resp.Code >= 200 && resp.Code < 300,
		"Expected success status (2xx), got %d. Body: %s",
		resp.Code, resp.Body.String())
}
