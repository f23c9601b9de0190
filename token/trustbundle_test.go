// token/trustbundle_test.go
package token_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verdict_errors "github.com/verdictd/verdict/errors"
	"github.com/verdictd/verdict/token"
)

func jwksDocument(t *testing.T, keyID string) []byte {
	t.Helper()

	privateKey := newSigningKey(t)
	jwkKey, err := jwk.New(&privateKey.PublicKey)
	require.NoError(t, err)
	require.NoError(t, jwkKey.Set(jwk.KeyIDKey, keyID))

	keySet := jwk.NewSet()
	keySet.Add(jwkKey)

	document, err := json.Marshal(keySet)
	require.NoError(t, err)

	return document
}

func TestTrustBundle_Key(t *testing.T) {
	ctx := context.Background()

	t.Run("FetchesUnknownKeyFromJWKSEndpoint", func(t *testing.T) {
		document := jwksDocument(t, "idp-key")
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write(document)
		}))
		defer server.Close()

		bundle := token.NewTrustBundle(server.URL, 2*time.Second)

		key, err := bundle.Key(ctx, "idp-key")
		require.NoError(t, err)

		keyID, _ := key.Get(jwk.KeyIDKey)
		assert.Equal(t, "idp-key", keyID)
	})

	t.Run("UnknownKeyAfterFetch_FailsClosed", func(t *testing.T) {
		document := jwksDocument(t, "idp-key")
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write(document)
		}))
		defer server.Close()

		bundle := token.NewTrustBundle(server.URL, 2*time.Second)

		_, err := bundle.Key(ctx, "rotated-away")
		assert.ErrorIs(t, err, verdict_errors.ErrTokenSignatureInvalid)
	})

	t.Run("FetchTimeout_FailsClosed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(500 * time.Millisecond)
		}))
		defer server.Close()

		bundle := token.NewTrustBundle(server.URL, 50*time.Millisecond)

		_, err := bundle.Key(ctx, "idp-key")
		assert.ErrorIs(t, err, verdict_errors.ErrKeyFetchTimeout)
	})

	t.Run("FailedRefreshKeepsCachedKeys", func(t *testing.T) {
		document := jwksDocument(t, "idp-key")
		var failing atomic.Bool
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if failing.Load() {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write(document)
		}))
		defer server.Close()

		bundle := token.NewTrustBundle(server.URL, 2*time.Second)

		_, err := bundle.Key(ctx, "idp-key")
		require.NoError(t, err)

		failing.Store(true)

		// A refresh attempt for an unknown key fails without a timeout...
		_, err = bundle.Key(ctx, "unknown-key")
		require.Error(t, err)
		assert.NotErrorIs(t, err, verdict_errors.ErrKeyFetchTimeout)

		// ...and the previously fetched keys stay in effect.
		key, err := bundle.Key(ctx, "idp-key")
		require.NoError(t, err)
		keyID, _ := key.Get(jwk.KeyIDKey)
		assert.Equal(t, "idp-key", keyID)
	})

	t.Run("StaticBundle_NeverFetches", func(t *testing.T) {
		privateKey := newSigningKey(t)
		jwkKey, err := jwk.New(&privateKey.PublicKey)
		require.NoError(t, err)
		require.NoError(t, jwkKey.Set(jwk.KeyIDKey, "static-key"))
		keySet := jwk.NewSet()
		keySet.Add(jwkKey)

		bundle := token.NewStaticTrustBundle(keySet)

		_, err = bundle.Key(ctx, "static-key")
		require.NoError(t, err)

		_, err = bundle.Key(ctx, "anything-else")
		assert.ErrorIs(t, err, verdict_errors.ErrTokenSignatureInvalid)
	})
}
