// token/trustbundle.go
package token

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/jwk"

	verdict_errors "github.com/verdictd/verdict/errors"
)

// TrustBundle holds the identity provider's signing keys, keyed by key ID.
// Unknown key IDs trigger a bounded remote JWKS fetch; a failed fetch keeps
// the cached key set in effect.
type TrustBundle struct {
	keySet       jwk.Set
	jwksURL      string
	fetchTimeout time.Duration
	mu           sync.RWMutex
}

func NewTrustBundle(jwksURL string, fetchTimeout time.Duration) *TrustBundle {
	return &TrustBundle{
		keySet:       jwk.NewSet(),
		jwksURL:      jwksURL,
		fetchTimeout: fetchTimeout,
	}
}

// NewStaticTrustBundle builds a bundle over a fixed key set. No remote
// fetches are ever attempted; verification against keys the set does not
// hold fails closed.
func NewStaticTrustBundle(keySet jwk.Set) *TrustBundle {
	return &TrustBundle{keySet: keySet}
}

func (tb *TrustBundle) Key(ctx context.Context, keyID string) (jwk.Key, error) {
	tb.mu.RLock()
	key, found := tb.keySet.LookupKeyID(keyID)
	tb.mu.RUnlock()

	if found {
		return key, nil
	}

	if tb.jwksURL == "" {
		return nil, verdict_errors.ErrTokenSignatureInvalid
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	if key, found := tb.keySet.LookupKeyID(keyID); found {
		return key, nil
	}

	if err := tb.fetchAndUpdateKeys(ctx); err != nil {
		return nil, err
	}

	if key, found := tb.keySet.LookupKeyID(keyID); found {
		return key, nil
	}

	return nil, verdict_errors.ErrTokenSignatureInvalid
}

func (tb *TrustBundle) fetchAndUpdateKeys(ctx context.Context) error {
	fetchCtx, cancel := context.WithTimeout(ctx, tb.fetchTimeout)
	defer cancel()

	set, err := jwk.Fetch(fetchCtx, tb.jwksURL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
			return verdict_errors.ErrKeyFetchTimeout
		}

		return fmt.Errorf("failed to fetch JWKS: %w", err)
	}

	tb.keySet = set

	return nil
}
