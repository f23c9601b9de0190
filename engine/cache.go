// engine/cache.go
package engine

import (
	"sync"

	"github.com/verdictd/verdict/model"
)

// DecisionCache is a bounded cache of decisions keyed by store version plus
// request identity. Entries from superseded store versions become
// unreachable on their own; Flush drops everything eagerly.
type DecisionCache struct {
	mu    sync.Mutex
	cache map[string]*model.Decision
	size  int
}

func NewDecisionCache(size int) *DecisionCache {
	return &DecisionCache{
		cache: make(map[string]*model.Decision),
		size:  size,
	}
}

func (dc *DecisionCache) Get(key string) *model.Decision {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	return dc.cache[key]
}

func (dc *DecisionCache) Set(key string, decision *model.Decision) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if len(dc.cache) >= dc.size {
		for k := range dc.cache {
			delete(dc.cache, k)
			break
		}
	}
	dc.cache[key] = decision
}

func (dc *DecisionCache) Flush() {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	dc.cache = make(map[string]*model.Decision)
}
