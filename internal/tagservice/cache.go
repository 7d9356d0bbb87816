package tagservice

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/starford/taxon/internal/store"
)

// vocabCache remembers vocabulary name to id lookups. Only hits are cached;
// any rename or delete purges the whole cache. Writes hold mu exclusively so
// a lookup cannot re-add a name while its vocabulary is being changed.
type vocabCache struct {
	store.Repository
	ids *lru.Cache[string, string]
	mu  sync.RWMutex
}

func newVocabCache(db store.Repository, size int) (*vocabCache, error) {
	ids, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &vocabCache{Repository: db, ids: ids}, nil
}

func (c *vocabCache) ResolveVocabulary(ctx context.Context, name string) (string, error) {
	if id, ok := c.ids.Get(name); ok {
		return id, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, err := c.Repository.ResolveVocabulary(ctx, name)
	if err != nil {
		return "", err
	}
	c.ids.Add(name, id)
	return id, nil
}

func (c *vocabCache) UpdateVocabulary(ctx context.Context, id, name string, tags []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name != "" {
		defer c.ids.Purge()
	}
	return c.Repository.UpdateVocabulary(ctx, id, name, tags)
}

func (c *vocabCache) DeleteVocabulary(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.ids.Purge()
	return c.Repository.DeleteVocabulary(ctx, id)
}
