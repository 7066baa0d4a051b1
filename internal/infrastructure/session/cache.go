// Package session keeps live chat sessions in process memory. Entries
// never expire on a timer: invalidation is explicit, driven by handle
// renewal, membership changes and deletes.
package session

import (
	gocache "github.com/patrickmn/go-cache"

	"github.com/kirillkom/dpr-analyzer/internal/core/ports"
)

type Cache struct {
	store *gocache.Cache
}

func NewCache() *Cache {
	return &Cache{store: gocache.New(gocache.NoExpiration, 0)}
}

func (c *Cache) Get(key string) (*ports.ChatSession, bool) {
	value, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	session, ok := value.(*ports.ChatSession)
	return session, ok
}

func (c *Cache) Put(key string, session *ports.ChatSession) {
	c.store.Set(key, session, gocache.NoExpiration)
}

func (c *Cache) Invalidate(key string) {
	c.store.Delete(key)
}
