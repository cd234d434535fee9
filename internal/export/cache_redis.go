package export

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gascert/internal/certificate"
)

const documentKeyPrefix = "gascert:doc:"

// DocumentCache stores rendered PDFs in Redis. Keys include the
// certificate's UpdatedAt, so any lifecycle mutation (update, approve,
// set-pending) busts the cache without explicit invalidation. A nil
// *DocumentCache is valid and disables caching.
type DocumentCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDocumentCache(client *redis.Client, ttl time.Duration) *DocumentCache {
	return &DocumentCache{client: client, ttl: ttl}
}

func (c *DocumentCache) Get(ctx context.Context, cert *certificate.Certificate, opts Options) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, key(cert, opts)).Bytes()
	if err != nil {
		// redis.Nil and transport errors alike mean "render it again".
		return nil, false
	}
	return data, true
}

func (c *DocumentCache) Put(ctx context.Context, cert *certificate.Certificate, opts Options, pdf []byte) {
	if c == nil {
		return
	}
	// Best effort; a failed write only costs the next render.
	_ = c.client.Set(ctx, key(cert, opts), pdf, c.ttl).Err()
}

func key(cert *certificate.Certificate, opts Options) string {
	raw, _ := json.Marshal(opts)
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("%s%s:%d:%s",
		documentKeyPrefix, cert.ID, cert.UpdatedAt.UnixNano(), hex.EncodeToString(sum[:8]))
}
