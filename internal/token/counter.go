// Package token counts BPE tokens for digest sizing.
package token

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/youtubingest/youtubingest-go/internal/cache"
)

const encodingName = "cl100k_base"

// Counter wraps a BPE tokenizer behind lazy initialization and a
// bounded per-text memo. If the tokenizer cannot be loaded the counter
// degrades to a byte-length approximation instead of failing requests.
type Counter struct {
	initOnce sync.Once
	encoding *tiktoken.Tiktoken
	memo     *cache.LRU
	logger   *zap.Logger
}

func NewCounter(memo *cache.LRU, logger *zap.Logger) *Counter {
	return &Counter{memo: memo, logger: logger}
}

// Count returns the token count of text. Counts are memoized by a
// digest of the text so repeated digests are free.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}

	key := memoKey(text)
	if c.memo != nil {
		if v, ok := c.memo.Get(key); ok {
			return v.(int)
		}
	}

	n := c.count(text)
	if c.memo != nil {
		c.memo.Put(key, n)
	}
	return n
}

func (c *Counter) count(text string) int {
	c.initOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(encodingName)
		if err != nil {
			c.logger.Warn("tokenizer unavailable, falling back to byte approximation",
				zap.String("encoding", encodingName),
				zap.Error(err))
			return
		}
		c.encoding = enc
	})

	if c.encoding == nil {
		return approximate(text)
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// approximate estimates tokens as bytes/4, the usual rule of thumb for
// English prose.
func approximate(text string) int {
	n := (len(text) + 3) / 4
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n
}

func memoKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:16])
}
