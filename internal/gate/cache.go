package gate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"go.uber.org/zap"
)

// KV is the small key-value surface the verdict cache needs.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

const (
	cacheKeyPrefix = "gate:verdict:"
	passedValue    = "P"
	blockedPrefix  = "B:"
)

// CachedClassifier remembers verdicts per exact (normalized) utterance.
// Cache failures are logged and fall through to the wrapped classifier.
type CachedClassifier struct {
	next   Classifier
	kv     KV
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedClassifier(next Classifier, kv KV, ttl time.Duration, logger *zap.Logger) *CachedClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedClassifier{next: next, kv: kv, ttl: ttl, logger: logger}
}

func (c *CachedClassifier) Classify(ctx context.Context, text string) (Verdict, error) {
	key := cacheKey(text)

	if raw, ok, err := c.kv.Get(ctx, key); err != nil {
		c.logger.Warn("verdict cache read failed", zap.Error(err))
	} else if ok {
		if v, ok := decodeVerdict(raw); ok {
			return v, nil
		}
	}

	v, err := c.next.Classify(ctx, text)
	if err != nil {
		return nil, err
	}
	if raw, ok := encodeVerdict(v); ok {
		if err := c.kv.Set(ctx, key, raw, c.ttl); err != nil {
			c.logger.Warn("verdict cache write failed", zap.Error(err))
		}
	}
	return v, nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(normalizeText(text)))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

func encodeVerdict(v Verdict) (string, bool) {
	switch v := v.(type) {
	case Passed:
		return passedValue, true
	case Blocked:
		return blockedPrefix + v.Response, true
	}
	return "", false
}

func decodeVerdict(raw string) (Verdict, bool) {
	switch {
	case raw == passedValue:
		return Passed{}, true
	case strings.HasPrefix(raw, blockedPrefix):
		return Blocked{Response: strings.TrimPrefix(raw, blockedPrefix)}, true
	}
	return nil, false
}
