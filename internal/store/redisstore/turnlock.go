package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/suPer8Hu/sentinel-chat/internal/common"
)

func turnLockKey(sessionID string) string {
	return "turn:lock:" + sessionID
}

// only the holder may release
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Acquire takes the cross-instance turn lock for sessionID.
func (s *Store) Acquire(ctx context.Context, sessionID string) (func(), error) {
	token, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	key := turnLockKey(sessionID)
	ok, err := s.rdb.SetNX(ctx, key, token, s.lockTTL).Result()
	if err != nil {
		return nil, common.Wrap(err, "acquire turn lock")
	}
	if !ok {
		return nil, common.ErrTurnInProgress
	}
	return func() {
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(cctx, s.rdb, []string{key}, token).Err()
	}, nil
}
