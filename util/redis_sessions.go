package util

import (
	"context"
	"errors"
	"time"

	"github.com/ariebrainware/agendamento/config"
	"github.com/redis/go-redis/v9"
)

// removeSessionScript removes one token and deletes the set once it is empty.
const removeSessionScript = `
	local removed = redis.call('SREM', KEYS[1], ARGV[1])
	if removed > 0 then
		local count = redis.call('SCARD', KEYS[1])
		if count == 0 then
			redis.call('DEL', KEYS[1])
		end
	end
	return removed
`

func userSessionsKey(username string) string {
	return "user_sessions:" + username
}

// AddSessionToUserSet records a session token digest in the per-user Redis
// set. The set expires together with the latest session added to it.
// It is a no-op when Redis is not configured.
func AddSessionToUserSet(ctx context.Context, username, tokenHash string, exp time.Duration) error {
	rdb := config.GetRedisClient()
	if rdb == nil {
		return nil
	}
	key := userSessionsKey(username)
	if err := rdb.SAdd(ctx, key, tokenHash).Err(); err != nil {
		return err
	}
	return rdb.Expire(ctx, key, exp).Err()
}

// RemoveSessionTokenFromUserSet removes a single token digest from the per-user set.
func RemoveSessionTokenFromUserSet(ctx context.Context, username, tokenHash string) error {
	rdb := config.GetRedisClient()
	if rdb == nil {
		return nil
	}
	return rdb.Eval(ctx, removeSessionScript, []string{userSessionsKey(username)}, tokenHash).Err()
}

// InvalidateUserSessions calls drop for every token digest recorded for
// username and then deletes the set. Without Redis there is nothing to walk.
func InvalidateUserSessions(ctx context.Context, username string, drop func(tokenHash string) error) error {
	rdb := config.GetRedisClient()
	if rdb == nil {
		return nil
	}
	key := userSessionsKey(username)
	members, err := rdb.SMembers(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	var firstErr error
	for _, tok := range members {
		if err := drop(tok); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := rdb.Del(ctx, key).Err(); err != nil {
		return err
	}
	return firstErr
}
