package refreshtoken

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each record in a hash with secondary index sets for
// token, user and parent lookups. Every multi-key mutation runs as a Lua
// script so it is applied atomically. Scripts build keys at run time, which
// rules out Redis Cluster.
//
//	{prefix}rt:rec:{id}       hash   record fields
//	{prefix}rt:tok:{hash}     string record id
//	{prefix}rt:user:{userID}  set    record ids
//	{prefix}rt:parent:{id}    set    ids of direct children
//	{prefix}rt:expiry         zset   record ids scored by expiry (unix ms)
//	{prefix}rt:revoked        set    revoked record ids awaiting purge
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

const insertLua = `
local function insert(rec, tok, user, parent, expiry, argv)
  if redis.call("EXISTS", tok) == 1 or redis.call("EXISTS", rec) == 1 then
    return false
  end
  redis.call("HSET", rec, unpack(argv, 4))
  redis.call("SET", tok, argv[1])
  redis.call("SADD", user, argv[1])
  if argv[3] == "1" then
    redis.call("SADD", parent, argv[1])
  end
  redis.call("ZADD", expiry, argv[2], argv[1])
  return true
end
`

// KEYS: rec, tok, user, parent, expiry
// ARGV: id, expires_ms, has_parent, field/value pairs...
var createScript = redis.NewScript(insertLua + `
if insert(KEYS[1], KEYS[2], KEYS[3], KEYS[4], KEYS[5], ARGV) then
  return 1
end
return 3
`)

// KEYS: used rec, then the successor's create keys
var rotateScript = redis.NewScript(insertLua + `
local state = redis.call("HMGET", KEYS[1], "is_used", "is_revoked")
if not state[1] then
  return 0
end
if state[1] == "1" or state[2] == "1" then
  return 2
end
if not insert(KEYS[2], KEYS[3], KEYS[4], KEYS[5], KEYS[6], ARGV) then
  return 3
end
redis.call("HSET", KEYS[1], "is_used", "1")
return 1
`)

var markUsedScript = redis.NewScript(`
local state = redis.call("HMGET", KEYS[1], "is_used", "is_revoked")
if not state[1] then
  return 0
end
if state[1] == "1" or state[2] == "1" then
  return 2
end
redis.call("HSET", KEYS[1], "is_used", "1")
return 1
`)

// KEYS: revoked set, then id sets to union (may be empty)
// ARGV: prefix, explicit ids...
var revokeScript = redis.NewScript(`
local ids = {}
if #KEYS > 1 then
  ids = redis.call("SUNION", unpack(KEYS, 2))
end
for i = 2, #ARGV do
  table.insert(ids, ARGV[i])
end
local n = 0
for _, id in ipairs(ids) do
  local rec = ARGV[1] .. "rt:rec:" .. id
  if redis.call("HGET", rec, "is_revoked") == "0" then
    redis.call("HSET", rec, "is_revoked", "1")
    redis.call("SADD", KEYS[1], id)
    n = n + 1
  end
end
return n
`)

// KEYS: expiry zset, revoked set
// ARGV: prefix, now_ms
var purgeScript = redis.NewScript(`
local seen = {}
local n = 0
local function purge(id)
  if seen[id] then
    return
  end
  seen[id] = true
  local rec = ARGV[1] .. "rt:rec:" .. id
  local f = redis.call("HMGET", rec, "token_hash", "user_id", "parent")
  if f[1] then
    redis.call("DEL", ARGV[1] .. "rt:tok:" .. f[1])
  end
  if f[2] then
    redis.call("SREM", ARGV[1] .. "rt:user:" .. f[2], id)
  end
  if f[3] then
    redis.call("SREM", ARGV[1] .. "rt:parent:" .. f[3], id)
  end
  n = n + redis.call("DEL", rec)
  redis.call("ZREM", KEYS[1], id)
  redis.call("SREM", KEYS[2], id)
end
for _, id in ipairs(redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", "(" .. ARGV[2])) do
  purge(id)
end
for _, id in ipairs(redis.call("SMEMBERS", KEYS[2])) do
  purge(id)
end
return n
`)

func (s *RedisStore) recKey(id string) string { return s.prefix + "rt:rec:" + id }
func (s *RedisStore) tokKey(hash string) string { return s.prefix + "rt:tok:" + hash }
func (s *RedisStore) userKey(userID string) string { return s.prefix + "rt:user:" + userID }
func (s *RedisStore) parentKey(id string) string { return s.prefix + "rt:parent:" + id }
func (s *RedisStore) expiryKey() string { return s.prefix + "rt:expiry" }
func (s *RedisStore) revokedKey() string { return s.prefix + "rt:revoked" }

func (s *RedisStore) insertKeys(token *RefreshToken) []string {
	parent := s.parentKey("")
	if token.ParentToken != nil {
		parent = s.parentKey(*token.ParentToken)
	}
	return []string{
		s.recKey(token.ID),
		s.tokKey(token.TokenHash),
		s.userKey(token.UserID),
		parent,
		s.expiryKey(),
	}
}

func insertArgs(token *RefreshToken) []any {
	hasParent := "0"
	if token.ParentToken != nil {
		hasParent = "1"
	}
	args := []any{token.ID, token.ExpiresAt.UnixMilli(), hasParent}
	return append(args, encodeRecord(token)...)
}

func (s *RedisStore) Create(ctx context.Context, token *RefreshToken) error {
	code, err := createScript.Run(ctx, s.client, s.insertKeys(token), insertArgs(token)...).Int()
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	if code == 3 {
		return ErrTokenCollision
	}
	return nil
}

func (s *RedisStore) FindByTokenHash(ctx context.Context, hash string) (*RefreshToken, error) {
	id, err := s.client.Get(ctx, s.tokKey(hash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("redis error: %w", err)
	}
	return s.FindByID(ctx, id)
}

func (s *RedisStore) FindByID(ctx context.Context, id string) (*RefreshToken, error) {
	fields, err := s.client.HGetAll(ctx, s.recKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrRecordNotFound
	}
	return decodeRecord(fields)
}

func (s *RedisStore) FindByUser(ctx context.Context, userID string) ([]RefreshToken, error) {
	return s.findInSet(ctx, s.userKey(userID))
}

func (s *RedisStore) FindByParent(ctx context.Context, parentID string) ([]RefreshToken, error) {
	return s.findInSet(ctx, s.parentKey(parentID))
}

func (s *RedisStore) findInSet(ctx context.Context, key string) ([]RefreshToken, error) {
	ids, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.recKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}

	recs := make([]RefreshToken, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		rec, err := decodeRecord(fields)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, nil
}

func (s *RedisStore) MarkUsed(ctx context.Context, id string) error {
	code, err := markUsedScript.Run(ctx, s.client, []string{s.recKey(id)}).Int()
	if err != nil {
		return fmt.Errorf("failed to mark refresh token used: %w", err)
	}
	if code != 1 {
		return ErrConcurrentUse
	}
	return nil
}

func (s *RedisStore) Rotate(ctx context.Context, usedID string, successor *RefreshToken) error {
	keys := append([]string{s.recKey(usedID)}, s.insertKeys(successor)...)
	code, err := rotateScript.Run(ctx, s.client, keys, insertArgs(successor)...).Int()
	if err != nil {
		return fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	switch code {
	case 1:
		return nil
	case 3:
		return ErrTokenCollision
	default:
		return ErrConcurrentUse
	}
}

func (s *RedisStore) RevokeByTokenHash(ctx context.Context, hash string) (int64, error) {
	id, err := s.client.Get(ctx, s.tokKey(hash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis error: %w", err)
	}
	return s.revoke(ctx, nil, id)
}

func (s *RedisStore) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	return s.revoke(ctx, []string{s.userKey(userID)})
}

func (s *RedisStore) RevokeFamily(ctx context.Context, userID string, parentID *string, selfID string) (int64, error) {
	sets := []string{s.userKey(userID), s.parentKey(selfID)}
	if parentID != nil {
		sets = append(sets, s.parentKey(*parentID))
	}
	return s.revoke(ctx, sets)
}

func (s *RedisStore) revoke(ctx context.Context, sets []string, ids ...string) (int64, error) {
	keys := append([]string{s.revokedKey()}, sets...)
	args := []any{s.prefix}
	for _, id := range ids {
		args = append(args, id)
	}
	n, err := revokeScript.Run(ctx, s.client, keys, args...).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	return n, nil
}

func (s *RedisStore) DeleteExpiredOrRevoked(ctx context.Context, now time.Time) (int64, error) {
	keys := []string{s.expiryKey(), s.revokedKey()}
	n, err := purgeScript.Run(ctx, s.client, keys, s.prefix, now.UnixMilli()).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to delete refresh tokens: %w", err)
	}
	return n, nil
}

func encodeRecord(t *RefreshToken) []any {
	fields := []any{
		"id", t.ID,
		"user_id", t.UserID,
		"token_hash", t.TokenHash,
		"kind", string(t.Kind),
		"expires_at", t.ExpiresAt.UnixMilli(),
		"created_at", t.CreatedAt.UnixMilli(),
		"is_used", boolField(t.IsUsed),
		"is_revoked", boolField(t.IsRevoked),
		"rotation_count", t.RotationCount,
	}
	if ip, ok := t.IPAddress.Get(); ok {
		fields = append(fields, "ip", ip)
	}
	if ua, ok := t.UserAgent.Get(); ok {
		fields = append(fields, "ua", ua)
	}
	if t.ParentToken != nil {
		fields = append(fields, "parent", *t.ParentToken)
	}
	return fields
}

func decodeRecord(fields map[string]string) (*RefreshToken, error) {
	expires, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt refresh token record %q: %w", fields["id"], err)
	}
	created, _ := strconv.ParseInt(fields["created_at"], 10, 64)
	rotations, _ := strconv.Atoi(fields["rotation_count"])

	rec := &RefreshToken{
		ID:            fields["id"],
		UserID:        fields["user_id"],
		TokenHash:     fields["token_hash"],
		Kind:          Kind(fields["kind"]),
		IPAddress:     Some(fields["ip"]),
		UserAgent:     Some(fields["ua"]),
		ExpiresAt:     time.UnixMilli(expires).UTC(),
		CreatedAt:     time.UnixMilli(created).UTC(),
		IsUsed:        fields["is_used"] == "1",
		IsRevoked:     fields["is_revoked"] == "1",
		RotationCount: rotations,
	}
	if parent, ok := fields["parent"]; ok {
		rec.ParentToken = &parent
	}
	return rec, nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
