package redis

import goredis "github.com/redis/go-redis/v9"

// boundedPushScript atomically enforces a channel's capacity before
// pushing: KEYS[1] is the list key, ARGV[1] the payload, ARGV[2] the
// capacity, ARGV[3] the message TTL in seconds. Returns 1 if the payload
// was pushed, 0 if the channel was full.
var boundedPushScript = goredis.NewScript(`
local len = redis.call('LLEN', KEYS[1])
if len >= tonumber(ARGV[2]) then
	return 0
end
redis.call('RPUSH', KEYS[1], ARGV[1])
redis.call('EXPIRE', KEYS[1], ARGV[3])
return 1
`)

// groupMembersScript returns every non-stale member of a group and reaps
// stale memberships along the way. KEYS[1] is the group's sorted-set key.
// ARGV[1] is the cutoff unix timestamp; members scored below it are stale.
//
// Membership is resolved on the group's own shard in one round trip, but
// delivery itself happens separately per the member's own shard (see
// groupFanoutScript), since a group's members can live on any shard.
var groupMembersScript = goredis.NewScript(`
local cutoff = ARGV[1]
local fresh = redis.call('ZRANGEBYSCORE', KEYS[1], cutoff, '+inf')
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', '(' .. cutoff)
return fresh
`)

// groupFanoutScript bounded-pushes a payload onto every key in KEYS,
// independently of one another: one full member list never blocks delivery
// to the rest. KEYS are list keys already resolved to the shard this script
// runs on. ARGV: [1] payload, [2] default capacity, [3] message TTL
// seconds. Returns the number of members the payload was delivered to.
//
// Capacity overrides (channel_capacity globs) are not evaluated here: they
// require pattern matching this script does not perform, so fan-out always
// applies the layer's default capacity. Direct Send still honors overrides
// (see DESIGN.md, scripts.go entry).
var groupFanoutScript = goredis.NewScript(`
local delivered = 0
for _, key in ipairs(KEYS) do
	local len = redis.call('LLEN', key)
	if len < tonumber(ARGV[2]) then
		redis.call('RPUSH', key, ARGV[1])
		redis.call('EXPIRE', key, ARGV[3])
		delivered = delivered + 1
	end
end
return delivered
`)
