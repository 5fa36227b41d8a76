package extension

import "github.com/redis/go-redis/v9"

const luaHSetXX = `
local key = KEYS[1]
local field = ARGV[1]
local value = ARGV[2]
local exists = redis.call('HEXISTS', key, field)
if exists == 0 then
    return 0
end
redis.call('HSET', key, field, value)
return 1
`

const luaHPatch = `
local key = KEYS[1]
local fv = ARGV
local exists = redis.call('EXISTS', key)
if exists == 0 then
    return 0
end
redis.call('HSET', key, unpack(fv))
return 1
`

var (
	// HSetXXScript sets a hash field only when that field already exists.
	HSetXXScript = redis.NewScript(luaHSetXX)

	// HPatchScript sets a group of hash fields only when the hash already exists.
	HPatchScript = redis.NewScript(luaHPatch)
)

func scripts() []*redis.Script {
	return []*redis.Script{HSetXXScript, HPatchScript}
}
