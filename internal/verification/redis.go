package verification

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/stepflow/orchestrator/internal/apierr"
)

// RedisConnector verifies against a Redis key. The resolved query is
// one whitespace-separated command: `GET k`, `HGET k f`, `HGETALL k`,
// `EXISTS k`, `LRANGE k a b`, `SISMEMBER k m`, or `PING`.
type RedisConnector struct {
	newClient func(config map[string]string) *redis.Client
}

// NewRedisConnector builds a RedisConnector that dials a fresh client
// per call from the connector's addr/password/db config.
func NewRedisConnector() *RedisConnector {
	return &RedisConnector{newClient: dialRedis}
}

func dialRedis(config map[string]string) *redis.Client {
	db, _ := strconv.Atoi(config["db"])
	return redis.NewClient(&redis.Options{
		Addr:     config["addr"],
		Password: config["password"],
		DB:       db,
	})
}

func (c *RedisConnector) Type() string { return "redis" }

func (c *RedisConnector) Execute(ctx context.Context, config map[string]string, resolvedQuery string, queryTimeout time.Duration) (string, error) {
	tokens := strings.Fields(resolvedQuery)
	if len(tokens) == 0 {
		return "", apierr.Validation("redis verification requires a command")
	}

	client := c.newClient(config)
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	command := strings.ToUpper(tokens[0])
	args := tokens[1:]

	switch command {
	case "GET":
		if len(args) < 1 {
			return "", apierr.Validation("GET requires a key")
		}
		value, err := client.Get(ctx, args[0]).Result()
		if err == redis.Nil {
			return toJSON(map[string]interface{}{"value": nil, "type": "string", "exists": false}), nil
		}
		if err != nil {
			return "", wrapRedisErr(err)
		}
		return toJSON(map[string]interface{}{"value": value, "type": "string", "exists": true}), nil

	case "HGET":
		if len(args) < 2 {
			return "", apierr.Validation("HGET requires a key and field")
		}
		value, err := client.HGet(ctx, args[0], args[1]).Result()
		if err == redis.Nil {
			return toJSON(map[string]interface{}{"value": nil, "type": "hash", "exists": false}), nil
		}
		if err != nil {
			return "", wrapRedisErr(err)
		}
		return toJSON(map[string]interface{}{"value": value, "type": "hash", "exists": true}), nil

	case "HGETALL":
		if len(args) < 1 {
			return "", apierr.Validation("HGETALL requires a key")
		}
		value, err := client.HGetAll(ctx, args[0]).Result()
		if err != nil {
			return "", wrapRedisErr(err)
		}
		return toJSON(map[string]interface{}{"value": value, "type": "hash", "exists": len(value) > 0}), nil

	case "EXISTS":
		if len(args) < 1 {
			return "", apierr.Validation("EXISTS requires a key")
		}
		count, err := client.Exists(ctx, args[0]).Result()
		if err != nil {
			return "", wrapRedisErr(err)
		}
		return toJSON(map[string]interface{}{"exists": count > 0}), nil

	case "LRANGE":
		if len(args) < 3 {
			return "", apierr.Validation("LRANGE requires a key, start, and stop")
		}
		start, err1 := strconv.ParseInt(args[1], 10, 64)
		stop, err2 := strconv.ParseInt(args[2], 10, 64)
		if err1 != nil || err2 != nil {
			return "", apierr.Validation("LRANGE start/stop must be integers")
		}
		value, err := client.LRange(ctx, args[0], start, stop).Result()
		if err != nil {
			return "", wrapRedisErr(err)
		}
		return toJSON(map[string]interface{}{"value": value, "type": "list", "exists": len(value) > 0}), nil

	case "SISMEMBER":
		if len(args) < 2 {
			return "", apierr.Validation("SISMEMBER requires a key and member")
		}
		isMember, err := client.SIsMember(ctx, args[0], args[1]).Result()
		if err != nil {
			return "", wrapRedisErr(err)
		}
		return toJSON(map[string]interface{}{"isMember": isMember}), nil

	case "PING":
		value, err := client.Ping(ctx).Result()
		if err != nil {
			return "", wrapRedisErr(err)
		}
		return toJSON(map[string]interface{}{"value": value}), nil

	default:
		return "", apierr.Validation("unsupported redis command: " + command)
	}
}

func (c *RedisConnector) Listen(ctx context.Context, config map[string]string, resolvedQuery string) (Listener, error) {
	return &pollListener{connector: c, config: config, query: resolvedQuery}, nil
}

func wrapRedisErr(err error) error {
	if err == nil || err == redis.Nil {
		return nil
	}
	return apierr.VerificationQuery("redis", err)
}
