package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig is the whole gateway configuration. Defaults suit a local
// single-node run; every field can be overridden through PRELAY_* env vars.
type AppConfig struct {
	NodeID   string // gateway node id, participates in redis keys and NATS origin
	HTTPAddr string

	Mongo MongoConfig
	Redis RedisConfig
	Nats  NatsConfig
	JWT   JWTConfig

	// RelayTimeout bounds the MessageStore call; expiry counts as a store
	// failure so a stalled store cannot leak pending relay state.
	RelayTimeout time.Duration

	// PresenceTTL is the lifetime of the redis online marker; refreshed
	// while the connection lives.
	PresenceTTL time.Duration

	SendQueueSize  int
	FanoutWorkers  int
	FanoutQueue    int
	HistoryLimit   int64
	ShutdownWait   time.Duration
	PingInterval   time.Duration
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
}

type MongoConfig struct {
	Uri         string
	Database    string
	Username    string
	Password    string
	MaxPoolSize int
	MaxRetry    int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

type NatsConfig struct {
	Servers []string // empty disables the inter-gateway bridge
	Name    string
}

type JWTConfig struct {
	Secret []byte
	TTL    time.Duration
}

var Global = Default()

func Default() AppConfig {
	return AppConfig{
		NodeID:   "gateway_1",
		HTTPAddr: ":8080",
		Mongo: MongoConfig{
			Uri:         "mongodb://localhost:27017",
			Database:    "prelay",
			MaxPoolSize: 20,
			MaxRetry:    3,
		},
		Redis: RedisConfig{
			Addr:     "127.0.0.1:6379",
			DB:       0,
			PoolSize: 16,
		},
		Nats: NatsConfig{
			Name: "prelay-gateway",
		},
		JWT: JWTConfig{
			Secret: []byte("mN9b1f8zPq+W2xjX/45sKcVd0TfyoG+3Hp5Z8q9Rj1o="),
			TTL:    2 * time.Hour,
		},
		RelayTimeout:   5 * time.Second,
		PresenceTTL:    2 * time.Minute,
		SendQueueSize:  256,
		FanoutWorkers:  1,
		FanoutQueue:    1024,
		HistoryLimit:   100,
		ShutdownWait:   10 * time.Second,
		PingInterval:   25 * time.Second,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 1 << 16,
	}
}

// LoadEnv applies PRELAY_* environment overrides onto Global.
func LoadEnv() {
	c := &Global
	envStr("PRELAY_NODE_ID", &c.NodeID)
	envStr("PRELAY_HTTP_ADDR", &c.HTTPAddr)
	envStr("PRELAY_MONGO_URI", &c.Mongo.Uri)
	envStr("PRELAY_MONGO_DB", &c.Mongo.Database)
	envStr("PRELAY_MONGO_USER", &c.Mongo.Username)
	envStr("PRELAY_MONGO_PASS", &c.Mongo.Password)
	envStr("PRELAY_REDIS_ADDR", &c.Redis.Addr)
	envStr("PRELAY_REDIS_PASS", &c.Redis.Password)
	envInt("PRELAY_REDIS_DB", &c.Redis.DB)
	if v := os.Getenv("PRELAY_NATS_SERVERS"); v != "" {
		c.Nats.Servers = strings.Split(v, ",")
	}
	if v := os.Getenv("PRELAY_JWT_SECRET"); v != "" {
		c.JWT.Secret = []byte(v)
	}
	envDur("PRELAY_RELAY_TIMEOUT", &c.RelayTimeout)
	envDur("PRELAY_PRESENCE_TTL", &c.PresenceTTL)
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDur(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
