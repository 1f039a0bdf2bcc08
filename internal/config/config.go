package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	Backend    string // "file" | "redis"
	DataFile   string // YAML file used by the file backend
	PolicyFile string // casbin CSV policy (optional, empty = console/op only)
	PageSize   int    // servers per "ls" page

	PollInterval time.Duration // status poll period (0 = poller disabled)
	PollTimeout  time.Duration // per-probe timeout

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict access to specific IP (e.g. "1.2.3.4, 5.6.7.8")
	TrustProxy   bool     // true => trust X-Forwarded-For headers
	RateBurst    int      // POST /servers bucket size per client IP
	RatePerMin   int      // POST /servers refill per client IP per minute
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("SERVERLIST_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("SERVERLIST_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("SERVERLIST_LOG_LEVEL", "info"),
		PrettyLog: mustBool("SERVERLIST_PRETTY_LOG", true),

		// Registry
		Backend:    strings.ToLower(getenv("SERVERLIST_BACKEND", BackendFile)),
		DataFile:   getenv("SERVERLIST_DATA_FILE", "/app/data/config.yml"),
		PolicyFile: getenv("SERVERLIST_POLICY_FILE", ""),
		PageSize:   getenvInt("SERVERLIST_PAGE_SIZE", 10),

		// Status poller
		PollInterval: mustDuration("SERVERLIST_POLL_INTERVAL", time.Minute),
		PollTimeout:  mustDuration("SERVERLIST_POLL_TIMEOUT", 2*time.Second),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("SERVERLIST_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("SERVERLIST_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("SERVERLIST_TRUST_PROXY", false),
		RateBurst:    getenvInt("SERVERLIST_RATE_BURST", 20),
		RatePerMin:   getenvInt("SERVERLIST_RATE_PER_MIN", 60),
	}

	switch cfg.Backend {
	case BackendFile:
	case BackendRedis:
		loadRedis(cfg)
	default:
		panic(fmt.Sprintf("❌ FATAL: SERVERLIST_BACKEND must be %q or %q, got %q", BackendFile, BackendRedis, cfg.Backend))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// loadRedis reads the settings only the redis backend needs.
func loadRedis(cfg *Config) {
	cfg.RedisAddr = requireEnv("SERVERLIST_REDIS_ADDR")
	cfg.RedisUser = getenv("SERVERLIST_REDIS_USERNAME", "default")
	cfg.RedisPasswordRequired = mustBool("SERVERLIST_REDIS_PASSWORD_REQUIRED", true)
	cfg.RedisPassword = getenv("SERVERLIST_REDIS_PASSWORD", "")
	cfg.RedisDB = requireEnvInt("SERVERLIST_REDIS_DB")
	cfg.RedisDT = mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second)
	cfg.RedisRT = mustDuration("REDIS_READ_TIMEOUT", 3*time.Second)
	cfg.RedisWT = mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second)
	cfg.RedisMaxWait = mustDuration("REDIS_MAX_WAIT", 10*time.Second)
	cfg.RedisPingTimeout = mustDuration("REDIS_PING_TIMEOUT", 5*time.Second)
	cfg.RedisPoolSize = getenvInt("REDIS_POOL_SIZE", 10)
	cfg.RedisConnectTimeout = mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second)
	cfg.RedisRetryInterval = mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second)
	cfg.RedisWarnThreshold = getenvInt("REDIS_WARN_THRESHOLD", 3)

	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: SERVERLIST_REDIS_PASSWORD is required when SERVERLIST_REDIS_PASSWORD_REQUIRED=true")
	}
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func requireEnvInt(key string) int {
	v := requireEnv(key)
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
	}
	return i
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
