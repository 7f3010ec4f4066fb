package main

import (
	"crypto/tls"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petabite/shiptivitas-2/domain"
	"github.com/petabite/shiptivitas-2/storage"
)

type config struct {
	Debug     bool
	Port      string
	Driver    string
	DSN       string
	RedisURL  string
	CacheTTL  time.Duration
	GapPolicy domain.GapPolicy
}

func loadConfig(getenv func(string) string) (config, error) {
	cfg := config{
		Port:     "3001",
		Driver:   storage.DriverSQLite,
		DSN:      "./clients.db",
		RedisURL: getenv("REDIS_CONNECTION_STRING"),
		CacheTTL: 30 * time.Second,
	}
	if dbg, err := strconv.ParseBool(getenv("DEBUG")); err == nil {
		cfg.Debug = dbg
	}
	if v := getenv("PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 65535 {
			return config{}, fmt.Errorf("invalid PORT %q", v)
		}
		cfg.Port = v
	}
	if v := getenv("STORAGE_DRIVER"); v != "" {
		if v != storage.DriverSQLite && v != storage.DriverPostgres {
			return config{}, fmt.Errorf("invalid STORAGE_DRIVER %q: must be %s or %s", v, storage.DriverSQLite, storage.DriverPostgres)
		}
		cfg.Driver = v
	}
	if v := getenv("STORAGE_DSN"); v != "" {
		cfg.DSN = v
	}
	if v := getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return config{}, fmt.Errorf("invalid CACHE_TTL %q", v)
		}
		cfg.CacheTTL = d
	}
	policy, err := domain.ParseGapPolicy(getenv("SWIMLANE_GAP_POLICY"))
	if err != nil {
		return config{}, fmt.Errorf("invalid SWIMLANE_GAP_POLICY: %w", err)
	}
	cfg.GapPolicy = policy
	return cfg, nil
}

// redisOptions accepts either a redis:// URL or the
// "host:port,password=...,ssl=True" form.
func redisOptions(conn string) *redis.Options {
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
