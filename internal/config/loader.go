package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies OBSTREAM_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known OBSTREAM_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Pipeline ──
	setInt(&cfg.Pipeline.QueueSize, "OBSTREAM_PIPELINE_QUEUE_SIZE")
	setInt(&cfg.Pipeline.ConsumerQueueSize, "OBSTREAM_PIPELINE_CONSUMER_QUEUE_SIZE")
	setInt(&cfg.Pipeline.BatchSize, "OBSTREAM_PIPELINE_BATCH_SIZE")
	setDuration(&cfg.Pipeline.BatchMaxWait, "OBSTREAM_PIPELINE_BATCH_MAX_WAIT")

	// ── QuestDB ──
	setBool(&cfg.QuestDB.Enabled, "OBSTREAM_QUESTDB_ENABLED")
	setStr(&cfg.QuestDB.Conf, "OBSTREAM_QUESTDB_CONF")
	setStr(&cfg.QuestDB.PgDSN, "OBSTREAM_QUESTDB_PG_DSN")
	setStr(&cfg.QuestDB.Table, "OBSTREAM_QUESTDB_TABLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "OBSTREAM_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Dir, "OBSTREAM_ARCHIVE_DIR")
	setInt64(&cfg.Archive.RotateBytes, "OBSTREAM_ARCHIVE_ROTATE_BYTES")
	setDuration(&cfg.Archive.RotateInterval, "OBSTREAM_ARCHIVE_ROTATE_INTERVAL")
	setBool(&cfg.Archive.Upload, "OBSTREAM_ARCHIVE_UPLOAD")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "OBSTREAM_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "OBSTREAM_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "OBSTREAM_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "OBSTREAM_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "OBSTREAM_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "OBSTREAM_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "OBSTREAM_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.QuoteTTL, "OBSTREAM_REDIS_QUOTE_TTL")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "OBSTREAM_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "OBSTREAM_S3_REGION")
	setStr(&cfg.S3.Bucket, "OBSTREAM_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "OBSTREAM_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "OBSTREAM_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "OBSTREAM_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "OBSTREAM_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.KeyPrefix, "OBSTREAM_S3_KEY_PREFIX")

	// ── Venues ──
	// OBSTREAM_VENUES, when set, is the comma-separated whitelist of venues to
	// enable; every other venue is disabled.
	if v := os.Getenv("OBSTREAM_VENUES"); v != "" {
		enabled := make(map[string]bool)
		for _, name := range strings.Split(v, ",") {
			name = strings.TrimSpace(strings.ToLower(name))
			if name != "" {
				enabled[name] = true
			}
		}
		for name, vc := range cfg.Venues {
			vc.Enabled = enabled[name]
			cfg.Venues[name] = vc
		}
	}

	// ── Top-level ──
	setStr(&cfg.Mode, "OBSTREAM_MODE")
	setStr(&cfg.LogLevel, "OBSTREAM_LOG_LEVEL")
	setStr(&cfg.Instance, "OBSTREAM_INSTANCE")
	setInt(&cfg.Depth, "OBSTREAM_DEPTH")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
