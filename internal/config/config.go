package config

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct{ v *viper.Viper }

// New reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func New() *Config {
	_ = godotenv.Load()
	vv := viper.New()
	vv.AutomaticEnv()
	return &Config{v: vv}
}

// GetDsn resolves the final DSN using env vars
func (c *Config) GetDsn() (*url.URL, error) {
	source := c.v.GetString("DSN")
	if source == "" {
		user := c.v.GetString("PGUSER")
		if user == "" {
			user = c.v.GetString("USER")
		}
		if user == "" {
			user = "postgres"
		}

		dbName := c.v.GetString("PGDATABASE")
		if dbName == "" {
			dbName = "hackathonhub"
		}

		host := c.v.GetString("PGHOST")
		if host == "" {
			host = "localhost"
		}

		port := c.v.GetString("PGPORT")
		hasPortEnv := port != ""
		if !hasPortEnv || port == "" {
			port = "5432"
		}

		if strings.HasPrefix(host, "/") {
			socketDir := host

			// If PGHOST points to a file, derive directory and only infer port when PGPORT isn't set.
			if fi, err := os.Stat(host); err == nil && !fi.IsDir() {
				socketDir = filepath.Dir(host)
				if !hasPortEnv {
					base := filepath.Base(host)
					// Expected filename pattern: ".s.PGSQL.<port>"
					if strings.HasPrefix(base, ".s.PGSQL.") {
						if inferred := strings.TrimPrefix(base, ".s.PGSQL."); inferred != "" {
							if _, err := strconv.Atoi(inferred); err == nil {
								port = inferred
							}
						}
					}
				}
			}

			q := url.Values{}
			q.Set("host", socketDir)
			q.Set("port", port)
			q.Set("sslmode", "disable")
			source = "postgres://" + user + "@/" + dbName + "?" + q.Encode()
		} else {
			source = "postgres://" + user + "@" + host + ":" + port + "/" + dbName + "?sslmode=disable"
		}
	}

	u, err := url.Parse(source)
	if err != nil || u.Scheme == "" {
		return nil, errors.New("invalid DSN: must be in format driver://dataSourceName")
	}
	return u, nil
}

// GetAddr returns ADDR, or HOST:PORT defaulting to localhost:8080.
func (c *Config) GetAddr() string {
	if addr := c.v.GetString("ADDR"); addr != "" {
		return addr
	}
	port := c.v.GetString("PORT")
	if port == "" {
		port = "8080"
	}
	host := c.v.GetString("HOST")
	if host == "" {
		host = "localhost"
	}
	return host + ":" + port
}

// GetServiceName returns the service name reported to tracing backends.
// Reads OTEL_SERVICE_NAME; defaults to "hackathonhub".
func (c *Config) GetServiceName() string {
	if s := c.v.GetString("OTEL_SERVICE_NAME"); s != "" {
		return s
	}
	return "hackathonhub"
}

// GetTelemetryEnabled reports whether an OTLP endpoint is configured.
func (c *Config) GetTelemetryEnabled() bool {
	return c.v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT") != "" ||
		c.v.GetString("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT") != ""
}

func (c *Config) duration(key string, def time.Duration) time.Duration {
	if v := c.v.GetString(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func (c *Config) positiveInt(key string, def int) int {
	if n := c.v.GetInt(key); n > 0 {
		return n
	}
	return def
}

// GetFetchTimeout bounds a single source fetch. FETCH_TIMEOUT, default 30s.
func (c *Config) GetFetchTimeout() time.Duration { return c.duration("FETCH_TIMEOUT", 30*time.Second) }

// GetEnrichmentTimeout bounds a single enrichment call. ENRICHMENT_TIMEOUT, default 30s.
func (c *Config) GetEnrichmentTimeout() time.Duration {
	return c.duration("ENRICHMENT_TIMEOUT", 30*time.Second)
}

// GetEnrichmentConcurrency caps parallel enrichment calls per parse.
// ENRICHMENT_CONCURRENCY, default 4.
func (c *Config) GetEnrichmentConcurrency() int { return c.positiveInt("ENRICHMENT_CONCURRENCY", 4) }

// GetEnrichmentRPM is the enrichment request budget per minute.
// ENRICHMENT_RPM, default 60.
func (c *Config) GetEnrichmentRPM() int { return c.positiveInt("ENRICHMENT_RPM", 60) }

// GetEnrichmentBackend selects the enrichment backend: openai, gemini or none.
// Without ENRICHMENT_BACKEND the first backend with an API key wins.
func (c *Config) GetEnrichmentBackend() string {
	if b := strings.ToLower(c.v.GetString("ENRICHMENT_BACKEND")); b != "" {
		return b
	}
	switch {
	case c.GetOpenAIAPIKey() != "":
		return "openai"
	case c.GetGeminiAPIKey() != "":
		return "gemini"
	default:
		return "none"
	}
}

// GetOpenAIBaseURL returns the OpenAI API base URL from env var OPENAI_BASE_URL.
// Defaults to "https://api.openai.com/v1".
func (c *Config) GetOpenAIBaseURL() string {
	if u := c.v.GetString("OPENAI_BASE_URL"); u != "" {
		return u
	}
	return "https://api.openai.com/v1"
}

// GetOpenAIAPIKey returns the OpenAI API key from env var OPENAI_API_KEY.
func (c *Config) GetOpenAIAPIKey() string { return c.v.GetString("OPENAI_API_KEY") }

// GetChatModel returns the completion model from CHAT_MODEL.
func (c *Config) GetChatModel() string {
	if m := c.v.GetString("CHAT_MODEL"); m != "" {
		return m
	}
	return "gpt-4o-mini"
}

// GetEmbeddingModel returns the OpenAI embedding model from env var EMBEDDING_MODEL.
func (c *Config) GetEmbeddingModel() string { return c.v.GetString("EMBEDDING_MODEL") }

// GetEmbeddingsTTL returns how long a stored embedding stays fresh. EMBEDDINGS_TTL, default 24h.
func (c *Config) GetEmbeddingsTTL() time.Duration { return c.duration("EMBEDDINGS_TTL", 24*time.Hour) }

func (c *Config) GetGeminiAPIKey() string { return c.v.GetString("GEMINI_API_KEY") }

func (c *Config) GetGeminiModel() string {
	if m := c.v.GetString("GEMINI_MODEL"); m != "" {
		return m
	}
	return "gemini-2.5-flash"
}

// GetScheduleInterval returns the period between scheduled runs. SCHEDULE_INTERVAL, default 6h.
func (c *Config) GetScheduleInterval() time.Duration {
	return c.duration("SCHEDULE_INTERVAL", 6*time.Hour)
}

// GetSourceConcurrency caps how many sources are fetched at once. SOURCE_CONCURRENCY, default 3.
func (c *Config) GetSourceConcurrency() int { return c.positiveInt("SOURCE_CONCURRENCY", 3) }

// GetCORSOrigins returns CORS_ORIGINS split on commas; defaults to the local frontend.
func (c *Config) GetCORSOrigins() []string {
	raw := c.v.GetString("CORS_ORIGINS")
	if raw == "" {
		return []string{"http://localhost:3000"}
	}
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// GetLogFormat returns "json" or "text" (default) from LOG_FORMAT.
func (c *Config) GetLogFormat() string {
	if strings.ToLower(c.v.GetString("LOG_FORMAT")) == "json" {
		return "json"
	}
	return "text"
}

func (c *Config) Set(key string, value any) { c.v.Set(key, value) }

// GetLogLevel returns the log level from env var LOG_LEVEL mapped to slog.Level.
// Recognized values: debug, info (default), warn|warning, error.
func (c *Config) GetLogLevel() slog.Level {
	switch strings.ToLower(c.v.GetString("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// OnLogLevelChange calls fn with the slog.Level whenever it changes.
// The initial call is made immediately.
func (c *Config) OnLogLevelChange(fn func(slog.Level)) {
	apply := func() { fn(c.GetLogLevel()) }
	apply()
	c.v.OnConfigChange(func(e fsnotify.Event) { apply() })
}

// BindFlag makes a command-line flag override the environment key.
func (c *Config) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return nil
	}
	return c.v.BindPFlag(key, flag)
}

// Watch reloads the config file named by CONFIG_FILE on change, which in
// turn fires OnLogLevelChange callbacks. It is a no-op without CONFIG_FILE.
// The watch lasts for the life of the process.
func (c *Config) Watch() error {
	file := c.v.GetString("CONFIG_FILE")
	if file == "" {
		return nil
	}
	c.v.SetConfigFile(file)
	if err := c.v.ReadInConfig(); err != nil {
		return err
	}
	c.v.WatchConfig()
	return nil
}
