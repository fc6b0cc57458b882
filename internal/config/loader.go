package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Loader applies configuration sources in order of increasing priority.
type Loader struct {
	configFile string
	envFile    string
	lookupEnv  func(string) (string, bool)
}

// LoaderOption customizes a Loader.
type LoaderOption func(*Loader)

// WithEnvFile sets the .env file consulted after the YAML file. A missing
// file is not an error.
func WithEnvFile(path string) LoaderOption {
	return func(l *Loader) { l.envFile = path }
}

// WithLookup replaces os.LookupEnv, mainly for tests.
func WithLookup(lookup func(string) (string, bool)) LoaderOption {
	return func(l *Loader) { l.lookupEnv = lookup }
}

// NewLoader creates a loader. configFile may be empty.
func NewLoader(configFile string, opts ...LoaderOption) *Loader {
	l := &Loader{
		configFile: configFile,
		envFile:    ".env",
		lookupEnv:  os.LookupEnv,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load builds and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()
	cfg.LoadedFrom = append(cfg.LoadedFrom, "defaults")

	if l.configFile != "" {
		data, err := os.ReadFile(l.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", l.configFile, err)
		}
		cfg.LoadedFrom = append(cfg.LoadedFrom, l.configFile)
	}

	// Process environment wins over .env entries.
	dotenv := map[string]string{}
	if l.envFile != "" {
		values, err := godotenv.Read(l.envFile)
		switch {
		case err == nil:
			dotenv = values
			cfg.LoadedFrom = append(cfg.LoadedFrom, l.envFile)
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to parse %s: %w", l.envFile, err)
		}
	}
	lookup := func(key string) (string, bool) {
		if v, ok := l.lookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	cfg.LoadedFrom = append(cfg.LoadedFrom, "environment")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load loads configuration from configFile (optional), .env and the
// process environment.
func Load(configFile string) (*Config, error) {
	return NewLoader(configFile).Load()
}

// envReader collects parse failures so they are reported together.
type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *envReader) get(key string) (string, bool) {
	v, ok := r.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r *envReader) str(key string, dst *string) {
	if v, ok := r.get(key); ok {
		*dst = v
	}
}

func (r *envReader) lower(key string, dst *string) {
	if v, ok := r.get(key); ok {
		*dst = strings.ToLower(v)
	}
}

func (r *envReader) integer(key string, dst *int) {
	if v, ok := r.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (r *envReader) integer64(key string, dst *int64) {
	if v, ok := r.get(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (r *envReader) boolean(key string, dst *bool) {
	if v, ok := r.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}
}

func (r *envReader) float(key string, dst *float64) {
	if v, ok := r.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = f
	}
}

// seconds accepts a bare number of seconds or a Go duration string.
func (r *envReader) seconds(key string, dst *time.Duration) {
	if v, ok := r.get(key); ok {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = time.Duration(n * float64(time.Second))
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: expected seconds or a duration, got %q", key, v))
			return
		}
		*dst = d
	}
}

func (r *envReader) list(key string, dst *[]string) {
	if v, ok := r.get(key); ok {
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*dst = out
	}
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	r := &envReader{lookup: lookup}

	var env string
	r.lower("ENVIRONMENT", &env)
	if env != "" {
		cfg.Environment = Environment(env)
	}

	r.str("APP_NAME", &cfg.App.Name)
	r.str("APP_VERSION", &cfg.App.Version)

	r.str("API_HOST", &cfg.API.Host)
	r.integer("API_PORT", &cfg.API.Port)
	r.str("API_PREFIX", &cfg.API.Prefix)
	r.seconds("REQUEST_TIMEOUT", &cfg.API.RequestTimeout)
	r.seconds("SHUTDOWN_TIMEOUT", &cfg.API.ShutdownTimeout)
	r.list("CORS_ORIGINS", &cfg.API.AllowedOrigins)

	r.lower("ROUTING_MODE", &cfg.Routing.Mode)
	r.str("ROUTING_SERVICE_HOST", &cfg.Routing.Host)
	r.integer("ROUTING_SERVICE_PORT", &cfg.Routing.Port)

	r.lower("CACHE_BACKEND", &cfg.Cache.Backend)
	r.seconds("CACHE_TTL", &cfg.Cache.TTL)
	r.integer("CACHE_MAX_ITEMS", &cfg.Cache.MaxItems)
	r.integer64("CACHE_MAX_MEMORY_MB", &cfg.Cache.MaxMemoryMB)
	r.str("BADGER_PATH", &cfg.Cache.BadgerPath)
	r.str("CACHE_TABLE", &cfg.Cache.DynamoTable)
	r.boolean("CACHE_BREAKER", &cfg.Cache.Breaker)

	r.str("REDIS_HOST", &cfg.Redis.Host)
	r.integer("REDIS_PORT", &cfg.Redis.Port)
	r.integer("REDIS_DB", &cfg.Redis.DB)
	r.str("REDIS_PASSWORD", &cfg.Redis.Password)
	r.integer("REDIS_POOL_SIZE", &cfg.Redis.PoolSize)

	r.lower("HISTORY_BACKEND", &cfg.History.Backend)
	r.integer("HISTORY_QUEUE_SIZE", &cfg.History.QueueSize)
	r.integer("HISTORY_WORKERS", &cfg.History.Workers)
	r.str("HISTORY_TABLE", &cfg.History.DynamoTable)
	r.str("EVENT_BUS_NAME", &cfg.History.EventBusName)
	r.str("SUPABASE_TABLE", &cfg.History.SupabaseTable)

	r.lower("GRAPH_SOURCE", &cfg.Graph.Source)
	r.str("GRAPH_FILE", &cfg.Graph.File)
	r.boolean("GRAPH_WATCH", &cfg.Graph.Watch)

	r.str("NEO4J_URI", &cfg.Neo4j.URI)
	r.str("NEO4J_USER", &cfg.Neo4j.Username)
	r.str("NEO4J_PASSWORD", &cfg.Neo4j.Password)
	r.str("NEO4J_DATABASE", &cfg.Neo4j.Database)

	r.str("AWS_REGION", &cfg.AWS.Region)
	r.str("AWS_ENDPOINT_URL", &cfg.AWS.Endpoint)

	r.str("SUPABASE_URL", &cfg.Supabase.URL)
	r.str("SUPABASE_KEY", &cfg.Supabase.Key)

	r.lower("LOG_LEVEL", &cfg.Logging.Level)
	r.lower("LOG_FORMAT", &cfg.Logging.Format)
	if cfg.Logging.Level == "warning" {
		cfg.Logging.Level = "warn"
	}

	r.boolean("ENABLE_METRICS", &cfg.Observability.EnableMetrics)
	r.boolean("ENABLE_TRACING", &cfg.Observability.EnableTracing)
	r.str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Observability.OTLPEndpoint)
	r.float("TRACE_SAMPLE_RATE", &cfg.Observability.SampleRate)

	if len(r.errs) > 0 {
		return fmt.Errorf("invalid environment: %w", errors.Join(r.errs...))
	}
	return nil
}
