// Package config loads CommuteOS settings. Sources are layered: defaults,
// an optional YAML file, a .env file, then the process environment.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Cache backends.
const (
	CacheMemory   = "memory"
	CacheBadger   = "badger"
	CacheRedis    = "redis"
	CacheDynamoDB = "dynamodb"
)

// History backends.
const (
	HistoryMemory      = "memory"
	HistoryDynamoDB    = "dynamodb"
	HistorySupabase    = "supabase"
	HistoryEventBridge = "eventbridge"
	HistoryNone        = "none"
)

// Graph sources.
const (
	GraphFile  = "file"
	GraphNeo4j = "neo4j"
)

// Routing modes of the gateway.
const (
	RoutingRemote = "remote"
	RoutingLocal  = "local"
)

// Config is the complete application configuration.
type Config struct {
	Environment   Environment    `yaml:"environment" validate:"oneof=development staging production"`
	App           App            `yaml:"app"`
	API           API            `yaml:"api"`
	Routing       RoutingService `yaml:"routing_service"`
	Cache         Cache          `yaml:"cache"`
	Redis         Redis          `yaml:"redis"`
	History       History        `yaml:"history"`
	Graph         Graph          `yaml:"graph"`
	Neo4j         Neo4j          `yaml:"neo4j"`
	AWS           AWS            `yaml:"aws"`
	Supabase      Supabase       `yaml:"supabase"`
	Logging       Logging        `yaml:"logging"`
	Observability Observability  `yaml:"observability"`

	// LoadedFrom lists the sources applied, in order.
	LoadedFrom []string `yaml:"-"`
}

type App struct {
	Name    string `yaml:"name" validate:"required"`
	Version string `yaml:"version" validate:"required"`
}

// API configures the gateway listener.
type API struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	Prefix          string        `yaml:"prefix" validate:"required,startswith=/"`
	RequestTimeout  time.Duration `yaml:"request_timeout" validate:"gt=0"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
	AllowedOrigins  []string      `yaml:"allowed_origins" validate:"min=1"`
}

// RoutingService locates the routing service. In local mode the gateway
// computes routes in process and Host is ignored.
type RoutingService struct {
	Mode string `yaml:"mode" validate:"oneof=remote local"`
	Host string `yaml:"host"`
	Port int    `yaml:"port" validate:"min=1,max=65535"`
}

type Cache struct {
	Backend     string        `yaml:"backend" validate:"oneof=memory badger redis dynamodb"`
	TTL         time.Duration `yaml:"ttl" validate:"gt=0"`
	MaxItems    int           `yaml:"max_items" validate:"min=1"`
	MaxMemoryMB int64         `yaml:"max_memory_mb" validate:"min=1"`
	BadgerPath  string        `yaml:"badger_path"`
	DynamoTable string        `yaml:"dynamo_table"`
	Breaker     bool          `yaml:"breaker"`
}

type Redis struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port" validate:"min=1,max=65535"`
	DB       int    `yaml:"db" validate:"min=0"`
	Password string `yaml:"password"`
	PoolSize int    `yaml:"pool_size" validate:"min=1"`
}

type History struct {
	Backend       string `yaml:"backend" validate:"oneof=memory dynamodb supabase eventbridge none"`
	QueueSize     int    `yaml:"queue_size" validate:"min=1"`
	Workers       int    `yaml:"workers" validate:"min=1"`
	MemoryLimit   int    `yaml:"memory_limit" validate:"min=1"`
	DynamoTable   string `yaml:"dynamo_table"`
	EventBusName  string `yaml:"event_bus_name"`
	SupabaseTable string `yaml:"supabase_table"`
}

// Graph selects where the transit network comes from.
type Graph struct {
	Source string `yaml:"source" validate:"oneof=file neo4j"`
	File   string `yaml:"file"`
	Watch  bool   `yaml:"watch"`
}

type Neo4j struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type AWS struct {
	Region string `yaml:"region"`
	// Endpoint overrides service endpoints, e.g. for LocalStack.
	Endpoint string `yaml:"endpoint"`
}

type Supabase struct {
	URL string `yaml:"url"`
	Key string `yaml:"key"`
}

type Logging struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

type Observability struct {
	EnableMetrics    bool    `yaml:"enable_metrics"`
	EnableTracing    bool    `yaml:"enable_tracing"`
	OTLPEndpoint     string  `yaml:"otlp_endpoint"`
	SampleRate       float64 `yaml:"sample_rate" validate:"min=0,max=1"`
	MetricsNamespace string  `yaml:"metrics_namespace" validate:"required"`
}

// Default returns a configuration that runs a single-node deployment
// without any external service.
func Default() *Config {
	return &Config{
		Environment: Production,
		App: App{
			Name:    "CommuteOS",
			Version: "1.0.0",
		},
		API: API{
			Host:            "0.0.0.0",
			Port:            8000,
			Prefix:          "/api/v1",
			RequestTimeout:  30 * time.Second,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    45 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Routing: RoutingService{
			Mode: RoutingRemote,
			Host: "routing_service",
			Port: 8001,
		},
		Cache: Cache{
			Backend:     CacheMemory,
			TTL:         600 * time.Second,
			MaxItems:    10000,
			MaxMemoryMB: 64,
			BadgerPath:  "data/badger",
			Breaker:     true,
		},
		Redis: Redis{
			Host:     "redis",
			Port:     6379,
			PoolSize: 10,
		},
		History: History{
			Backend:       HistoryMemory,
			QueueSize:     1000,
			Workers:       2,
			MemoryLimit:   10000,
			SupabaseTable: "routes_history",
		},
		Graph: Graph{
			Source: GraphFile,
			File:   "data/graph.json",
		},
		Neo4j: Neo4j{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
		},
		AWS: AWS{
			Region: "us-east-1",
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Observability: Observability{
			EnableMetrics:    true,
			OTLPEndpoint:     "localhost:4317",
			SampleRate:       1.0,
			MetricsNamespace: "commuteos",
		},
	}
}

// IsProduction reports whether the environment is production.
func (c *Config) IsProduction() bool { return c.Environment == Production }

// IsDevelopment reports whether the environment is development.
func (c *Config) IsDevelopment() bool { return c.Environment == Development }

// Addr is the gateway listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.API.Host, strconv.Itoa(c.API.Port))
}

// RoutingAddr is the routing service listen address.
func (c *Config) RoutingAddr() string {
	return net.JoinHostPort(c.API.Host, strconv.Itoa(c.Routing.Port))
}

// RoutingServiceURL is the base URL the gateway calls in remote mode.
func (c *Config) RoutingServiceURL() string {
	return "http://" + net.JoinHostPort(c.Routing.Host, strconv.Itoa(c.Routing.Port))
}

// Validate checks field rules and the rules that span sections.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed '%s'", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return err
	}

	var errs []error
	if c.Routing.Mode == RoutingRemote && c.Routing.Host == "" {
		errs = append(errs, errors.New("routing_service.host is required in remote mode"))
	}

	switch c.Cache.Backend {
	case CacheRedis:
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("redis.host is required for the redis cache"))
		}
	case CacheBadger:
		if c.Cache.BadgerPath == "" {
			errs = append(errs, errors.New("cache.badger_path is required for the badger cache"))
		}
	case CacheDynamoDB:
		if c.Cache.DynamoTable == "" {
			errs = append(errs, errors.New("cache.dynamo_table is required for the dynamodb cache"))
		}
	}

	switch c.History.Backend {
	case HistoryDynamoDB:
		if c.History.DynamoTable == "" {
			errs = append(errs, errors.New("history.dynamo_table is required for dynamodb history"))
		}
	case HistorySupabase:
		if c.Supabase.URL == "" || c.Supabase.Key == "" {
			errs = append(errs, errors.New("supabase.url and supabase.key are required for supabase history"))
		}
	case HistoryEventBridge:
		if c.History.EventBusName == "" {
			errs = append(errs, errors.New("history.event_bus_name is required for eventbridge history"))
		}
	}

	if c.Graph.Source == GraphNeo4j && c.Neo4j.URI == "" {
		errs = append(errs, errors.New("neo4j.uri is required when the graph source is neo4j"))
	}

	if c.Observability.EnableTracing && c.Observability.OTLPEndpoint == "" {
		errs = append(errs, errors.New("observability.otlp_endpoint is required when tracing is enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
