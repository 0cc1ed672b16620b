// backend/internal/config/config.go
package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix marks the environment variables read into the config.
// QUIZZEMS_DATABASE__HOST sets database.host.
const EnvPrefix = "QUIZZEMS_"

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Redis      RedisConfig      `koanf:"redis"`
	Auth       AuthConfig       `koanf:"auth"`
	Quiz       QuizConfig       `koanf:"quiz"`
	Collection CollectionConfig `koanf:"collection"`
	Score      ScoreConfig      `koanf:"score"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	AllowedOrigins  []string      `koanf:"allowed_origins" validate:"required,min=1"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

type DatabaseConfig struct {
	Driver   string `koanf:"driver" validate:"oneof=postgres sqlite"`
	Host     string `koanf:"host" validate:"required_if=Driver postgres"`
	Port     string `koanf:"port" validate:"required_if=Driver postgres"`
	User     string `koanf:"user" validate:"required_if=Driver postgres"`
	Password string `koanf:"password"`
	Name     string `koanf:"name" validate:"required_if=Driver postgres"`
	Path     string `koanf:"path"`
	Verbose  bool   `koanf:"verbose"`
}

type RedisConfig struct {
	// An empty address runs without a cache.
	Addr string `koanf:"addr"`
}

type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret" validate:"required,min=8"`
}

type QuizConfig struct {
	Threshold     float64       `koanf:"threshold" validate:"gt=0,lte=1"`
	BatchWindow   time.Duration `koanf:"batch_window" validate:"gte=0"`
	ReportTimeout time.Duration `koanf:"report_timeout" validate:"gt=0"`
	// IdleTimeout evicts sessions nobody touched for this long; zero keeps
	// them until deleted.
	IdleTimeout time.Duration `koanf:"idle_timeout" validate:"gte=0"`
}

type CollectionConfig struct {
	// Source picks where sessions load collections from.
	Source                string        `koanf:"source" validate:"oneof=db http sheets"`
	APIURL                string        `koanf:"api_url" validate:"required_if=Source http"`
	SheetsCredentialsFile string        `koanf:"sheets_credentials_file" validate:"required_if=Source sheets"`
	SheetsRange           string        `koanf:"sheets_range"`
	CacheTTL              time.Duration `koanf:"cache_ttl" validate:"gte=0"`
}

type ScoreConfig struct {
	// Reporter picks where completed quizzes go.
	Reporter string `koanf:"reporter" validate:"oneof=db http"`
	APIURL   string `koanf:"api_url" validate:"required_if=Reporter http"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			AllowedOrigins:  []string{"http://localhost:3000"},
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "postgres",
			Host:   "localhost",
			Port:   "5432",
			User:   "postgres",
			Name:   "quizzems",
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Quiz: QuizConfig{
			Threshold:     1.0,
			BatchWindow:   50 * time.Millisecond,
			ReportTimeout: 5 * time.Second,
			IdleTimeout:   2 * time.Hour,
		},
		Collection: CollectionConfig{
			Source:      "db",
			SheetsRange: "Sheet1!B:C",
			CacheTTL:    10 * time.Minute,
		},
		Score: ScoreConfig{Reporter: "db"},
	}
}

// legacyEnv maps the plain variable names of older deployments onto config
// keys.
var legacyEnv = map[string]string{
	"DB_HOST":         "database.host",
	"DB_PORT":         "database.port",
	"DB_USER":         "database.user",
	"DB_PASSWORD":     "database.password",
	"DB_NAME":         "database.name",
	"REDIS_ADDR":      "redis.addr",
	"JWT_SECRET":      "auth.jwt_secret",
	"SERVER_ADDR":     "server.addr",
	"ALLOWED_ORIGINS": "server.allowed_origins",
}

// RegisterFlags adds the command line overrides to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML config file")
	fs.String("server.addr", "", "listen address")
	fs.String("database.driver", "", "database driver (postgres or sqlite)")
	fs.String("database.path", "", "sqlite database file")
	fs.String("redis.addr", "", "redis address, empty to disable caching")
	fs.Float64("quiz.threshold", 0, "answer similarity threshold in (0, 1]")
	fs.String("collection.source", "", "collection source (db, http or sheets)")
	fs.String("score.reporter", "", "score reporter (db or http)")
}

// Load layers defaults, the YAML file, the environment and flags, in that
// order. Empty environment variables are ignored. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	path := ""
	if fs != nil {
		path, _ = fs.GetString("config")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
		log.Printf("Loaded config file %s", path)
	}

	if err := k.Load(env.ProviderWithValue("", ".", legacyEnvKey), nil); err != nil {
		return nil, fmt.Errorf("load legacy env: %w", err)
	}
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", prefixedEnvKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	if fs != nil {
		if err := k.Load(posflag.Provider(fs, ".", nil), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}
	k.Delete("config")

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func legacyEnvKey(key, value string) (string, interface{}) {
	mapped, ok := legacyEnv[key]
	if !ok || value == "" {
		return "", nil
	}
	return mapped, envValue(mapped, value)
}

func prefixedEnvKey(key, value string) (string, interface{}) {
	if value == "" {
		return "", nil
	}
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")
	return key, envValue(key, value)
}

// envValue splits list settings given as comma separated strings.
func envValue(key, value string) interface{} {
	if key == "server.allowed_origins" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return value
}
