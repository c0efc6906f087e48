// Package config loads the TOML configuration of the formengine server.
package config

import (
	"errors"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"

	"github.com/goliatone/go-formengine/pkg/model"
	"github.com/goliatone/go-formengine/pkg/security"
	"github.com/goliatone/go-formengine/pkg/visibility"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// MinSecretLength is the shortest master secret accepted for CSRF signing and
// field encryption.
const MinSecretLength = 32

// Config is the server configuration.
type Config struct {
	Server   Server   `toml:"server"`
	Forms    Forms    `toml:"forms"`
	Storage  Storage  `toml:"storage"`
	Uploads  Uploads  `toml:"uploads"`
	Security Security `toml:"security"`
	Auth     Auth     `toml:"auth"`
}

type Server struct {
	Addr string `toml:"addr"`
	// MaxMemory bounds the multipart bytes kept in memory per request.
	MaxMemory int64 `toml:"max_memory"`
}

type Forms struct {
	// Dir holds the YAML/JSON form declarations.
	Dir string `toml:"dir"`
	// Presets is an optional JSON file of label and message overrides.
	Presets  string `toml:"presets"`
	Policy   string `toml:"policy"`
	Renderer string `toml:"renderer"`
}

type Storage struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

type Uploads struct {
	Dir     string `toml:"dir"`
	BaseURL string `toml:"base_url"`
}

type Security struct {
	Secret   string `toml:"secret" masq:"secret"`
	TokenTTL string `toml:"token_ttl"`
}

// Auth maps a static bearer token onto an actor. Requests without the token
// are anonymous.
type Auth struct {
	Token        string   `toml:"token" masq:"secret"`
	Actor        string   `toml:"actor"`
	Capabilities []string `toml:"capabilities"`
}

// Default returns the configuration used for keys a file omits.
func Default() Config {
	return Config{
		Server: Server{Addr: ":8080"},
		Forms: Forms{
			Dir:    "forms",
			Policy: visibility.PolicyPermissive.String(),
		},
		Storage:  Storage{Backend: BackendMemory},
		Uploads:  Uploads{Dir: "uploads", BaseURL: "/uploads"},
		Security: Security{TokenTTL: security.DefaultTokenTTL.String()},
		Auth: Auth{
			Actor:        "admin",
			Capabilities: []string{model.DefaultCapability},
		},
	}
}

// Load reads path over Default and validates the result.
func Load(path string) (*Config, error) {
	// #nosec G304 - path is provided by the operator
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, goerr.Wrap(ErrConfigNotFound, "failed to read config file", goerr.V(ConfigPathKey, path))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V(ConfigPathKey, path))
	}

	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse TOML config", goerr.V(ConfigPathKey, path))
	}
	if err := cfg.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config validation failed", goerr.V(ConfigPathKey, path))
	}
	return &cfg, nil
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Storage.Path == "" {
			return goerr.Wrap(ErrInvalidConfig, "storage path is required for sqlite", goerr.V(BackendKey, c.Storage.Backend))
		}
	default:
		return goerr.Wrap(ErrUnknownBackend, "invalid storage backend", goerr.V(BackendKey, c.Storage.Backend))
	}

	if len(c.Security.Secret) < MinSecretLength {
		return goerr.Wrap(ErrWeakSecret, "security secret is too short", goerr.V("min_length", MinSecretLength))
	}
	if ttl, err := time.ParseDuration(c.Security.TokenTTL); err != nil || ttl <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "token_ttl must be a positive duration", goerr.V("token_ttl", c.Security.TokenTTL))
	}

	switch c.Forms.Policy {
	case "", visibility.PolicyStrict.String(), visibility.PolicyPermissive.String():
	default:
		return goerr.Wrap(ErrInvalidConfig, "unknown visibility policy", goerr.V("policy", c.Forms.Policy))
	}

	if c.Auth.Token != "" && c.Auth.Actor == "" {
		return goerr.Wrap(ErrInvalidConfig, "auth actor is required with a token")
	}
	if slices.Contains(c.Auth.Capabilities, "") {
		return goerr.Wrap(ErrInvalidConfig, "auth capabilities must not be blank")
	}
	return nil
}

// TTL returns the parsed CSRF token lifetime. Call Validate first.
func (s Security) TTL() time.Duration {
	ttl, err := time.ParseDuration(s.TokenTTL)
	if err != nil || ttl <= 0 {
		return security.DefaultTokenTTL
	}
	return ttl
}

// VisibilityPolicy returns the hidden-source visibility policy.
func (f Forms) VisibilityPolicy() visibility.Policy {
	return visibility.ParsePolicy(f.Policy)
}

// Principal returns the actor authenticated by the configured token.
func (a Auth) Principal() security.Actor {
	return security.Actor{
		ID:           a.Actor,
		Capabilities: append([]string(nil), a.Capabilities...),
	}
}
