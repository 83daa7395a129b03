// Package config loads civbuilder configuration from YAML.
//
// Files are decoded strictly (unknown keys are errors) on top of Default,
// then checked against an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// EnvDevnetSecret overrides devnet.secret when set.
const EnvDevnetSecret = "CIVBUILDER_DEVNET_SECRET"

// DefaultDevnetSecret is only suitable for local development.
const DefaultDevnetSecret = "civbuilder-devnet-insecure-secret"

// Config is the full runtime configuration.
type Config struct {
	Database Database `yaml:"database" json:"database"`
	Ledger   Ledger   `yaml:"ledger" json:"ledger"`
	Devnet   Devnet   `yaml:"devnet" json:"devnet"`
	Server   Server   `yaml:"server" json:"server"`
	Log      Log      `yaml:"log" json:"log"`
}

type Database struct {
	Path   string `yaml:"path" json:"path"`
	Driver string `yaml:"driver" json:"driver"`
}

type Ledger struct {
	// Policy is "consume" or "retain".
	Policy string `yaml:"policy" json:"policy"`
}

type Devnet struct {
	Secret string `yaml:"secret" json:"secret"`
}

type Server struct {
	Listen string `yaml:"listen" json:"listen"`
}

type Log struct {
	Level string `yaml:"level" json:"level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Database: Database{Path: "civbuilder.db", Driver: "sqlite3"},
		Ledger:   Ledger{Policy: "consume"},
		Devnet:   Devnet{Secret: DefaultDevnetSecret},
		Server:   Server{Listen: "127.0.0.1:8545"},
		Log:      Log{Level: "info"},
	}
}

// Load reads path over Default, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
	}
	if secret := os.Getenv(EnvDevnetSecret); secret != "" {
		cfg.Devnet.Secret = secret
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML over Default and validates it. Environment overrides
// are not applied.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := decode(data, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// Validate checks cfg against the embedded schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// SlogLevel maps Log.Level onto a slog level.
func (c Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// ValidationError is a schema violation.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return "invalid config: " + e.Message
	}
	return fmt.Sprintf("invalid config: %s: %s", e.Path, e.Message)
}

// formatCUEError reports the first CUE error with its field path.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	first := errs[0]
	format, args := first.Msg()
	return &ValidationError{
		Path:    pathString(first.Path()),
		Message: fmt.Sprintf(format, args...),
	}
}

func pathString(path []string) string {
	out := ""
	for _, p := range path {
		if p == "#Config" {
			continue
		}
		if out != "" {
			out += "."
		}
		out += p
	}
	return out
}
