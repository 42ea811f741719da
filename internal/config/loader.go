package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v3"
)

// DefaultEnvFile is read by [Load] when present.
const DefaultEnvFile = ".env"

// Sources names the inputs of [Load]. Later sources override earlier ones:
// defaults, then Path, then EnvFile, then Environ.
type Sources struct {
	// Path is an optional YAML file. Empty skips it; a missing file is an error.
	Path string

	// EnvFile is an optional dotenv file. A missing file is ignored.
	EnvFile string

	// Environ is the process environment. Nil uses os.Environ.
	Environ map[string]string
}

// Load builds a [Config] from src and validates it against req.
func Load(src Sources, req Requirement) (*Config, error) {
	cfg := Default()

	if src.Path != "" {
		f, err := os.Open(src.Path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", src.Path, err)
		}
		err = decodeYAML(f, cfg)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", src.Path, err)
		}
	}

	environ, err := environment(src)
	if err != nil {
		return nil, err
	}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}

	if err := Validate(cfg, req); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of the defaults and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader, req Requirement) (*Config, error) {
	cfg := Default()
	if err := decodeYAML(r, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg, req); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// environment merges the dotenv file under the real environment; variables
// that are already set win.
func environment(src Sources) (map[string]string, error) {
	procEnv := src.Environ
	if procEnv == nil {
		procEnv = environMap(os.Environ())
	}
	if src.EnvFile == "" {
		return procEnv, nil
	}

	f, err := os.Open(src.EnvFile)
	if errors.Is(err, fs.ErrNotExist) {
		return procEnv, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: open env file %q: %w", src.EnvFile, err)
	}
	defer f.Close()

	dotenv, err := gotenv.StrictParse(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse env file %q: %w", src.EnvFile, err)
	}
	merged := make(map[string]string, len(dotenv)+len(procEnv))
	maps.Copy(merged, dotenv)
	maps.Copy(merged, procEnv)
	return merged, nil
}

func environMap(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	return m
}
