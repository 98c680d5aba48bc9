package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Profile holds the connection parameters for one named conditions-database
// deployment, loaded from a profile file and environment variables.
type Profile struct {
	File       string   `mapstructure:"-"`
	Host       string   `mapstructure:"host"`
	Port       string   `mapstructure:"port"`
	APIRoot    string   `mapstructure:"apiroot"`
	APIVersion string   `mapstructure:"apiver"`
	Paths      []string `mapstructure:"-"`
	Verbosity  int      `mapstructure:"verbosity"`
}

const (
	envProfileName = "CONDB_CONFIG"
	envProfileDir  = "CONDB_CONFIG_DIR"

	defaultProfileName = "prod"
)

// defaultSearchPaths are probed in order when no explicit directory is set.
var defaultSearchPaths = []string{".", "config", "configs"}

// URL returns the base service URL for this profile.
func (p *Profile) URL() string {
	return "http://" + p.Host + ":" + p.Port + p.APIRoot
}

// PathPrefix returns the first configured local path prefix.
func (p *Profile) PathPrefix() string {
	if len(p.Paths) == 0 {
		return ""
	}
	return p.Paths[0]
}

// Load resolves a profile by name or explicit file path. An empty name falls
// back to the CONDB_CONFIG environment variable, then to "prod". A name
// containing a dot or a path separator is treated as a file path as is.
func Load(name string) (*Profile, error) {
	_ = godotenv.Load("configs/.env")

	if strings.TrimSpace(name) == "" {
		name = os.Getenv(envProfileName)
	}
	if strings.TrimSpace(name) == "" {
		name = defaultProfileName
	}

	v := viper.New()
	v.SetDefault("host", "localhost")
	v.SetDefault("port", "8080")
	v.SetDefault("apiroot", "/api/cdb_rest")
	v.SetDefault("apiver", "")
	v.SetDefault("verbosity", 1)

	v.SetEnvPrefix("CONDB")
	v.AutomaticEnv()

	if strings.ContainsAny(name, "./\\") {
		v.SetConfigFile(name)
	} else {
		v.SetConfigName(name)
		for _, dir := range searchPaths() {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read profile %q: %w", name, err)
	}

	var p Profile
	if err := v.Unmarshal(&p); err != nil {
		return nil, fmt.Errorf("unmarshal profile %q: %w", name, err)
	}

	paths, err := pathList(v.Get("path"))
	if err != nil {
		return nil, fmt.Errorf("profile %q: %w", name, err)
	}
	p.Paths = paths

	if used := v.ConfigFileUsed(); used != "" {
		if abs, err := filepath.Abs(used); err == nil {
			p.File = abs
		} else {
			p.File = used
		}
	}

	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("profile %q: %w", name, err)
	}
	return &p, nil
}

func searchPaths() []string {
	if dir := strings.TrimRight(os.Getenv(envProfileDir), "/"); dir != "" {
		return []string{dir}
	}
	return defaultSearchPaths
}

// pathList accepts the "path" profile field as either a single string or a
// list of strings.
func pathList(raw any) ([]string, error) {
	switch val := raw.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return []string{val}, nil
	case []string:
		return val, nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("path entries must be strings, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("path must be a string or a list of strings, got %T", raw)
	}
}

func (p *Profile) validate() error {
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("host must not be empty")
	}
	if strings.TrimSpace(p.Port) == "" {
		return fmt.Errorf("port must not be empty")
	}
	if len(p.Paths) == 0 {
		return fmt.Errorf("path must name at least one payload prefix")
	}
	if p.Verbosity < 0 {
		return fmt.Errorf("verbosity must not be negative")
	}
	return nil
}
