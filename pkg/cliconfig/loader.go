package cliconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LocalConfigFileNames are the names to search for local config (in order).
var LocalConfigFileNames = []string{".crmmockrc.yaml", ".crmmockrc.yml"}

// ErrMissingSchemaURL is returned by RequireSchemaURL when no schema URL is
// configured.
var ErrMissingSchemaURL = errors.New("schema URL is required (set --schema-url, schemaUrl or CRMMOCK_SCHEMA_URL)")

// FindLocalConfig searches dir for .crmmockrc.yaml or .crmmockrc.yml.
// It returns "" when there is none.
func FindLocalConfig(dir string) (string, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		dir = cwd
	}
	for _, name := range LocalConfigFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

// ConfigError represents a configuration file error with location info.
type ConfigError struct {
	Path    string
	Line    int
	Column  int
	Message string
}

func (e *ConfigError) Error() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		return e.Path + " (line " + strconv.Itoa(e.Line) + ", column " + strconv.Itoa(e.Column) + "): " + e.Message
	case e.Line > 0:
		return e.Path + " (line " + strconv.Itoa(e.Line) + "): " + e.Message
	}
	return e.Path + ": " + e.Message
}

var yamlLineRe = regexp.MustCompile(`line (\d+)`)

// LoadConfigFile loads a Layer from a YAML file.
func LoadConfigFile(path string) (*Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(path, data)
}

// ParseConfig parses YAML config data. Errors are *ConfigError values
// carrying the line and column of the offending key or value.
func ParseConfig(path string, data []byte) (*Layer, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		cerr := &ConfigError{Path: path, Message: strings.TrimPrefix(err.Error(), "yaml: ")}
		if m := yamlLineRe.FindStringSubmatch(err.Error()); m != nil {
			cerr.Line, _ = strconv.Atoi(m[1])
		}
		return nil, cerr
	}

	layer := &Layer{}
	if root.Kind == 0 || len(root.Content) == 0 {
		return layer, nil
	}

	doc := root.Content[0]
	if doc.Kind == yaml.ScalarNode && doc.Tag == "!!null" {
		return layer, nil
	}
	if doc.Kind != yaml.MappingNode {
		return nil, &ConfigError{Path: path, Line: doc.Line, Column: doc.Column, Message: "config must be a mapping"}
	}

	fields := layer.fields()
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key, value := doc.Content[i], doc.Content[i+1]
		target, ok := fields[key.Value]
		if !ok {
			return nil, &ConfigError{Path: path, Line: key.Line, Column: key.Column, Message: fmt.Sprintf("unknown key %q", key.Value)}
		}
		if err := value.Decode(target); err != nil {
			return nil, &ConfigError{
				Path:    path,
				Line:    value.Line,
				Column:  value.Column,
				Message: fmt.Sprintf("%s: %s", key.Value, strings.TrimPrefix(err.Error(), "yaml: ")),
			}
		}
	}
	return layer, nil
}

// LoadOptions controls Load.
type LoadOptions struct {
	// ConfigFile is an explicit config path. It must exist.
	ConfigFile string
	// Dir is searched for a local config file when ConfigFile is empty.
	// Empty means the current directory.
	Dir string
	// Flags holds values set on the command line.
	Flags *Layer
}

// Load loads configuration from all sources, merges and validates it.
// Precedence: flags > env > config file > defaults
func Load(opts LoadOptions) (*Config, error) {
	cfg := NewDefault()

	path := opts.ConfigFile
	if path == "" {
		found, err := FindLocalConfig(opts.Dir)
		if err != nil {
			return nil, fmt.Errorf("find config file: %w", err)
		}
		path = found
	}
	if path != "" {
		layer, err := LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		MergeConfig(cfg, layer, SourceFile)
		cfg.ConfigFile = path
	}

	env, err := LoadEnvConfig()
	if err != nil {
		return nil, err
	}
	MergeConfig(cfg, env, SourceEnv)

	MergeConfig(cfg, opts.Flags, SourceFlag)

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.SchemaURL = strings.TrimSpace(c.SchemaURL)
	c.OpenAPIURL = strings.TrimSpace(c.OpenAPIURL)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.IDStrategy = strings.ToLower(strings.TrimSpace(c.IDStrategy))
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))

	origins := c.CORSOrigins[:0:0]
	for _, o := range c.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORSOrigins = origins
}

// RequireSchemaURL returns ErrMissingSchemaURL when SchemaURL is empty.
func (c *Config) RequireSchemaURL() error {
	if c.SchemaURL == "" {
		return ErrMissingSchemaURL
	}
	return nil
}
