package keygen

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/wehubfusion/keygen/pkg/embedded/pathutil"
)

// Config is the transform specification.
type Config struct {
	// Lookup lists the paths whose values make up the key, in order.
	// Example: ["/pub_date", "/last_build_date"]
	Lookup []string `json:"lookup" yaml:"lookup"`

	// KeyName is the top-level field the digest is written to.
	KeyName string `json:"key_name" yaml:"key_name"`
}

// Validate checks that the configuration can build a transform.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Lookup, validation.Required),
		validation.Field(&c.KeyName, validation.Required),
	)
	if err != nil {
		var fieldErrs validation.Errors
		if errors.As(err, &fieldErrs) {
			for _, field := range []string{"lookup", "key_name"} {
				if fe, ok := fieldErrs[field]; ok {
					return &ConfigError{Field: field, Message: fe.Error(), Cause: fe}
				}
			}
		}
		return &ConfigError{Message: "invalid configuration", Cause: err}
	}

	_, err = c.paths()
	return err
}

// paths parses every lookup entry.
func (c *Config) paths() ([]pathutil.Path, error) {
	paths := make([]pathutil.Path, 0, len(c.Lookup))
	for i, raw := range c.Lookup {
		p, err := pathutil.ParsePath(raw)
		if err != nil {
			return nil, &ConfigError{
				Field:   fmt.Sprintf("lookup[%d]", i),
				Message: "invalid path",
				Cause:   err,
			}
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// ParseConfig decodes a specification from JSON or YAML text. Unknown options
// are rejected.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return Config{}, &ConfigError{Message: "specification is empty"}
		}
		return Config{}, &ConfigError{Message: "cannot parse specification", Cause: err}
	}
	return cfg, nil
}

// LoadConfigFile reads and parses a specification file from fs.
func LoadConfigFile(fs afero.Fs, path string) (Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Config{}, &ConfigError{Message: fmt.Sprintf("cannot read specification %s", path), Cause: err}
	}
	return ParseConfig(data)
}
