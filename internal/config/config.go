// Package config loads the docfields configuration from YAML with
// environment variable expansion.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/lvillar/docfields/document"
	"github.com/lvillar/docfields/field"
	"github.com/lvillar/docfields/stamp"
)

// Validator is implemented by configuration types that check themselves
// after loading.
type Validator interface {
	Validate() error
}

// Load reads a YAML file into target, expanding ${VAR} references from the
// environment first. Fields absent from the file keep the values target
// already holds; unknown keys are an error. An empty file only validates.
// If target implements Validator it is validated.
func Load[T any](filename string, target *T) error {
	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", filename, err)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", filename, err)
	}

	dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(raw))))
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: parsing %s: %w", filename, err)
	}
	return validate(filename, target)
}

// LoadOptional is Load, except that an empty filename or a missing file
// leaves target unchanged apart from validation.
func LoadOptional[T any](filename string, target *T) error {
	if filename == "" {
		return validate("defaults", target)
	}
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return validate("defaults", target)
	}
	return Load(filename, target)
}

func validate(source string, target any) error {
	v, ok := target.(Validator)
	if !ok {
		return nil
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("config: invalid %s: %w", source, err)
	}
	return nil
}

// Config is the docfields configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Intake  IntakeConfig  `yaml:"intake"`
	Fields  FieldsConfig  `yaml:"fields"`
	Tokens  []string      `yaml:"tokens"`
	Storage StorageConfig `yaml:"storage"`
	Preview PreviewConfig `yaml:"preview"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Log),
		validation.Field(&c.Intake),
		validation.Field(&c.Fields),
		validation.Field(&c.Tokens, validation.Each(validation.Required)),
		validation.Field(&c.Storage),
		validation.Field(&c.Preview),
	)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Validate validates the logging configuration.
func (c LogConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Level, validation.Required, validation.In("debug", "info", "warn", "error")),
	)
}

// IntakeConfig holds upload limits.
type IntakeConfig struct {
	MaxFileSize int64 `yaml:"max_file_size"`
}

// Validate validates the intake configuration.
func (c IntakeConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.MaxFileSize, validation.Required, validation.Min(int64(1))),
	)
}

// FieldsConfig holds the minimum field size in points.
type FieldsConfig struct {
	MinWidth  float64 `yaml:"min_width"`
	MinHeight float64 `yaml:"min_height"`
}

// Validate validates the fields configuration.
func (c FieldsConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.MinWidth, validation.Required, validation.Min(1.0)),
		validation.Field(&c.MinHeight, validation.Required, validation.Min(1.0)),
	)
}

// StorageConfig holds the template database location.
type StorageConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// Validate validates the storage configuration.
func (c StorageConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.SQLitePath, validation.Required),
	)
}

// PreviewConfig holds preview rendering options.
type PreviewConfig struct {
	Code string `yaml:"code"`
}

// Validate validates the preview configuration.
func (c PreviewConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Code, validation.In(string(stamp.CodeNone), string(stamp.CodeQR), string(stamp.CodePDF417))),
	)
}

// StampOptions returns the preview rendering options.
func (c PreviewConfig) StampOptions() stamp.Options {
	return stamp.Options{Code: stamp.Code(c.Code)}
}

// NewDefault returns a Config with default values.
func NewDefault() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Intake: IntakeConfig{
			MaxFileSize: document.DefaultMaxFileSize,
		},
		Fields: FieldsConfig{
			MinWidth:  field.DefaultMinWidth,
			MinHeight: field.DefaultMinHeight,
		},
		Storage: StorageConfig{
			SQLitePath: "./docfields.db",
		},
		Preview: PreviewConfig{
			Code: string(stamp.CodeNone),
		},
	}
}
