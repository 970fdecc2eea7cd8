package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"sotugyo/internal/paths"
	"sotugyo/pkg/logging"
)

const configFileName = "config.yaml"

// EnvOverrides are environment variables that take precedence over config.yaml.
type EnvOverrides struct {
	LogLevel     string `envconfig:"SOTUGYO_LOG_LEVEL"`
	PackageRoots string `envconfig:"SOTUGYO_PACKAGE_ROOTS"`
}

// FilePath returns the path of config.yaml inside configDir.
func FilePath(configDir string) string {
	return filepath.Join(configDir, configFileName)
}

// LoadConfig loads config.yaml from configDir over the defaults, applies
// environment overrides and validates the result. A missing file yields the
// defaults. Problems are returned as a ConfigurationErrorCollection.
func LoadConfig(configDir string) (Config, error) {
	configFilePath := FilePath(configDir)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Debug("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
	case err != nil:
		logging.Info("ConfigLoader", "Error loading config.yaml from %s: %s", configFilePath, err)
		return Config{}, collection(NewConfigurationError(configFilePath, ErrorTypeIO, err.Error()))
	default:
		if err := decode(data, &config); err != nil {
			return Config{}, collection(parseError(configFilePath, err))
		}
		logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	}

	if err := applyEnv(&config); err != nil {
		return Config{}, collection(NewConfigurationError("", ErrorTypeEnv, err.Error()))
	}
	config.Packages.Roots = resolveRoots(configDir, config.Packages.Roots)

	if verrs := config.Validate(); verrs.HasErrors() {
		errs := NewConfigurationErrorCollection()
		for _, ve := range verrs {
			errs.Add(NewConfigurationErrorWithDetails(configFilePath, ErrorTypeValidation, ve.Error(), fmt.Sprintf("%v", ve.Value), ve.Suggestions))
		}
		return Config{}, *errs
	}
	return config, nil
}

// decode strictly decodes a YAML document onto config. Unknown keys are
// rejected so that typos surface instead of silently falling back.
func decode(data []byte, config *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(config)
}

func applyEnv(config *Config) error {
	var env EnvOverrides
	if err := envconfig.Process("", &env); err != nil {
		return err
	}
	if level := strings.TrimSpace(env.LogLevel); level != "" {
		config.LogLevel = level
	}
	if roots := paths.SplitPathList(env.PackageRoots); len(roots) > 0 {
		config.Packages.Roots = roots
	}
	return nil
}

func resolveRoots(configDir string, roots []string) []string {
	if len(roots) == 0 {
		return nil
	}
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		r = strings.TrimSpace(r)
		if r != "" && !filepath.IsAbs(r) {
			r = filepath.Join(configDir, r)
		}
		out = append(out, r)
	}
	return out
}

// SaveConfig writes config to config.yaml in configDir, creating the
// directory when needed.
func SaveConfig(configDir string, config Config) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create configuration directory %s: %w", configDir, err)
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(config); err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	path := FilePath(configDir)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logging.Info("ConfigLoader", "Saved configuration to %s", path)
	return nil
}

func collection(err ConfigurationError) ConfigurationErrorCollection {
	return ConfigurationErrorCollection{Errors: []ConfigurationError{err}}
}

func parseError(path string, err error) ConfigurationError {
	ce := NewConfigurationError(path, ErrorTypeParse, err.Error())
	ce.LineNumber = lineOf(err.Error())
	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) && len(typeErr.Errors) > 0 {
		ce.Message = typeErr.Errors[0]
		ce.Details = strings.Join(typeErr.Errors, "\n")
		ce.LineNumber = lineOf(typeErr.Errors[0])
	}
	ce.Suggestions = []string{"Check the YAML syntax and key names in " + filepath.Base(path)}
	return ce
}

// lineOf extracts the line number from a yaml.v3 message such as
// "yaml: line 3: did not find expected key".
func lineOf(msg string) int {
	msg = strings.TrimPrefix(msg, "yaml: ")
	var line int
	if _, err := fmt.Sscanf(msg, "line %d:", &line); err != nil {
		return 0
	}
	return line
}
