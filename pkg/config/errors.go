package config

import "fmt"

// ConfigError reports a missing or malformed configuration value. The CLI
// maps it to its own exit code so operators can tell config mistakes from
// runtime failures.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

func newConfigError(field, format string, args ...interface{}) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}
