package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var envVarPatterns = struct {
	withDefault *regexp.Regexp
	braced      *regexp.Regexp
	simple      *regexp.Regexp
}{
	withDefault: regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*):-(.*?)\}`),
	braced:      regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`),
	simple:      regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`),
}

func expandEnvVars(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}

	s = envVarPatterns.withDefault.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.withDefault.FindStringSubmatch(match)
		if len(parts) == 3 {
			if val := os.Getenv(parts[1]); val != "" {
				return val
			}
			return parts[2]
		}
		return match
	})

	s = envVarPatterns.braced.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.braced.FindStringSubmatch(match)
		if len(parts) == 2 {
			return os.Getenv(parts[1])
		}
		return match
	})

	s = envVarPatterns.simple.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.simple.FindStringSubmatch(match)
		if len(parts) == 2 {
			return os.Getenv(parts[1])
		}
		return match
	})

	return s
}

func parseValue(value string) interface{} {
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}

	if intVal, err := strconv.Atoi(value); err == nil {
		return intVal
	}

	if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
		return floatVal
	}

	return value
}

// ExpandEnvVarsInData walks a decoded YAML tree replacing ${VAR} and
// ${VAR:-default} references with environment values.
func ExpandEnvVarsInData(data interface{}) interface{} {
	switch v := data.(type) {
	case string:
		expanded := expandEnvVars(v)
		if expanded != v {
			return parseValue(expanded)
		}
		return expanded

	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, value := range v {
			result[key] = ExpandEnvVarsInData(value)
		}
		return result

	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			result[i] = ExpandEnvVarsInData(item)
		}
		return result

	default:
		return v
	}
}

// LoadEnvFiles seeds the process environment from .env.local and .env.
// Missing files are fine; existing env vars are not overwritten.
func LoadEnvFiles() error {
	envFiles := []string{".env.local", ".env"}

	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	return nil
}

// applyEnv overlays well-known environment variables onto cfg. Env values
// win over whatever the YAML file set.
func applyEnv(cfg *Config) error {
	setString(&cfg.Vector.Provider, "VECTOR_PROVIDER")
	setString(&cfg.Vector.DatabaseURL, "VECTOR_DB_URL")
	setString(&cfg.Vector.QdrantHost, "QDRANT_HOST")
	if err := setInt(&cfg.Vector.QdrantPort, "QDRANT_PORT"); err != nil {
		return err
	}
	setString(&cfg.Vector.ChromemPath, "CHROMEM_PATH")
	setString(&cfg.Vector.DefaultCollection, "DEFAULT_COLLECTION")

	setString(&cfg.Embedding.APIBase, "EMBED_API_BASE")
	setString(&cfg.Embedding.APIKey, "EMBED_API_KEY")
	setString(&cfg.Embedding.Model, "EMBED_MODEL")
	if err := setInt(&cfg.Embedding.BatchSize, "EMBED_BATCH_SIZE"); err != nil {
		return err
	}

	setString(&cfg.Chat.APIBase, "CHAT_API_BASE")
	setString(&cfg.Chat.APIKey, "CHAT_API_KEY")
	setString(&cfg.Chat.Model, "CHAT_MODEL")
	if err := setFloatPtr(&cfg.Chat.Temperature, "TEMPERATURE"); err != nil {
		return err
	}

	if err := setInt(&cfg.Query.TopK, "DEFAULT_TOP_K"); err != nil {
		return err
	}
	if err := setInt(&cfg.Query.ContentMaxLength, "CONTENT_MAX_LENGTH"); err != nil {
		return err
	}
	if err := setInt(&cfg.Query.MaxIterations, "MAX_ITERATIONS"); err != nil {
		return err
	}
	if err := setInt(&cfg.Query.TimeoutSeconds, "QUERY_TIMEOUT_SECONDS"); err != nil {
		return err
	}

	if err := setBoolPtr(&cfg.HTTP.VerifySSL, "VERIFY_SSL"); err != nil {
		return err
	}
	if err := setInt(&cfg.HTTP.MaxInflight, "MAX_INFLIGHT_REQUESTS"); err != nil {
		return err
	}

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")

	setString(&cfg.Server.Addr, "HTTP_ADDR")

	setString(&cfg.Observability.TraceEndpoint, "TRACE_ENDPOINT")
	if err := setBoolPtr(&cfg.Observability.MetricsEnabled, "METRICS_ENABLED"); err != nil {
		return err
	}
	if err := setInt(&cfg.Observability.MetricsPort, "METRICS_PORT"); err != nil {
		return err
	}

	return nil
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setInt(dst *int, key string) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return newConfigError(key, "expected an integer, got %q", val)
	}
	*dst = n
	return nil
}

func setFloatPtr(dst **float64, key string) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return newConfigError(key, "expected a number, got %q", val)
	}
	*dst = &f
	return nil
}

func setBoolPtr(dst **bool, key string) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return newConfigError(key, "expected a boolean, got %q", val)
	}
	*dst = &b
	return nil
}
