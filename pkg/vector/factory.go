package vector

import (
	"fmt"

	"github.com/aileronlabs/aileron/pkg/config"
)

// New creates the vector provider selected by configuration, wrapped
// with store-query instrumentation.
func New(cfg *config.VectorConfig) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("vector configuration is required")
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}
	return instrument(provider), nil
}

func newProvider(cfg *config.VectorConfig) (Provider, error) {
	switch cfg.Provider {
	case config.VectorProviderPgvector:
		return NewPGVectorProvider(PGVectorConfig{
			DatabaseURL: cfg.DatabaseURL,
			MaxConns:    cfg.MaxConns,
			MaxIdle:     cfg.MaxIdle,
		})

	case config.VectorProviderQdrant:
		return NewQdrantProvider(QdrantConfig{
			Host: cfg.QdrantHost,
			Port: cfg.QdrantPort,
		})

	case config.VectorProviderChromem:
		return NewChromemProvider(ChromemConfig{
			PersistPath: cfg.ChromemPath,
		})

	default:
		return nil, fmt.Errorf("unknown vector provider: %q", cfg.Provider)
	}
}
