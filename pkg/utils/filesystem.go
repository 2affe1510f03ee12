package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDataDir ensures the .aileron data directory exists at the given
// base path. An empty or "." base means ./.aileron in the current
// directory. The embedded vector store persists under it.
func EnsureDataDir(basePath string) (string, error) {
	var dataDir string
	if basePath == "" || basePath == "." {
		dataDir = ".aileron"
	} else {
		dataDir = filepath.Join(basePath, ".aileron")
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory at '%s': %w", dataDir, err)
	}

	return dataDir, nil
}
