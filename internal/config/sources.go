package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mkarlsson/invoice-relay/internal/domain"
)

// LoadSources reads the batch source definitions from a JSON file and builds
// the registry the scheduler and worker share.
func LoadSources(path string) (*domain.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file %q: %w", path, err)
	}

	var sources []domain.BatchSource
	if err := json.Unmarshal(data, &sources); err != nil {
		return nil, fmt.Errorf("failed to parse sources file %q: %w", path, err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("sources file %q defines no batch sources", path)
	}

	registry, err := domain.NewRegistry(sources)
	if err != nil {
		return nil, fmt.Errorf("invalid sources file %q: %w", path, err)
	}

	return registry, nil
}
