package domain

import (
	"fmt"
	"strings"
)

// MunicipalityID identifies one municipality in configuration and records.
type MunicipalityID string

func (m MunicipalityID) String() string { return string(m) }

func ParseMunicipalityID(v string) (MunicipalityID, error) {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return "", fmt.Errorf("%w: municipality id is required", ErrValidation)
	}
	return MunicipalityID(trimmed), nil
}

// BatchSource is the per-(municipality, batch-name) configuration for one
// scheduled batch flow: where archives are picked up, where results go, and
// how items inside them are filtered.
type BatchSource struct {
	Municipality     MunicipalityID `json:"municipality"`
	BatchName        string         `json:"batchName"`
	SourcePath       string         `json:"sourcePath"`
	TargetPath       string         `json:"targetPath"`
	ArchivePath      string         `json:"archivePath"`
	RequiredPrefixes []string       `json:"requiredPrefixes"`
	Subject          string         `json:"subject"`
	ReferencePrefix  string         `json:"referencePrefix"`
	Enabled          bool           `json:"enabled"`
}

func (s BatchSource) Validate() error {
	if strings.TrimSpace(string(s.Municipality)) == "" {
		return fmt.Errorf("%w: municipality id is required", ErrValidation)
	}
	if strings.TrimSpace(s.BatchName) == "" {
		return fmt.Errorf("%w: batch name is required", ErrValidation)
	}
	if strings.TrimSpace(s.SourcePath) == "" {
		return fmt.Errorf("%w: source path is required", ErrValidation)
	}
	if strings.TrimSpace(s.TargetPath) == "" {
		return fmt.Errorf("%w: target path is required", ErrValidation)
	}
	if strings.TrimSpace(s.ArchivePath) == "" {
		return fmt.Errorf("%w: archive path is required", ErrValidation)
	}
	return nil
}

// Registry resolves batch sources by (municipality, batch name). It is built
// once at startup and passed by reference into the pipeline; there is no
// global lookup.
type Registry struct {
	sources map[string]BatchSource
}

func registryKey(id MunicipalityID, batchName string) string {
	return string(id) + "/" + batchName
}

func NewRegistry(sources []BatchSource) (*Registry, error) {
	r := &Registry{sources: make(map[string]BatchSource, len(sources))}
	for _, src := range sources {
		if err := src.Validate(); err != nil {
			return nil, err
		}
		key := registryKey(src.Municipality, src.BatchName)
		if _, exists := r.sources[key]; exists {
			return nil, fmt.Errorf("%w: duplicate batch source %s", ErrValidation, key)
		}
		r.sources[key] = src
	}
	return r, nil
}

func (r *Registry) Get(id MunicipalityID, batchName string) (BatchSource, bool) {
	if r == nil {
		return BatchSource{}, false
	}
	src, ok := r.sources[registryKey(id, batchName)]
	return src, ok
}

func (r *Registry) All() []BatchSource {
	if r == nil {
		return nil
	}
	out := make([]BatchSource, 0, len(r.sources))
	for _, src := range r.sources {
		out = append(out, src)
	}
	return out
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.sources)
}
