// internal/search/bias/artifact.go
package bias

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"search-workers/internal/common/errors"
)

// Artifact is the editable on-disk form of the registry. The running
// service never touches this type after startup; it exists for loading
// and for the registry tooling that maintains the file.
type Artifact struct {
	Version     string         `json:"version"`
	LastUpdated string         `json:"lastUpdated"`
	Bindings    []TableBinding `json:"bindings"`
}

// ReadArtifact parses the artifact file without validating its content.
func ReadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigurationError(fmt.Sprintf("read bias registry %s: %v", path, err))
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, errors.NewConfigurationError(fmt.Sprintf("parse bias registry %s: %v", path, err))
	}
	return &a, nil
}

// Validate compiles the artifact into a registry, reporting the first
// configuration fault exactly as startup would.
func (a *Artifact) Validate() (*Registry, error) {
	return New(a.Version, a.Bindings)
}

// Write marshals the artifact back to disk, creating parent directories.
func (a *Artifact) Write(path string) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}
