package triage

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultCatalogFile is the conventional on-disk name for a catalog override.
const DefaultCatalogFile = "catalog.yaml"

//go:embed catalog/default.yaml
var defaultCatalogYAML []byte

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// ParseCatalogYAML decodes and validates a catalog from YAML bytes.
func ParseCatalogYAML(data []byte) (*Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("triage: catalog payload is empty")
	}
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("triage: decode catalog: %w", err)
	}
	return NewCatalog(doc)
}

// LoadCatalogReader reads catalog data from an io.Reader.
func LoadCatalogReader(r io.Reader) (*Catalog, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("triage: read catalog: %w", err)
	}
	return ParseCatalogYAML(content)
}

// LoadCatalogFile loads a catalog from an explicit file path.
func LoadCatalogFile(path string) (*Catalog, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("triage: read %s: %w", path, err)
	}
	catalog, parseErr := ParseCatalogYAML(content)
	if parseErr != nil {
		return nil, fmt.Errorf("triage: %s: %w", path, parseErr)
	}
	return catalog, nil
}

// DefaultCatalog returns the catalog embedded in the binary. It is parsed
// once and shared.
func DefaultCatalog() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = ParseCatalogYAML(defaultCatalogYAML)
	})
	return defaultCatalog, defaultErr
}

// DefaultCatalogYAML returns a copy of the embedded catalog source.
func DefaultCatalogYAML() []byte {
	return append([]byte(nil), defaultCatalogYAML...)
}

// Load resolves the catalog for a path: the embedded default when path is
// empty, otherwise the file.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	return LoadCatalogFile(path)
}
