package declarative

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadOptions configures YAML loading behavior.
type LoadOptions struct {
	AllowUnknownFields bool
}

// LoadFile reads a TenantSeed document from path.
func LoadFile(path string) (*TenantSeedDoc, error) {
	return LoadFileWithOptions(path, LoadOptions{})
}

// LoadFileWithOptions reads a TenantSeed document using caller-provided
// loading options.
func LoadFileWithOptions(path string, opts LoadOptions) (*TenantSeedDoc, error) {
	data, err := os.ReadFile(path) //nolint:gosec // intentional: reading user-specified seed files
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := Parse(data, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes a single TenantSeed document. Unknown fields are rejected
// unless opts allows them.
func Parse(data []byte, opts LoadOptions) (*TenantSeedDoc, error) {
	var env Document
	if err := yaml.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if err := validateDocument(env.APIVersion, env.Kind, KindNameTenantSeed); err != nil {
		return nil, err
	}

	var doc TenantSeedDoc
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(!opts.AllowUnknownFields)
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse: empty document")
		}
		return nil, fmt.Errorf("parse: %w", err)
	}
	return &doc, nil
}

// validateDocument checks the apiVersion and kind fields.
func validateDocument(apiVersion, kind, expectedKind string) error {
	if apiVersion != SupportedAPIVersion {
		return fmt.Errorf("unsupported apiVersion %q (expected %q)", apiVersion, SupportedAPIVersion)
	}
	if kind != expectedKind {
		return fmt.Errorf("unexpected kind %q (expected %q)", kind, expectedKind)
	}
	return nil
}
