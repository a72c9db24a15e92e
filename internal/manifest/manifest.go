package manifest

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/tsyne-dev/tsyne-host/internal/shared/types"
	"github.com/tsyne-dev/tsyne-host/internal/shared/utils"
)

// DefaultEntry is the source file a manifest points at when it names none.
const DefaultEntry = "main.js"

// Manifest represents the root structure of an app manifest file
type Manifest struct {
	App     AppSection     `yaml:"app"`
	Sandbox SandboxSection `yaml:"sandbox"`
	Entry   string         `yaml:"entry"`

	// Timeout is Sandbox.Timeout parsed; zero when the manifest
	// leaves the budget to the host default.
	Timeout time.Duration `yaml:"-"`
}

// AppSection contains app identification and metadata
type AppSection struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Version     string   `yaml:"version"`
	Author      string   `yaml:"author"`
	Tags        []string `yaml:"tags"`
}

// SandboxSection carries the sandbox policy for the app
type SandboxSection struct {
	Modules []string `yaml:"modules"`
	Timeout string   `yaml:"timeout"`
}

// Parse parses and validates manifest YAML
func Parse(content []byte) (*Manifest, error) {
	if len(content) > utils.MaxManifestSize {
		return nil, fmt.Errorf("manifest size %d bytes exceeds maximum %d bytes", len(content), utils.MaxManifestSize)
	}

	var m Manifest
	if err := yaml.Unmarshal(content, &m); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := m.validate(); err != nil {
		return nil, err
	}

	if m.Entry == "" {
		m.Entry = DefaultEntry
	}

	if m.Sandbox.Timeout != "" {
		d, err := time.ParseDuration(m.Sandbox.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid sandbox timeout %q: %w", m.Sandbox.Timeout, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("sandbox timeout must be positive, got %q", m.Sandbox.Timeout)
		}
		m.Timeout = d
	}

	return &m, nil
}

func (m *Manifest) validate() error {
	if err := utils.ValidateAppID(m.App.ID); err != nil {
		return err
	}
	if err := utils.ValidateName(m.App.Name, "app name"); err != nil {
		return err
	}
	if err := utils.ValidateVersion(m.App.Version, false); err != nil {
		return err
	}
	if err := utils.ValidateDescription(m.App.Description, "description", false); err != nil {
		return err
	}
	if err := utils.ValidateWhitelist(m.Sandbox.Modules); err != nil {
		return err
	}
	// The entry is resolved relative to the manifest, so it must stay a
	// plain file name.
	if m.Entry != "" && (filepath.Base(m.Entry) != m.Entry || m.Entry == "." || m.Entry == "..") {
		return fmt.Errorf("entry must be a plain file name, got %q", m.Entry)
	}
	return nil
}

// Package converts the manifest plus its entry source into an
// installable package
func (m *Manifest) Package(source string) *types.Package {
	now := time.Now()
	return &types.Package{
		ID:          m.App.ID,
		Name:        m.App.Name,
		Description: m.App.Description,
		Version:     m.App.Version,
		Author:      m.App.Author,
		Tags:        m.App.Tags,
		Modules:     m.Sandbox.Modules,
		Timeout:     m.Timeout,
		Source:      source,
		Digest:      utils.Fingerprint([]byte(source)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
