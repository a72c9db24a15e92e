package registry

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/tsyne-dev/tsyne-host/internal/manifest"
	"github.com/tsyne-dev/tsyne-host/internal/shared/types"
	"github.com/tsyne-dev/tsyne-host/internal/shared/utils"
)

// Seeder loads prebuilt apps from a directory tree into the store.
type Seeder struct {
	store   *Store
	appsDir string
}

// NewSeeder creates a seeder reading from appsDir.
func NewSeeder(store *Store, appsDir string) *Seeder {
	return &Seeder{store: store, appsDir: appsDir}
}

// Seed walks the apps directory and installs every manifest it finds. Each
// app is a YAML manifest next to the script file its entry field names.
func (s *Seeder) Seed() error {
	log.Printf("📦 Seeding prebuilt apps from %s...", s.appsDir)

	if _, err := os.Stat(s.appsDir); os.IsNotExist(err) {
		log.Printf("⚠️  Apps directory not found: %s", s.appsDir)
		return nil
	}

	matches, err := doublestar.FilepathGlob(filepath.Join(s.appsDir, "**", "*.{yaml,yml}"))
	if err != nil {
		return fmt.Errorf("failed to scan apps directory: %w", err)
	}

	var loaded, failed int
	for _, path := range matches {
		if err := s.loadApp(path); err != nil {
			log.Printf("  ✗ Failed to load %s: %v", filepath.Base(path), err)
			failed++
		} else {
			log.Printf("  ✓ Loaded %s", filepath.Base(path))
			loaded++
		}
	}

	log.Printf("📊 Seeding complete: %d loaded, %d failed", loaded, failed)
	return nil
}

// loadApp parses one manifest, reads the script it points at, and saves
// the resulting package.
func (s *Seeder) loadApp(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	m, err := manifest.Parse(data)
	if err != nil {
		return err
	}

	src, err := os.ReadFile(filepath.Join(filepath.Dir(path), m.Entry))
	if err != nil {
		return err
	}
	if err := utils.ValidateSource(string(src)); err != nil {
		return err
	}

	return s.store.Save(m.Package(string(src)))
}

// SeedDefaults installs the built-in apps when they are not already present.
func (s *Seeder) SeedDefaults() error {
	log.Println("🌱 Seeding default apps...")

	defaults := []types.Package{
		{
			ID:          "hello",
			Name:        "Hello",
			Description: "Greets from inside the sandbox",
			Version:     "1.0.0",
			Author:      "tsyne",
			Tags:        []string{"demo", "starter"},
			Modules:     []string{"tsyne/runtime"},
			Source: `const runtime = require('tsyne/runtime');
console.log('hello app starting');
exports.greeting = 'Hello from ' + runtime.platform;
`,
		},
		{
			ID:          "counter",
			Name:        "Counter",
			Description: "Sums a sequence and logs its progress",
			Version:     "1.0.0",
			Author:      "tsyne",
			Tags:        []string{"demo"},
			Source: `let total = 0;
for (let i = 1; i <= 10; i++) {
  total += i;
}
console.log('sum computed');
exports.total = total;
`,
		},
	}

	var seeded int
	for i := range defaults {
		pkg := &defaults[i]
		if s.store.Exists(pkg.ID) {
			continue
		}
		if err := s.store.Save(pkg); err != nil {
			log.Printf("  ✗ Failed to seed %s: %v", pkg.Name, err)
		} else {
			log.Printf("  ✓ Seeded %s", pkg.Name)
			seeded++
		}
	}

	log.Printf("🌱 Seeded %d default apps", seeded)
	return nil
}
