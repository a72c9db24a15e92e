package registry

import (
	"os"
	"path/filepath"
	"testing"
)

func writeApp(t *testing.T, appsDir, name, manifest, script string) {
	t.Helper()
	dir := filepath.Join(appsDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "app.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if script != "" {
		if err := os.WriteFile(filepath.Join(dir, "main.js"), []byte(script), 0o644); err != nil {
			t.Fatalf("write script: %v", err)
		}
	}
}

func TestSeederInstallsApps(t *testing.T) {
	store, _ := newTestStore(t)
	appsDir := t.TempDir()

	writeApp(t, appsDir, "clock", `
app:
  id: clock
  name: Clock
  version: 1.0.0
sandbox:
  modules: [tsyne/runtime]
  timeout: 5s
`, "exports.tick = 1;")
	writeApp(t, appsDir, "nameless", `
app:
  id: nameless
`, "exports.unused = true;")
	writeApp(t, appsDir, "scriptless", `
app:
  id: scriptless
  name: Scriptless
`, "")

	if err := NewSeeder(store, appsDir).Seed(); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	pkg, err := store.Get("clock")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if pkg.Source != "exports.tick = 1;" {
		t.Errorf("source = %q", pkg.Source)
	}
	if pkg.Timeout.Seconds() != 5 {
		t.Errorf("timeout = %s", pkg.Timeout)
	}

	// Bad manifests fail individually without aborting the walk.
	if store.Exists("nameless") || store.Exists("scriptless") {
		t.Error("invalid apps were installed")
	}
	if store.Len() != 1 {
		t.Errorf("len = %d", store.Len())
	}
}

func TestSeederMissingDirectory(t *testing.T) {
	store, _ := newTestStore(t)

	seeder := NewSeeder(store, filepath.Join(t.TempDir(), "nope"))
	if err := seeder.Seed(); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("len = %d", store.Len())
	}
}

func TestSeederNestedLayout(t *testing.T) {
	store, _ := newTestStore(t)
	appsDir := t.TempDir()

	writeApp(t, filepath.Join(appsDir, "bundled"), "clock", `
app:
  id: clock
  name: Clock
`, "exports.tick = 1;")

	if err := NewSeeder(store, appsDir).Seed(); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if !store.Exists("clock") {
		t.Error("nested app not found")
	}
}

func TestSeedDefaults(t *testing.T) {
	store, _ := newTestStore(t)

	seeder := NewSeeder(store, t.TempDir())
	if err := seeder.SeedDefaults(); err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}

	hello, err := store.Get("hello")
	if err != nil {
		t.Fatalf("Get(hello): %v", err)
	}
	if len(hello.Modules) != 1 || hello.Modules[0] != "tsyne/runtime" {
		t.Errorf("modules = %v", hello.Modules)
	}
	if hello.Digest == "" {
		t.Error("digest not stamped")
	}
	if !store.Exists("counter") {
		t.Error("counter not seeded")
	}

	// Defaults only fill gaps, they never overwrite.
	before := store.Len()
	if err := seeder.SeedDefaults(); err != nil {
		t.Fatalf("second SeedDefaults: %v", err)
	}
	if store.Len() != before {
		t.Errorf("len changed: %d -> %d", before, store.Len())
	}
}
