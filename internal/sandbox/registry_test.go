package sandbox

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func testArtifact(t *testing.T, label string) *Artifact {
	t.Helper()
	art, err := Build(`run();`, label, ModuleWhitelist{"app/api"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return art
}

func TestRegistryLifecycle(t *testing.T) {
	reg := NewRegistry()
	art := testArtifact(t, "first")

	entry, err := reg.Create(art)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if entry.Token != art.Token || entry.Label != "first" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.CreatedAt.IsZero() {
		t.Errorf("CreatedAt not set")
	}
	if reg.Len() != 1 {
		t.Errorf("Len = %d, want 1", reg.Len())
	}

	if _, err := reg.Create(art); !errors.Is(err, ErrTokenExists) {
		t.Errorf("duplicate Create = %v, want ErrTokenExists", err)
	}

	got, ok := reg.Get(art.Token)
	if !ok {
		t.Fatalf("Get missed a live entry")
	}
	got.Label = "mutated"
	if again, _ := reg.Get(art.Token); again.Label != "first" {
		t.Errorf("Get returned shared state: label = %q", again.Label)
	}

	if err := reg.Destroy(art.Token); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if err := reg.Destroy(art.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Destroy = %v, want ErrNotFound", err)
	}
	if _, ok := reg.Get(art.Token); ok {
		t.Errorf("Get found a destroyed entry")
	}
	if reg.Len() != 0 {
		t.Errorf("Len = %d after destroy, want 0", reg.Len())
	}
}

func TestRegistryList(t *testing.T) {
	reg := NewRegistry()
	tokens := make(map[Token]struct{})
	for i := 0; i < 5; i++ {
		art := testArtifact(t, fmt.Sprintf("app-%d", i))
		if _, err := reg.Create(art); err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
		tokens[art.Token] = struct{}{}
	}

	list := reg.List()
	if len(list) != 5 {
		t.Fatalf("List returned %d entries, want 5", len(list))
	}
	for _, e := range list {
		if _, ok := tokens[e.Token]; !ok {
			t.Errorf("List returned unknown token %s", e.Token.Short())
		}
	}
}

func TestRegistryConcurrentCreate(t *testing.T) {
	reg := NewRegistry()
	const workers = 16

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			art, err := Build(`run();`, fmt.Sprintf("w-%d", n), nil)
			if err != nil {
				errs <- err
				return
			}
			if _, err := reg.Create(art); err != nil {
				errs <- err
				return
			}
			if _, ok := reg.Get(art.Token); !ok {
				errs <- fmt.Errorf("worker %d: entry missing after create", n)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent create: %v", err)
	}
	if reg.Len() != workers {
		t.Errorf("Len = %d, want %d", reg.Len(), workers)
	}
}
