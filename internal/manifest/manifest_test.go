package manifest

import (
	"strings"
	"testing"
	"time"

	"github.com/tsyne-dev/tsyne-host/internal/shared/utils"
)

func TestParseComplete(t *testing.T) {
	content := `
app:
  id: clock
  name: Clock
  description: A wall clock
  version: 1.0.0
  author: tsyne
  tags: [time, widget]
sandbox:
  modules: [tsyne/runtime, app/config]
  timeout: 5s
entry: clock.js
`
	m, err := Parse([]byte(content))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if m.App.ID != "clock" || m.App.Name != "Clock" {
		t.Errorf("app = %+v", m.App)
	}
	if m.App.Version != "1.0.0" || m.App.Author != "tsyne" {
		t.Errorf("version/author = %q/%q", m.App.Version, m.App.Author)
	}
	if len(m.App.Tags) != 2 || m.App.Tags[0] != "time" {
		t.Errorf("tags = %v", m.App.Tags)
	}
	if len(m.Sandbox.Modules) != 2 || m.Sandbox.Modules[1] != "app/config" {
		t.Errorf("modules = %v", m.Sandbox.Modules)
	}
	if m.Timeout != 5*time.Second {
		t.Errorf("timeout = %s, want 5s", m.Timeout)
	}
	if m.Entry != "clock.js" {
		t.Errorf("entry = %q", m.Entry)
	}
}

func TestParseMinimal(t *testing.T) {
	content := `
app:
  id: hello
  name: Hello
`
	m, err := Parse([]byte(content))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if m.Entry != DefaultEntry {
		t.Errorf("entry = %q, want %q", m.Entry, DefaultEntry)
	}
	if m.Timeout != 0 {
		t.Errorf("timeout = %s, want 0 (host default)", m.Timeout)
	}
	if len(m.Sandbox.Modules) != 0 {
		t.Errorf("modules = %v, want none", m.Sandbox.Modules)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "not yaml",
			content: "app: [unclosed",
		},
		{
			name: "missing id",
			content: `
app:
  name: No ID
`,
		},
		{
			name: "id not a slug",
			content: `
app:
  id: Not_A_Slug
  name: Bad
`,
		},
		{
			name: "missing name",
			content: `
app:
  id: anon
`,
		},
		{
			name: "malformed version",
			content: `
app:
  id: versioned
  name: Versioned
  version: one-point-oh
`,
		},
		{
			name: "bad module specifier",
			content: `
app:
  id: escapist
  name: Escapist
sandbox:
  modules: ["../outside"]
`,
		},
		{
			name: "entry escapes app directory",
			content: `
app:
  id: sneaky
  name: Sneaky
entry: ../../etc/passwd
`,
		},
		{
			name: "unparseable timeout",
			content: `
app:
  id: slow
  name: Slow
sandbox:
  timeout: whenever
`,
		},
		{
			name: "negative timeout",
			content: `
app:
  id: rushed
  name: Rushed
sandbox:
  timeout: -5s
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.content)); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestParseRejectsOversizedManifest(t *testing.T) {
	content := "app:\n  id: big\n  name: Big\n# " + strings.Repeat("x", utils.MaxManifestSize)
	if _, err := Parse([]byte(content)); err == nil {
		t.Error("expected size error")
	}
}

func TestPackageConversion(t *testing.T) {
	content := `
app:
  id: clock
  name: Clock
  version: 1.2.3
  author: tsyne
sandbox:
  modules: [tsyne/runtime]
  timeout: 2s
`
	m, err := Parse([]byte(content))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	source := "exports.now = function () { return 0; };"
	pkg := m.Package(source)

	if pkg.ID != "clock" || pkg.Name != "Clock" || pkg.Version != "1.2.3" {
		t.Errorf("package = %+v", pkg)
	}
	if pkg.Source != source {
		t.Error("source not attached")
	}
	if pkg.Digest != utils.Fingerprint([]byte(source)) {
		t.Errorf("digest = %q", pkg.Digest)
	}
	if pkg.Timeout != 2*time.Second {
		t.Errorf("timeout = %s", pkg.Timeout)
	}
	if pkg.CreatedAt.IsZero() || pkg.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
}
