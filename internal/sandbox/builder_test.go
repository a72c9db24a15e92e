package sandbox

import (
	"errors"
	"strings"
	"testing"
)

func TestBuildWithToken(t *testing.T) {
	src := `const api = require('app/api'); window.render(api.view());`
	art, err := BuildWithToken(src, "demo-app", ModuleWhitelist{"app/api", "app/api", "app/ui"}, testToken)
	if err != nil {
		t.Fatalf("BuildWithToken failed: %v", err)
	}

	if art.Token != testToken {
		t.Errorf("token = %q, want %q", art.Token, testToken)
	}
	if art.Label != "demo-app" {
		t.Errorf("label = %q", art.Label)
	}
	if len(art.Whitelist) != 2 || art.Whitelist[0] != "app/api" || art.Whitelist[1] != "app/ui" {
		t.Errorf("whitelist not normalized: %v", art.Whitelist)
	}
	if art.Digest == "" {
		t.Errorf("digest is empty")
	}

	if !strings.HasPrefix(art.Code, "var "+ViolationFactoryName(testToken)+" = function") {
		t.Errorf("code does not open with the violation factory")
	}
	transformed, err := Transform(src, testToken)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if !strings.HasSuffix(art.Code, "\n"+transformed) {
		t.Errorf("code does not end with the transformed source")
	}
	if !strings.Contains(art.Code, `["app/api","app/ui"]`) {
		t.Errorf("code missing whitelist literal")
	}
	if !strings.Contains(art.Code, ph(CapRequire)) || !strings.Contains(art.Code, ph(CapWindow)) {
		t.Errorf("code missing expected placeholders")
	}
}

func TestBuildDigestTracksSource(t *testing.T) {
	a1, err := BuildWithToken(`run(1);`, "a", nil, testToken)
	if err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	a2, err := BuildWithToken(`run(1);`, "b", nil, Token("ffffffffffffffffffffffffffffffff"))
	if err != nil {
		t.Fatalf("second build failed: %v", err)
	}
	a3, err := BuildWithToken(`run(2);`, "a", nil, testToken)
	if err != nil {
		t.Fatalf("third build failed: %v", err)
	}

	if a1.Digest != a2.Digest {
		t.Errorf("same source produced different digests under different tokens")
	}
	if a1.Digest == a3.Digest {
		t.Errorf("different sources share a digest")
	}
}

func TestBuildIsolatesTokens(t *testing.T) {
	src := `const fs = require('fs'); eval(fs); window.open(); process.exit(0);`

	arts := make([]*Artifact, 0, 100)
	seen := make(map[Token]struct{}, 100)
	for i := 0; i < 100; i++ {
		art, err := Build(src, "iso", ModuleWhitelist{"fs"})
		if err != nil {
			t.Fatalf("build %d failed: %v", i, err)
		}
		if _, dup := seen[art.Token]; dup {
			t.Fatalf("build %d reused token %s", i, art.Token.Short())
		}
		seen[art.Token] = struct{}{}
		arts = append(arts, art)
	}

	for i, art := range arts {
		for _, c := range Capabilities() {
			if !strings.Contains(art.Code, c.Placeholder(art.Token)) {
				t.Fatalf("build %d missing placeholder for %s", i, c.Ident())
			}
		}
	}
	for i, art := range arts {
		for j, other := range arts {
			if i == j {
				continue
			}
			if strings.Contains(art.Code, string(other.Token)) {
				t.Fatalf("build %d contains token of build %d", i, j)
			}
		}
	}
}

func TestBuildInvalidToken(t *testing.T) {
	_, err := BuildWithToken(`run();`, "x", nil, Token("not-a-token"))
	if err == nil {
		t.Fatalf("expected error for invalid token")
	}
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestBuildTransformErrorCarriesLabel(t *testing.T) {
	_, err := Build(`const = ;`, "broken-app", nil)
	if err == nil {
		t.Fatalf("expected transform failure")
	}
	var te *TransformError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransformError, got %T", err)
	}
	if te.Label != "broken-app" {
		t.Errorf("label = %q, want %q", te.Label, "broken-app")
	}
	if te.Line != 1 {
		t.Errorf("line = %d, want 1", te.Line)
	}
}

func TestBuildOutputAuditsClean(t *testing.T) {
	sources := []string{
		`const fs = require('fs'); eval(fs); new Function('x');`,
		`window.open(); globalThis.x = process.argv; import('./m');`,
		`function f(require) { return require('./local'); } f(shim); require('fs');`,
	}
	for _, src := range sources {
		art, err := Build(src, "audited", ModuleWhitelist{"fs"})
		if err != nil {
			t.Fatalf("Build(%q) failed: %v", src, err)
		}
		for _, w := range Audit(art.Code, art.Token) {
			t.Errorf("artifact of %q flagged: %s at %d:%d (%s)",
				src, w.Capability, w.Line, w.Column, w.Detail)
		}
	}
}
