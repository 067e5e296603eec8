package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadPrefersFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "key")
	if err := os.WriteFile(path, []byte("  from-file\n"), 0o600); err != nil {
		t.Fatalf("writing key file: %v", err)
	}
	t.Setenv("TEST_PLACEMENT_KEY", "from-env")

	got, err := Load(Source{Name: "api key", File: path, Value: "inline", Env: "TEST_PLACEMENT_KEY"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "from-file" {
		t.Fatalf("expected file secret, got %q", got)
	}
}

func TestLoadFallsBackToValueThenEnv(t *testing.T) {
	t.Setenv("TEST_PLACEMENT_KEY", " from-env ")

	got, err := Load(Source{Value: " inline ", Env: "TEST_PLACEMENT_KEY"})
	if err != nil || got != "inline" {
		t.Fatalf("expected inline secret, got %q (%v)", got, err)
	}

	got, err = Load(Source{Env: "TEST_PLACEMENT_KEY"})
	if err != nil || got != "from-env" {
		t.Fatalf("expected env secret, got %q (%v)", got, err)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	if err := os.WriteFile(empty, []byte("  \n"), 0o600); err != nil {
		t.Fatalf("writing key file: %v", err)
	}
	t.Setenv("TEST_PLACEMENT_UNSET", "")

	tests := []struct {
		name   string
		src    Source
		expect string
	}{
		{name: "missing file", src: Source{Name: "gemini api key", File: filepath.Join(dir, "nope")}, expect: "reading gemini api key from file"},
		{name: "empty file", src: Source{Name: "gemini api key", File: empty}, expect: "is empty"},
		{name: "unset env", src: Source{Name: "openai api key", Env: "TEST_PLACEMENT_UNSET"}, expect: "set TEST_PLACEMENT_UNSET"},
		{name: "nothing", src: Source{}, expect: "secret is not configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.src)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.expect) {
				t.Fatalf("expected error to contain %q, got %v", tt.expect, err)
			}
		})
	}
}
