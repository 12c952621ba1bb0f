package fetch

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func TestLoadSources(t *testing.T) {
	t.Parallel()

	path := writeCatalog(t, `
sources:
  - name: example-tech
    feed_url: https://example.com/tech.xml
    category: tech
    allow_fulltext: true
  - name: example-world
    feed_url: https://example.com/world.xml
    enabled: false
    max_items: 10
`)

	specs, err := LoadSources(path)
	if err != nil {
		t.Fatalf("LoadSources returned error: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(specs))
	}

	if !specs[0].IsEnabled() {
		t.Error("missing enabled key should default to enabled")
	}
	if !specs[0].AllowFulltext {
		t.Error("allow_fulltext not parsed")
	}
	if specs[1].IsEnabled() {
		t.Error("enabled: false not honored")
	}
	if specs[1].MaxItems != 10 {
		t.Errorf("max_items = %d, want 10", specs[1].MaxItems)
	}
}

func TestLoadSourcesValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		catalog string
	}{
		{
			name: "missing name",
			catalog: `
sources:
  - feed_url: https://example.com/a.xml
`,
		},
		{
			name: "missing feed_url",
			catalog: `
sources:
  - name: broken
`,
		},
		{
			name: "duplicate name",
			catalog: `
sources:
  - name: twice
    feed_url: https://example.com/a.xml
  - name: twice
    feed_url: https://example.com/b.xml
`,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := writeCatalog(t, tc.catalog)
			if _, err := LoadSources(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
