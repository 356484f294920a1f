package indicator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediascore/internal/models"
)

func TestDefaults(t *testing.T) {
	registry := NewRegistry()

	media, ok := registry.Get("skoring-publikasi-media")
	if !ok {
		t.Fatal("Media indicator should be registered by default")
	}
	if media.Family != models.FamilyMedia {
		t.Errorf("Unexpected family: %s", media.Family)
	}
	if len(media.LinkFields()) != 6 {
		t.Errorf("Expected 6 link fields, got %d", len(media.LinkFields()))
	}

	target, ok := registry.Get("target-realisasi")
	if !ok {
		t.Fatal("Target realization indicator should be registered by default")
	}
	if target.MinFields != 4 {
		t.Errorf("Target realization requires 4 columns, got MinFields=%d", target.MinFields)
	}
	if len(target.LinkFields()) != 0 {
		t.Error("Target realization columns are not links")
	}

	if _, ok := registry.Get("unknown"); ok {
		t.Error("Unknown key should not resolve")
	}
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	config := `
indicators:
  - key: skoring-publikasi-media
    family: media
    min_fields: 2
    fields:
      - canonical: online_news
        aliases: ["portal berita"]
        is_link: true
        media_type: online_news
  - key: skoring-podcast
    family: media
    min_fields: 1
    fields:
      - canonical: podcast
        aliases: ["podcast", "siniar"]
        is_link: true
        media_type: social_media
`
	path := writeConfig(t, config)

	registry := NewRegistry()
	if err := registry.LoadFile(path); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	// Known key is replaced wholesale
	media, _ := registry.Get("skoring-publikasi-media")
	if media.MinFields != 2 || len(media.Fields) != 1 {
		t.Errorf("Override should replace the default config, got %+v", media)
	}

	// New key is added
	podcast, ok := registry.Get("skoring-podcast")
	if !ok {
		t.Fatal("New indicator from file should be registered")
	}
	if podcast.Fields[0].Aliases[1] != "siniar" {
		t.Errorf("Unexpected aliases: %v", podcast.Fields[0].Aliases)
	}

	// Untouched defaults survive
	if _, ok := registry.Get("target-realisasi"); !ok {
		t.Error("Defaults not named in the file should remain registered")
	}
}

func TestLoadFileRejectsUnknownFamily(t *testing.T) {
	path := writeConfig(t, `
indicators:
  - key: weird
    family: sentiment
    fields:
      - canonical: x
`)

	err := NewRegistry().LoadFile(path)
	if err == nil {
		t.Fatal("Unknown family should fail")
	}
	if !strings.Contains(err.Error(), "sentiment") {
		t.Errorf("Error should name the bad family, got: %v", err)
	}
}

func TestLoadFileRejectsMissingKey(t *testing.T) {
	path := writeConfig(t, `
indicators:
  - family: media
    fields:
      - canonical: x
`)

	if err := NewRegistry().LoadFile(path); err == nil {
		t.Fatal("Entry without a key should fail")
	}
}

func TestLoadFileMissingFile(t *testing.T) {
	if err := NewRegistry().LoadFile("/nonexistent/indicators.yaml"); err == nil {
		t.Error("Missing file should fail")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "indicators.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}
