package indicator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"mediascore/internal/models"
)

// FieldSpec describes one canonical column of an indicator type and the
// header aliases it may appear under in uploaded spreadsheets.
type FieldSpec struct {
	Canonical string   `yaml:"canonical"`
	Aliases   []string `yaml:"aliases"`
	IsLink    bool     `yaml:"is_link"`
	MediaType string   `yaml:"media_type,omitempty"`
}

// Config describes the column schema of one indicator type.
type Config struct {
	Key       string      `yaml:"key"`
	Family    string      `yaml:"family"`
	Fields    []FieldSpec `yaml:"fields"`
	MinFields int         `yaml:"min_fields"`
}

// LinkFields returns the subset of fields that carry media links.
func (c *Config) LinkFields() []FieldSpec {
	var out []FieldSpec
	for _, f := range c.Fields {
		if f.IsLink {
			out = append(out, f)
		}
	}
	return out
}

// Registry holds the known indicator configurations.
type Registry struct {
	configs map[string]Config
}

// NewRegistry returns a registry seeded with the built-in indicator types.
func NewRegistry() *Registry {
	r := &Registry{configs: make(map[string]Config)}
	for _, cfg := range defaults() {
		r.configs[cfg.Key] = cfg
	}
	return r
}

// LoadFile merges indicator configurations from a YAML file over the
// built-in defaults. Entries with a known key replace the default.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read indicator config: %w", err)
	}

	var file struct {
		Indicators []Config `yaml:"indicators"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse indicator config: %w", err)
	}

	for _, cfg := range file.Indicators {
		if cfg.Key == "" {
			return fmt.Errorf("indicator config entry missing key")
		}
		if cfg.Family != models.FamilyMedia && cfg.Family != models.FamilyTargetRealization {
			return fmt.Errorf("indicator %q: unknown family %q", cfg.Key, cfg.Family)
		}
		r.configs[cfg.Key] = cfg
	}

	return nil
}

// Get returns the configuration for an indicator type key.
func (r *Registry) Get(key string) (Config, bool) {
	cfg, ok := r.configs[key]
	return cfg, ok
}

// Keys lists the registered indicator type keys.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.configs))
	for k := range r.configs {
		keys = append(keys, k)
	}
	return keys
}

func defaults() []Config {
	return []Config{
		{
			Key:       "skoring-publikasi-media",
			Family:    models.FamilyMedia,
			MinFields: 1,
			Fields: []FieldSpec{
				{
					Canonical: "online_news",
					Aliases:   []string{"online news", "media online", "berita online", "news"},
					IsLink:    true,
					MediaType: models.MediaOnlineNews,
				},
				{
					Canonical: "social_media",
					Aliases:   []string{"social media", "media sosial", "medsos", "sosmed"},
					IsLink:    true,
					MediaType: models.MediaSocialMedia,
				},
				{
					Canonical: "radio",
					Aliases:   []string{"radio", "siaran radio"},
					IsLink:    true,
					MediaType: models.MediaRadio,
				},
				{
					Canonical: "print_media",
					Aliases:   []string{"print media", "media cetak", "koran", "surat kabar"},
					IsLink:    true,
					MediaType: models.MediaPrint,
				},
				{
					Canonical: "running_text",
					Aliases:   []string{"running text", "teks berjalan"},
					IsLink:    true,
					MediaType: models.MediaRunningText,
				},
				{
					Canonical: "tv",
					Aliases:   []string{"tv", "televisi", "television", "siaran tv"},
					IsLink:    true,
					MediaType: models.MediaTV,
				},
			},
		},
		{
			Key:       "target-realisasi",
			Family:    models.FamilyTargetRealization,
			MinFields: 4,
			Fields: []FieldSpec{
				{Canonical: "indicator", Aliases: []string{"indikator", "indicator", "kpi"}},
				{Canonical: "target", Aliases: []string{"target"}},
				{Canonical: "realization", Aliases: []string{"realisasi", "realization", "capaian"}},
				{Canonical: "unit", Aliases: []string{"satuan", "unit"}},
			},
		},
	}
}
