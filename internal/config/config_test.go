package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// TestConfigValidate tests configuration validation.
func TestConfigValidate(t *testing.T) {
	// Not parallel: NewConfig reads ANTHROPIC_API_KEY from the environment.
	valid := func() *Config {
		c := NewConfig()
		c.URL = "https://example.com/archives/42"
		c.APIKey = "sk-ant-test"
		return c
	}

	t.Run("accepts a valid configuration", func(t *testing.T) {
		if err := valid().Validate(); err != nil {
			t.Errorf("expected valid config, got %v", err)
		}
	})

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"missing URL", func(c *Config) { c.URL = "" }, ErrNoURL},
		{"missing API key", func(c *Config) { c.APIKey = "" }, ErrNoAPIKey},
		{"zero episodes", func(c *Config) { c.Episodes = 0 }, ErrInvalidEpisodes},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"threshold above one", func(c *Config) { c.Threshold = 1.5 }, ErrInvalidThreshold},
		{"negative threshold", func(c *Config) { c.Threshold = -0.1 }, ErrInvalidThreshold},
		{"quality above 100", func(c *Config) { c.Quality = 101 }, ErrInvalidQuality},
		{"zero max edge", func(c *Config) { c.MaxEdge = 0 }, ErrInvalidMaxEdge},
		{"zero max images", func(c *Config) { c.MaxImages = 0 }, ErrInvalidMaxImages},
		{"negative min size", func(c *Config) { c.MinImageKB = -1 }, ErrInvalidMinImageSize},
		{
			"conflicting report formats",
			func(c *Config) { c.JSONReport = true; c.MarkdownReport = true },
			ErrConflictingReportFormats,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			if err := c.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestStageModel tests stage model inheritance.
func TestStageModel(t *testing.T) {
	t.Parallel()

	c := &Config{Model: "primary-model"}
	if got := c.StageModel(""); got != "primary-model" {
		t.Errorf("expected inherited primary model, got %q", got)
	}
	if got := c.StageModel("other-model"); got != "other-model" {
		t.Errorf("expected override, got %q", got)
	}
}

// TestEscalationEnabled tests fallback tier detection.
func TestEscalationEnabled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		primary  string
		fallback string
		want     bool
	}{
		{"no fallback", "a", "", false},
		{"fallback equals primary", "a", "a", false},
		{"distinct fallback", "a", "b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := &Config{Model: tt.primary, FallbackModel: tt.fallback}
			if got := c.EscalationEnabled(); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

// TestLoadConfigFile tests site-profile loading.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("loads site profiles", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := filepath.Join(dir, DefaultConfigFile)
		content := `
sites:
  example.com:
    nextEpisodeMarkers:
      - "continue reading"
    headers:
      Cookie: "session=abc"
defaults:
  contentSelectors:
    - ".story-body"
`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		f, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		p := f.ProfileFor("example.com")
		if len(p.NextEpisodeMarkers) != 1 || p.NextEpisodeMarkers[0] != "continue reading" {
			t.Errorf("unexpected markers: %v", p.NextEpisodeMarkers)
		}
		if len(p.ContentSelectors) != 1 || p.ContentSelectors[0] != ".story-body" {
			t.Errorf("defaults not merged: %v", p.ContentSelectors)
		}

		// Unknown host gets defaults only.
		q := f.ProfileFor("other.com")
		if len(q.NextEpisodeMarkers) != 0 {
			t.Errorf("unexpected markers for unknown host: %v", q.NextEpisodeMarkers)
		}
		if len(q.ContentSelectors) != 1 {
			t.Errorf("defaults missing for unknown host: %v", q.ContentSelectors)
		}
	})

	t.Run("returns ErrConfigNotFound for missing file", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})
}

// TestProfileFor tests per-site profile merging.
func TestProfileFor(t *testing.T) {
	t.Parallel()

	t.Run("site headers merge over defaults", func(t *testing.T) {
		t.Parallel()

		f := &File{
			Defaults: SiteProfile{
				Headers: map[string]string{"User-Agent": "comicscan", "Accept": "text/html"},
			},
			Sites: map[string]SiteProfile{
				"example.com": {
					Headers: map[string]string{"Accept": "*/*", "Cookie": "session=abc"},
				},
			},
		}

		p := f.ProfileFor("example.com")
		if p.Headers["User-Agent"] != "comicscan" {
			t.Errorf("default header lost: %v", p.Headers)
		}
		if p.Headers["Accept"] != "*/*" || p.Headers["Cookie"] != "session=abc" {
			t.Errorf("site overrides not applied: %v", p.Headers)
		}
	})

	t.Run("merging never mutates defaults", func(t *testing.T) {
		t.Parallel()

		f := &File{
			Defaults: SiteProfile{
				Headers: map[string]string{"User-Agent": "comicscan"},
			},
			Sites: map[string]SiteProfile{
				"a.example.com": {Headers: map[string]string{"Cookie": "secret-for-a"}},
				"b.example.com": {Headers: map[string]string{"Accept": "*/*"}},
			},
		}

		if p := f.ProfileFor("a.example.com"); p.Headers["Cookie"] != "secret-for-a" {
			t.Fatalf("unexpected profile for a: %v", p.Headers)
		}

		if _, ok := f.Defaults.Headers["Cookie"]; ok {
			t.Error("site header leaked into defaults")
		}
		if p := f.ProfileFor("b.example.com"); p.Headers["Cookie"] != "" {
			t.Errorf("another site's cookie leaked: %v", p.Headers)
		}
		if p := f.ProfileFor("other.com"); p.Headers["Cookie"] != "" {
			t.Errorf("cookie leaked into unknown-host defaults: %v", p.Headers)
		}
	})
}
