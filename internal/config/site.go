package config

import "maps"

// SiteProfile customizes crawl heuristics for a single host. The built-in
// selector lists and marker phrases were tuned against one family of comic
// article sites; profiles let other sites override them without code
// changes.
type SiteProfile struct {
	// PaginationSelectors replaces the built-in ordered pagination
	// selector list when non-empty.
	PaginationSelectors []string `yaml:"paginationSelectors,omitempty"`

	// ContentSelectors replaces the built-in ordered main-content
	// selector list when non-empty.
	ContentSelectors []string `yaml:"contentSelectors,omitempty"`

	// NextEpisodeMarkers replaces the built-in next-episode marker
	// phrases when non-empty.
	NextEpisodeMarkers []string `yaml:"nextEpisodeMarkers,omitempty"`

	// Headers are extra HTTP headers sent with page requests to this host.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// File represents the structure of the .comicscan configuration file.
type File struct {
	// Sites maps hostnames to their profiles (e.g., "example.com").
	Sites map[string]SiteProfile `yaml:"sites,omitempty"`

	// Defaults applies to every host unless overridden per site.
	Defaults SiteProfile `yaml:"defaults,omitempty"`
}

// ProfileFor returns the merged profile for a hostname: site-specific values
// override defaults field by field.
func (f *File) ProfileFor(host string) SiteProfile {
	result := f.Defaults

	site, ok := f.Sites[host]
	if !ok {
		return result
	}

	if len(site.PaginationSelectors) > 0 {
		result.PaginationSelectors = site.PaginationSelectors
	}
	if len(site.ContentSelectors) > 0 {
		result.ContentSelectors = site.ContentSelectors
	}
	if len(site.NextEpisodeMarkers) > 0 {
		result.NextEpisodeMarkers = site.NextEpisodeMarkers
	}
	if len(site.Headers) > 0 {
		// Merge into a fresh map; writing into the Defaults map would leak
		// one site's headers into every later lookup.
		merged := make(map[string]string, len(result.Headers)+len(site.Headers))
		maps.Copy(merged, result.Headers)
		maps.Copy(merged, site.Headers)
		result.Headers = merged
	}

	return result
}
