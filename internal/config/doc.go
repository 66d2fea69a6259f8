// Package config defines the configuration surface for comicscan.
//
// Configuration flows from CLI flags into a single Config struct which is
// validated once, before any network activity, and then passed through the
// application by dependency injection. Site-specific crawl heuristics
// (selector lists, next-episode markers, extra headers) can be overridden
// per host via a YAML profile file (.comicscan).
package config
