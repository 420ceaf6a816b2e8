package pathutil

import (
	"regexp"
	"strings"
)

// PathPattern represents a regex pattern and its corresponding normalized template.
type PathPattern struct {
	Pattern  *regexp.Regexp
	Template string
}

// pathPatterns defines the list of patterns for dynamic routes.
// Patterns are evaluated in order from most specific to least specific.
// Pre-compiled at initialization for optimal performance (<1μs per operation).
var pathPatterns = []*PathPattern{
	// Story routes with IDs
	{Pattern: regexp.MustCompile(`^/stories/\d+$`), Template: "/stories/:id"},
	{Pattern: regexp.MustCompile(`^/stories/\d+/scores$`), Template: "/stories/:id/scores"},
	{Pattern: regexp.MustCompile(`^/stories/\d+/entities$`), Template: "/stories/:id/entities"},

	// Project routes with IDs
	{Pattern: regexp.MustCompile(`^/projects/\d+$`), Template: "/projects/:id"},
	{Pattern: regexp.MustCompile(`^/projects/\d+/stories$`), Template: "/projects/:id/stories"},
	{Pattern: regexp.MustCompile(`^/projects/\d+/stats$`), Template: "/projects/:id/stats"},

	// User routes with IDs (if applicable in the future)
	{Pattern: regexp.MustCompile(`^/users/\d+$`), Template: "/users/:id"},
	{Pattern: regexp.MustCompile(`^/users/\d+/profile$`), Template: "/users/:id/profile"},
}

// NormalizePath normalizes dynamic URL paths to prevent metrics label cardinality explosion.
// It converts paths with IDs (e.g., /stories/123) to template format (e.g., /stories/:id).
// Static paths and search endpoints remain unchanged.
//
// Performance: <1μs per operation (pre-compiled regex patterns)
//
// Examples:
//
//	NormalizePath("/stories/123")          // "/stories/:id"
//	NormalizePath("/stories/456")          // "/stories/:id"
//	NormalizePath("/projects/789")           // "/projects/:id"
//	NormalizePath("/stories/search")       // "/stories/search" (unchanged)
//	NormalizePath("/projects/search")        // "/projects/search" (unchanged)
//	NormalizePath("/health")                // "/health" (unchanged)
//	NormalizePath("/metrics")               // "/metrics" (unchanged)
//	NormalizePath("/auth/token")            // "/auth/token" (unchanged)
//	NormalizePath("/unknown/path/123")      // "/unknown/path/123" (no match, return original)
//
// Query parameters and trailing slashes are handled:
//
//	NormalizePath("/stories/123?page=1")   // "/stories/:id"
//	NormalizePath("/stories/123/")         // "/stories/:id"
func NormalizePath(path string) string {
	// Strip query parameters if present
	if idx := strings.IndexByte(path, '?'); idx != -1 {
		path = path[:idx]
	}

	// Strip trailing slash if present (except for root path)
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}

	// Try to match against known patterns
	for _, p := range pathPatterns {
		if p.Pattern.MatchString(path) {
			return p.Template
		}
	}

	// No match found, return original path
	// This is safe - static paths like /health, /metrics, /auth/token
	// and search endpoints like /stories/search will pass through unchanged
	return path
}

// GetExpectedCardinality returns the expected number of unique path labels
// after normalization. This is useful for capacity planning and monitoring.
//
// Expected cardinality calculation:
//   - Static endpoints: ~8-10 (health, metrics, auth, etc.)
//   - Template endpoints: ~10-15 (stories/:id, projects/:id, etc.)
//   - Search endpoints: ~4-6 (stories/search, projects/search, etc.)
//   - Total: ~20-30 unique path labels
func GetExpectedCardinality() int {
	// Count template patterns
	templateCount := len(pathPatterns)

	// Estimate static endpoints
	staticCount := 10 // /health, /metrics, /auth/token, etc.

	// Total expected cardinality
	return templateCount + staticCount
}
