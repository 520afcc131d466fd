// Package threat scans request payloads for injection signatures and scores
// request metadata for suspicious traits.
package threat

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/healthassess/secure-gateway/models"
)

var sqlPatterns = compileAll(
	`(?i)(\b(SELECT|INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|EXEC|UNION)\b)`,
	`(--|#|/\*|\*/)`,
	`(?i)(\b(OR|AND)\s+\d+\s*=\s*\d+)`,
	`(?i)(\b(OR|AND)\s+['"][^'"]*['"])`,
	`(;|\||&)`,
)

var xssPatterns = compileAll(
	`(?is)<script[^>]*>.*?</script>`,
	`(?i)javascript:`,
	`(?i)on\w+\s*=`,
	`(?i)<iframe[^>]*>`,
	`(?i)<object[^>]*>`,
	`(?i)<embed[^>]*>`,
	`(?i)<link[^>]*>`,
	`(?i)<meta[^>]*>`,
)

var pathTraversalPatterns = compileAll(
	`\.\./`,
	`\.\.\\`,
	`(?i)%2e%2e%2f`,
	`(?i)%2e%2e/`,
	`(?i)\.\.%2f`,
	`(?i)%2e%2e%5c`,
)

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

type signatureFamily struct {
	category models.ThreatCategory
	level    models.ThreatLevel
	patterns []*regexp.Regexp
}

func families() []signatureFamily {
	return []signatureFamily{
		{models.ThreatSQLInjection, models.ThreatLevelHigh, sqlPatterns},
		{models.ThreatXSS, models.ThreatLevelHigh, xssPatterns},
		{models.ThreatPathTraversal, models.ThreatLevelMedium, pathTraversalPatterns},
	}
}

// ScanResult holds the outcome of one payload scan. Sanitized is only
// populated when violations were found; a clean payload passes through
// untouched.
type ScanResult struct {
	Valid      bool               `json:"valid"`
	Violations []models.Violation `json:"violations"`
	Sanitized  interface{}        `json:"sanitized_data,omitempty"`
}

// Blocking reports whether any violation is severe enough to reject the
// request outright.
func (r *ScanResult) Blocking() bool {
	for _, v := range r.Violations {
		if v.Level.Blocking() {
			return true
		}
	}
	return false
}

// Scanner matches payload strings against the signature families. It is
// stateless and safe for concurrent use.
type Scanner struct{}

// NewScanner creates a payload scanner.
func NewScanner() *Scanner {
	return &Scanner{}
}

// ScanPayload walks the decoded payload. Strings are matched directly; maps
// and slices are walked recursively with dotted / indexed field paths so a
// violation names the exact offending field. Non-string leaves (numbers,
// booleans, nil) cannot carry signatures and are skipped.
func (s *Scanner) ScanPayload(payload interface{}) *ScanResult {
	violations := s.walk(payload, "input")
	result := &ScanResult{
		Valid:      len(violations) == 0,
		Violations: violations,
	}
	if !result.Valid {
		result.Sanitized = sanitize(payload)
	} else {
		result.Sanitized = payload
	}
	return result
}

func (s *Scanner) walk(value interface{}, path string) []models.Violation {
	switch v := value.(type) {
	case string:
		return matchString(v, path)
	case map[string]interface{}:
		var out []models.Violation
		for key, sub := range v {
			out = append(out, s.walk(sub, path+"."+key)...)
		}
		return out
	case []interface{}:
		var out []models.Violation
		for i, item := range v {
			out = append(out, s.walk(item, fmt.Sprintf("%s[%d]", path, i))...)
		}
		return out
	default:
		return nil
	}
}

func matchString(text, path string) []models.Violation {
	var out []models.Violation
	for _, fam := range families() {
		for _, p := range fam.patterns {
			if p.MatchString(text) {
				out = append(out, models.Violation{
					Type:  fam.category,
					Field: path,
					Level: fam.level,
				})
			}
		}
	}
	return out
}

// sanitize returns a copy of the payload with every signature match stripped
// out of string leaves. The input is never mutated.
func sanitize(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		for _, fam := range families() {
			for _, p := range fam.patterns {
				v = p.ReplaceAllString(v, "")
			}
		}
		return strings.TrimSpace(v)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, sub := range v {
			out[key] = sanitize(sub)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = sanitize(item)
		}
		return out
	default:
		return value
	}
}
