package threat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthassess/secure-gateway/models"
)

func TestScanPayloadSQLInjection(t *testing.T) {
	s := NewScanner()

	result := s.ScanPayload("'; DROP TABLE users; --")
	require.False(t, result.Valid)
	assert.True(t, result.Blocking())

	var categories []models.ThreatCategory
	for _, v := range result.Violations {
		categories = append(categories, v.Type)
		assert.Equal(t, "input", v.Field)
	}
	assert.Contains(t, categories, models.ThreatSQLInjection)
}

func TestScanPayloadXSS(t *testing.T) {
	s := NewScanner()

	for name, payload := range map[string]string{
		"script tag":  `<script>alert(1)</script>`,
		"js scheme":   `javascript:alert(document.cookie)`,
		"dom handler": `<img onerror= x>`,
		"iframe":      `<iframe src="https://evil.example">`,
	} {
		t.Run(name, func(t *testing.T) {
			result := s.ScanPayload(payload)
			require.False(t, result.Valid)
			found := false
			for _, v := range result.Violations {
				if v.Type == models.ThreatXSS {
					found = true
					assert.Equal(t, models.ThreatLevelHigh, v.Level)
				}
			}
			assert.True(t, found, "expected an xss violation")
		})
	}
}

func TestScanPayloadPathTraversalIsMedium(t *testing.T) {
	s := NewScanner()

	result := s.ScanPayload("../../etc/passwd")
	require.False(t, result.Valid)

	for _, v := range result.Violations {
		if v.Type == models.ThreatPathTraversal {
			assert.Equal(t, models.ThreatLevelMedium, v.Level)
		}
	}
}

func TestScanPayloadNestedFields(t *testing.T) {
	s := NewScanner()

	payload := map[string]interface{}{
		"name": "alice",
		"notes": []interface{}{
			"normal note",
			"<script>steal()</script>",
		},
		"profile": map[string]interface{}{
			"bio": "1 OR 1=1",
		},
	}

	result := s.ScanPayload(payload)
	require.False(t, result.Valid)

	fields := make(map[string]bool)
	for _, v := range result.Violations {
		fields[v.Field] = true
	}
	assert.True(t, fields["input.notes[1]"])
	assert.True(t, fields["input.profile.bio"])
	assert.False(t, fields["input.name"])
}

func TestScanPayloadCleanPassesThrough(t *testing.T) {
	s := NewScanner()

	payload := map[string]interface{}{
		"symptoms": []interface{}{"headache", "fatigue"},
		"age":      float64(42),
	}
	result := s.ScanPayload(payload)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Violations)
	assert.Equal(t, payload, result.Sanitized)
}

func TestSanitizeStripsSignaturesWithoutMutatingInput(t *testing.T) {
	s := NewScanner()

	payload := map[string]interface{}{
		"comment": `hello <script>alert(1)</script> world`,
	}
	result := s.ScanPayload(payload)
	require.False(t, result.Valid)

	sanitized, ok := result.Sanitized.(map[string]interface{})
	require.True(t, ok)
	assert.NotContains(t, sanitized["comment"], "<script>")

	// Original payload untouched.
	assert.Contains(t, payload["comment"], "<script>")
}

func TestNonStringLeavesSkipped(t *testing.T) {
	s := NewScanner()

	result := s.ScanPayload(map[string]interface{}{
		"age":    float64(37),
		"active": true,
		"extra":  nil,
	})
	assert.True(t, result.Valid)
}
