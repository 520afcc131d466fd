package privacy

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Anonymizer produces analytics-safe copies of assessment records. Direct
// identifiers become deterministic pseudonyms keyed by an HMAC secret, and
// quasi-identifiers (age, location) are generalized into coarse buckets.
type Anonymizer struct {
	secret []byte
	now    func() time.Time
}

// NewAnonymizer creates an anonymizer. The secret keys the pseudonym HMAC;
// the same secret must be used across runs for pseudonyms to stay stable.
func NewAnonymizer(secret []byte) *Anonymizer {
	return &Anonymizer{secret: secret, now: time.Now}
}

// pii fields replaced by pseudonyms.
var piiFields = []string{"name", "email", "phone", "address", "medical_id"}

// Anonymize returns a copy of the record with identifiers pseudonymized,
// age and location generalized, and anonymization metadata stamped on. The
// input map is never mutated.
func (a *Anonymizer) Anonymize(record map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(record)+2)
	for k, v := range record {
		out[k] = v
	}

	for _, field := range piiFields {
		if raw, ok := out[field]; ok {
			out[field] = a.Pseudonym(field, fmt.Sprint(raw))
		}
	}

	if raw, ok := out["age"]; ok {
		if age, ok := toInt(raw); ok {
			out["age_range"] = AgeRange(age)
		}
		delete(out, "age")
	}

	if raw, ok := out["location"]; ok {
		out["region"] = Region(fmt.Sprint(raw))
		delete(out, "location")
	}

	out["anonymized_at"] = a.now().UTC().Format(time.RFC3339)
	out["anonymization_id"] = randomHex(8)

	return out
}

// Pseudonym derives a deterministic replacement for one identifier. The
// same field type and value always map to the same pseudonym, so joins
// across anonymized records keep working.
func (a *Anonymizer) Pseudonym(fieldType, value string) string {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(fieldType + ":" + value))
	digest := hex.EncodeToString(mac.Sum(nil))

	switch fieldType {
	case "name":
		return "Patient_" + digest[:8]
	case "email":
		return "patient_" + digest[:8] + "@example.com"
	case "phone":
		return "***-***-" + digest[:4]
	default:
		return "***_" + digest[:6]
	}
}

// AgeRange buckets an exact age.
func AgeRange(age int) string {
	switch {
	case age < 18:
		return "0-17"
	case age < 30:
		return "18-29"
	case age < 45:
		return "30-44"
	case age < 60:
		return "45-59"
	case age < 75:
		return "60-74"
	default:
		return "75+"
	}
}

var regionMarkers = []struct {
	region  string
	markers []string
}{
	{"West Coast", []string{"ca", "california", "nevada", "oregon", "washington"}},
	{"Northeast", []string{"ny", "new york", "nj", "pennsylvania", "massachusetts"}},
	{"Southeast", []string{"tx", "texas", "florida", "georgia", "alabama"}},
}

// Region coarsens a free-form location string to one of four regions.
func Region(location string) string {
	lower := strings.ToLower(location)
	for _, r := range regionMarkers {
		for _, marker := range r.markers {
			if strings.Contains(lower, marker) {
				return r.region
			}
		}
	}
	return "Other US"
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func randomHex(n int) string {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		// crypto/rand failing means the process has bigger problems; an
		// empty id is still distinguishable downstream.
		return ""
	}
	return hex.EncodeToString(raw)
}
