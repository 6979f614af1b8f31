package reasoner

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/bumpsafe/bumpsafe/pkg/models"
)

// FallbackScore is used whenever a reply carries no parseable risk score.
// The upstream reply format is not contractually guaranteed, so the parser
// is lenient and the fallback explicit.
const FallbackScore = 5

var (
	riskScoreRe  = regexp.MustCompile(`(?i)RISK_SCORE:\s*(\d{1,3})`)
	referencesRe = regexp.MustCompile(`(?i)REFERENCES:\s*(.+)`)
	itemRe       = regexp.MustCompile(`(?i)ITEM:\s*(.+)`)
)

// Parse extracts an Assessment from free reasoner text: the prose verdict
// with marker lines stripped, the risk score, and any references.
func Parse(text string) models.Assessment {
	return models.Assessment{
		Result:     stripMarkers(text),
		RiskScore:  ParseRiskScore(text),
		References: ParseReferences(text),
	}
}

// ParseRiskScore extracts the RISK_SCORE token from a reply. Absent,
// unparseable, or out-of-range values yield FallbackScore.
func ParseRiskScore(text string) int {
	m := riskScoreRe.FindStringSubmatch(text)
	if m == nil {
		return FallbackScore
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 || n > 10 {
		return FallbackScore
	}
	return n
}

// ParseReferences extracts the REFERENCES line, split on semicolons.
// Returns nil when absent or explicitly "none".
func ParseReferences(text string) []string {
	m := referencesRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	var refs []string
	for _, part := range strings.Split(m[1], ";") {
		ref := strings.TrimSpace(part)
		if ref == "" || strings.EqualFold(ref, "none") {
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}

// ParseItem extracts the ITEM line from an image-check reply, falling
// back to "photo" when the model did not name the object.
func ParseItem(text string) string {
	m := itemRe.FindStringSubmatch(text)
	if m == nil {
		return "photo"
	}
	item := strings.TrimSpace(m[1])
	if item == "" {
		return "photo"
	}
	return item
}

// stripMarkers removes ITEM/RISK_SCORE/REFERENCES lines so the verdict
// prose is clean for display. If stripping leaves nothing, the original
// text is returned untouched.
func stripMarkers(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if riskScoreRe.MatchString(trimmed) || referencesRe.MatchString(trimmed) || itemRe.MatchString(trimmed) {
			continue
		}
		kept = append(kept, line)
	}
	out := strings.TrimSpace(strings.Join(kept, "\n"))
	if out == "" {
		return strings.TrimSpace(text)
	}
	return out
}
