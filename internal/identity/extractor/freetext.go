package extractor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/stayflow/stayflow-backend/internal/identity/domain"
	"github.com/stayflow/stayflow-backend/internal/ocr"
)

// Free-text confidence never reaches a checksum-validated MRZ result
const freeTextConfidenceCeiling = 0.55

var (
	dobPattern       = regexp.MustCompile(`\b(\d{2})\.(\d{2})\.(\d{4})\b`)
	docNumberPattern = regexp.MustCompile(`\b(\d{9})\b`)
	surnameLabels    = []string{"PREZIME", "SURNAME", "FAMILY NAME", "COGNOME", "NACHNAME"}
	givenNameLabels  = []string{"IME", "NAME", "GIVEN NAME", "NOME", "VORNAME"}
)

// FreeTextExtractor handles documents without a readable MRZ: it hunts for
// labeled fields the way national ID cards print them (label line followed
// by the value line, or label and value on one line). Nationality and
// gender are left unset rather than guessed.
type FreeTextExtractor struct{}

func NewFreeTextExtractor() *FreeTextExtractor {
	return &FreeTextExtractor{}
}

func (e *FreeTextExtractor) Name() string {
	return "free-text"
}

func (e *FreeTextExtractor) Extract(ctx context.Context, res *ocr.Result) (*domain.ExtractedIdentity, error) {
	lines := make([]string, 0)
	for _, l := range res.SplitLines() {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	identity := &domain.ExtractedIdentity{
		SourceFormat: domain.SourceFreeText,
		Gender:       domain.GenderUnspecified,
	}

	identity.LastName = findLabeledValue(lines, surnameLabels)
	identity.FirstName = findLabeledValue(lines, givenNameLabels)

	full := strings.Join(lines, "\n")
	if m := dobPattern.FindStringSubmatch(full); m != nil {
		if t, err := time.Parse("02.01.2006", m[0]); err == nil {
			identity.DateOfBirth = t
		}
	}
	if m := docNumberPattern.FindStringSubmatch(full); m != nil {
		identity.DocumentNumber = m[1]
	}

	if identity.FullName() == "" && identity.DocumentNumber == "" {
		return nil, fmt.Errorf("no labeled name or document number found")
	}

	identity.Confidence = freeTextConfidence(identity)
	return identity, nil
}

func freeTextConfidence(identity *domain.ExtractedIdentity) float64 {
	confidence := 0.25
	if identity.FirstName != "" {
		confidence += 0.10
	}
	if identity.LastName != "" {
		confidence += 0.10
	}
	if !identity.DateOfBirth.IsZero() {
		confidence += 0.05
	}
	if identity.DocumentNumber != "" {
		confidence += 0.05
	}
	if confidence > freeTextConfidenceCeiling {
		confidence = freeTextConfidenceCeiling
	}
	return confidence
}

// findLabeledValue looks for a label either followed by the value on the
// same line or printed above it on its own line. Surname labels are checked
// before given-name labels by the caller, so "IME" never swallows "PREZIME".
func findLabeledValue(lines []string, labels []string) string {
	for i, line := range lines {
		upper := strings.ToUpper(line)
		for _, label := range labels {
			idx := labelIndex(upper, label)
			if idx < 0 {
				continue
			}

			// Value on the same line after the label. Bilingual cards
			// print "PREZIME / SURNAME", so the remainder being another
			// label means the value is on the next line.
			rest := strings.TrimLeft(line[idx+len(label):], " :/\\")
			if v := cleanValue(rest); v != "" && !isLabelLine(v) {
				return v
			}

			// Value on the following line
			if i+1 < len(lines) {
				if v := cleanValue(lines[i+1]); v != "" && !isLabelLine(v) {
					return v
				}
			}
		}
	}
	return ""
}

// labelIndex finds a label occurrence that is not part of a longer word,
// so "NAME" does not match inside "SURNAME".
func labelIndex(line, label string) int {
	for from := 0; from < len(line); {
		idx := strings.Index(line[from:], label)
		if idx < 0 {
			return -1
		}
		idx += from
		beforeOK := idx == 0 || !isLetter(line[idx-1])
		after := idx + len(label)
		afterOK := after == len(line) || !isLetter(line[after])
		if beforeOK && afterOK {
			return idx
		}
		from = idx + len(label)
	}
	return -1
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isLabelLine(s string) bool {
	upper := strings.ToUpper(s)
	for _, label := range append(append([]string{}, surnameLabels...), givenNameLabels...) {
		if labelIndex(upper, label) >= 0 {
			return true
		}
	}
	return false
}

func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	// Labels print values in caps; drop anything that is clearly not a name
	if dobPattern.MatchString(s) || docNumberPattern.MatchString(s) {
		return ""
	}
	return mrzTitleCaser.String(strings.ToLower(s))
}
