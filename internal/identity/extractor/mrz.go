package extractor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/stayflow/stayflow-backend/internal/identity/domain"
	"github.com/stayflow/stayflow-backend/internal/ocr"
)

// MRZ line lengths per ICAO 9303 format
const (
	td1LineLen = 30
	td2LineLen = 36
	td3LineLen = 44
)

// MRZExtractor parses ICAO 9303 Machine Readable Zones:
// TD3 (passports, 2 lines x 44), TD2 (2 lines x 36) and
// TD1 (ID cards, 3 lines x 30). Check digits for document number,
// date of birth, expiry and the composite field are recomputed with the
// 7-3-1 weighting; a mismatch flags the identity for manual review and
// caps confidence, but does not fail extraction. OCR noise is expected
// and a human confirms the result downstream.
type MRZExtractor struct {
	now func() time.Time
}

func NewMRZExtractor() *MRZExtractor {
	return &MRZExtractor{now: time.Now}
}

func (e *MRZExtractor) Name() string {
	return "mrz"
}

func (e *MRZExtractor) Extract(ctx context.Context, res *ocr.Result) (*domain.ExtractedIdentity, error) {
	block, format := findMRZBlock(res.SplitLines())
	if block == nil {
		return nil, fmt.Errorf("no MRZ block found")
	}

	switch format {
	case domain.SourceMRZTD3:
		return e.parseTD3(block)
	case domain.SourceMRZTD2:
		return e.parseTD2(block)
	default:
		return e.parseTD1(block)
	}
}

// findMRZBlock scans the OCR lines for consecutive lines of a single MRZ
// format. The longest line format wins: TD3 before TD2 before TD1.
func findMRZBlock(lines []string) ([]string, domain.SourceFormat) {
	cleaned := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(l), " ", ""))
		if l != "" {
			cleaned = append(cleaned, l)
		}
	}

	if block := findRun(cleaned, td3LineLen, 2); block != nil {
		return block, domain.SourceMRZTD3
	}
	if block := findRun(cleaned, td2LineLen, 2); block != nil {
		return block, domain.SourceMRZTD2
	}
	if block := findRun(cleaned, td1LineLen, 3); block != nil {
		return block, domain.SourceMRZTD1
	}

	return nil, ""
}

// findRun returns the first run of `count` consecutive lines that all have
// the requested MRZ line length and alphabet.
func findRun(lines []string, length, count int) []string {
	for i := 0; i+count <= len(lines); i++ {
		ok := true
		for j := i; j < i+count; j++ {
			if len(lines[j]) != length || !isMRZAlphabet(lines[j]) {
				ok = false
				break
			}
		}
		if ok {
			return lines[i : i+count]
		}
	}
	return nil
}

func isMRZAlphabet(s string) bool {
	for _, c := range s {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '<' {
			return false
		}
	}
	return true
}

// parseTD3 parses a passport MRZ.
// Line 1: P<ISS SURNAME<<GIVEN<NAMES
// Line 2: DOCNUM(9) C NAT(3) DOB(6) C SEX EXPIRY(6) C PERSONAL(14) C COMPOSITE
func (e *MRZExtractor) parseTD3(lines []string) (*domain.ExtractedIdentity, error) {
	line1, line2 := lines[0], lines[1]

	identity := &domain.ExtractedIdentity{
		SourceFormat: domain.SourceMRZTD3,
		DocumentType: cleanMRZ(line1[0:2]),
		Nationality:  cleanMRZ(line2[10:13]),
		Gender:       parseGender(line2[20]),
	}

	identity.LastName, identity.FirstName = parseNames(line1[5:])
	identity.DocumentNumber = cleanMRZ(line2[0:9])
	identity.DateOfBirth = e.parseDate(line2[13:19])
	identity.ExpiryDate = e.parseExpiryDate(line2[21:27])

	checksumsOK := checkDigitMatches(line2[0:9], line2[9]) &&
		checkDigitMatches(line2[13:19], line2[19]) &&
		checkDigitMatches(line2[21:27], line2[27]) &&
		checkDigitMatches(line2[0:10]+line2[13:20]+line2[21:43], line2[43])

	finalize(identity, checksumsOK)
	return identity, nil
}

// parseTD2 parses the two-line 36-character layout.
// Line 1: TYPE(2) ISS(3) SURNAME<<GIVEN<NAMES
// Line 2: DOCNUM(9) C NAT(3) DOB(6) C SEX EXPIRY(6) C OPTIONAL(7) COMPOSITE
func (e *MRZExtractor) parseTD2(lines []string) (*domain.ExtractedIdentity, error) {
	line1, line2 := lines[0], lines[1]

	identity := &domain.ExtractedIdentity{
		SourceFormat: domain.SourceMRZTD2,
		DocumentType: cleanMRZ(line1[0:2]),
		Nationality:  cleanMRZ(line2[10:13]),
		Gender:       parseGender(line2[20]),
	}

	identity.LastName, identity.FirstName = parseNames(line1[5:])
	identity.DocumentNumber = cleanMRZ(line2[0:9])
	identity.DateOfBirth = e.parseDate(line2[13:19])
	identity.ExpiryDate = e.parseExpiryDate(line2[21:27])

	checksumsOK := checkDigitMatches(line2[0:9], line2[9]) &&
		checkDigitMatches(line2[13:19], line2[19]) &&
		checkDigitMatches(line2[21:27], line2[27]) &&
		checkDigitMatches(line2[0:10]+line2[13:20]+line2[21:35], line2[35])

	finalize(identity, checksumsOK)
	return identity, nil
}

// parseTD1 parses an ID-card MRZ.
// Line 1: TYPE(2) ISS(3) DOCNUM(9) C OPTIONAL(15)
// Line 2: DOB(6) C SEX EXPIRY(6) C NAT(3) OPTIONAL(11) COMPOSITE
// Line 3: SURNAME<<GIVEN<NAMES
func (e *MRZExtractor) parseTD1(lines []string) (*domain.ExtractedIdentity, error) {
	line1, line2, line3 := lines[0], lines[1], lines[2]

	identity := &domain.ExtractedIdentity{
		SourceFormat: domain.SourceMRZTD1,
		DocumentType: cleanMRZ(line1[0:2]),
		Nationality:  cleanMRZ(line2[15:18]),
		Gender:       parseGender(line2[7]),
	}

	identity.LastName, identity.FirstName = parseNames(line3)
	identity.DocumentNumber = cleanMRZ(line1[5:14])
	identity.DateOfBirth = e.parseDate(line2[0:6])
	identity.ExpiryDate = e.parseExpiryDate(line2[8:14])

	checksumsOK := checkDigitMatches(line1[5:14], line1[14]) &&
		checkDigitMatches(line2[0:6], line2[6]) &&
		checkDigitMatches(line2[8:14], line2[14]) &&
		checkDigitMatches(line1[5:30]+line2[0:7]+line2[8:15]+line2[18:29], line2[29])

	finalize(identity, checksumsOK)
	return identity, nil
}

// finalize sets the confidence and review flag once checksum validation is
// known. All check digits matching puts the identity well above the usable
// threshold; any mismatch caps it at 0.50 and requires a human look.
func finalize(identity *domain.ExtractedIdentity, checksumsOK bool) {
	if !checksumsOK {
		identity.NeedsManualReview = true
		identity.Confidence = 0.50
		return
	}

	confidence := 0.90
	if identity.Nationality != "" {
		confidence += 0.02
	}
	if identity.Gender != domain.GenderUnspecified {
		confidence += 0.02
	}
	if !identity.ExpiryDate.IsZero() {
		confidence += 0.02
	}
	if identity.FirstName != "" && identity.LastName != "" {
		confidence += 0.02
	}
	identity.Confidence = confidence
}

var mrzTitleCaser = cases.Title(language.Und)

// parseNames splits the SURNAME<<GIVEN<NAMES section and title-cases both parts
func parseNames(section string) (lastName, firstName string) {
	parts := strings.SplitN(section, "<<", 2)
	lastName = mrzTitleCaser.String(cleanMRZName(parts[0]))
	if len(parts) == 2 {
		firstName = mrzTitleCaser.String(cleanMRZName(parts[1]))
	}
	return lastName, firstName
}

func cleanMRZ(s string) string {
	return strings.ReplaceAll(s, "<", "")
}

func cleanMRZName(s string) string {
	cleaned := strings.TrimRight(s, "<")
	cleaned = strings.ReplaceAll(cleaned, "<", " ")
	return strings.TrimSpace(cleaned)
}

func parseGender(c byte) domain.Gender {
	switch c {
	case 'M':
		return domain.GenderMale
	case 'F':
		return domain.GenderFemale
	default:
		return domain.GenderUnspecified
	}
}

// parseDate decodes a YYMMDD birth date. Two-digit years above the pivot
// (current year mod 100, plus one) belong to the 1900s, the rest to the
// 2000s, so a birth date is never placed in the future.
func (e *MRZExtractor) parseDate(s string) time.Time {
	yy, mm, dd, ok := splitYYMMDD(s)
	if !ok {
		return time.Time{}
	}

	pivot := e.now().Year()%100 + 1
	year := 2000 + yy
	if yy >= pivot {
		year = 1900 + yy
	}

	return time.Date(year, time.Month(mm), dd, 0, 0, 0, 0, time.UTC)
}

// parseExpiryDate decodes a YYMMDD expiry date, always in the 2000s
func (e *MRZExtractor) parseExpiryDate(s string) time.Time {
	yy, mm, dd, ok := splitYYMMDD(s)
	if !ok {
		return time.Time{}
	}
	return time.Date(2000+yy, time.Month(mm), dd, 0, 0, 0, 0, time.UTC)
}

func splitYYMMDD(s string) (yy, mm, dd int, ok bool) {
	if len(s) != 6 {
		return 0, 0, 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, 0, 0, false
		}
	}
	yy = int(s[0]-'0')*10 + int(s[1]-'0')
	mm = int(s[2]-'0')*10 + int(s[3]-'0')
	dd = int(s[4]-'0')*10 + int(s[5]-'0')
	if mm < 1 || mm > 12 || dd < 1 || dd > 31 {
		return 0, 0, 0, false
	}
	return yy, mm, dd, true
}

// checkDigit computes the ICAO 7-3-1 check digit: digits keep their value,
// letters A-Z map to 10-35, filler '<' maps to 0, weights cycle 7, 3, 1.
func checkDigit(s string) int {
	weights := [3]int{7, 3, 1}
	sum := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		var v int
		switch {
		case c >= '0' && c <= '9':
			v = int(c - '0')
		case c >= 'A' && c <= 'Z':
			v = int(c-'A') + 10
		default:
			v = 0
		}
		sum += v * weights[i%3]
	}
	return sum % 10
}

func checkDigitMatches(field string, digit byte) bool {
	if digit < '0' || digit > '9' {
		return false
	}
	return checkDigit(field) == int(digit-'0')
}
