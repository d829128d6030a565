package domain

import (
	"strings"
	"time"
)

// Gender as printed on the identity document
type Gender string

const (
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
	GenderUnspecified Gender = "unspecified"
)

// SourceFormat identifies which parsing path produced an identity
type SourceFormat string

const (
	SourceMRZTD1   SourceFormat = "mrz-td1"
	SourceMRZTD2   SourceFormat = "mrz-td2"
	SourceMRZTD3   SourceFormat = "mrz-td3"
	SourceFreeText SourceFormat = "free-text"
)

// IsMRZ reports whether the format is one of the machine-readable-zone layouts
func (f SourceFormat) IsMRZ() bool {
	return f == SourceMRZTD1 || f == SourceMRZTD2 || f == SourceMRZTD3
}

// ExtractedIdentity is the immutable result of parsing one document photo.
// Confidence reflects checksum validation and field completeness. An MRZ
// identity whose check digits failed recomputation carries
// NeedsManualReview=true and a confidence below the usable threshold.
type ExtractedIdentity struct {
	FirstName         string       `json:"first_name"`
	LastName          string       `json:"last_name"`
	DateOfBirth       time.Time    `json:"date_of_birth"`
	DocumentNumber    string       `json:"document_number"`
	DocumentType      string       `json:"document_type,omitempty"`
	ExpiryDate        time.Time    `json:"expiry_date,omitempty"`
	Nationality       string       `json:"nationality,omitempty"`
	Gender            Gender       `json:"gender"`
	SourceFormat      SourceFormat `json:"source_format"`
	Confidence        float64      `json:"confidence"`
	NeedsManualReview bool         `json:"needs_manual_review"`
}

// FullName returns "First Last" with empty parts elided
func (e *ExtractedIdentity) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// IsUsable reports whether the identity can proceed without a human double-check
func (e *ExtractedIdentity) IsUsable(threshold float64) bool {
	return !e.NeedsManualReview && e.Confidence >= threshold
}
