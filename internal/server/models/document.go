package models

import (
	"strings"
	"time"
)

// DocumentType is the category of an academic document.
type DocumentType string

const (
	TypeGeneral     DocumentType = "General"
	TypeTranscript  DocumentType = "Transcript"
	TypeCertificate DocumentType = "Certificate"
	TypeDegree      DocumentType = "Degree"
	TypeDiploma     DocumentType = "Diploma"
	TypeID          DocumentType = "ID"
)

var documentTypes = []DocumentType{TypeGeneral, TypeTranscript, TypeCertificate, TypeDegree, TypeDiploma, TypeID}

// ParseDocumentType matches a declared type case-insensitively. An empty
// string selects TypeGeneral.
func ParseDocumentType(s string) (DocumentType, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TypeGeneral, true
	}
	for _, t := range documentTypes {
		if strings.EqualFold(string(t), s) {
			return t, true
		}
	}
	return "", false
}

// SameType compares a declared type with whatever label the oracle returned.
func SameType(declared DocumentType, detected string) bool {
	return strings.EqualFold(string(declared), strings.TrimSpace(detected))
}

// Status is the verification state of a document.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusVerified Status = "VERIFIED"
	StatusFailed   Status = "FAILED"
)

// Document is the authoritative record of an uploaded document. The bytes
// live in blob storage under ContentRef.
//
// Invariant: Status == StatusVerified iff AttestationHash is non-empty.
type Document struct {
	ID              string       `json:"id"`
	OwnerID         string       `json:"studentId"`
	OwnerName       string       `json:"studentUsername,omitempty"`
	Filename        string       `json:"filename"`
	DeclaredType    DocumentType `json:"documentType"`
	Description     string       `json:"description"`
	SizeBytes       int64        `json:"fileSize"`
	ContentRef      string       `json:"-"`
	ContentDigest   string       `json:"contentDigest"`
	UploadedAt      time.Time    `json:"uploadDate"`
	Status          Status       `json:"status"`
	ConfidenceScore *float64     `json:"confidenceScore,omitempty"`
	DetectedType    *string      `json:"detectedType,omitempty"`
	AttestationHash *string      `json:"attestationHash,omitempty"`
}

// Classification is the oracle's verdict on a document's content.
type Classification struct {
	DetectedType string
	Confidence   float64
	Reason       string
}

// VerificationOutcome is what the coordinator reports back after a verify call.
type VerificationOutcome struct {
	Verified     bool     `json:"verified"`
	Status       Status   `json:"status"`
	Confidence   *float64 `json:"confidence,omitempty"`
	DetectedType *string  `json:"detectedType,omitempty"`
	// Intact is set only for integrity re-checks of VERIFIED documents.
	Intact  *bool  `json:"intact,omitempty"`
	Message string `json:"message"`
}

// UploadResult folds the created document with its first verification outcome.
type UploadResult struct {
	Document *Document           `json:"document"`
	Outcome  VerificationOutcome `json:"outcome"`
}
