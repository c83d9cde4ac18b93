package models

import "time"

// ValueTag classifies an observation against one of the ten educational
// values tracked by the school. The enumeration is closed: records carrying
// any other tag are skipped by aggregation rather than rejected.
type ValueTag string

const (
	TagCollaboration    ValueTag = "Collaboration"
	TagLeadership       ValueTag = "Leadership"
	TagProblemSolving   ValueTag = "Problem Solving"
	TagCommunication    ValueTag = "Communication"
	TagCreativity       ValueTag = "Creativity"
	TagCriticalThinking ValueTag = "Critical Thinking"
	TagIndependence     ValueTag = "Independence"
	TagResponsibility   ValueTag = "Responsibility"
	TagEmpathy          ValueTag = "Empathy"
	TagPerseverance     ValueTag = "Perseverance"
)

// KnownValueTags lists all ten tags in display order. Aggregations seed every
// entry so consumers can render a stable legend even for zero counts.
var KnownValueTags = []ValueTag{
	TagCollaboration,
	TagLeadership,
	TagProblemSolving,
	TagCommunication,
	TagCreativity,
	TagCriticalThinking,
	TagIndependence,
	TagResponsibility,
	TagEmpathy,
	TagPerseverance,
}

// IsValid reports whether the tag is one of the ten known literals.
func (t ValueTag) IsValid() bool {
	for _, known := range KnownValueTags {
		if t == known {
			return true
		}
	}
	return false
}

// AssessmentType classifies the nature of an observation.
type AssessmentType string

const (
	AssessmentFormative AssessmentType = "FORMATIVE"
	AssessmentSummative AssessmentType = "SUMMATIVE"
)

// IsValid reports whether the assessment type is recognised.
func (a AssessmentType) IsValid() bool {
	return a == AssessmentFormative || a == AssessmentSummative
}

// AnecdotalRecord captures a single teacher-authored observation about a
// student. FileURL is nil for note-only evidence.
type AnecdotalRecord struct {
	ID                 string         `db:"id" json:"id"`
	StudentID          string         `db:"student_id" json:"student_id"`
	AuthorID           string         `db:"author_id" json:"author_id"`
	Note               string         `db:"note" json:"note"`
	ValueTag           ValueTag       `db:"value_tag" json:"value_tag"`
	AssessmentType     AssessmentType `db:"assessment_type" json:"assessment_type"`
	IsFlaggedForReport bool           `db:"is_flagged_for_report" json:"is_flagged_for_report"`
	FileURL            *string        `db:"file_url" json:"file_url,omitempty"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
}

// HasFileEvidence reports whether the record carries a file attachment.
func (r AnecdotalRecord) HasFileEvidence() bool {
	return r.FileURL != nil && *r.FileURL != ""
}

// RecordFilter allows listing observation records.
type RecordFilter struct {
	StudentID  string
	StudentIDs []string
	AuthorID   string
	ValueTag   string
	Flagged    *bool
	Page       int
	PageSize   int
}

// RecordTemplate holds the shared fields applied to every record of a batch
// write. The repository stamps one common timestamp and per-record IDs.
type RecordTemplate struct {
	AuthorID           string
	Note               string
	ValueTag           ValueTag
	AssessmentType     AssessmentType
	IsFlaggedForReport bool
	FileURL            *string
}

// EvidenceSummary partitions a record set into note-only and file-backed
// evidence. The partition is total: NoteOnlyCount + FileCount equals the
// number of records classified.
type EvidenceSummary struct {
	NoteOnlyCount int `json:"note_only_count"`
	FileCount     int `json:"file_count"`
}

// ClassInsights aggregates observation evidence across a class roster.
type ClassInsights struct {
	ClassID      string           `json:"class_id"`
	StudentCount int              `json:"student_count"`
	TagCounts    map[ValueTag]int `json:"tag_counts"`
	Evidence     EvidenceSummary  `json:"evidence"`
	RecordCount  int              `json:"record_count"`
}

// StudentInsights aggregates the derived views rendered on a student profile.
type StudentInsights struct {
	StudentID   string           `json:"student_id"`
	TagCounts   map[ValueTag]int `json:"tag_counts"`
	Evidence    EvidenceSummary  `json:"evidence"`
	RecordCount int              `json:"record_count"`
}
