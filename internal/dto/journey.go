package dto

// ComposeJourneyRequest captures POST /students/:id/journey payload. When
// RecordIDs is empty, the composition uses every record flagged for report.
type ComposeJourneyRequest struct {
	RecordIDs []string `json:"recordIds,omitempty"`
}

// JourneyResponse returns the composed narrative. Advisory is set when the
// local template was used because delegated generation was unavailable.
type JourneyResponse struct {
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	Report      string `json:"report"`
	RecordCount int    `json:"recordCount"`
	Advisory    bool   `json:"advisory"`
	AdvisoryMsg string `json:"advisoryMessage,omitempty"`
	GeneratedAt string `json:"generatedAt"`
}
