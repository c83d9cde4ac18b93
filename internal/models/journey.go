package models

import "time"

// Journey is the composed Learning Journey narrative for one student. It is
// an ephemeral artifact: regenerated on demand, never persisted. Advisory is
// set when the delegated generation path was unavailable and the local
// template was used instead.
type Journey struct {
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name"`
	Report      string    `json:"report"`
	RecordCount int       `json:"record_count"`
	Advisory    bool      `json:"advisory"`
	GeneratedAt time.Time `json:"generated_at"`
}
