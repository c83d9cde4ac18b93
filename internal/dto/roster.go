package dto

// CreateStudentRequest captures POST /students payload.
type CreateStudentRequest struct {
	FullName string  `json:"fullName" validate:"required"`
	ClassID  *string `json:"classId,omitempty"`
}

// UpdateStudentRequest captures PUT /students/:id payload.
type UpdateStudentRequest struct {
	FullName string  `json:"fullName" validate:"required"`
	ClassID  *string `json:"classId,omitempty"`
}

// CreateClassRequest captures POST /classes payload.
type CreateClassRequest struct {
	Name      string  `json:"name" validate:"required"`
	TeacherID *string `json:"teacherId,omitempty"`
}

// UpdateClassRequest captures PUT /classes/:id payload.
type UpdateClassRequest struct {
	Name      string  `json:"name" validate:"required"`
	TeacherID *string `json:"teacherId,omitempty"`
}
