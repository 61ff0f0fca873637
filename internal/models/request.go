package models

import (
	"time"

	"github.com/lib/pq"
)

// Subject enumerates the tutoring subjects students can request help with.
type Subject string

const (
	SubjectMathematics Subject = "Mathematics"
	SubjectEnglish     Subject = "English"
	SubjectScience     Subject = "Science"
	SubjectHistory     Subject = "History"
	SubjectGeography   Subject = "Geography"
	SubjectICT         Subject = "ICT"
	SubjectOther       Subject = "Other"
)

// Subjects lists every valid subject, in display order.
var Subjects = []Subject{
	SubjectMathematics,
	SubjectEnglish,
	SubjectScience,
	SubjectHistory,
	SubjectGeography,
	SubjectICT,
	SubjectOther,
}

// ValidSubject reports whether s is a known subject.
func ValidSubject(s Subject) bool {
	for _, known := range Subjects {
		if s == known {
			return true
		}
	}
	return false
}

// GradeLevel is the academic level of the requesting student.
type GradeLevel string

// DefaultGradeLevel is applied when a stored document somehow lacks a grade
// level. Payload validation still requires callers to supply one.
const DefaultGradeLevel GradeLevel = "Grade 10"

// GradeLevels lists every valid grade level.
var GradeLevels = []GradeLevel{
	"Grade 6", "Grade 7", "Grade 8", "Grade 9",
	"Grade 10", "Grade 11", "Grade 12", "University",
}

// ValidGradeLevel reports whether g is a known grade level.
func ValidGradeLevel(g GradeLevel) bool {
	for _, known := range GradeLevels {
		if g == known {
			return true
		}
	}
	return false
}

// RequestType distinguishes a single session from recurring tutoring.
type RequestType string

const (
	RequestTypeOneTime RequestType = "one-time"
	RequestTypeOngoing RequestType = "ongoing"
)

// ValidRequestType reports whether t is a known request type.
func ValidRequestType(t RequestType) bool {
	return t == RequestTypeOneTime || t == RequestTypeOngoing
}

// Priority influences which requests tutors see first.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ValidPriority reports whether p is a known priority.
func ValidPriority(p Priority) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// RequestStatus is the lifecycle state of a student request.
type RequestStatus string

const (
	StatusOpen       RequestStatus = "open"
	StatusInProgress RequestStatus = "in-progress"
	StatusCompleted  RequestStatus = "completed"
	StatusCancelled  RequestStatus = "cancelled"
)

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s RequestStatus) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// statusSuccessors is the lifecycle transition table:
// open -> in-progress -> completed | cancelled, plus open -> cancelled.
var statusSuccessors = map[RequestStatus][]RequestStatus{
	StatusOpen:       {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// LegalTransition reports whether moving from one status to another follows
// the lifecycle. The dedicated status endpoint only consults this when strict
// transitions are enabled.
func LegalTransition(from, to RequestStatus) bool {
	for _, next := range statusSuccessors[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StatusMessage returns the sentence included in status notification emails.
func StatusMessage(s RequestStatus) string {
	switch s {
	case StatusOpen:
		return "Your request is now open and visible to tutors."
	case StatusInProgress:
		return "Your request has been accepted and is in progress."
	case StatusCompleted:
		return "Congratulations! Your request has been completed."
	case StatusCancelled:
		return "Your request has been cancelled."
	}
	return ""
}

// MaxDescriptionLength caps the free-text description field.
const MaxDescriptionLength = 1000

// StudentRequest is a tutoring request created by a student. The student
// reference is set once at creation and never reassigned; assigned_tutor_id
// stays null until an admin assigns a tutor.
type StudentRequest struct {
	ID                string         `db:"id" json:"id"`
	StudentID         string         `db:"student_id" json:"-"`
	Subject           Subject        `db:"subject" json:"subject"`
	Description       string         `db:"description" json:"description"`
	GradeLevel        GradeLevel     `db:"grade_level" json:"gradeLevel"`
	RequestType       RequestType    `db:"request_type" json:"requestType"`
	PreferredSchedule pq.StringArray `db:"preferred_schedule" json:"preferredSchedule"`
	Priority          Priority       `db:"priority" json:"priority"`
	Status            RequestStatus  `db:"status" json:"status"`
	AssignedTutorID   *string        `db:"assigned_tutor_id" json:"-"`
	// Responses counts tutor applications. Nothing increments it today; the
	// column is kept for forward compatibility with tutor self-service.
	Responses int       `db:"responses" json:"responses"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`

	// Expanded references, populated on reads.
	Student       *UserRef `db:"-" json:"student,omitempty"`
	AssignedTutor *UserRef `db:"-" json:"assignedTutor"`
}

// RequestFilter constrains request listing queries.
type RequestFilter struct {
	Status          RequestStatus
	Subject         Subject
	GradeLevel      GradeLevel
	Priority        Priority
	StudentID       string
	AssignedTutorID string
	OnlyUnassigned  bool
	OnlyAssigned    bool
	// ByPriority sorts by priority descending before creation time.
	ByPriority bool
	Page       int
	Limit      int
}

// CreateRequestInput is the payload for creating a student request.
type CreateRequestInput struct {
	Subject           Subject     `json:"subject" validate:"required"`
	Description       string      `json:"description" validate:"required,max=1000"`
	GradeLevel        GradeLevel  `json:"gradeLevel" validate:"required"`
	RequestType       RequestType `json:"requestType"`
	PreferredSchedule []string    `json:"preferredSchedule"`
	Priority          Priority    `json:"priority"`
}

// UpdateRequestInput is the partial payload for the generic update path.
// Nil/empty fields are left untouched.
type UpdateRequestInput struct {
	Subject           Subject       `json:"subject"`
	Description       string        `json:"description"`
	GradeLevel        GradeLevel    `json:"gradeLevel"`
	RequestType       RequestType   `json:"requestType"`
	PreferredSchedule []string      `json:"preferredSchedule"`
	Priority          Priority      `json:"priority"`
	Status            RequestStatus `json:"status"`
}

// UpdateStatusInput is the payload for the dedicated status endpoint.
type UpdateStatusInput struct {
	Status RequestStatus `json:"status" validate:"required"`
}

// AssignTutorInput is the payload for the admin assignment endpoint.
type AssignTutorInput struct {
	TutorID string `json:"tutorId" validate:"required"`
}
