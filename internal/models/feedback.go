package models

import "time"

// Feedback is lesson feedback left for a tutor. The tutor is addressed by
// name/email rather than user id so feedback can reference external lessons.
type Feedback struct {
	ID        string    `db:"id" json:"id"`
	TutorName string    `db:"tutor_name" json:"tutorName"`
	TutorMail string    `db:"tutor_email" json:"tutorEmail"`
	Lesson    string    `db:"lesson" json:"lesson"`
	Feedback  string    `db:"feedback" json:"feedback"`
	Rating    int       `db:"rating" json:"rating"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// FeedbackInput is the payload for creating or updating feedback.
type FeedbackInput struct {
	TutorName string `json:"tutorName" validate:"required"`
	TutorMail string `json:"tutorEmail" validate:"required,email"`
	Lesson    string `json:"lesson" validate:"required"`
	Feedback  string `json:"feedback" validate:"required"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
}
