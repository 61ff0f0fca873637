package models

import (
	"time"

	"github.com/lib/pq"
)

// MaxPostMedia caps how many media attachments a post may carry.
const MaxPostMedia = 3

// StudyPost is a study-forum post. Votes and answers live in their own
// tables and are aggregated onto the view on reads.
type StudyPost struct {
	ID          string         `db:"id" json:"id"`
	UserID      string         `db:"user_id" json:"-"`
	Title       string         `db:"title" json:"title"`
	Description string         `db:"description" json:"description"`
	SubjectTag  string         `db:"subject_tag" json:"subjectTag"`
	Media       pq.StringArray `db:"media" json:"media"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updatedAt"`

	User      *UserRef      `db:"-" json:"user,omitempty"`
	Upvotes   int           `db:"-" json:"upvotes"`
	Downvotes int           `db:"-" json:"downvotes"`
	Answers   []StudyAnswer `db:"-" json:"answers,omitempty"`
}

// StudyAnswer is a reply attached to a study post.
type StudyAnswer struct {
	ID        string    `db:"id" json:"id"`
	PostID    string    `db:"post_id" json:"-"`
	UserID    string    `db:"user_id" json:"-"`
	Text      string    `db:"text" json:"text"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`

	User *UserRef `db:"-" json:"user,omitempty"`
}

// VoteValue is +1 for an upvote, -1 for a downvote.
type VoteValue int

const (
	VoteUp   VoteValue = 1
	VoteDown VoteValue = -1
)

// CreatePostInput is the payload for creating a study post.
type CreatePostInput struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description" validate:"required"`
	SubjectTag  string   `json:"subjectTag" validate:"required"`
	Media       []string `json:"media" validate:"max=3"`
}

// AddAnswerInput is the payload for answering a post.
type AddAnswerInput struct {
	Text string `json:"text" validate:"required"`
}

// VoteInput is the payload for voting on a post.
type VoteInput struct {
	Value VoteValue `json:"value" validate:"required,oneof=1 -1"`
}
