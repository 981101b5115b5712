package model

import "time"

const (
	MaxQuestionContentLength = 300
	MaxQuestionTags          = 3
)

// QuestionTags is the fixed tag vocabulary.
var QuestionTags = []string{
	"Algebra",
	"Equations",
	"Photosynthesis",
	"Newtonian",
	"Grammar",
	"Shakespeare",
	"Economics",
	"World History",
}

// IsQuestionTag reports whether tag is in the vocabulary. Matching is exact.
func IsQuestionTag(tag string) bool {
	for _, t := range QuestionTags {
		if t == tag {
			return true
		}
	}
	return false
}

// Question is a user-posted question about one subject.
//
// SubjectID and UserID are the stored references; Subject and Author are
// populated on read so clients get names without a second request.
type Question struct {
	ID        string     `json:"id"`
	Content   string     `json:"content"`
	SubjectID string     `json:"-"`
	UserID    string     `json:"-"`
	Tags      []string   `json:"tags"`
	Subject   Category   `json:"subject"`
	Author    QuestionBy `json:"user"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// QuestionBy is the slice of the owning user embedded in a question.
type QuestionBy struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// QuestionFilter narrows a question listing. Zero values mean "no filter".
type QuestionFilter struct {
	Search   string   // case-insensitive substring of Content
	Subject  string   // category id or name
	Tags     []string // question must carry all of them
	Subjects []string // category ids; used by the timeline
	UserID   string
	Limit    int
	Offset   int
	Oldest   bool // sort ascending by creation time
}
