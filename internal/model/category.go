package model

// Category is a named subject. Questions reference one as their subject and
// users opt into several as their preferred categories.
type Category struct {
	ID   string `json:"id"   db:"id"`
	Name string `json:"name" db:"name"`
}

// MaxCategoryNameLength bounds Category.Name.
const MaxCategoryNameLength = 50

// DefaultSubjects are seeded as categories on a fresh database.
var DefaultSubjects = []string{
	"Mathematics",
	"English Language",
	"Biology",
	"Chemistry",
	"Physics",
	"Accounting",
	"Government",
	"Literature",
	"Economics",
	"History",
}
