package learning

import "time"

// Page is the paging envelope returned by list endpoints.
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
}

// Question difficulty levels.
const (
	LevelEasy   = "EASY"
	LevelMedium = "MEDIUM"
	LevelHard   = "HARD"
)

// Progress statuses.
const (
	ProgressTodo       = "TODO"
	ProgressInProgress = "IN_PROGRESS"
	ProgressDone       = "DONE"
)

type Category struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	QuestionCount int       `json:"questionCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

type CategoryWithProgress struct {
	Category
	Total     int `json:"total"`
	Completed int `json:"completed"`
}

type CategoryStats struct {
	CategoryID int64 `json:"categoryId"`
	Total      int   `json:"total"`
	Easy       int   `json:"easy"`
	Medium     int   `json:"medium"`
	Hard       int   `json:"hard"`
	Completed  int   `json:"completed"`
}

type Question struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Answer     string    `json:"answer,omitempty"`
	Level      string    `json:"level"`
	CategoryID int64     `json:"categoryId"`
	Tags       []string  `json:"tags,omitempty"`
	Status     string    `json:"status,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type QuestionSummary struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Level      string `json:"level"`
	CategoryID int64  `json:"categoryId"`
	Status     string `json:"status,omitempty"`
}

type QuestionStats struct {
	Total   int            `json:"total"`
	ByLevel map[string]int `json:"byLevel"`
}

type QuestionProgress struct {
	QuestionID int64     `json:"questionId"`
	Status     string    `json:"status"`
	Notes      string    `json:"notes,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type UserStats struct {
	Solved    int `json:"solved"`
	Attempted int `json:"attempted"`
	Total     int `json:"total"`
	Streak    int `json:"streak"`
}

type Activity struct {
	QuestionID int64     `json:"questionId"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	At         time.Time `json:"at"`
}

type Solution struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"questionId"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	Language   string `json:"language"`
}

type SolutionStats struct {
	Total      int            `json:"total"`
	ByLanguage map[string]int `json:"byLanguage"`
}

type Topic struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Order       int    `json:"order"`
}

type Document struct {
	ID      int64  `json:"id"`
	TopicID int64  `json:"topicId"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type CourseStats struct {
	Topics    int `json:"topics"`
	Documents int `json:"documents"`
}

// Settings is the system settings record edited in the back office.
type Settings struct {
	SiteName          string `json:"siteName" validate:"required,max=64"`
	AllowRegistration bool   `json:"allowRegistration"`
	MaxUploadMB       int    `json:"maxUploadMb" validate:"gte=1,lte=1024"`
	Announcement      string `json:"announcement,omitempty" validate:"max=512"`
}

type AdminStats struct {
	Users      int `json:"users"`
	Categories int `json:"categories"`
	Questions  int `json:"questions"`
	Solutions  int `json:"solutions"`
}

type UploadConfig struct {
	MaxSizeMB    int      `json:"maxSizeMb"`
	AllowedTypes []string `json:"allowedTypes"`
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Request bodies. They are validated before being sent.

type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description,omitempty" validate:"max=512"`
}

type QuestionInput struct {
	Title      string   `json:"title" validate:"required,max=200"`
	Content    string   `json:"content" validate:"required"`
	Answer     string   `json:"answer,omitempty"`
	Level      string   `json:"level" validate:"required,oneof=EASY MEDIUM HARD"`
	CategoryID int64    `json:"categoryId" validate:"gt=0"`
	Tags       []string `json:"tags,omitempty" validate:"max=10,dive,max=32"`
}

type ProgressInput struct {
	QuestionID int64  `json:"questionId" validate:"gt=0"`
	Status     string `json:"status" validate:"required,oneof=TODO IN_PROGRESS DONE"`
	Notes      string `json:"notes,omitempty" validate:"max=2000"`
}

type SolutionInput struct {
	QuestionID int64  `json:"questionId" validate:"gt=0"`
	Title      string `json:"title" validate:"required,max=200"`
	Content    string `json:"content" validate:"required"`
	Language   string `json:"language" validate:"required,max=32"`
}

type TopicInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description,omitempty"`
	Order       int    `json:"order" validate:"gte=0"`
}

type DocumentInput struct {
	TopicID int64  `json:"topicId" validate:"gt=0"`
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content" validate:"required"`
}

// Update pairs an entity id with its new body.
type Update[T any] struct {
	ID   int64 `json:"-" validate:"gt=0"`
	Body T     `json:"body"`
}

// Ref identifies an entity being deleted together with its owner, whose
// aggregate views also change.
type Ref struct {
	ID      int64 `validate:"gt=0"`
	OwnerID int64
}
