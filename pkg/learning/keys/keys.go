// Package keys builds the query key of every read view of the learning
// platform. Keys under one root share a prefix so a single invalidation
// reaches every page and detail view below it.
//
// Package keys 构建学习平台每个读取视图的查询键。
package keys

import (
	"strconv"

	"github.com/Humphrey-He/hquery/pkg/querykey"
)

// Top-level key roots.
var (
	CategoriesRoot = querykey.New("categories")
	QuestionsRoot  = querykey.New("questions")
	ProgressRoot   = querykey.New("progress")
	SolutionsRoot  = querykey.New("solutions")
	CourseRoot     = querykey.New("course")
	SettingsRoot   = querykey.New("settings")
	AdminRoot      = querykey.New("admin")
	FilesRoot      = querykey.New("files")
	AuthRoot       = querykey.New("auth")
)

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}

// QuestionFilter selects a page of questions.
type QuestionFilter struct {
	Page       int    `json:"page"`
	Size       int    `json:"size,omitempty"`
	CategoryID int64  `json:"categoryId,omitempty"`
	Level      string `json:"level,omitempty"`
	Keyword    string `json:"keyword,omitempty"`
}

// Params returns the key parameters of the filter; zero fields are omitted
// so equal filters always produce equal keys.
func (f QuestionFilter) Params() querykey.Params {
	p := querykey.Params{"page": f.Page}
	if f.Size > 0 {
		p["size"] = f.Size
	}
	if f.CategoryID > 0 {
		p["categoryId"] = f.CategoryID
	}
	if f.Level != "" {
		p["level"] = f.Level
	}
	if f.Keyword != "" {
		p["keyword"] = f.Keyword
	}
	return p
}

// FilterFromParams is the inverse of QuestionFilter.Params.
func FilterFromParams(p querykey.Params) QuestionFilter {
	page, _ := p.Int("page")
	size, _ := p.Int("size")
	category, _ := p.Int("categoryId")
	level, _ := p.String("level")
	keyword, _ := p.String("keyword")
	return QuestionFilter{
		Page:       int(page),
		Size:       int(size),
		CategoryID: category,
		Level:      level,
		Keyword:    keyword,
	}
}

// Category keys.
func CategoryList() querykey.Key           { return CategoriesRoot.Append("list") }
func CategoriesWithProgress() querykey.Key { return CategoriesRoot.Append("with-progress") }
func CategoryDetail(categoryID int64) querykey.Key {
	return CategoriesRoot.Append("detail", id(categoryID))
}
func CategoryStats(categoryID int64) querykey.Key {
	return CategoriesRoot.Append("stats", id(categoryID))
}

// Question keys. QuestionListPrefix and QuestionSummaryPrefix match every page.
func QuestionListPrefix() querykey.Key    { return QuestionsRoot.Append("list") }
func QuestionSummaryPrefix() querykey.Key { return QuestionsRoot.Append("summary") }
func QuestionList(f QuestionFilter) querykey.Key {
	return QuestionListPrefix().With(f.Params())
}
func QuestionSummary(f QuestionFilter) querykey.Key {
	return QuestionSummaryPrefix().With(f.Params())
}
func QuestionDetail(questionID int64) querykey.Key {
	return QuestionsRoot.Append("detail", id(questionID))
}
func QuestionStats() querykey.Key { return QuestionsRoot.Append("stats") }

// Progress keys.
func QuestionProgress(questionID int64) querykey.Key {
	return ProgressRoot.Append("question", id(questionID))
}
func UserProgress() querykey.Key   { return ProgressRoot.Append("user") }
func UserStats() querykey.Key      { return UserProgress().Append("stats") }
func RecentActivity() querykey.Key { return UserProgress().Append("recent") }

// Solution keys.
func SolutionList() querykey.Key { return SolutionsRoot.Append("list") }
func SolutionDetail(solutionID int64) querykey.Key {
	return SolutionsRoot.Append("detail", id(solutionID))
}
func SolutionsByQuestion(questionID int64) querykey.Key {
	return SolutionsRoot.Append("by-question", id(questionID))
}
func SolutionStats() querykey.Key { return SolutionsRoot.Append("stats") }

// Course keys: topics, interview-prep documents and their aggregate.
func TopicList() querykey.Key { return CourseRoot.Append("topics", "list") }
func TopicDetail(topicID int64) querykey.Key {
	return CourseRoot.Append("topics", "detail", id(topicID))
}
func DocumentsByTopic(topicID int64) querykey.Key {
	return CourseRoot.Append("documents", "by-topic", id(topicID))
}
func DocumentDetail(documentID int64) querykey.Key {
	return CourseRoot.Append("documents", "detail", id(documentID))
}
func CourseStats() querykey.Key { return CourseRoot.Append("stats") }

// Back office and reference data.
func SystemSettings() querykey.Key { return SettingsRoot.Append("system") }
func AdminStats() querykey.Key     { return AdminRoot.Append("stats") }
func UploadConfig() querykey.Key   { return FilesRoot.Append("upload-config") }
func CurrentUser() querykey.Key    { return AuthRoot.Append("me") }
