package learning

import (
	"github.com/Humphrey-He/hquery/pkg/learning/keys"
	"github.com/Humphrey-He/hquery/pkg/mutation"
	"github.com/Humphrey-He/hquery/pkg/querykey"
)

// Mutation kinds of the invalidation graph.
const (
	KindCategory = "category"
	KindQuestion = "question"
	KindProgress = "progress"
	KindSolution = "solution"
	KindTopic    = "topic"
	KindDocument = "document"
	KindSettings = "settings"
)

// Target carries the identifiers a mutation touched. A zero id is unknown:
// detail prefixes are skipped and owner prefixes widen to every owner.
//
// Target 携带变更涉及的标识符。为零的id表示未知：跳过详情前缀，所属者前缀扩大到所有所属者。
type Target struct {
	CategoryID int64
	QuestionID int64
	SolutionID int64
	TopicID    int64
	DocumentID int64
}

// Graph is the invalidation graph of the platform.
type Graph = mutation.Graph[Target]

// NewGraph returns the invalidation graph with its default strategies:
// precise for high-traffic learner writes, blunt for admin course content.
//
// NewGraph 返回带默认策略的失效图：学习者的高频写入使用精确策略，后台课程内容使用粗粒度策略。
func NewGraph() *Graph {
	return mutation.NewGraph(
		mutation.Rule[Target]{Kind: KindCategory, Strategy: mutation.Precise, Prefixes: categoryPrefixes},
		mutation.Rule[Target]{Kind: KindQuestion, Strategy: mutation.Precise, Prefixes: questionPrefixes},
		mutation.Rule[Target]{Kind: KindProgress, Strategy: mutation.Precise, Prefixes: progressPrefixes},
		mutation.Rule[Target]{Kind: KindSolution, Strategy: mutation.Blunt, Prefixes: solutionPrefixes},
		mutation.Rule[Target]{Kind: KindTopic, Strategy: mutation.Blunt, Prefixes: topicPrefixes},
		mutation.Rule[Target]{Kind: KindDocument, Strategy: mutation.Blunt, Prefixes: documentPrefixes},
		mutation.Rule[Target]{Kind: KindSettings, Strategy: mutation.Precise, Prefixes: settingsPrefixes},
	)
}

func categoryPrefixes(t Target) []querykey.Key {
	out := []querykey.Key{keys.CategoryList(), keys.CategoriesWithProgress()}
	if t.CategoryID > 0 {
		out = append(out, keys.CategoryDetail(t.CategoryID), keys.CategoryStats(t.CategoryID))
	}
	return append(out, keys.QuestionListPrefix(), keys.QuestionSummaryPrefix(), keys.AdminStats())
}

func questionPrefixes(t Target) []querykey.Key {
	out := []querykey.Key{keys.QuestionListPrefix(), keys.QuestionSummaryPrefix()}
	if t.QuestionID > 0 {
		out = append(out, keys.QuestionDetail(t.QuestionID))
	}
	out = append(out, keys.QuestionStats())
	if t.CategoryID > 0 {
		out = append(out, keys.CategoryStats(t.CategoryID))
	} else {
		out = append(out, keys.CategoriesRoot.Append("stats"))
	}
	return append(out, keys.CategoriesWithProgress(), keys.AdminStats())
}

func progressPrefixes(t Target) []querykey.Key {
	var out []querykey.Key
	if t.QuestionID > 0 {
		out = append(out, keys.QuestionProgress(t.QuestionID), keys.QuestionDetail(t.QuestionID))
	}
	return append(out,
		keys.QuestionListPrefix(),
		keys.QuestionSummaryPrefix(),
		keys.CategoriesWithProgress(),
		keys.UserStats(),
		keys.RecentActivity(),
	)
}

func solutionPrefixes(t Target) []querykey.Key {
	out := []querykey.Key{keys.SolutionList()}
	if t.SolutionID > 0 {
		out = append(out, keys.SolutionDetail(t.SolutionID))
	}
	if t.QuestionID > 0 {
		out = append(out, keys.SolutionsByQuestion(t.QuestionID))
	} else {
		out = append(out, keys.SolutionsRoot.Append("by-question"))
	}
	return append(out, keys.SolutionStats(), keys.AdminStats())
}

func topicPrefixes(t Target) []querykey.Key {
	out := []querykey.Key{keys.TopicList()}
	if t.TopicID > 0 {
		out = append(out, keys.TopicDetail(t.TopicID))
	}
	return append(out, keys.CourseStats())
}

func documentPrefixes(t Target) []querykey.Key {
	var out []querykey.Key
	if t.TopicID > 0 {
		out = append(out, keys.DocumentsByTopic(t.TopicID))
	} else {
		out = append(out, keys.CourseRoot.Append("documents", "by-topic"))
	}
	if t.DocumentID > 0 {
		out = append(out, keys.DocumentDetail(t.DocumentID))
	}
	return append(out, keys.CourseStats())
}

func settingsPrefixes(Target) []querykey.Key {
	return []querykey.Key{keys.SystemSettings()}
}
