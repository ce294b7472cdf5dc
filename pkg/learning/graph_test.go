package learning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Humphrey-He/hquery/pkg/learning/keys"
	"github.com/Humphrey-He/hquery/pkg/mutation"
	"github.com/Humphrey-He/hquery/pkg/querykey"
)

// covered reports whether any prefix matches key.
func covered(prefixes []querykey.Key, key querykey.Key) bool {
	for _, p := range prefixes {
		if querykey.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

func TestGraphAffected(t *testing.T) {
	g := NewGraph()
	summary := keys.QuestionSummary(keys.QuestionFilter{Page: 3, CategoryID: 2})

	tests := []struct {
		name    string
		kind    string
		target  Target
		hit     []querykey.Key
		untouch []querykey.Key
	}{
		{
			name:    "question delete",
			kind:    KindQuestion,
			target:  Target{QuestionID: 7, CategoryID: 2},
			hit:     []querykey.Key{summary, keys.CategoriesWithProgress(), keys.QuestionDetail(7), keys.CategoryStats(2), keys.AdminStats()},
			untouch: []querykey.Key{keys.QuestionDetail(8), keys.CategoryStats(3), keys.CategoryList(), keys.SolutionList()},
		},
		{
			name:    "question with unknown category",
			kind:    KindQuestion,
			target:  Target{QuestionID: 7},
			hit:     []querykey.Key{keys.CategoryStats(2), keys.CategoryStats(3)},
			untouch: []querykey.Key{keys.CategoryDetail(2)},
		},
		{
			name:    "category",
			kind:    KindCategory,
			target:  Target{CategoryID: 4},
			hit:     []querykey.Key{keys.CategoryList(), keys.CategoryDetail(4), keys.CategoryStats(4), summary},
			untouch: []querykey.Key{keys.CategoryDetail(5), keys.QuestionDetail(1)},
		},
		{
			name:    "progress",
			kind:    KindProgress,
			target:  Target{QuestionID: 9},
			hit:     []querykey.Key{keys.QuestionProgress(9), keys.QuestionDetail(9), summary, keys.UserStats(), keys.RecentActivity(), keys.CategoriesWithProgress()},
			untouch: []querykey.Key{keys.QuestionProgress(10), keys.QuestionStats(), keys.CategoryList(), keys.CourseStats(), keys.SolutionList()},
		},
		{
			name:    "solution",
			kind:    KindSolution,
			target:  Target{SolutionID: 1, QuestionID: 3},
			hit:     []querykey.Key{keys.SolutionList(), keys.SolutionDetail(1), keys.SolutionsByQuestion(3), keys.SolutionStats()},
			untouch: []querykey.Key{keys.SolutionsByQuestion(4), keys.QuestionDetail(3)},
		},
		{
			name:    "document with unknown topic",
			kind:    KindDocument,
			target:  Target{DocumentID: 2},
			hit:     []querykey.Key{keys.DocumentsByTopic(1), keys.DocumentsByTopic(2), keys.DocumentDetail(2), keys.CourseStats()},
			untouch: []querykey.Key{keys.TopicList(), keys.DocumentDetail(3)},
		},
		{
			name:    "topic",
			kind:    KindTopic,
			target:  Target{TopicID: 1},
			hit:     []querykey.Key{keys.TopicList(), keys.TopicDetail(1), keys.CourseStats()},
			untouch: []querykey.Key{keys.DocumentsByTopic(1)},
		},
		{
			name:    "settings",
			kind:    KindSettings,
			hit:     []querykey.Key{keys.SystemSettings()},
			untouch: []querykey.Key{keys.UploadConfig()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefixes, err := g.Affected(tt.kind, tt.target)
			require.NoError(t, err)
			for _, k := range tt.hit {
				assert.True(t, covered(prefixes, k), "%s should be invalidated", k)
			}
			for _, k := range tt.untouch {
				assert.False(t, covered(prefixes, k), "%s should be untouched", k)
			}
		})
	}

	_, err := g.Affected("unknown", Target{})
	assert.Error(t, err)
}

func TestGraphDefaultStrategies(t *testing.T) {
	g := NewGraph()
	want := map[string]mutation.Strategy{
		KindCategory: mutation.Precise,
		KindQuestion: mutation.Precise,
		KindProgress: mutation.Precise,
		KindSettings: mutation.Precise,
		KindSolution: mutation.Blunt,
		KindTopic:    mutation.Blunt,
		KindDocument: mutation.Blunt,
	}
	assert.Len(t, g.Kinds(), len(want))
	for kind, s := range want {
		assert.Equal(t, s, g.Strategy(kind), kind)
	}
}
