// Package mockapi is an in-memory learning platform API served with gin.
// It backs the demo and the integration tests: it counts hits per route and
// can inject failures, so refetches and retries are observable.
//
// Package mockapi 是基于gin的内存版学习平台API，用于演示和集成测试。
package mockapi

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Humphrey-He/hquery/pkg/learning"
)

// Fault is an injected failure for one route.
type Fault struct {
	Status     int
	RetryAfter string
	Times      int
}

// Store simulates the platform database.
type Store struct {
	mu      sync.RWMutex
	nextID  int64
	latency time.Duration
	token   string

	categories map[int64]learning.Category
	questions  map[int64]learning.Question
	progress   map[int64]learning.QuestionProgress
	solutions  map[int64]learning.Solution
	topics     map[int64]learning.Topic
	documents  map[int64]learning.Document
	settings   learning.Settings

	hits   map[string]int
	faults map[string]*Fault
}

// NewStore creates a store with sample data.
func NewStore() *Store {
	s := &Store{
		nextID:     100,
		categories: make(map[int64]learning.Category),
		questions:  make(map[int64]learning.Question),
		progress:   make(map[int64]learning.QuestionProgress),
		solutions:  make(map[int64]learning.Solution),
		topics:     make(map[int64]learning.Topic),
		documents:  make(map[int64]learning.Document),
		settings: learning.Settings{
			SiteName:          "Interview Lab",
			AllowRegistration: true,
			MaxUploadMB:       20,
		},
		hits:   make(map[string]int),
		faults: make(map[string]*Fault),
	}

	now := time.Now().UTC().Truncate(time.Second)
	levels := []string{learning.LevelEasy, learning.LevelMedium, learning.LevelHard}
	for c := int64(1); c <= 3; c++ {
		s.categories[c] = learning.Category{ID: c, Name: fmt.Sprintf("Category %d", c), CreatedAt: now}
	}
	for q := int64(1); q <= 9; q++ {
		s.questions[q] = learning.Question{
			ID:         q,
			Title:      fmt.Sprintf("Question %d", q),
			Content:    fmt.Sprintf("Explain topic %d", q),
			Level:      levels[q%3],
			CategoryID: (q-1)%3 + 1,
			UpdatedAt:  now,
		}
	}
	s.solutions[1] = learning.Solution{ID: 1, QuestionID: 1, Title: "Two pointers", Content: "...", Language: "go"}
	s.solutions[2] = learning.Solution{ID: 2, QuestionID: 1, Title: "Hash map", Content: "...", Language: "java"}
	s.topics[1] = learning.Topic{ID: 1, Title: "Concurrency", Order: 1}
	s.topics[2] = learning.Topic{ID: 2, Title: "Networking", Order: 2}
	s.documents[1] = learning.Document{ID: 1, TopicID: 1, Title: "Goroutines", Content: "..."}
	s.documents[2] = learning.Document{ID: 2, TopicID: 1, Title: "Channels", Content: "..."}
	s.documents[3] = learning.Document{ID: 3, TopicID: 2, Title: "TCP", Content: "..."}
	return s
}

// SetLatency delays every request by d.
func (s *Store) SetLatency(d time.Duration) {
	s.mu.Lock()
	s.latency = d
	s.mu.Unlock()
}

// RequireToken rejects requests not carrying token with 401. Empty disables auth.
func (s *Store) RequireToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Fail makes the next f.Times requests of route fail with f.Status.
// Routes are written as "GET /api/questions/:id".
func (s *Store) Fail(route string, f Fault) {
	s.mu.Lock()
	s.faults[route] = &f
	s.mu.Unlock()
}

// Hits returns how many requests route has received, failed ones included.
func (s *Store) Hits(route string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hits[route]
}

// ResetHits zeroes every counter.
func (s *Store) ResetHits() {
	s.mu.Lock()
	s.hits = make(map[string]int)
	s.mu.Unlock()
}

// enter records a hit and returns the fault to apply, if any.
func (s *Store) enter(route, auth string) (fault *Fault, authorized bool, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits[route]++
	authorized = s.token == "" || auth == "Bearer "+s.token
	if f, ok := s.faults[route]; ok && f.Times > 0 {
		f.Times--
		copied := *f
		fault = &copied
	}
	return fault, authorized, s.latency
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func sortedValues[T any](m map[int64]T) []T {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

// Categories.

func (s *Store) categoryList() []learning.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := sortedValues(s.categories)
	for i := range out {
		out[i].QuestionCount = s.countQuestionsLocked(out[i].ID)
	}
	return out
}

func (s *Store) countQuestionsLocked(categoryID int64) int {
	n := 0
	for _, q := range s.questions {
		if q.CategoryID == categoryID {
			n++
		}
	}
	return n
}

func (s *Store) categoriesWithProgress() []learning.CategoryWithProgress {
	cats := s.categoryList()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]learning.CategoryWithProgress, 0, len(cats))
	for _, c := range cats {
		done := 0
		for _, q := range s.questions {
			if q.CategoryID == c.ID && s.progress[q.ID].Status == learning.ProgressDone {
				done++
			}
		}
		out = append(out, learning.CategoryWithProgress{Category: c, Total: c.QuestionCount, Completed: done})
	}
	return out
}

func (s *Store) category(id int64) (learning.Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if ok {
		c.QuestionCount = s.countQuestionsLocked(id)
	}
	return c, ok
}

func (s *Store) categoryStats(id int64) (learning.CategoryStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.categories[id]; !ok {
		return learning.CategoryStats{}, false
	}
	st := learning.CategoryStats{CategoryID: id}
	for _, q := range s.questions {
		if q.CategoryID != id {
			continue
		}
		st.Total++
		switch q.Level {
		case learning.LevelEasy:
			st.Easy++
		case learning.LevelMedium:
			st.Medium++
		case learning.LevelHard:
			st.Hard++
		}
		if s.progress[q.ID].Status == learning.ProgressDone {
			st.Completed++
		}
	}
	return st, true
}

func (s *Store) saveCategory(id int64, in learning.CategoryInput) (learning.Category, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == 0 {
		id = s.id()
		s.categories[id] = learning.Category{ID: id, CreatedAt: time.Now().UTC()}
	}
	c, ok := s.categories[id]
	if !ok {
		return c, false
	}
	c.Name, c.Description = in.Name, in.Description
	s.categories[id] = c
	c.QuestionCount = s.countQuestionsLocked(id)
	return c, true
}

func (s *Store) deleteCategory(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return false
	}
	delete(s.categories, id)
	for qid, q := range s.questions {
		if q.CategoryID == id {
			delete(s.questions, qid)
		}
	}
	return true
}

// Questions.

// Query filters questions the way the list endpoints do.
type Query struct {
	Page       int    `form:"page"`
	Size       int    `form:"size"`
	CategoryID int64  `form:"categoryId"`
	Level      string `form:"level"`
	Keyword    string `form:"keyword"`
}

func (s *Store) questionPage(q Query) learning.Page[learning.Question] {
	s.mu.RLock()
	var matched []learning.Question
	for _, item := range sortedValues(s.questions) {
		if q.CategoryID > 0 && item.CategoryID != q.CategoryID {
			continue
		}
		if q.Level != "" && item.Level != q.Level {
			continue
		}
		if q.Keyword != "" && !strings.Contains(strings.ToLower(item.Title), strings.ToLower(q.Keyword)) {
			continue
		}
		item.Status = s.progress[item.ID].Status
		matched = append(matched, item)
	}
	s.mu.RUnlock()

	size := q.Size
	if size <= 0 {
		size = 10
	}
	page := learning.Page[learning.Question]{
		TotalElements: int64(len(matched)),
		TotalPages:    (len(matched) + size - 1) / size,
		Number:        q.Page,
		Size:          size,
		Content:       []learning.Question{},
	}
	start := q.Page * size
	if start < len(matched) {
		end := start + size
		if end > len(matched) {
			end = len(matched)
		}
		page.Content = matched[start:end]
	}
	return page
}

func (s *Store) summaryPage(q Query) learning.Page[learning.QuestionSummary] {
	full := s.questionPage(q)
	out := learning.Page[learning.QuestionSummary]{
		TotalElements: full.TotalElements,
		TotalPages:    full.TotalPages,
		Number:        full.Number,
		Size:          full.Size,
		Content:       make([]learning.QuestionSummary, 0, len(full.Content)),
	}
	for _, item := range full.Content {
		out.Content = append(out.Content, learning.QuestionSummary{
			ID: item.ID, Title: item.Title, Level: item.Level, CategoryID: item.CategoryID, Status: item.Status,
		})
	}
	return out
}

func (s *Store) question(id int64) (learning.Question, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	q.Status = s.progress[id].Status
	return q, ok
}

func (s *Store) questionStats() learning.QuestionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := learning.QuestionStats{Total: len(s.questions), ByLevel: make(map[string]int)}
	for _, q := range s.questions {
		st.ByLevel[q.Level]++
	}
	return st
}

func (s *Store) saveQuestion(id int64, in learning.QuestionInput) (learning.Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == 0 {
		id = s.id()
		s.questions[id] = learning.Question{ID: id}
	}
	q, ok := s.questions[id]
	if !ok {
		return q, false
	}
	q.Title, q.Content, q.Answer = in.Title, in.Content, in.Answer
	q.Level, q.CategoryID, q.Tags = in.Level, in.CategoryID, in.Tags
	q.UpdatedAt = time.Now().UTC()
	s.questions[id] = q
	return q, true
}

func (s *Store) deleteQuestion(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[id]; !ok {
		return false
	}
	delete(s.questions, id)
	delete(s.progress, id)
	for sid, sol := range s.solutions {
		if sol.QuestionID == id {
			delete(s.solutions, sid)
		}
	}
	return true
}

// Progress.

func (s *Store) questionProgress(id int64) (learning.QuestionProgress, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.questions[id]; !ok {
		return learning.QuestionProgress{}, false
	}
	p, ok := s.progress[id]
	if !ok {
		p = learning.QuestionProgress{QuestionID: id, Status: learning.ProgressTodo}
	}
	return p, true
}

func (s *Store) saveProgress(in learning.ProgressInput) (learning.QuestionProgress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[in.QuestionID]; !ok {
		return learning.QuestionProgress{}, false
	}
	p := learning.QuestionProgress{
		QuestionID: in.QuestionID,
		Status:     in.Status,
		Notes:      in.Notes,
		UpdatedAt:  time.Now().UTC(),
	}
	s.progress[in.QuestionID] = p
	return p, true
}

func (s *Store) userStats() learning.UserStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := learning.UserStats{Total: len(s.questions)}
	for _, p := range s.progress {
		switch p.Status {
		case learning.ProgressDone:
			st.Solved++
			st.Attempted++
		case learning.ProgressInProgress:
			st.Attempted++
		}
	}
	return st
}

func (s *Store) recent() []learning.Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]learning.Activity, 0, len(s.progress))
	for _, p := range s.progress {
		out = append(out, learning.Activity{
			QuestionID: p.QuestionID,
			Title:      s.questions[p.QuestionID].Title,
			Status:     p.Status,
			At:         p.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	return out
}

// Solutions.

func (s *Store) solutionList(questionID int64) []learning.Solution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []learning.Solution{}
	for _, sol := range sortedValues(s.solutions) {
		if questionID == 0 || sol.QuestionID == questionID {
			out = append(out, sol)
		}
	}
	return out
}

func (s *Store) solution(id int64) (learning.Solution, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sol, ok := s.solutions[id]
	return sol, ok
}

func (s *Store) solutionStats() learning.SolutionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := learning.SolutionStats{Total: len(s.solutions), ByLanguage: make(map[string]int)}
	for _, sol := range s.solutions {
		st.ByLanguage[sol.Language]++
	}
	return st
}

func (s *Store) saveSolution(id int64, in learning.SolutionInput) (learning.Solution, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == 0 {
		id = s.id()
		s.solutions[id] = learning.Solution{ID: id}
	}
	sol, ok := s.solutions[id]
	if !ok {
		return sol, false
	}
	sol.QuestionID, sol.Title, sol.Content, sol.Language = in.QuestionID, in.Title, in.Content, in.Language
	s.solutions[id] = sol
	return sol, true
}

func (s *Store) deleteSolution(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.solutions[id]
	delete(s.solutions, id)
	return ok
}

// Course.

func (s *Store) topicList() []learning.Topic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := sortedValues(s.topics)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func (s *Store) topic(id int64) (learning.Topic, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.topics[id]
	return t, ok
}

func (s *Store) saveTopic(id int64, in learning.TopicInput) (learning.Topic, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == 0 {
		id = s.id()
		s.topics[id] = learning.Topic{ID: id}
	}
	t, ok := s.topics[id]
	if !ok {
		return t, false
	}
	t.Title, t.Description, t.Order = in.Title, in.Description, in.Order
	s.topics[id] = t
	return t, true
}

func (s *Store) deleteTopic(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.topics[id]; !ok {
		return false
	}
	delete(s.topics, id)
	for did, d := range s.documents {
		if d.TopicID == id {
			delete(s.documents, did)
		}
	}
	return true
}

func (s *Store) documentsByTopic(topicID int64) ([]learning.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.topics[topicID]; !ok {
		return nil, false
	}
	out := []learning.Document{}
	for _, d := range sortedValues(s.documents) {
		if d.TopicID == topicID {
			out = append(out, d)
		}
	}
	return out, true
}

func (s *Store) document(id int64) (learning.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.documents[id]
	return d, ok
}

func (s *Store) saveDocument(id int64, in learning.DocumentInput) (learning.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.topics[in.TopicID]; !ok {
		return learning.Document{}, false
	}
	if id == 0 {
		id = s.id()
		s.documents[id] = learning.Document{ID: id}
	}
	d, ok := s.documents[id]
	if !ok {
		return d, false
	}
	d.TopicID, d.Title, d.Content = in.TopicID, in.Title, in.Content
	s.documents[id] = d
	return d, true
}

func (s *Store) deleteDocument(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.documents[id]
	delete(s.documents, id)
	return ok
}

func (s *Store) courseStats() learning.CourseStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return learning.CourseStats{Topics: len(s.topics), Documents: len(s.documents)}
}

// Settings and the rest.

func (s *Store) getSettings() learning.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *Store) putSettings(in learning.Settings) learning.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = in
	return in
}

func (s *Store) adminStats() learning.AdminStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return learning.AdminStats{
		Users:      1,
		Categories: len(s.categories),
		Questions:  len(s.questions),
		Solutions:  len(s.solutions),
	}
}
