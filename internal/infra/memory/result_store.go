package memory

import (
	"context"
	"sort"
	"sync"

	"agribank-quiz/internal/domain"
)

// NameLookup resolves a user's display name for the leaderboard.
type NameLookup func(ctx context.Context, userID string) string

// ResultStore keeps exam results in memory and ranks users on demand.
type ResultStore struct {
	names NameLookup

	mu      sync.RWMutex
	results []domain.StoredResult
}

// NewResultStore creates an empty store. A nil names shows user IDs.
func NewResultStore(names NameLookup) *ResultStore {
	return &ResultStore{names: names}
}

func (s *ResultStore) SaveResult(_ context.Context, r domain.StoredResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
	return nil
}

func (s *ResultStore) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	ranking := s.rank(ctx)
	if limit > 0 && len(ranking) > limit {
		ranking = ranking[:limit]
	}
	return ranking, nil
}

func (s *ResultStore) UserStats(ctx context.Context, userID string) (domain.UserStats, error) {
	ranking := s.rank(ctx)
	stats := domain.UserStats{TotalUsers: len(ranking), Recent: []domain.StoredResult{}}
	for i := range ranking {
		if ranking[i].UserID == userID {
			entry := ranking[i]
			stats.Ranking = &entry
			break
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *domain.StoredResult
	for i := range s.results {
		r := &s.results[i]
		if r.UserID != userID || r.QuizType != domain.ModeExam {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	if latest != nil {
		stats.Recent = append(stats.Recent, *latest)
	}
	return stats, nil
}

func (s *ResultStore) ClearResults(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.results)
	s.results = nil
	return n, nil
}

func (s *ResultStore) rank(ctx context.Context) []domain.LeaderboardEntry {
	s.mu.RLock()
	byUser := make(map[string]*domain.LeaderboardEntry)
	sums := make(map[string]float64)
	for _, r := range s.results {
		if r.QuizType != domain.ModeExam {
			continue
		}
		e, ok := byUser[r.UserID]
		if !ok {
			e = &domain.LeaderboardEntry{UserID: r.UserID}
			byUser[r.UserID] = e
		}
		e.TotalQuizzes++
		sums[r.UserID] += r.Score
		if r.Score > e.BestScore {
			e.BestScore = r.Score
		}
	}
	s.mu.RUnlock()

	entries := make([]domain.LeaderboardEntry, 0, len(byUser))
	for id, e := range byUser {
		e.AverageScore = sums[id] / float64(e.TotalQuizzes)
		e.DisplayName = id
		if s.names != nil {
			if name := s.names(ctx, id); name != "" {
				e.DisplayName = name
			}
		}
		entries = append(entries, *e)
	}
	SortLeaderboard(entries)
	return entries
}

// SortLeaderboard orders entries by average score, then best score, then
// number of exams, then user ID, and assigns 1-based ranks.
func SortLeaderboard(entries []domain.LeaderboardEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.AverageScore != b.AverageScore {
			return a.AverageScore > b.AverageScore
		}
		if a.BestScore != b.BestScore {
			return a.BestScore > b.BestScore
		}
		if a.TotalQuizzes != b.TotalQuizzes {
			return a.TotalQuizzes > b.TotalQuizzes
		}
		return a.UserID < b.UserID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}
