package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"golang.org/x/sync/errgroup"

	"agribank-quiz/internal/domain"
)

// ResultStore persists exam results and ranks users from them.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

func (s *ResultStore) SaveResult(ctx context.Context, r domain.StoredResult) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO quiz_results
(id, user_id, score, total_questions, correct_answers, percentage, time_spent, quiz_type, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.UserID, r.Score, r.TotalQuestions, r.CorrectAnswers, r.Percentage, r.TimeSpent, string(r.QuizType), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// rankingSQL ranks every user with at least one exam result. Users without a
// profile are shown by ID.
const rankingSQL = `WITH stats AS (
    SELECT user_id, COUNT(*) AS total, AVG(score) AS average, MAX(score) AS best
    FROM quiz_results WHERE quiz_type = 'exam' GROUP BY user_id
)
SELECT ROW_NUMBER() OVER (ORDER BY st.average DESC, st.best DESC, st.total DESC, st.user_id) AS rank,
    st.user_id, COALESCE(NULLIF(u.full_name, ''), u.email, st.user_id), st.total, st.average, st.best
FROM stats st LEFT JOIN user_profiles u ON u.id = st.user_id`

func (s *ResultStore) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT * FROM (`+rankingSQL+`) ranked ORDER BY rank LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.LeaderboardEntry, 0, limit)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UserStats runs the ranking, user count and latest exam queries in parallel.
func (s *ResultStore) UserStats(ctx context.Context, userID string) (domain.UserStats, error) {
	var (
		stats   = domain.UserStats{Recent: []domain.StoredResult{}}
		ranking domain.LeaderboardEntry
		found   bool
		latest  domain.StoredResult
		hasLast bool
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e, err := scanEntry(s.pool.QueryRow(ctx, `SELECT * FROM (`+rankingSQL+`) ranked WHERE user_id = $1`, userID))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		ranking, found = e, true
		return nil
	})
	g.Go(func() error {
		err := s.pool.QueryRow(ctx, `SELECT COUNT(DISTINCT user_id) FROM quiz_results WHERE quiz_type = 'exam'`).Scan(&stats.TotalUsers)
		if err != nil {
			return fmt.Errorf("count ranked users: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var mode string
		err := s.pool.QueryRow(ctx, `SELECT id, user_id, score, total_questions, correct_answers, percentage, time_spent, quiz_type, created_at
FROM quiz_results WHERE user_id = $1 AND quiz_type = 'exam' ORDER BY created_at DESC LIMIT 1`, userID).
			Scan(&latest.ID, &latest.UserID, &latest.Score, &latest.TotalQuestions, &latest.CorrectAnswers,
				&latest.Percentage, &latest.TimeSpent, &mode, &latest.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("latest result: %w", err)
		}
		latest.QuizType = domain.Mode(mode)
		hasLast = true
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.UserStats{}, err
	}

	if found {
		stats.Ranking = &ranking
	}
	if hasLast {
		stats.Recent = append(stats.Recent, latest)
	}
	return stats, nil
}

func (s *ResultStore) ClearResults(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM quiz_results`)
	if err != nil {
		return 0, fmt.Errorf("clear results: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanEntry(row pgx.Row) (domain.LeaderboardEntry, error) {
	var (
		e    domain.LeaderboardEntry
		rank int64
		n    int64
	)
	if err := row.Scan(&rank, &e.UserID, &e.DisplayName, &n, &e.AverageScore, &e.BestScore); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("scan ranking: %w", err)
	}
	e.Rank = int(rank)
	e.TotalQuizzes = int(n)
	return e, nil
}
