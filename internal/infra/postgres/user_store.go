package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"agribank-quiz/internal/domain"
)

const uniqueViolation = "23505"

// UserStore persists accounts in user_profiles.
type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userColumns = `id, email, full_name, role, status, password_hash, created_at, updated_at`

func (s *UserStore) CreateUser(ctx context.Context, u domain.UserProfile) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO user_profiles (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Email, u.FullName, string(u.Role), string(u.Status), u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *UserStore) GetUser(ctx context.Context, id string) (domain.UserProfile, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM user_profiles WHERE id = $1`, id)
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (domain.UserProfile, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM user_profiles WHERE email = $1`, email)
}

func (s *UserStore) ListUsers(ctx context.Context) ([]domain.UserProfile, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM user_profiles ORDER BY created_at DESC, email`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.UserProfile, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *UserStore) UpdateUser(ctx context.Context, u domain.UserProfile) error {
	tag, err := s.pool.Exec(ctx, `UPDATE user_profiles SET email = $2, full_name = $3, role = $4, status = $5,
    password_hash = $6, updated_at = $7 WHERE id = $1`,
		u.ID, u.Email, u.FullName, string(u.Role), string(u.Status), u.PasswordHash, u.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) getOne(ctx context.Context, query string, arg string) (domain.UserProfile, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UserProfile{}, domain.ErrUserNotFound
	}
	return u, err
}

func scanUser(row pgx.Row) (domain.UserProfile, error) {
	var (
		u            domain.UserProfile
		role, status string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.FullName, &role, &status, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return u, err
		}
		return u, fmt.Errorf("scan user: %w", err)
	}
	u.Role = domain.Role(role)
	u.Status = domain.UserStatus(status)
	return u, nil
}
