package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"agribank-quiz/internal/auth"
	"agribank-quiz/internal/domain"
)

// UserService handles registration, login and account administration.
type UserService struct {
	users  UserRepository
	tokens *auth.TokenService
	now    func() time.Time
}

func NewUserService(users UserRepository, tokens *auth.TokenService) *UserService {
	return &UserService{users: users, tokens: tokens, now: time.Now}
}

// Register creates a self-service account. It stays pending until an admin activates it.
func (s *UserService) Register(ctx context.Context, email, password, fullName string) (domain.UserProfile, error) {
	return s.create(ctx, email, password, fullName, domain.RoleUser, domain.StatusPending)
}

// CreateUser creates an active account with the given role.
func (s *UserService) CreateUser(ctx context.Context, email, password, fullName string, role domain.Role) (domain.UserProfile, error) {
	return s.create(ctx, email, password, fullName, role, domain.StatusActive)
}

func (s *UserService) create(ctx context.Context, email, password, fullName string, role domain.Role, status domain.UserStatus) (domain.UserProfile, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return domain.UserProfile{}, fmt.Errorf("%w: email %q", domain.ErrInvalidUser, email)
	}
	if role != domain.RoleAdmin && role != domain.RoleUser {
		return domain.UserProfile{}, fmt.Errorf("%w: role %q", domain.ErrInvalidUser, role)
	}
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return domain.UserProfile{}, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return domain.UserProfile{}, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.UserProfile{}, err
	}
	now := s.now()
	u := domain.UserProfile{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     strings.TrimSpace(fullName),
		Role:         role,
		Status:       status,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return domain.UserProfile{}, fmt.Errorf("create user: %w", err)
	}
	log.Printf("users: created %s (%s, %s)", u.Email, u.Role, u.Status)
	return u, nil
}

// Login checks credentials and returns a signed access token.
func (s *UserService) Login(ctx context.Context, email, password string) (string, domain.UserProfile, error) {
	u, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, domain.ErrUserNotFound) {
		return "", domain.UserProfile{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return "", domain.UserProfile{}, err
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return "", domain.UserProfile{}, err
	}
	if u.Status != domain.StatusActive {
		return "", domain.UserProfile{}, fmt.Errorf("%w: %s", domain.ErrUserInactive, u.Status)
	}
	token, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return "", domain.UserProfile{}, err
	}
	return token, u, nil
}

// Authenticate verifies an access token.
func (s *UserService) Authenticate(token string) (*auth.Claims, error) {
	return s.tokens.Parse(token)
}

func (s *UserService) Get(ctx context.Context, id string) (domain.UserProfile, error) {
	return s.users.GetUser(ctx, id)
}

func (s *UserService) List(ctx context.Context) ([]domain.UserProfile, error) {
	return s.users.ListUsers(ctx)
}

// Update applies admin edits to an account.
func (s *UserService) Update(ctx context.Context, id string, upd domain.UserUpdate) (domain.UserProfile, error) {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return domain.UserProfile{}, err
	}
	if upd.FullName != nil {
		u.FullName = strings.TrimSpace(*upd.FullName)
	}
	if upd.Role != nil {
		if *upd.Role != domain.RoleAdmin && *upd.Role != domain.RoleUser {
			return domain.UserProfile{}, fmt.Errorf("%w: role %q", domain.ErrInvalidUser, *upd.Role)
		}
		u.Role = *upd.Role
	}
	if upd.Status != nil {
		switch *upd.Status {
		case domain.StatusActive, domain.StatusInactive, domain.StatusPending:
			u.Status = *upd.Status
		default:
			return domain.UserProfile{}, fmt.Errorf("%w: status %q", domain.ErrInvalidUser, *upd.Status)
		}
	}
	u.UpdatedAt = s.now()
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return domain.UserProfile{}, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, id, current, next string) error {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.CheckPassword(u.PasswordHash, current); err != nil {
		return err
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.UpdatedAt = s.now()
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
