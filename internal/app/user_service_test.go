package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"agribank-quiz/internal/app"
	"agribank-quiz/internal/auth"
	"agribank-quiz/internal/domain"
	"agribank-quiz/internal/infra/memory"
)

func newUserService() *app.UserService {
	return app.NewUserService(memory.NewUserStore(), auth.NewTokenService("test-secret", time.Hour))
}

func TestRegisterStaysPendingUntilActivated(t *testing.T) {
	ctx := context.Background()
	svc := newUserService()

	u, err := svc.Register(ctx, "  An.Nguyen@Agribank.vn ", "matkhau1", "Nguyễn Văn An")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Email != "an.nguyen@agribank.vn" || u.Status != domain.StatusPending || u.Role != domain.RoleUser {
		t.Fatalf("unexpected profile %+v", u)
	}
	if _, _, err := svc.Login(ctx, "an.nguyen@agribank.vn", "matkhau1"); !errors.Is(err, domain.ErrUserInactive) {
		t.Fatalf("pending users must not log in, got %v", err)
	}

	active := domain.StatusActive
	if _, err := svc.Update(ctx, u.ID, domain.UserUpdate{Status: &active}); err != nil {
		t.Fatalf("activate: %v", err)
	}
	token, profile, err := svc.Login(ctx, "AN.NGUYEN@agribank.vn", "matkhau1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := svc.Authenticate(token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if claims.UserID() != profile.ID || claims.Role != domain.RoleUser {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestCreateUserAndLoginFailures(t *testing.T) {
	ctx := context.Background()
	svc := newUserService()

	admin, err := svc.CreateUser(ctx, "admin@agribank.vn", "quantri1", "Quản trị", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if admin.Status != domain.StatusActive {
		t.Fatalf("admin-created users start active, got %s", admin.Status)
	}

	if _, err := svc.Register(ctx, "admin@agribank.vn", "khac1234", ""); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if _, err := svc.Register(ctx, "not-an-email", "matkhau1", ""); err == nil {
		t.Fatalf("expected invalid email error")
	}
	if _, err := svc.Register(ctx, "ngan@agribank.vn", "123", ""); !errors.Is(err, auth.ErrWeakPassword) {
		t.Fatalf("expected weak password, got %v", err)
	}
	if _, err := svc.CreateUser(ctx, "x@agribank.vn", "matkhau1", "", "root"); err == nil {
		t.Fatalf("expected invalid role error")
	}

	if _, _, err := svc.Login(ctx, "admin@agribank.vn", "sai-mat-khau"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@agribank.vn", "quantri1"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("unknown email should look like a bad password, got %v", err)
	}
	if _, err := svc.Authenticate("garbage"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestUpdateAndChangePassword(t *testing.T) {
	ctx := context.Background()
	svc := newUserService()
	u, _ := svc.CreateUser(ctx, "binh@agribank.vn", "matkhau1", "Bình", domain.RoleUser)

	name := "  Trần Bình "
	role := domain.RoleAdmin
	updated, err := svc.Update(ctx, u.ID, domain.UserUpdate{FullName: &name, Role: &role})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.FullName != "Trần Bình" || updated.Role != domain.RoleAdmin {
		t.Fatalf("unexpected update %+v", updated)
	}
	bad := domain.UserStatus("banned")
	if _, err := svc.Update(ctx, u.ID, domain.UserUpdate{Status: &bad}); err == nil {
		t.Fatalf("expected invalid status error")
	}
	if _, err := svc.Update(ctx, "missing", domain.UserUpdate{}); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := svc.ChangePassword(ctx, u.ID, "sai", "moi123456"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected current password check, got %v", err)
	}
	if err := svc.ChangePassword(ctx, u.ID, "matkhau1", "moi123456"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, _, err := svc.Login(ctx, "binh@agribank.vn", "moi123456"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}

	users, _ := svc.List(ctx)
	if len(users) != 1 {
		t.Fatalf("expected one user, got %d", len(users))
	}
}
