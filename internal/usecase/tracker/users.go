package tracker

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"orthotracker/internal/bootstrap/logging"
	"orthotracker/internal/errs"
	"orthotracker/internal/ports"
)

// RegisterUser creates a user and its rep record.
func (s *Service) RegisterUser(ctx context.Context, input RegisterUserInput) (UserView, error) {
	return s.registerUser(ctx, input, "register")
}

// CreateAdmin registers an administrator account.
func (s *Service) CreateAdmin(ctx context.Context, input RegisterUserInput) (UserView, error) {
	input.Role = RoleAdmin
	return s.registerUser(ctx, input, "create_admin")
}

func (s *Service) registerUser(ctx context.Context, input RegisterUserInput, action string) (UserView, error) {
	if err := checkContext(ctx); err != nil {
		return UserView{}, err
	}

	email := normalizeEmail(input.Email)
	if email == "" || !strings.Contains(email, "@") {
		return UserView{}, invalidInput("a valid email is required")
	}
	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		return UserView{}, invalidInput("full name is required")
	}
	role, err := normalizeRole(input.Role)
	if err != nil {
		return UserView{}, err
	}
	if len(input.Password) < minPasswordLength {
		return UserView{}, invalidInput("password must be at least %d characters", minPasswordLength)
	}

	hashed, err := s.hasher.Hash(input.Password)
	if err != nil {
		return UserView{}, errs.Wrap(err, "hash password")
	}

	actor := input.Actor
	if strings.TrimSpace(actor) == "" {
		actor = email
	}

	var view UserView
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		user, rep, err := s.createUserTx(txCtx, ports.User{
			Email:          email,
			FullName:       fullName,
			HashedPassword: hashed,
			Role:           role,
			IsActive:       true,
		})
		if err != nil {
			return err
		}
		view = userView(user, rep.RepID)
		return appendAuditTx(txCtx, s.audit, actor, action, "user", strconv.FormatUint(user.UserID, 10), "role="+role, user.CreatedAt)
	}); err != nil {
		return UserView{}, err
	}

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "tracker.service")),
		"user registered",
		slog.Uint64("user_id", view.UserID),
		slog.String("role", view.Role),
	)
	return view, nil
}

func (s *Service) createUserTx(ctx context.Context, user ports.User) (ports.User, ports.Rep, error) {
	user.CreatedAt = formatTime(s.nowUTC())
	created, err := s.users.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, ports.ErrEmailExists) {
			return ports.User{}, ports.Rep{}, ErrEmailTaken
		}
		return ports.User{}, ports.Rep{}, err
	}
	rep, err := s.users.CreateRep(ctx, ports.Rep{UserID: created.UserID})
	if err != nil {
		return ports.User{}, ports.Rep{}, err
	}
	return created, rep, nil
}

// Authenticate checks credentials and issues a signed token.
func (s *Service) Authenticate(ctx context.Context, email string, password string) (LoginResult, error) {
	if err := checkContext(ctx); err != nil {
		return LoginResult{}, err
	}

	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ports.ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if !user.IsActive {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(ports.Principal{UserID: user.UserID, Email: user.Email, Role: user.Role})
	if err != nil {
		return LoginResult{}, errs.Wrap(err, "issue token")
	}

	var repID uint64
	if rep, err := s.users.GetRepByUserID(ctx, user.UserID); err == nil {
		repID = rep.RepID
	}

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		return appendAuditTx(txCtx, s.audit, user.Email, "login", "user", strconv.FormatUint(user.UserID, 10), "", formatTime(s.nowUTC()))
	}); err != nil {
		return LoginResult{}, err
	}

	return LoginResult{User: userView(user, repID), Token: token}, nil
}

// VerifyToken resolves a bearer token to the calling principal.
func (s *Service) VerifyToken(ctx context.Context, token string) (ports.Principal, error) {
	if err := checkContext(ctx); err != nil {
		return ports.Principal{}, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ports.Principal{}, ErrInvalidToken
	}
	return s.tokens.Verify(token)
}

func (s *Service) ListUsers(ctx context.Context) ([]UserView, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]UserView, 0, len(users))
	for _, user := range users {
		var repID uint64
		if rep, err := s.users.GetRepByUserID(ctx, user.UserID); err == nil {
			repID = rep.RepID
		}
		out = append(out, userView(user, repID))
	}
	return out, nil
}

// resolveRepTx finds the rep behind email. When createMissing is set an
// unknown email gets a placeholder rep account with a random password.
func (s *Service) resolveRepTx(ctx context.Context, email string, fullName string, createMissing bool) (ports.User, ports.Rep, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ports.ErrUserNotFound) || !createMissing {
			return ports.User{}, ports.Rep{}, err
		}
		if strings.TrimSpace(fullName) == "" {
			fullName = "Rep"
		}
		password, err := randomPassword()
		if err != nil {
			return ports.User{}, ports.Rep{}, err
		}
		hashed, err := s.hasher.Hash(password)
		if err != nil {
			return ports.User{}, ports.Rep{}, errs.Wrap(err, "hash placeholder password")
		}
		return s.createUserTx(ctx, ports.User{
			Email:          email,
			FullName:       strings.TrimSpace(fullName),
			HashedPassword: hashed,
			Role:           RoleRep,
			IsActive:       true,
		})
	}

	rep, err := s.users.GetRepByUserID(ctx, user.UserID)
	if err == nil {
		return user, rep, nil
	}
	if !errors.Is(err, ports.ErrRepNotFound) {
		return ports.User{}, ports.Rep{}, err
	}
	rep, err = s.users.CreateRep(ctx, ports.Rep{UserID: user.UserID})
	if err != nil {
		return ports.User{}, ports.Rep{}, err
	}
	return user, rep, nil
}

func normalizeRole(raw string) (string, error) {
	role := strings.ToLower(strings.TrimSpace(raw))
	switch role {
	case "":
		return RoleRep, nil
	case RoleAdmin, RoleRep:
		return role, nil
	default:
		return "", invalidInput("role must be %q or %q, got %q", RoleAdmin, RoleRep, raw)
	}
}

func randomPassword() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func userView(user ports.User, repID uint64) UserView {
	return UserView{
		UserID:    user.UserID,
		Email:     user.Email,
		FullName:  user.FullName,
		Role:      user.Role,
		IsActive:  user.IsActive,
		RepID:     repID,
		CreatedAt: user.CreatedAt,
	}
}
