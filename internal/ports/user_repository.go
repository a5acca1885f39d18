package ports

import (
	"context"
	"errors"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrRepNotFound  = errors.New("rep not found")
	ErrEmailExists  = errors.New("email already registered")
)

type User struct {
	UserID         uint64
	Email          string
	FullName       string
	HashedPassword string
	Role           string
	IsActive       bool
	CreatedAt      string
}

type Rep struct {
	RepID     uint64
	UserID    uint64
	Territory string
}

type UserRepository interface {
	CreateUser(ctx context.Context, user User) (User, error)
	GetUserByID(ctx context.Context, userID uint64) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	CreateRep(ctx context.Context, rep Rep) (Rep, error)
	GetRepByUserID(ctx context.Context, userID uint64) (Rep, error)
}
