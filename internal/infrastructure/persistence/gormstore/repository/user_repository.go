package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"orthotracker/internal/errs"
	"orthotracker/internal/infrastructure/persistence/gormstore/model"
	"orthotracker/internal/ports"
)

type UserRepository struct {
	db *gorm.DB
}

var _ ports.UserRepository = (*UserRepository)(nil)

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateUser(ctx context.Context, user ports.User) (ports.User, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.User{}, err
	}

	email := strings.ToLower(strings.TrimSpace(user.Email))
	var existing int64
	if err := db.Model(&model.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return ports.User{}, errs.Wrap(err, "check user email")
	}
	if existing > 0 {
		return ports.User{}, ports.ErrEmailExists
	}

	row := model.User{
		Email:          email,
		FullName:       user.FullName,
		HashedPassword: user.HashedPassword,
		Role:           user.Role,
		IsActive:       user.IsActive,
		CreatedAt:      user.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ports.User{}, ports.ErrEmailExists
		}
		return ports.User{}, errs.Wrap(err, "insert user")
	}
	return mapUser(row), nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, userID uint64) (ports.User, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.User{}, err
	}

	var row model.User
	if err := db.Where("user_id = ?", userID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.User{}, ports.ErrUserNotFound
		}
		return ports.User{}, errs.Wrap(err, "query user by id")
	}
	return mapUser(row), nil
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (ports.User, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.User{}, err
	}

	var row model.User
	if err := db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.User{}, ports.ErrUserNotFound
		}
		return ports.User{}, errs.Wrap(err, "query user by email")
	}
	return mapUser(row), nil
}

func (r *UserRepository) ListUsers(ctx context.Context) ([]ports.User, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.User
	if err := db.Order("user_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query users")
	}

	items := make([]ports.User, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapUser(row))
	}
	return items, nil
}

func (r *UserRepository) CreateRep(ctx context.Context, rep ports.Rep) (ports.Rep, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Rep{}, err
	}

	row := model.Rep{
		UserID:    rep.UserID,
		Territory: strings.TrimSpace(rep.Territory),
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Rep{}, errs.Wrap(err, "insert rep")
	}
	return mapRep(row), nil
}

func (r *UserRepository) GetRepByUserID(ctx context.Context, userID uint64) (ports.Rep, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Rep{}, err
	}

	var row model.Rep
	if err := db.Where("user_id = ?", userID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Rep{}, ports.ErrRepNotFound
		}
		return ports.Rep{}, errs.Wrap(err, "query rep by user")
	}
	return mapRep(row), nil
}

func mapUser(row model.User) ports.User {
	return ports.User{
		UserID:         row.UserID,
		Email:          row.Email,
		FullName:       row.FullName,
		HashedPassword: row.HashedPassword,
		Role:           row.Role,
		IsActive:       row.IsActive,
		CreatedAt:      row.CreatedAt,
	}
}

func mapRep(row model.Rep) ports.Rep {
	return ports.Rep{
		RepID:     row.RepID,
		UserID:    row.UserID,
		Territory: row.Territory,
	}
}
