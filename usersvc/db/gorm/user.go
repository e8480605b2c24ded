package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ichigozero/gtdlite/usersvc"
	libgorm "gorm.io/gorm"
)

type userRepository struct {
	db      *libgorm.DB
	timeout time.Duration
}

// NewUserRepository returns a gorm backed repository. Every call is bounded
// by timeout; a zero timeout leaves the caller's deadline untouched.
func NewUserRepository(db *libgorm.DB, timeout time.Duration) usersvc.UserRepository {
	return &userRepository{db: db, timeout: timeout}
}

func (u *userRepository) Create(ctx context.Context, user usersvc.User) (usersvc.User, error) {
	ctx, cancel := u.withTimeout(ctx)
	defer cancel()

	user.ID = 0
	err := u.db.WithContext(ctx).Create(&user).Error
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, libgorm.ErrDuplicatedKey):
		return usersvc.User{}, usersvc.ErrEmailTaken
	}
	return usersvc.User{}, fmt.Errorf("%w: %v", usersvc.ErrUnavailable, err)
}

func (u *userRepository) FindByEmail(ctx context.Context, email string) (usersvc.User, error) {
	ctx, cancel := u.withTimeout(ctx)
	defer cancel()

	var user usersvc.User
	err := u.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, libgorm.ErrRecordNotFound):
		return usersvc.User{}, usersvc.ErrUserNotFound
	}
	return usersvc.User{}, fmt.Errorf("%w: %v", usersvc.ErrUnavailable, err)
}

func (u *userRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if u.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, u.timeout)
}
