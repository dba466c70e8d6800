package users

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/shelfmark/shelfmark/pkg/auth"
	"github.com/shelfmark/shelfmark/pkg/errcodes"
	"github.com/shelfmark/shelfmark/pkg/models"
	"github.com/uptrace/bun"
)

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) RetrieveUser(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	err := svc.db.
		NewSelect().
		Model(user).
		Where("u.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("User")
		}
		return nil, errors.WithStack(err)
	}
	return user, nil
}

// ChangePassword verifies the current password and replaces it.
func (svc *Service) ChangePassword(ctx context.Context, user *models.User, currentPassword, newPassword string) error {
	if !auth.CheckPassword(currentPassword, user.PasswordHash) {
		return errcodes.Unauthorized("Current password is incorrect")
	}

	hashedPassword, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	user.PasswordHash = hashedPassword
	user.UpdatedAt = time.Now()

	_, err = svc.db.
		NewUpdate().
		Model(user).
		Column("password_hash", "updated_at").
		WherePK().
		Exec(ctx)
	return errors.WithStack(err)
}

// DeactivateUser disables the account. The user's books are kept but no
// longer reachable since every session is rejected once is_active is false.
func (svc *Service) DeactivateUser(ctx context.Context, user *models.User) error {
	user.IsActive = false
	user.UpdatedAt = time.Now()

	_, err := svc.db.
		NewUpdate().
		Model(user).
		Column("is_active", "updated_at").
		WherePK().
		Exec(ctx)
	return errors.WithStack(err)
}
