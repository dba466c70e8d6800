package testutils

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shelfmark/shelfmark/pkg/auth"
	"github.com/shelfmark/shelfmark/pkg/models"
	"github.com/uptrace/bun"
)

type handler struct {
	db *bun.DB
}

// createUserRequest is the request body for creating a test user.
type createUserRequest struct {
	Username string  `json:"username" validate:"required"`
	Password string  `json:"password" validate:"required"`
	Email    *string `json:"email"`
}

// createUserResponse is the response body for creating a test user.
type createUserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// createUser creates a test user.
// POST /test/users.
func (h *handler) createUser(c echo.Context) error {
	ctx := c.Request().Context()

	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Username and password are required")
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return errors.Wrap(err, "failed to hash password")
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return errors.WithStack(err)
	}

	now := time.Now()
	user := &models.User{
		ID:           id.String(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hashedPassword,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = h.db.NewInsert().Model(user).Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to create user")
	}

	return c.JSON(http.StatusCreated, createUserResponse{
		ID:       user.ID,
		Username: user.Username,
	})
}

// createBookRequest is the request body for creating a test book.
type createBookRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Title  string `json:"title" validate:"required"`
	Author string `json:"author" validate:"required"`
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// createBook seeds a book for a user directly in storage.
// POST /test/books.
func (h *handler) createBook(c echo.Context) error {
	ctx := c.Request().Context()

	var req createBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	if req.UserID == "" || req.Title == "" || req.Author == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "UserID, title, and author are required")
	}
	if req.Status == "" {
		req.Status = models.StatusToRead
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return errors.WithStack(err)
	}

	now := time.Now()
	book := &models.Book{
		ID:        id.String(),
		UserID:    req.UserID,
		Title:     req.Title,
		Author:    req.Author,
		Status:    req.Status,
		Notes:     req.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = h.db.NewInsert().Model(book).Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to create book")
	}

	return c.JSON(http.StatusCreated, book)
}

// deleteAllDataResponse is the response body for wiping test data.
type deleteAllDataResponse struct {
	DeletedBooks int `json:"deleted_books"`
	DeletedUsers int `json:"deleted_users"`
}

// deleteAllData deletes all books and users from the database.
// DELETE /test/data.
func (h *handler) deleteAllData(c echo.Context) error {
	ctx := c.Request().Context()

	// Delete books first (foreign key constraint)
	booksResult, err := h.db.NewDelete().
		Model((*models.Book)(nil)).
		Where("1=1").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to delete books")
	}

	usersResult, err := h.db.NewDelete().
		Model((*models.User)(nil)).
		Where("1=1").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to delete users")
	}

	deletedBooks, _ := booksResult.RowsAffected()
	deletedUsers, _ := usersResult.RowsAffected()

	return c.JSON(http.StatusOK, deleteAllDataResponse{
		DeletedBooks: int(deletedBooks),
		DeletedUsers: int(deletedUsers),
	})
}
