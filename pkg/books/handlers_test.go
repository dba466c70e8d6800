package books

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shelfmark/shelfmark/pkg/binder"
	"github.com/shelfmark/shelfmark/pkg/errcodes"
	"github.com/shelfmark/shelfmark/pkg/migrations"
	"github.com/shelfmark/shelfmark/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// setupTestUser creates a user directly in storage.
func setupTestUser(t *testing.T, db *bun.DB, username string) *models.User {
	t.Helper()
	ctx := context.Background()

	id, err := uuid.NewRandom()
	require.NoError(t, err)

	now := time.Now()
	user := &models.User{
		ID:           id.String(),
		Username:     username,
		PasswordHash: "not-a-real-hash",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err = db.NewInsert().Model(user).Exec(ctx)
	require.NoError(t, err)

	return user
}

// seedBook inserts a book for the user with an explicit created_at so list
// ordering is deterministic.
func seedBook(t *testing.T, db *bun.DB, user *models.User, title, status string, createdAt time.Time) *models.Book {
	t.Helper()
	ctx := context.Background()

	id, err := uuid.NewRandom()
	require.NoError(t, err)

	book := &models.Book{
		ID:        id.String(),
		UserID:    user.ID,
		Title:     title,
		Author:    "Test Author",
		Status:    status,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	_, err = db.NewInsert().Model(book).Exec(ctx)
	require.NoError(t, err)

	return book
}

func setupTestServer(t *testing.T, db *bun.DB) *echo.Echo {
	t.Helper()

	e := echo.New()
	b, err := binder.New()
	require.NoError(t, err)
	e.Binder = b
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	RegisterRoutesWithGroup(e.Group("/books"), db)

	return e
}

// userContextHandler injects the authenticated user into the Echo context
// without going through the auth middleware.
type userContextHandler struct {
	echo *echo.Echo
	user *models.User
}

func (h *userContextHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c := h.echo.NewContext(r, w)
	c.Set("user_id", h.user.ID)
	c.Set("username", h.user.Username)
	c.Set("user", h.user)

	h.echo.Router().Find(r.Method, r.URL.Path, c)
	handler := c.Handler()
	if handler == nil {
		h.echo.ServeHTTP(w, r)
		return
	}

	if err := handler(c); err != nil {
		h.echo.HTTPErrorHandler(err, c)
	}
}

// executeRequestWithUser executes a request with the user set in context.
func executeRequestWithUser(t *testing.T, e *echo.Echo, req *http.Request, user *models.User) *httptest.ResponseRecorder {
	t.Helper()

	rr := httptest.NewRecorder()
	handler := &userContextHandler{echo: e, user: user}
	handler.ServeHTTP(rr, req)
	return rr
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return req
}

type bookEnvelope struct {
	Book models.Book `json:"book"`
}

type booksEnvelope struct {
	Books []models.Book `json:"books"`
	Total int           `json:"total"`
}

type errorEnvelope struct {
	Error struct {
		Code       string `json:"code"`
		Message    string `json:"message"`
		StatusCode int    `json:"status_code"`
	} `json:"error"`
}

func TestCreateBookHandler(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	e := setupTestServer(t, db)
	user := setupTestUser(t, db, "alice")

	req := jsonRequest(http.MethodPost, "/books", `{"title":"Dune","author":"Frank Herbert","status":"reading","notes":"reread"}`)
	rr := executeRequestWithUser(t, e, req, user)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp bookEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Book.ID)
	assert.Equal(t, user.ID, resp.Book.UserID)
	assert.Equal(t, "Dune", resp.Book.Title)
	assert.Equal(t, "Frank Herbert", resp.Book.Author)
	assert.Equal(t, models.StatusReading, resp.Book.Status)
	assert.Equal(t, "reread", resp.Book.Notes)
	assert.False(t, resp.Book.CreatedAt.IsZero())
}

func TestCreateBookHandler_DefaultsStatus(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	e := setupTestServer(t, db)
	user := setupTestUser(t, db, "alice")

	req := jsonRequest(http.MethodPost, "/books", `{"title":"Dune","author":"Frank Herbert"}`)
	rr := executeRequestWithUser(t, e, req, user)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp bookEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, models.StatusToRead, resp.Book.Status)
}

func TestCreateBookHandler_ValidationErrors(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	e := setupTestServer(t, db)
	user := setupTestUser(t, db, "alice")

	tests := []struct {
		name string
		body string
	}{
		{"missing title", `{"author":"Frank Herbert"}`},
		{"missing author", `{"title":"Dune"}`},
		{"invalid status", `{"title":"Dune","author":"Frank Herbert","status":"finished"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := jsonRequest(http.MethodPost, "/books", tt.body)
			rr := executeRequestWithUser(t, e, req, user)

			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())

			var resp errorEnvelope
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, "validation_error", resp.Error.Code)
		})
	}
}

func TestCreateBookHandler_DuplicateTitle(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	e := setupTestServer(t, db)
	user := setupTestUser(t, db, "alice")
	original := seedBook(t, db, user, "Dune", models.StatusReading, time.Now())

	req := jsonRequest(http.MethodPost, "/books", `{"title":"Dune","author":"Someone Else"}`)
	rr := executeRequestWithUser(t, e, req, user)

	require.Equal(t, http.StatusConflict, rr.Code, rr.Body.String())

	var resp errorEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "conflict", resp.Error.Code)

	// The original book is untouched.
	kept, err := NewService(db).RetrieveBook(context.Background(), RetrieveBookOptions{ID: &original.ID})
	require.NoError(t, err)
	assert.Equal(t, "Test Author", kept.Author)
	assert.Equal(t, models.StatusReading, kept.Status)
}

func TestCreateBookHandler_SameTitleDifferentOwners(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	e := setupTestServer(t, db)
	alice := setupTestUser(t, db, "alice")
	bob := setupTestUser(t, db, "bob")
	seedBook(t, db, alice, "Dune", models.StatusReading, time.Now())

	req := jsonRequest(http.MethodPost, "/books", `{"title":"Dune","author":"Frank Herbert"}`)
	rr := executeRequestWithUser(t, e, req, bob)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func TestListBooksHandler_ScopedToOwner(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	e := setupTestServer(t, db)
	alice := setupTestUser(t, db, "alice")
	bob := setupTestUser(t, db, "bob")

	base := time.Now().Add(-time.Hour)
	seedBook(t, db, alice, "Older", models.StatusToRead, base)
	seedBook(t, db, alice, "Newer", models.StatusReading, base.Add(time.Minute))
	seedBook(t, db, bob, "Bob's Book", models.StatusCompleted, base)

	req := jsonRequest(http.MethodGet, "/books", "")
	rr := executeRequestWithUser(t, e, req, alice)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp booksEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Books, 2)
	assert.Equal(t, 2, resp.Total)

	// Newest first.
	assert.Equal(t, "Newer", resp.Books[0].Title)
	assert.Equal(t, "Older", resp.Books[1].Title)
}

func TestListBooksHandler_Empty(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	e := setupTestServer(t, db)
	user := setupTestUser(t, db, "alice")

	req := jsonRequest(http.MethodGet, "/books", "")
	rr := executeRequestWithUser(t, e, req, user)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp booksEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Empty(t, resp.Books)
	assert.Equal(t, 0, resp.Total)
}

func TestListBooksHandler_StatusFilter(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	e := setupTestServer(t, db)
	user := setupTestUser(t, db, "alice")

	base := time.Now().Add(-time.Hour)
	seedBook(t, db, user, "Reading One", models.StatusReading, base)
	seedBook(t, db, user, "Done One", models.StatusCompleted, base.Add(time.Minute))

	req := jsonRequest(http.MethodGet, "/books?status=completed", "")
	rr := executeRequestWithUser(t, e, req, user)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp booksEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Books, 1)
	assert.Equal(t, "Done One", resp.Books[0].Title)
}

func TestRetrieveBookHandler(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	e := setupTestServer(t, db)
	user := setupTestUser(t, db, "alice")
	book := seedBook(t, db, user, "Dune", models.StatusReading, time.Now())

	req := jsonRequest(http.MethodGet, "/books/"+book.ID, "")
	rr := executeRequestWithUser(t, e, req, user)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp bookEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, book.ID, resp.Book.ID)
	assert.Equal(t, "Dune", resp.Book.Title)
}

func TestRetrieveBookHandler_CrossOwnerNotFound(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	e := setupTestServer(t, db)
	alice := setupTestUser(t, db, "alice")
	bob := setupTestUser(t, db, "bob")
	book := seedBook(t, db, alice, "Dune", models.StatusReading, time.Now())

	// Another user's id is indistinguishable from a missing one.
	req := jsonRequest(http.MethodGet, "/books/"+book.ID, "")
	rr := executeRequestWithUser(t, e, req, bob)

	require.Equal(t, http.StatusNotFound, rr.Code, rr.Body.String())

	var resp errorEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "not_found", resp.Error.Code)
}

func TestUpdateBookHandler_PartialUpdate(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	e := setupTestServer(t, db)
	user := setupTestUser(t, db, "alice")
	book := seedBook(t, db, user, "Dune", models.StatusReading, time.Now().Add(-time.Hour))

	req := jsonRequest(http.MethodPatch, "/books/"+book.ID, `{"status":"completed"}`)
	rr := executeRequestWithUser(t, e, req, user)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp bookEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, models.StatusCompleted, resp.Book.Status)

	// Untouched fields survive.
	assert.Equal(t, "Dune", resp.Book.Title)
	assert.Equal(t, "Test Author", resp.Book.Author)
	assert.True(t, resp.Book.UpdatedAt.After(book.UpdatedAt))
}

func TestUpdateBookHandler_ClearNotes(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	e := setupTestServer(t, db)
	user := setupTestUser(t, db, "alice")
	book := seedBook(t, db, user, "Dune", models.StatusReading, time.Now())

	_, err := db.NewUpdate().
		Model((*models.Book)(nil)).
		Set("notes = ?", "some notes").
		Where("id = ?", book.ID).
		Exec(context.Background())
	require.NoError(t, err)

	req := jsonRequest(http.MethodPatch, "/books/"+book.ID, `{"notes":""}`)
	rr := executeRequestWithUser(t, e, req, user)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp bookEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "", resp.Book.Notes)
}

func TestUpdateBookHandler_ValidationErrors(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	e := setupTestServer(t, db)
	user := setupTestUser(t, db, "alice")
	book := seedBook(t, db, user, "Dune", models.StatusReading, time.Now())

	tests := []struct {
		name string
		body string
	}{
		{"empty title", `{"title":""}`},
		{"empty author", `{"author":""}`},
		{"invalid status", `{"status":"abandoned"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := jsonRequest(http.MethodPatch, "/books/"+book.ID, tt.body)
			rr := executeRequestWithUser(t, e, req, user)

			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
		})
	}
}

func TestUpdateBookHandler_CrossOwnerNotFound(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	e := setupTestServer(t, db)
	alice := setupTestUser(t, db, "alice")
	bob := setupTestUser(t, db, "bob")
	book := seedBook(t, db, alice, "Dune", models.StatusReading, time.Now())

	req := jsonRequest(http.MethodPatch, "/books/"+book.ID, `{"status":"completed"}`)
	rr := executeRequestWithUser(t, e, req, bob)

	require.Equal(t, http.StatusNotFound, rr.Code, rr.Body.String())
}

func TestUpdateBookHandler_DuplicateTitle(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	e := setupTestServer(t, db)
	user := setupTestUser(t, db, "alice")
	base := time.Now().Add(-time.Hour)
	seedBook(t, db, user, "Dune", models.StatusReading, base)
	other := seedBook(t, db, user, "Hyperion", models.StatusToRead, base.Add(time.Minute))

	req := jsonRequest(http.MethodPatch, "/books/"+other.ID, `{"title":"Dune"}`)
	rr := executeRequestWithUser(t, e, req, user)

	require.Equal(t, http.StatusConflict, rr.Code, rr.Body.String())

	// The renamed book keeps its old title.
	kept, err := NewService(db).RetrieveBook(context.Background(), RetrieveBookOptions{ID: &other.ID})
	require.NoError(t, err)
	assert.Equal(t, "Hyperion", kept.Title)
}

func TestDeleteBookHandler(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	e := setupTestServer(t, db)
	user := setupTestUser(t, db, "alice")
	book := seedBook(t, db, user, "Dune", models.StatusReading, time.Now())

	req := jsonRequest(http.MethodDelete, "/books/"+book.ID, "")
	rr := executeRequestWithUser(t, e, req, user)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// The response is a snapshot of the deleted book.
	var resp bookEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, book.ID, resp.Book.ID)
	assert.Equal(t, "Dune", resp.Book.Title)

	// A follow-up fetch is a 404.
	req = jsonRequest(http.MethodGet, "/books/"+book.ID, "")
	rr = executeRequestWithUser(t, e, req, user)
	require.Equal(t, http.StatusNotFound, rr.Code, rr.Body.String())
}

func TestDeleteBookHandler_CrossOwnerNotFound(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	e := setupTestServer(t, db)
	alice := setupTestUser(t, db, "alice")
	bob := setupTestUser(t, db, "bob")
	book := seedBook(t, db, alice, "Dune", models.StatusReading, time.Now())

	req := jsonRequest(http.MethodDelete, "/books/"+book.ID, "")
	rr := executeRequestWithUser(t, e, req, bob)

	require.Equal(t, http.StatusNotFound, rr.Code, rr.Body.String())

	// The book still exists for its owner.
	_, err := NewService(db).RetrieveBook(context.Background(), RetrieveBookOptions{ID: &book.ID, UserID: &alice.ID})
	require.NoError(t, err)
}
