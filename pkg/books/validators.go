package books

// CreateBookPayload represents the create book request body.
type CreateBookPayload struct {
	Title  string `json:"title" validate:"required,min=1,max=500" mod:"trim"`
	Author string `json:"author" validate:"required,min=1,max=500" mod:"trim"`
	Status string `json:"status" default:"to-read" validate:"required,oneof=reading completed to-read"`
	Notes  string `json:"notes" validate:"max=10000"`
}

// UpdateBookPayload represents the update book request body. Only fields
// present in the payload are applied.
type UpdateBookPayload struct {
	Title  *string `json:"title" validate:"omitempty,min=1,max=500" mod:"trim"`
	Author *string `json:"author" validate:"omitempty,min=1,max=500" mod:"trim"`
	Status *string `json:"status" validate:"omitempty,oneof=reading completed to-read"`
	Notes  *string `json:"notes" validate:"omitempty,max=10000"`
}

// ListBooksQuery represents the query params for listing books.
type ListBooksQuery struct {
	Status *string `query:"status" json:"status" validate:"omitempty,oneof=reading completed to-read"`
}
