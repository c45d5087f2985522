package models

import "time"

// Bookmark is a user-submitted book record.
type Bookmark struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Title       string    `json:"title" db:"title"`
	Author      string    `json:"author" db:"author"`
	Description string    `json:"description,omitempty" db:"description"`
	CoverURL    string    `json:"cover_url,omitempty" db:"cover_url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// BookmarkPatch enumerates the mutable bookmark fields. Nil means leave
// unchanged.
type BookmarkPatch struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=500"`
	Author      *string `json:"author" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	CoverURL    *string `json:"cover_url" validate:"omitempty,url,max=2000"`
}

func (p *BookmarkPatch) Empty() bool {
	return p.Title == nil && p.Author == nil && p.Description == nil && p.CoverURL == nil
}
