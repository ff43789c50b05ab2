package model

import (
	"strings"
	"time"
)

// Category classifies how often a task is meant to recur.
type Category string

const (
	CategoryDaily  Category = "daily"
	CategoryWeekly Category = "weekly"
)

// Valid reports whether the category is one of the known values.
func (c Category) Valid() bool {
	return c == CategoryDaily || c == CategoryWeekly
}

// ParseCategory normalizes raw user input into a Category.
func ParseCategory(raw string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	return c, c.Valid()
}

// Task represents a single study task owned by one user.
//
// CompletedAt is set exactly when Completed is true; every mutation path
// keeps that pairing intact.
type Task struct {
	ID          string     `gorm:"primaryKey" json:"id"`
	OwnerID     string     `gorm:"index" json:"ownerId"`
	Title       string     `json:"title"`
	Category    Category   `json:"category"`
	Completed   bool       `gorm:"default:false" json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Invariant reports whether the completion flag and timestamp agree.
func (t Task) Invariant() bool {
	return t.Completed == (t.CompletedAt != nil)
}
