package models

import "time"

// Classroom represents a physical room referenced by course schedule slots.
type Classroom struct {
	ID        string    `db:"id" json:"id"`
	Building  string    `db:"building" json:"building"`
	Room      string    `db:"room" json:"room"`
	Capacity  int       `db:"capacity" json:"capacity"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClassroomFilter captures filters for listing classrooms.
type ClassroomFilter struct {
	Building  string
	IsActive  *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
