// Package domain defines the typed identifiers shared across rollcall.
// Wrapping uuid.UUID keeps call sites honest: a session ID cannot be passed
// where a user ID is expected.
package domain

import "github.com/google/uuid"

type (
	// UserID identifies a student or faculty account.
	UserID uuid.UUID
	// SessionID identifies an attendance session (one class meeting).
	SessionID uuid.UUID
	// CourseID identifies a course.
	CourseID uuid.UUID
	// DepartmentID identifies a department (owner of campus coordinates).
	DepartmentID uuid.UUID
)

func NewUserID() UserID             { return UserID(uuid.New()) }
func NewSessionID() SessionID       { return SessionID(uuid.New()) }
func NewCourseID() CourseID         { return CourseID(uuid.New()) }
func NewDepartmentID() DepartmentID { return DepartmentID(uuid.New()) }

func (id UserID) String() string       { return uuid.UUID(id).String() }
func (id SessionID) String() string    { return uuid.UUID(id).String() }
func (id CourseID) String() string     { return uuid.UUID(id).String() }
func (id DepartmentID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// ParseUserID parses a string form produced by String.
func ParseUserID(s string) (UserID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, err
	}
	return UserID(u), nil
}

// ParseSessionID parses a string form produced by String.
func ParseSessionID(s string) (SessionID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return SessionID{}, err
	}
	return SessionID(u), nil
}
