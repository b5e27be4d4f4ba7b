package messaging

import "errors"

var (
	// ErrEmptyMessage is returned when a message body is empty or whitespace
	ErrEmptyMessage = errors.New("message body must not be empty")

	// ErrRoleConflict is returned for same-role pairs; only student/tutor
	// pairs may message each other
	ErrRoleConflict = errors.New("messaging is only available between a student and a tutor")

	// ErrTutorInitiated is returned when a tutor messages a student with no
	// existing thread; threads are only created by a student's first message
	ErrTutorInitiated = errors.New("a tutor cannot start a conversation")

	// ErrAwaitingConsent is returned when a tutor messages a thread still in
	// the requested state
	ErrAwaitingConsent = errors.New("conversation has not been accepted yet")

	// ErrThreadNotFound is returned for an unknown thread, or one the caller
	// does not participate in (not revealed separately)
	ErrThreadNotFound = errors.New("thread not found")

	// ErrNotTutor is returned when a non-tutor participant tries to approve
	ErrNotTutor = errors.New("only the tutor may approve a conversation")

	// ErrThreadBlocked is returned for state transitions on a blocked thread
	ErrThreadBlocked = errors.New("conversation is blocked")
)
