package chat

import "errors"

var (
	// ErrInvalidInput is returned for empty content or other rejected arguments.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a conversation or message id is unknown.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when the target cannot be used for the operation,
	// such as regenerating a user message.
	ErrInvalidState = errors.New("invalid state")

	// ErrBusy is returned when concurrent sends are rejected and the conversation
	// already awaits a completion.
	ErrBusy = errors.New("conversation is awaiting a completion")
)
