package server

import (
	"errors"
	"fmt"
)

// CommandError is a user-facing rejection of a client command. It is reported
// to the issuing connection only and never changes room state.
type CommandError struct {
	Code    string
	Message string
}

func (e *CommandError) Error() string {
	return e.Code + ": " + e.Message
}

// Is matches on Code so a customised message still satisfies errors.Is
// against the sentinel.
func (e *CommandError) Is(target error) bool {
	t, ok := target.(*CommandError)
	return ok && t.Code == e.Code
}

var (
	ErrRoomNotFound  = &CommandError{Code: "ROOM_NOT_FOUND", Message: "Room not found. Check the code and try again."}
	ErrRoomFull      = &CommandError{Code: "ROOM_FULL", Message: "Room is full."}
	ErrInvalidNumber = &CommandError{Code: "INVALID_NUMBER", Message: "Enter a valid number with no repeating digits."}
	ErrNotYourTurn   = &CommandError{Code: "NOT_YOUR_TURN", Message: "It's not your turn!"}

	ErrInvalidPayload  = &CommandError{Code: "INVALID_PAYLOAD", Message: "Invalid message payload."}
	ErrInvalidLength   = &CommandError{Code: "INVALID_LENGTH", Message: "Number length must be between 3 and 8."}
	ErrInvalidUsername = &CommandError{Code: "USERNAME_INVALID", Message: "Username too long (max 20 characters)."}
	ErrUnknownCommand  = &CommandError{Code: "UNKNOWN_COMMAND", Message: "Unknown message type."}
	ErrRateLimited     = &CommandError{Code: "RATE_LIMITED", Message: "Too many messages, slow down."}
)

func invalidNumber(length int) *CommandError {
	return &CommandError{
		Code:    ErrInvalidNumber.Code,
		Message: fmt.Sprintf("Enter a valid %d-digit number with no repeating digits.", length),
	}
}

func unknownCommand(msgType string) *CommandError {
	return &CommandError{
		Code:    ErrUnknownCommand.Code,
		Message: fmt.Sprintf("Unknown message type: %s", msgType),
	}
}

// errorMessage converts any error into the error event payload. Errors that
// are not CommandErrors are not meant for clients and get a generic message.
func errorMessage(err error) ErrorMessage {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ErrorMessage{Message: ce.Message, Code: ce.Code}
	}
	return ErrorMessage{Message: "Something went wrong.", Code: "INTERNAL"}
}
