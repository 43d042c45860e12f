/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a rejected request so clients can tell failures apart.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindAuthorization ErrorKind = "authorization"
	KindStateConflict ErrorKind = "state-conflict"
	KindNotFound      ErrorKind = "not-found"
	KindRateLimited   ErrorKind = "rate-limited"
	KindInternal      ErrorKind = "internal"
)

// Error is a rejection returned to the requesting client only. State is
// left unchanged whenever one is returned.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrAlreadyJoined    = &Error{Kind: KindStateConflict, Message: "already joined"}
	ErrAlreadyStarted   = &Error{Kind: KindStateConflict, Message: "game already started"}
	ErrNotStarted       = &Error{Kind: KindStateConflict, Message: "game has not started"}
	ErrGameOver         = &Error{Kind: KindStateConflict, Message: "game is over"}
	ErrWrongPhase       = &Error{Kind: KindStateConflict, Message: "action not allowed in this phase"}
	ErrRoomFull         = &Error{Kind: KindStateConflict, Message: "room is full"}
	ErrInRoom           = &Error{Kind: KindStateConflict, Message: "already in a room"}
	ErrNotHost          = &Error{Kind: KindAuthorization, Message: "only the host can do that"}
	ErrNotInRoom        = &Error{Kind: KindAuthorization, Message: "not in a room"}
	ErrNotPermitted     = &Error{Kind: KindAuthorization, Message: "your role cannot do that"}
	ErrEliminated       = &Error{Kind: KindAuthorization, Message: "eliminated players cannot act"}
	ErrRoomNotFound     = &Error{Kind: KindNotFound, Message: "room not found"}
	ErrPlayerNotFound   = &Error{Kind: KindNotFound, Message: "player not found"}
	ErrUnknownEvent     = &Error{Kind: KindValidation, Message: "unknown event"}
	ErrUnknownGame      = &Error{Kind: KindValidation, Message: "unknown game type"}
	ErrInvalidPayload   = &Error{Kind: KindValidation, Message: "invalid payload"}
	ErrNotEnoughPlayers = &Error{Kind: KindStateConflict, Message: "not enough players"}
)

// Validationf returns a validation rejection with a formatted reason.
func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) error {
	return &Error{Kind: KindStateConflict, Message: fmt.Sprintf(format, args...)}
}

func Authorizationf(format string, args ...any) error {
	return &Error{Kind: KindAuthorization, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates a sentinel with detail while keeping it matchable with errors.Is.
func Wrap(sentinel *Error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// KindOf reports the kind of err, or KindInternal for anything that is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindInternal
}
