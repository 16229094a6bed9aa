package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures for the request boundary.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindPermission
	KindPhase
	KindNotFound
	KindStore
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPermission:
		return "permission"
	case KindPhase:
		return "phase"
	case KindNotFound:
		return "not_found"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

var (
	ErrGameNotFound   = &Error{Kind: KindNotFound, Msg: "game not found"}
	ErrPlayerNotFound = &Error{Kind: KindNotFound, Msg: "player not in game"}
	ErrNotHost        = &Error{Kind: KindPermission, Msg: "only the host can do that"}
	ErrNotAdmin       = &Error{Kind: KindPermission, Msg: "admin key required"}
	ErrNotJoinable    = &Error{Kind: KindPhase, Msg: "game is not accepting players"}
	ErrGameFull       = &Error{Kind: KindPhase, Msg: "game is full"}
	ErrAlreadyStarted = &Error{Kind: KindPhase, Msg: "game already started"}
	ErrGameOver       = &Error{Kind: KindPhase, Msg: "game is over"}
	ErrInvalidMove    = &Error{Kind: KindValidation, Msg: "invalid move"}
)

func Validation(msg string) error {
	return &Error{Kind: KindValidation, Msg: msg}
}

// StoreError wraps a storage failure for op.
func StoreError(op string, err error) error {
	return &Error{Kind: KindStore, Msg: op, Err: err}
}

// KindOf returns the kind of err, or 0 when err carries none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
