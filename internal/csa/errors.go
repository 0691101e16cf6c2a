package csa

import (
	"errors"
	"fmt"
)

var (
	ErrClosed         = errors.New("csa: connection closed")
	ErrGameRejected   = errors.New("csa: game rejected")
	ErrInvalidSummary = errors.New("csa: invalid game summary")
)

// ConnectionError reports a failure to reach or talk to the server. It aborts
// the whole run.
type ConnectionError struct {
	Message string
	Cause   error
}

func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("connection failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("connection failed: %s", e.Message)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// LoginError means the server refused the credentials or never answered.
type LoginError struct {
	User   string
	Reason string
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("login %s: %s", e.User, e.Reason)
}

// ProtocolError is a line the client could not make sense of.
type ProtocolError struct {
	Line  string
	Cause error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error on %q: %v", e.Line, e.Cause)
}

func (e *ProtocolError) Unwrap() error { return e.Cause }

// IllegalMoveError is raised when a move cannot be applied to the record.
type IllegalMoveError struct {
	Move  string
	Own   bool
	Cause error
}

func (e *IllegalMoveError) Error() string {
	side := "opponent"
	if e.Own {
		side = "own"
	}
	return fmt.Sprintf("illegal %s move %q: %v", side, e.Move, e.Cause)
}

func (e *IllegalMoveError) Unwrap() error { return e.Cause }

// SearchFailure means the engine produced no move; the client resigns.
type SearchFailure struct {
	Cause error
}

func (e *SearchFailure) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("search failed: %v", e.Cause)
	}
	return "search failed: no move"
}

func (e *SearchFailure) Unwrap() error { return e.Cause }

// abortsRun reports whether err must stop Execute instead of moving on to
// the next game.
func abortsRun(err error) bool {
	var connErr *ConnectionError
	var loginErr *LoginError
	return errors.As(err, &connErr) || errors.As(err, &loginErr)
}
