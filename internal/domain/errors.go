package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Workflow steps a client is sent back to after a recoverable error.
const (
	StepSearch     = "search"
	StepSeats      = "seats"
	StepConfirm    = "confirm"
	StepPayment    = "payment"
	StepUnassigned = ""
)

type NotFoundError struct {
	Resource string
	ID       int64
	Err      error
}

func (e NotFoundError) Error() string {
	switch {
	case e.Resource == "":
		return "not found"
	case e.ID > 0:
		return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
	default:
		return fmt.Sprintf("%s not found", e.Resource)
	}
}

func (e NotFoundError) Unwrap() error { return e.Err }

// ValidationError is recovered by sending the client back to Step.
type ValidationError struct {
	Field string
	Msg   string
	Step  string
	Err   error
}

func (e ValidationError) Error() string {
	if e.Msg != "" && e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return "validation error"
}

func (e ValidationError) Unwrap() error { return e.Err }

// ConflictError reports a state clash. SeatIDs is set when seats were already taken.
type ConflictError struct {
	Resource string
	Msg      string
	SeatIDs  []int64
	Step     string
	Err      error
}

func (e ConflictError) Error() string {
	msg := e.Msg
	if len(e.SeatIDs) > 0 {
		ids := make([]string, 0, len(e.SeatIDs))
		for _, id := range e.SeatIDs {
			ids = append(ids, fmt.Sprint(id))
		}
		if msg == "" {
			msg = "seats already taken"
		}
		msg = fmt.Sprintf("%s (%s)", msg, strings.Join(ids, ","))
	}
	switch {
	case msg != "" && e.Resource != "":
		return fmt.Sprintf("%s conflict: %s", e.Resource, msg)
	case msg != "":
		return msg
	case e.Resource != "":
		return fmt.Sprintf("%s conflict", e.Resource)
	default:
		return "conflict"
	}
}

func (e ConflictError) Unwrap() error { return e.Err }

type ForbiddenError struct {
	Msg string
}

func (e ForbiddenError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "forbidden"
}

// UnauthorizedError means the caller could not be identified.
type UnauthorizedError struct {
	Msg string
}

func (e UnauthorizedError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "unauthorized"
}

type InternalError struct {
	Msg string
	Err error
}

func (e InternalError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "internal error"
}

func (e InternalError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func IsForbidden(err error) bool {
	var target ForbiddenError
	return errors.As(err, &target)
}

func IsUnauthorized(err error) bool {
	var target UnauthorizedError
	return errors.As(err, &target)
}

func IsInternal(err error) bool {
	var target InternalError
	return errors.As(err, &target)
}
