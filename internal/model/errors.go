package model

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	ErrListBusy = errors.New("contact list sync already in progress")
)

// Stage names the part of the filter pipeline that raised an error, so callers
// can tell a credit-limit problem from a tag problem.
type Stage string

const (
	StageInput       Stage = "input"
	StageCreditLimit Stage = "creditLimit"
	StageMonthYear   Stage = "monthYear"
	StageTags        Stage = "tags"
	StageContacts    Stage = "contacts"
	StageMembership  Stage = "membership"
)

func (s Stage) label() string {
	switch s {
	case StageCreditLimit:
		return "credit limit filter"
	case StageMonthYear:
		return "month/year filter"
	case StageTags:
		return "tags filter"
	default:
		return string(s)
	}
}

type ValidationError struct {
	Stage Stage
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Stage == "" || e.Stage == StageInput {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Stage.label(), e.Msg)
}

func NewValidationError(stage Stage, format string, args ...any) *ValidationError {
	return &ValidationError{Stage: stage, Msg: fmt.Sprintf(format, args...)}
}

// QueryError is a batch-level data store failure; it aborts the whole run.
type QueryError struct {
	Stage Stage
	Op    string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage.label(), e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// StageOf reports the stage carried by a validation or query error, or "" for
// anything else.
func StageOf(err error) Stage {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Stage
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Stage
	}
	return ""
}

// CandidateError is a failure confined to one filter candidate. It is logged
// and counted, never propagated past the reconciler.
type CandidateError struct {
	ContactID int64
	Err       error
}

func (e *CandidateError) Error() string {
	return fmt.Sprintf("contact %d: %v", e.ContactID, e.Err)
}

func (e *CandidateError) Unwrap() error { return e.Err }
