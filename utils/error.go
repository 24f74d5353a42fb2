package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrorKind is the machine-readable part of a job failure.
type ErrorKind string

const (
	KindInvalidArgument ErrorKind = "invalid-argument"
	KindInternal        ErrorKind = "internal"
	KindAborted         ErrorKind = "aborted"
	KindUnauthenticated ErrorKind = "unauthenticated"
	KindNotFound        ErrorKind = "not-found"
)

// JobError is returned by every job entry point. Batch is the zero-based index of the
// commit that failed (-1 when the failure is not tied to a commit) and Applied is the
// number of operations confirmed written before the failure.
type JobError struct {
	Kind    ErrorKind
	Job     string
	Batch   int
	Applied int
	Message string
	Err     error
}

func (e *JobError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Batch >= 0 {
		return fmt.Sprintf("%s: batch %d: %s", e.Job, e.Batch, msg)
	}
	if e.Job == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Job, msg)
}

func (e *JobError) Unwrap() error { return e.Err }

func InvalidArgument(job, message string) *JobError {
	return &JobError{Kind: KindInvalidArgument, Job: job, Batch: -1, Message: message}
}

func Internal(job string, err error) *JobError {
	return &JobError{Kind: KindInternal, Job: job, Batch: -1, Err: err}
}

func Aborted(job, message string) *JobError {
	return &JobError{Kind: KindAborted, Job: job, Batch: -1, Message: message}
}

// KindOf reports the kind of err, treating anything that is not a JobError as internal.
func KindOf(err error) ErrorKind {
	var jobErr *JobError
	if errors.As(err, &jobErr) {
		return jobErr.Kind
	}
	return KindInternal
}
