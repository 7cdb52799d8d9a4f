// SPDX-License-Identifier: Apache-2.0

package job

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

// DoesNotExistError is returned when a referenced queue (or a job's
// declared dead letter queue) does not exist.
type DoesNotExistError struct{ Msg string }

func (e *DoesNotExistError) Error() string { return e.Msg }

// ConflictError is returned when a caller-supplied job id collides with
// one already present.
type ConflictError struct{ Msg string }

func (e *ConflictError) Error() string { return e.Msg }

// ThrottledError is returned when one of a queue's throttling policies
// (_i1.._i4) rejected an insert. Policy names which index fired.
type ThrottledError struct{ Policy string }

func (e *ThrottledError) Error() string { return "throttled: " + e.Policy }

// TranslateConstraint classifies a *pq.Error returned by create_job's
// INSERT into the typed errors above, by suffix-matching its constraint
// name -- a stable contract with the index and constraint names
// sqlt.CreateQueueProc generates, pinned by tests. Any other driver error
// (or a non-constraint-violation error) is returned unchanged.
func TranslateConstraint(err error) error {
	pqErr := &pq.Error{}
	if !errors.As(err, &pqErr) {
		return err
	}

	constraint := pqErr.Constraint
	switch {
	case strings.HasPrefix(constraint, "j") && strings.HasSuffix(constraint, "_pkey"):
		return &ConflictError{Msg: "job with this id already exists"}
	case strings.HasSuffix(constraint, "_i1"):
		return &ThrottledError{Policy: "short"}
	case strings.HasSuffix(constraint, "_i2"):
		return &ThrottledError{Policy: "singleton"}
	case strings.HasSuffix(constraint, "_i3"):
		return &ThrottledError{Policy: "stately"}
	case strings.HasSuffix(constraint, "_i4"):
		return &ThrottledError{Policy: "singleton_on slot"}
	case constraint == "dlq_fkey":
		return &DoesNotExistError{Msg: "dead letter queue does not exist"}
	default:
		return err
	}
}
