// SPDX-License-Identifier: Apache-2.0

// Package job defines the job type, its lifecycle State, and the
// constraint-name error translation contract create_job's callers rely on.
package job

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is the job lifecycle. Ordering (created < retry < active <
// completed < cancelled < failed) is enforced by the database's job_state
// enum, never recomputed here; rank exists only so Go-side tests can
// assert relative ordering without a live connection.
type State string

const (
	Created   State = "created"
	Retry     State = "retry"
	Active    State = "active"
	Completed State = "completed"
	Cancelled State = "cancelled"
	Failed    State = "failed"
)

var stateRank = map[State]int{
	Created:   0,
	Retry:     1,
	Active:    2,
	Completed: 3,
	Cancelled: 4,
	Failed:    5,
}

// ParseState validates a state label read back from storage.
func ParseState(s string) (State, error) {
	if _, ok := stateRank[State(s)]; !ok {
		return "", fmt.Errorf("job: unknown state %q", s)
	}
	return State(s), nil
}

// Rank returns s's position in the lifecycle ordering, for test assertions
// only; production code never compares ranks, since the ordering invariant
// lives in the database's enum.
func (s State) Rank() int { return stateRank[s] }

// Terminal reports whether s is one of completed, cancelled, or failed.
func (s State) Terminal() bool {
	return s == Completed || s == Cancelled || s == Failed
}

// Options is the jsonb document passed as create_job's fourth argument.
// JSON tags are snake_case; queue.Options uses camelCase. The asymmetry is
// part of the wire format create_job and create_queue read.
type Options struct {
	Priority        *int       `json:"priority,omitempty"`
	DeadLetter      *string    `json:"dead_letter,omitempty"`
	RetryLimit      *int       `json:"retry_limit,omitempty"`
	RetryDelay      *int       `json:"retry_delay,omitempty"`
	RetryBackoff    *bool      `json:"retry_backoff,omitempty"`
	ExpireIn        *int       `json:"expire_in,omitempty"`
	KeepUntil       *time.Time `json:"keep_until,omitempty"`
	StartAfter      *time.Time `json:"start_after,omitempty"`
	SingletonFor    *int       `json:"singleton_for,omitempty"`
	SingletonOn     *int       `json:"singleton_on,omitempty"`
	SingletonKey    *string    `json:"singleton_key,omitempty"`
	SingletonOffset *int       `json:"singleton_offset,omitempty"`
}

// Job is a job to be submitted via Client.SendJob.
type Job struct {
	ID    *uuid.UUID
	Queue string
	Data  json.RawMessage
	Opts  Options
}

// Details is a job row as read back by FetchJob(s)/GetJob.
type Details struct {
	ID           uuid.UUID
	Name         string
	Priority     int
	Data         json.RawMessage
	State        State
	RetryLimit   int
	RetryCount   int
	RetryDelay   int
	RetryBackoff bool
	StartAfter   time.Time
	StartedOn    *time.Time
	SingletonKey *string
	SingletonOn  *time.Time
	ExpireIn     time.Duration
	CreatedOn    time.Time
	CompletedOn  *time.Time
	KeepUntil    time.Time
	Output       json.RawMessage
	DeadLetter   *string
	Policy       string
}

// Scanner is satisfied by both *sql.Row and *sql.Rows, letting ScanDetails
// serve GetJob (single row) and FetchJob/FetchJobs (row iteration) alike.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanDetails reads one row in the column order sqlt.FetchJobsQuery/
// GetJobQuery select. expire_in arrives pre-converted to epoch seconds
// (lib/pq has no native scan target for Postgres interval) and is turned
// back into a time.Duration here.
func ScanDetails(row Scanner) (*Details, error) {
	var d Details
	var state string
	var policy *string
	var data, output []byte
	var expireInSeconds float64

	if err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Priority,
		&data,
		&state,
		&d.RetryLimit,
		&d.RetryCount,
		&d.RetryDelay,
		&d.RetryBackoff,
		&d.StartAfter,
		&d.StartedOn,
		&d.SingletonKey,
		&d.SingletonOn,
		&expireInSeconds,
		&d.CreatedOn,
		&d.CompletedOn,
		&d.KeepUntil,
		&output,
		&d.DeadLetter,
		&policy,
	); err != nil {
		return nil, err
	}

	s, err := ParseState(state)
	if err != nil {
		return nil, err
	}
	d.State = s
	d.Data = json.RawMessage(data)
	d.Output = json.RawMessage(output)
	d.ExpireIn = time.Duration(expireInSeconds * float64(time.Second))
	if policy != nil {
		d.Policy = *policy
	}

	return &d, nil
}
