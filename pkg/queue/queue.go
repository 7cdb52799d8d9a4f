// SPDX-License-Identifier: Apache-2.0

// Package queue defines the queue configuration type and the Policy
// closed-variant it carries, mirroring the wire format create_queue
// consumes as a jsonb options document.
package queue

import (
	"fmt"
	"time"
)

// Policy selects which partial-uniqueness throttling indexes apply to a
// queue's partition. See sqlt.CreateQueueProc for how each value is wired
// into a concrete index predicate.
type Policy string

const (
	Standard  Policy = "standard"
	Short     Policy = "short"
	Singleton Policy = "singleton"
	Stately   Policy = "stately"
)

// ParsePolicy validates a policy label read back from storage or supplied
// by a caller.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case Standard, Short, Singleton, Stately:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("queue: unknown policy %q", s)
	}
}

// Options describes a queue to be created, serialized as the jsonb
// document create_queue's second argument expects. JSON tags are
// camelCase; job.Options uses snake_case. The asymmetry is part of the
// wire format the two procedures read.
type Options struct {
	Name             string  `json:"-"`
	Policy           Policy  `json:"policy,omitempty"`
	RetryLimit       *int    `json:"retryLimit,omitempty"`
	RetryDelay       *int    `json:"retryDelay,omitempty"`
	RetryBackoff     *bool   `json:"retryBackoff,omitempty"`
	ExpireInSeconds  *int    `json:"expireInSeconds,omitempty"`
	RetentionMinutes *int    `json:"retentionMinutes,omitempty"`
	DeadLetter       *string `json:"deadLetter,omitempty"`
}

// StandardOptions returns the options for a standard queue with no
// throttling and no overrides, the shape Client.CreateStandardQueue builds.
func StandardOptions(name string) Options {
	return Options{Name: name, Policy: Standard}
}

// Details is a queue row as read back by GetQueue/GetQueues. Every
// retry/expiry/retention field is nullable in storage until a job actually
// resolves its effective default, so they stay pointers here rather than
// being defaulted away.
type Details struct {
	Name             string
	Policy           Policy
	RetryLimit       *int
	RetryDelay       *int
	RetryBackoff     *bool
	ExpireSeconds    *int
	RetentionMinutes *int
	DeadLetter       *string
	CreatedOn        time.Time
	UpdatedOn        time.Time
}

// Scanner is satisfied by both *sql.Row and *sql.Rows, letting ScanDetails
// serve GetQueue (single row) and GetQueues (row iteration) alike.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanDetails reads one row in the column order sqlt.GetQueueQuery/
// GetQueuesQuery select, validating the stored policy label. A NULL policy
// (a queue row inserted before any explicit policy was set) defaults to
// Standard, mirroring create_job's own COALESCE-to-default discipline.
func ScanDetails(row Scanner) (*Details, error) {
	var d Details
	var policy *string
	if err := row.Scan(
		&d.Name,
		&policy,
		&d.RetryLimit,
		&d.RetryDelay,
		&d.RetryBackoff,
		&d.ExpireSeconds,
		&d.RetentionMinutes,
		&d.DeadLetter,
		&d.CreatedOn,
		&d.UpdatedOn,
	); err != nil {
		return nil, err
	}

	if policy == nil || *policy == "" {
		d.Policy = Standard
	} else {
		p, err := ParsePolicy(*policy)
		if err != nil {
			return nil, err
		}
		d.Policy = p
	}

	return &d, nil
}
