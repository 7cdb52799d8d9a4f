// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"

	"github.com/google/uuid"
)

var errInvalidJobID = errors.New("pgqueue: argument is not a valid job id")

func parseJobID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}, errInvalidJobID
	}
	return id, nil
}

func parseJobIDs(args []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, len(args))
	for i, a := range args {
		id, err := parseJobID(a)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}
