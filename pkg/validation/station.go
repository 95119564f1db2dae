// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that end up in
// database queries or tool arguments. Using these validators prevents
// injection attacks and keeps malformed identifiers out of the data layer.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// stationPattern matches valid station identifiers like "ST001".
// Two to four uppercase letters followed by one to four digits.
var stationPattern = regexp.MustCompile(`^[A-Z]{2,4}[0-9]{1,4}$`)

// StationStatuses is the set of statuses a station may report or be set to.
var StationStatuses = []string{"running", "idle", "maintenance", "error"}

// ValidateStationID validates a production station identifier.
//
// Valid identifiers:
//   - 2-4 uppercase letters followed by 1-4 digits (ST001, QC12, PACK3)
//
// Returns an error if the identifier is invalid.
//
// Example:
//
//	if err := validation.ValidateStationID(id); err != nil {
//	    return nil, fmt.Errorf("invalid station: %w", err)
//	}
func ValidateStationID(id string) error {
	if id == "" {
		return fmt.Errorf("station id cannot be empty")
	}

	if !stationPattern.MatchString(id) {
		return fmt.Errorf("invalid station id format: %q (expected letters followed by digits, e.g. ST001)", id)
	}

	return nil
}

// SanitizeStationID normalizes and validates a station identifier.
// Returns the uppercase identifier if valid, or an error if invalid.
func SanitizeStationID(id string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(id))
	if err := ValidateStationID(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// ValidateStationStatus checks a status against the allowed set.
func ValidateStationStatus(status string) error {
	for _, s := range StationStatuses {
		if status == s {
			return nil
		}
	}
	return fmt.Errorf("invalid status %q (must be one of: %s)", status, strings.Join(StationStatuses, ", "))
}
