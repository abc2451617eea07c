// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package deadline parses the deadline strings accepted on the wire.
// Deadlines arrive as "dd/mm/yy" or "dd/mm/yyyy"; two-digit years are
// interpreted as 2000+yy. The parsed value is a UTC date at midnight.
package deadline

import (
	"strconv"
	"strings"
	"time"

	"github.com/juju/errors"
)

// Parse converts a dd/mm/yy or dd/mm/yyyy string into a UTC date.
// Impossible calendar dates (e.g. 31/02/2024) are rejected rather than
// normalised into the following month.
func Parse(s string) (time.Time, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return time.Time{}, errors.NotValidf("deadline %q", s)
	}
	fields := make([]int, 3)
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return time.Time{}, errors.NotValidf("deadline %q", s)
		}
		fields[i] = n
	}
	day, month, year := fields[0], fields[1], fields[2]
	if year < 100 {
		year += 2000
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, errors.NotValidf("deadline %q", s)
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalises out-of-range days into the next month.
	if t.Day() != day || t.Month() != time.Month(month) || t.Year() != year {
		return time.Time{}, errors.NotValidf("deadline %q", s)
	}
	return t, nil
}
