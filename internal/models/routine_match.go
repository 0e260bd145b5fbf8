/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"strconv"
	"strings"
	"time"
)

// weekdayTokens are the lowercased first-three-letter English day names, in
// time.Weekday order (Sunday = 0).
var weekdayTokens = [...]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// monthTokens are the lowercased first-three-letter English month names, in
// time.Month order (January = 1, index 0 unused).
var monthTokens = [...]string{"", "jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}

// Matches reports whether the routine's window, weekday set, and month set
// all cover the given instant. An empty/unset weekday or month set means
// "any". When start == end the routine matches nothing (spec.md §3).
func (r Routine) Matches(instant time.Time) bool {
	if !minuteWindowContains(r.StartTime, r.EndTime, instant) {
		return false
	}
	if !tokenSetContains(r.Weekdays, weekdayTokens[instant.Weekday()]) {
		return false
	}
	if !tokenSetContains(r.Months, monthTokens[int(instant.Month())]) {
		return false
	}
	return true
}

// minuteWindowContains implements the wrap-past-midnight semantics: when
// start < end the window is same-day ([start,end)); when start >= end it
// wraps ([start,24:00) ∪ [00:00,end)); when start == end it matches nothing.
func minuteWindowContains(startHHMM, endHHMM string, instant time.Time) bool {
	start, okStart := parseHHMM(startHHMM)
	end, okEnd := parseHHMM(endHHMM)
	if !okStart || !okEnd {
		return false
	}
	if start == end {
		return false
	}

	nowMinutes := instant.Hour()*60 + instant.Minute()
	if start < end {
		return nowMinutes >= start && nowMinutes < end
	}
	return nowMinutes >= start || nowMinutes < end
}

// parseHHMM parses "HH:MM" into minutes since midnight.
func parseHHMM(v string) (int, bool) {
	parts := strings.SplitN(v, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// tokenSetContains reports whether the CSV token set is empty ("any") or
// contains token.
func tokenSetContains(csv, token string) bool {
	trimmed := strings.TrimSpace(csv)
	if trimmed == "" {
		return true
	}
	for _, part := range strings.Split(trimmed, ",") {
		if strings.TrimSpace(strings.ToLower(part)) == token {
			return true
		}
	}
	return false
}

// ValidWeekdayToken reports whether token is a recognized lowercased
// three-letter weekday abbreviation.
func ValidWeekdayToken(token string) bool {
	for _, t := range weekdayTokens {
		if t == token {
			return true
		}
	}
	return false
}

// ValidMonthToken reports whether token is a recognized lowercased
// three-letter month abbreviation.
func ValidMonthToken(token string) bool {
	for _, t := range monthTokens[1:] {
		if t == token {
			return true
		}
	}
	return false
}
