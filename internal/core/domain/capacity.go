package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// SeatLabels enumerates S1..S{limit}.
func SeatLabels(limit int) []string {
	labels := make([]string, 0, limit)
	for i := 1; i <= limit; i++ {
		labels = append(labels, "S"+strconv.Itoa(i))
	}
	return labels
}

// ValidSeatLabel reports whether label names a seat on a vehicle with the
// given limit.
func ValidSeatLabel(label string, limit int) bool {
	if !strings.HasPrefix(label, "S") {
		return false
	}
	n, err := strconv.Atoi(label[1:])
	if err != nil || strconv.Itoa(n) != label[1:] {
		return false
	}
	return n >= 1 && n <= limit
}

// ValidateSeatLabels checks a requested label set against the seat limit.
func ValidateSeatLabels(labels []string, limit int) error {
	if len(labels) == 0 {
		return ValidationError{Field: "seat_labels", Msg: "at least one seat is required"}
	}
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		if !ValidSeatLabel(l, limit) {
			return ValidationError{Field: "seat_labels", Msg: fmt.Sprintf("invalid seat label %q", l)}
		}
		if seen[l] {
			return ValidationError{Field: "seat_labels", Msg: fmt.Sprintf("seat %s requested twice", l)}
		}
		seen[l] = true
	}
	return nil
}

// Remaining is seatLimit minus booked, floored at zero.
func Remaining(seatLimit, booked int) int {
	if r := seatLimit - booked; r > 0 {
		return r
	}
	return 0
}

// Binding picks the most heavily booked record of an overlap set. Availability
// over the set is governed by it alone: a passenger spanning several legs
// occupies one seat on each, so booked counts are not summed.
func Binding(booked map[string]int, order []string) (segmentID string, max int) {
	for _, id := range order {
		if n := booked[id]; segmentID == "" || n > max {
			segmentID, max = id, n
		}
	}
	return segmentID, max
}
