package availability

import (
	"time"

	"github.com/tutorlink/tutorlink-backend/pkg/db/models"
)

// Overlaps reports whether two half-open intervals [aStart, aEnd) and
// [bStart, bEnd) share any instant. Touching endpoints do not overlap, so
// back-to-back sessions are allowed.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// windowMinutes maps a UTC window onto (weekday, start minute, end minute)
// offsets. crossesMidnight is true when the window does not end on the same
// UTC day it starts.
func windowMinutes(startAt, endAt time.Time) (dayOfWeek, startMinute, endMinute int, crossesMidnight bool) {
	start := startAt.UTC()
	end := endAt.UTC()

	startMinute = start.Hour()*60 + start.Minute()
	endMinute = end.Hour()*60 + end.Minute()
	dayOfWeek = int(start.Weekday())

	startDay := start.Truncate(24 * time.Hour)
	endBoundary := startDay.Add(24 * time.Hour)
	// A window ending exactly at midnight still belongs to the starting day.
	if end.After(endBoundary) || (end.Equal(endBoundary) && endMinute != 0) {
		crossesMidnight = true
	}
	if end.Equal(endBoundary) {
		endMinute = 24 * 60
	}
	return dayOfWeek, startMinute, endMinute, crossesMidnight
}

// windowWithinBlock reports whether [startMinute, endMinute) fits entirely
// inside the block.
func windowWithinBlock(block models.AvailabilityBlock, startMinute, endMinute int) bool {
	return startMinute >= block.StartMinute && endMinute <= block.EndMinute
}

// anyBlockCovers reports whether one block alone contains the whole window.
// Adjacent blocks never merge.
func anyBlockCovers(blocks []models.AvailabilityBlock, startMinute, endMinute int) bool {
	for _, block := range blocks {
		if windowWithinBlock(block, startMinute, endMinute) {
			return true
		}
	}
	return false
}
