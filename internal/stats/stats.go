// Package stats computes the dashboard numbers. Everything here is a pure
// function over a task list; dates are calendar days in the given time's
// location, never rolling 24-hour windows.
package stats

import (
	"math"
	"time"

	"learning-companion/internal/model"
)

// Bucket is one day of the weekly completion histogram.
type Bucket struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// Summary aggregates everything the dashboard shows.
type Summary struct {
	Total         int      `json:"total"`
	Completed     int      `json:"completed"`
	Rate          int      `json:"rate"`
	CurrentStreak int      `json:"currentStreak"`
	Histogram     []Bucket `json:"histogram"`
}

// CurrentStreak counts consecutive calendar days ending at today on which at
// least one task was completed. A day with no completion on today itself
// means the streak is 0, regardless of prior history.
func CurrentStreak(tasks []model.Task, today time.Time) int {
	done := completionDays(tasks, today.Location())
	if len(done) == 0 {
		return 0
	}

	streak := 0
	for day := startOfDay(today); done[day]; day = day.AddDate(0, 0, -1) {
		streak++
	}
	return streak
}

// WeeklyHistogram returns exactly 7 buckets for today-6 through today in
// chronological order, each counting tasks completed on that day.
func WeeklyHistogram(tasks []model.Task, today time.Time) []Bucket {
	buckets := make([]Bucket, 7)
	counts := make(map[time.Time]int)
	for _, t := range tasks {
		if t.Completed && t.CompletedAt != nil {
			counts[startOfDay(t.CompletedAt.In(today.Location()))]++
		}
	}
	for i := 0; i < 7; i++ {
		day := startOfDay(today).AddDate(0, 0, i-6)
		buckets[i] = Bucket{Date: day, Count: counts[day]}
	}
	return buckets
}

// CompletionRate returns the completed percentage rounded to the nearest
// integer, 0 for an empty list.
func CompletionRate(tasks []model.Task) int {
	if len(tasks) == 0 {
		return 0
	}
	completed := 0
	for _, t := range tasks {
		if t.Completed {
			completed++
		}
	}
	return int(math.Round(100 * float64(completed) / float64(len(tasks))))
}

// Summarize bundles the individual calculations for the dashboard endpoint.
func Summarize(tasks []model.Task, today time.Time) Summary {
	completed := 0
	for _, t := range tasks {
		if t.Completed {
			completed++
		}
	}
	return Summary{
		Total:         len(tasks),
		Completed:     completed,
		Rate:          CompletionRate(tasks),
		CurrentStreak: CurrentStreak(tasks, today),
		Histogram:     WeeklyHistogram(tasks, today),
	}
}

// completionDays collects the distinct calendar days with at least one
// completed task.
func completionDays(tasks []model.Task, loc *time.Location) map[time.Time]bool {
	days := make(map[time.Time]bool)
	for _, t := range tasks {
		if t.Completed && t.CompletedAt != nil {
			days[startOfDay(t.CompletedAt.In(loc))] = true
		}
	}
	return days
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
