package problems

import (
	"math"
	"time"
)

// dailySchedule maps day 1..7 of a user's week to a problem id.
var dailySchedule = [7]string{
	"two-sum",
	"valid-parentheses",
	"reverse-linked-list",
	"two-sum",
	"valid-parentheses",
	"reverse-linked-list",
	"two-sum",
}

// Daily is the puzzle assigned to a user for a given day.
type Daily struct {
	Day       int      `json:"day"`
	ProblemID string   `json:"problem_id"`
	Problem   *Problem `json:"problem,omitempty"`
}

// DailyDay returns the 1-based day of the weekly cycle for a user who
// joined at joinedAt. The join day itself is day 1.
func DailyDay(joinedAt, now time.Time) int {
	diff := now.Sub(joinedAt)
	if diff < 0 {
		diff = -diff
	}
	days := int(math.Ceil(diff.Hours() / 24))
	if days < 1 {
		return 1
	}
	return (days-1)%len(dailySchedule) + 1
}

// Daily returns the puzzle for a user who joined at joinedAt.
func (c *Catalog) Daily(joinedAt, now time.Time) (*Daily, error) {
	day := DailyDay(joinedAt, now)
	id := dailySchedule[day-1]
	p, err := c.Get(id)
	if err != nil {
		return nil, err
	}
	return &Daily{Day: day, ProblemID: id, Problem: p}, nil
}
