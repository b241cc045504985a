package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGradeFromTotal(t *testing.T) {
	cases := []struct {
		total  float64
		letter string
		points float64
	}{
		{95, "A", 4.0},
		{90, "A", 4.0},
		{87, "A-", 3.7},
		{82, "B+", 3.3},
		{75, "B", 3.0},
		{70, "B-", 2.7},
		{65, "C+", 2.3},
		{60, "C", 2.0},
		{59.9, "F", 0.0},
		{0, "F", 0.0},
	}
	for _, tc := range cases {
		letter, points := GradeFromTotal(tc.total)
		assert.Equal(t, tc.letter, letter, "total %v", tc.total)
		assert.Equal(t, tc.points, points, "total %v", tc.total)
	}
}

func TestIsPassingPoints(t *testing.T) {
	assert.True(t, IsPassingPoints(2.0))
	assert.True(t, IsPassingPoints(4.0))
	assert.False(t, IsPassingPoints(1.7))
}

func TestPointsForLetter(t *testing.T) {
	points, ok := PointsForLetter("B+")
	assert.True(t, ok)
	assert.Equal(t, 3.3, points)

	_, ok = PointsForLetter("W")
	assert.False(t, ok)
}

func TestRegistrationStatusTransitions(t *testing.T) {
	assert.True(t, RegistrationStatusPending.CanTransitionTo(RegistrationStatusApproved))
	assert.True(t, RegistrationStatusPending.CanTransitionTo(RegistrationStatusRejected))
	assert.True(t, RegistrationStatusApproved.CanTransitionTo(RegistrationStatusCompleted))
	assert.False(t, RegistrationStatusApproved.CanTransitionTo(RegistrationStatusPending))
	assert.False(t, RegistrationStatusRejected.CanTransitionTo(RegistrationStatusApproved))
	assert.False(t, RegistrationStatusCompleted.CanTransitionTo(RegistrationStatusApproved))
}

func TestScheduleSlotOverlaps(t *testing.T) {
	a := ScheduleSlot{DayOfWeek: 2, Period: 1}
	assert.True(t, a.Overlaps(ScheduleSlot{DayOfWeek: 2, Period: 1}))
	assert.False(t, a.Overlaps(ScheduleSlot{DayOfWeek: 2, Period: 2}))
	assert.False(t, a.Overlaps(ScheduleSlot{DayOfWeek: 3, Period: 1}))
}

func TestSubjectEligibleFor(t *testing.T) {
	open := &Subject{}
	assert.True(t, open.EligibleFor("school-1"))
	assert.True(t, open.EligibleFor(""))

	restricted := &Subject{EligibleSchools: []string{"school-1", "school-2"}}
	assert.True(t, restricted.EligibleFor("school-1"))
	assert.False(t, restricted.EligibleFor("school-3"))
	assert.False(t, restricted.EligibleFor(""))
}
