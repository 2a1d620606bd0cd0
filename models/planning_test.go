package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreventiveTask_NextDueFrom(t *testing.T) {
	completed := time.Date(2024, time.January, 31, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		unit     string
		value    int
		expected time.Time
	}{
		{IntervalDays, 14, time.Date(2024, time.February, 14, 15, 0, 0, 0, time.UTC)},
		{IntervalWeeks, 2, time.Date(2024, time.February, 14, 15, 0, 0, 0, time.UTC)},
		{IntervalMonths, 1, time.Date(2024, time.March, 2, 15, 0, 0, 0, time.UTC)},
		{"", 3, time.Date(2024, time.February, 3, 15, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.unit, func(t *testing.T) {
			task := &PreventiveTask{ScheduleIntervalValue: tt.value, ScheduleIntervalUnit: tt.unit}
			assert.Equal(t, tt.expected, task.NextDueFrom(completed))
		})
	}
}

func TestPreventiveTask_IsDue(t *testing.T) {
	now := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
	due := now.Add(48 * time.Hour)

	task := &PreventiveTask{IsActive: true, NextDueDate: &due}
	assert.False(t, task.IsDue(now, 24*time.Hour))
	assert.True(t, task.IsDue(now, 48*time.Hour))

	task.IsActive = false
	assert.False(t, task.IsDue(now, 72*time.Hour))
	assert.False(t, (&PreventiveTask{IsActive: true}).IsDue(now, 72*time.Hour))

	assert.True(t, IsValidIntervalUnit(IntervalMonths))
	assert.False(t, IsValidIntervalUnit("years"))
}

func TestPlanningSlot_Duration(t *testing.T) {
	db := setupTestDB(t, &PlanningSlot{})
	start := time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC)

	slot := &PlanningSlot{WorkOrderID: 1, TechnicianID: 1, StartAt: start, EndAt: start.Add(150 * time.Minute), CompanyID: 1}
	require.NoError(t, db.Create(slot).Error)
	assert.Equal(t, 150, slot.DurationMinutes)
	assert.Equal(t, SlotStatusPlanned, slot.Status)

	slot.EndAt = start.Add(90 * time.Minute)
	require.NoError(t, db.Save(slot).Error)

	var stored PlanningSlot
	require.NoError(t, db.First(&stored, slot.ID).Error)
	assert.Equal(t, 90, stored.DurationMinutes)

	assert.Equal(t, 0, (&PlanningSlot{StartAt: start, EndAt: start}).ComputeDuration())
}

func TestPlanningSlot_Overlaps(t *testing.T) {
	start := time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC)
	a := &PlanningSlot{StartAt: start, EndAt: start.Add(2 * time.Hour)}
	b := &PlanningSlot{StartAt: start.Add(time.Hour), EndAt: start.Add(3 * time.Hour)}
	c := &PlanningSlot{StartAt: start.Add(2 * time.Hour), EndAt: start.Add(4 * time.Hour)}

	assert.True(t, a.Overlaps(b))
	assert.True(t, b.Overlaps(a))
	assert.False(t, a.Overlaps(c), "смежные слоты не пересекаются")

	assert.True(t, (&PlanningSlot{Status: SlotStatusInProgress}).IsActive())
	assert.False(t, (&PlanningSlot{Status: SlotStatusCancelled}).IsActive())
	assert.True(t, IsValidSlotStatus(SlotStatusCompleted))
	assert.False(t, IsValidSlotStatus("paused"))
	assert.True(t, IsValidSlotSource(SlotSourceShutdown))
}

func TestPlannedShutdown_Covers(t *testing.T) {
	start := time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC)
	shutdown := &PlannedShutdown{StartAt: start, EndAt: start.Add(4 * time.Hour)}

	assert.True(t, shutdown.Covers(start.Add(time.Hour), start.Add(5*time.Hour)))
	assert.False(t, shutdown.Covers(start.Add(4*time.Hour), start.Add(5*time.Hour)))
}

func TestTechnicianAvailability_Minutes(t *testing.T) {
	day := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	record := &TechnicianAvailability{StartTime: day.Add(8 * time.Hour), EndTime: day.Add(12 * time.Hour)}
	assert.Equal(t, 240, record.Minutes())

	record.EndTime = record.StartTime
	assert.Equal(t, 0, record.Minutes())
}

func TestDowntime_Duration(t *testing.T) {
	db := setupTestDB(t, &Downtime{})
	start := time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC)

	downtime := &Downtime{ProductionRunID: 1, CategoryID: 1, StartTime: start, CompanyID: 1}
	require.NoError(t, db.Create(downtime).Error)
	assert.True(t, downtime.IsActive())
	assert.Equal(t, 0, downtime.DurationMinutes)

	end := start.Add(45 * time.Minute)
	downtime.EndTime = &end
	require.NoError(t, db.Save(downtime).Error)
	assert.Equal(t, 45, downtime.DurationMinutes)
	assert.False(t, downtime.IsActive())

	before := start.Add(-time.Minute)
	assert.Equal(t, 0, (&Downtime{StartTime: start, EndTime: &before}).ComputeDuration())
}
