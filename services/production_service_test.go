package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backend_cmms/models"
	"backend_cmms/testutils"
)

func TestComputeOee(t *testing.T) {
	tests := []struct {
		name                            string
		run, plannedStop, unplannedStop float64
		plannedQty, actualQty, goodQty  int
		expected                        OeeFigures
	}{
		{
			name: "смена с простоями", run: 480, plannedStop: 30, unplannedStop: 45,
			plannedQty: 900, actualQty: 800, goodQty: 760,
			expected: OeeFigures{AvailabilityPct: 90, PerformancePct: 98.77, QualityPct: 95, OeePct: 84.45},
		},
		{
			name: "без простоев", run: 60, plannedQty: 100, actualQty: 100, goodQty: 100,
			expected: OeeFigures{AvailabilityPct: 100, PerformancePct: 100, QualityPct: 100, OeePct: 100},
		},
		{
			name: "перевыполнение ограничено 100", run: 60, plannedQty: 10, actualQty: 20, goodQty: 20,
			expected: OeeFigures{AvailabilityPct: 100, PerformancePct: 100, QualityPct: 100, OeePct: 100},
		},
		{
			name: "нулевая длительность", run: 0, plannedQty: 10, actualQty: 0, goodQty: 0,
			expected: OeeFigures{},
		},
		{
			name: "весь прогон плановый простой", run: 60, plannedStop: 60, plannedQty: 10, actualQty: 5, goodQty: 5,
			expected: OeeFigures{QualityPct: 100},
		},
		{
			name: "без плана", run: 60, unplannedStop: 30, plannedQty: 0, actualQty: 10, goodQty: 5,
			expected: OeeFigures{AvailabilityPct: 50, QualityPct: 50},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeOee(tt.run, tt.plannedStop, tt.unplannedStop, tt.plannedQty, tt.actualQty, tt.goodQty)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, round2(got.AvailabilityPct*got.PerformancePct*got.QualityPct/10000), got.OeePct)
		})
	}
}

func TestProductionRunLifecycle(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	machine := testutils.CreateTestMachine(t, env.db, env.company.ID, "press", decimal.NewFromInt(100), nil)
	setup := testutils.CreateTestDowntimeCategory(t, env.db, env.company.ID, "Setup", true)
	jam := testutils.CreateTestDowntimeCategory(t, env.db, env.company.ID, "Jam", false)

	run, err := env.production.StartRun(ctx, env.company.ID, StartRunInput{
		MachineID:       machine.ID,
		Product:         "bracket",
		Shift:           "A",
		StartTime:       timePtr(env.now.Add(-8 * time.Hour)),
		PlannedQuantity: 900,
	})
	require.NoError(t, err)
	assert.False(t, run.IsCompleted())

	_, err = env.production.StartRun(ctx, env.company.ID, StartRunInput{MachineID: machine.ID})
	assert.ErrorIs(t, err, ErrConflict, "один прогон на станке")

	planned, err := env.production.StartDowntime(ctx, env.company.ID, StartDowntimeInput{
		ProductionRunID: run.ID,
		CategoryID:      setup.ID,
		StartTime:       timePtr(env.now.Add(-6 * time.Hour)),
	})
	require.NoError(t, err)
	closed, err := env.production.EndDowntime(ctx, env.company.ID, planned.ID, timePtr(env.now.Add(-330*time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, 30, closed.DurationMinutes)

	_, err = env.production.EndDowntime(ctx, env.company.ID, planned.ID, nil)
	assert.ErrorIs(t, err, ErrConflict)

	open, err := env.production.StartDowntime(ctx, env.company.ID, StartDowntimeInput{
		ProductionRunID: run.ID,
		CategoryID:      jam.ID,
		StartTime:       timePtr(env.now.Add(-45 * time.Minute)),
		Reason:          "заклинило подачу",
	})
	require.NoError(t, err)
	assert.True(t, open.IsActive())

	ended, err := env.production.EndRun(ctx, env.company.ID, run.ID, EndRunInput{ActualQuantity: 800, GoodQuantity: 760})
	require.NoError(t, err)
	assert.Equal(t, 90.0, ended.AvailabilityPct)
	assert.Equal(t, 98.77, ended.PerformancePct)
	assert.Equal(t, 95.0, ended.QualityPct)
	assert.Equal(t, 84.45, ended.OeePct)

	var stored models.Downtime
	require.NoError(t, env.db.First(&stored, open.ID).Error)
	require.NotNil(t, stored.EndTime, "открытый простой закрывается вместе с прогоном")
	assert.Equal(t, 45, stored.DurationMinutes)

	var persisted models.ProductionRun
	require.NoError(t, env.db.First(&persisted, run.ID).Error)
	assert.Equal(t, 84.45, persisted.OeePct)
	assert.Equal(t, 800, persisted.ActualQuantity)

	_, err = env.production.EndRun(ctx, env.company.ID, run.ID, EndRunInput{})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = env.production.StartDowntime(ctx, env.company.ID, StartDowntimeInput{ProductionRunID: run.ID, CategoryID: jam.ID})
	assert.ErrorIs(t, err, ErrConflict)

	assert.Equal(t, int64(1), countRows(t, env.db, &models.AuditLog{}, "action = ?", ActionProductionRunEnd))

	// После завершения можно начать новый прогон
	_, err = env.production.StartRun(ctx, env.company.ID, StartRunInput{MachineID: machine.ID})
	assert.NoError(t, err)
}

func TestProductionRun_Validation(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	machine := testutils.CreateTestMachine(t, env.db, env.company.ID, "lathe", decimal.Zero, nil)
	other := testutils.CreateTestCompany(t, env.db, "other")
	foreignCategory := testutils.CreateTestDowntimeCategory(t, env.db, other.ID, "Foreign", false)

	_, err := env.production.StartRun(ctx, env.company.ID, StartRunInput{MachineID: machine.ID, PlannedQuantity: -1})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.production.StartRun(ctx, other.ID, StartRunInput{MachineID: machine.ID})
	assert.ErrorIs(t, err, ErrAuthorization)

	_, err = env.production.StartRun(ctx, env.company.ID, StartRunInput{MachineID: 9999})
	assert.ErrorIs(t, err, ErrNotFound)

	run, err := env.production.StartRun(ctx, env.company.ID, StartRunInput{MachineID: machine.ID, StartTime: timePtr(env.now.Add(-time.Hour))})
	require.NoError(t, err)

	_, err = env.production.EndRun(ctx, env.company.ID, run.ID, EndRunInput{ActualQuantity: 5, GoodQuantity: 6})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.production.EndRun(ctx, env.company.ID, run.ID, EndRunInput{EndTime: timePtr(env.now.Add(-2 * time.Hour))})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.production.StartDowntime(ctx, env.company.ID, StartDowntimeInput{
		ProductionRunID: run.ID, CategoryID: foreignCategory.ID,
	})
	assert.ErrorIs(t, err, ErrAuthorization)

	_, err = env.production.StartDowntime(ctx, env.company.ID, StartDowntimeInput{
		ProductionRunID: run.ID, CategoryID: foreignCategory.ID, StartTime: timePtr(env.now.Add(-2 * time.Hour)),
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.production.EndRun(ctx, other.ID, run.ID, EndRunInput{})
	assert.ErrorIs(t, err, ErrAuthorization)
}
