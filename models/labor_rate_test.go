package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestLaborRate_ValidateTarget(t *testing.T) {
	userID := uint(5)
	zero := uint(0)

	assert.NoError(t, (&LaborRate{UserID: &userID}).ValidateTarget())
	assert.NoError(t, (&LaborRate{Role: RoleTechnician}).ValidateTarget())
	assert.Error(t, (&LaborRate{UserID: &userID, Role: RoleTechnician}).ValidateTarget(), "оба адресата")
	assert.Error(t, (&LaborRate{}).ValidateTarget(), "нет адресата")
	assert.Error(t, (&LaborRate{UserID: &zero}).ValidateTarget(), "нулевой пользователь")
}

func TestLaborRate_Target(t *testing.T) {
	userID := uint(5)
	assert.Equal(t, UserTarget(5), (&LaborRate{UserID: &userID}).Target())
	assert.Equal(t, RoleTarget(RoleManager), (&LaborRate{Role: RoleManager}).Target())
}

func TestLaborRate_IsEffectiveAt(t *testing.T) {
	to := date(2024, time.February, 29)
	rate := &LaborRate{EffectiveFrom: date(2024, time.January, 1), EffectiveTo: &to}

	assert.False(t, rate.IsEffectiveAt(date(2023, time.December, 31)))
	assert.True(t, rate.IsEffectiveAt(date(2024, time.January, 1)))
	assert.True(t, rate.IsEffectiveAt(to))
	assert.False(t, rate.IsEffectiveAt(date(2024, time.March, 1)))

	open := &LaborRate{EffectiveFrom: date(2024, time.January, 1)}
	assert.True(t, open.IsEffectiveAt(date(2030, time.January, 1)))
}

func TestLaborRate_Overlaps(t *testing.T) {
	endJan := date(2024, time.January, 31)
	endFeb := date(2024, time.February, 29)

	january := &LaborRate{EffectiveFrom: date(2024, time.January, 1), EffectiveTo: &endJan}
	february := &LaborRate{EffectiveFrom: date(2024, time.February, 1), EffectiveTo: &endFeb}
	fromMid := &LaborRate{EffectiveFrom: date(2024, time.January, 15)}
	fromMarch := &LaborRate{EffectiveFrom: date(2024, time.March, 1)}

	assert.False(t, january.Overlaps(february))
	assert.False(t, february.Overlaps(january))
	assert.True(t, january.Overlaps(fromMid))
	assert.True(t, fromMid.Overlaps(february))
	assert.False(t, february.Overlaps(fromMarch))
	assert.True(t, fromMid.Overlaps(fromMarch), "два бессрочных периода всегда пересекаются")

	sameDay := &LaborRate{EffectiveFrom: endJan}
	assert.True(t, january.Overlaps(sameDay), "граница включительно")
}

func TestLaborRate_RateFor(t *testing.T) {
	withOvertime := &LaborRate{
		HourlyRate:   decimal.NewFromInt(40),
		OvertimeRate: decimal.NewNullDecimal(decimal.NewFromInt(60)),
	}
	rate, overtime := withOvertime.RateFor(17, 18)
	assert.True(t, rate.Equal(decimal.NewFromInt(40)))
	assert.False(t, overtime)

	rate, overtime = withOvertime.RateFor(18, 18)
	assert.True(t, rate.Equal(decimal.NewFromInt(60)))
	assert.True(t, overtime)

	plain := &LaborRate{HourlyRate: decimal.NewFromInt(40)}
	rate, overtime = plain.RateFor(22, 18)
	assert.True(t, rate.Equal(decimal.NewFromInt(40)), "без ставки сверхурочных применяется базовая")
	assert.False(t, overtime)
}
