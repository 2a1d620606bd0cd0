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

func TestCreateRate(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	tech := testutils.CreateTestUser(t, env.db, env.company.ID, "tech", models.RoleTechnician)
	january := testutils.Date(2024, time.January, 1, 0, 0)
	march := testutils.Date(2024, time.March, 1, 0, 0)
	endOfFebruary := testutils.Date(2024, time.February, 29, 0, 0)

	rate, err := env.rates.CreateRate(ctx, env.company.ID, CreateRateInput{
		Target:        models.UserTarget(tech.ID),
		HourlyRate:    decimal.NewFromInt(40),
		OvertimeRate:  decimal.NewNullDecimal(decimal.NewFromInt(60)),
		EffectiveFrom: january,
		EffectiveTo:   &endOfFebruary,
	})
	require.NoError(t, err)
	require.NotNil(t, rate.UserID)
	assert.Equal(t, tech.ID, *rate.UserID)
	assert.Empty(t, rate.Role)

	_, err = env.rates.CreateRate(ctx, env.company.ID, CreateRateInput{
		Target:        models.UserTarget(tech.ID),
		HourlyRate:    decimal.NewFromInt(45),
		EffectiveFrom: testutils.Date(2024, time.February, 15, 0, 0),
	})
	assert.ErrorIs(t, err, ErrConflict, "пересечение периодов")

	_, err = env.rates.CreateRate(ctx, env.company.ID, CreateRateInput{
		Target:        models.UserTarget(tech.ID),
		HourlyRate:    decimal.NewFromInt(45),
		EffectiveFrom: march,
	})
	assert.NoError(t, err, "следующий период без пересечения")

	// Ставка роли не конфликтует с персональной
	_, err = env.rates.CreateRate(ctx, env.company.ID, CreateRateInput{
		Target:        models.RoleTarget(models.RoleTechnician),
		HourlyRate:    decimal.NewFromInt(30),
		EffectiveFrom: january,
	})
	assert.NoError(t, err)

	assert.Equal(t, int64(3), countRows(t, env.db, &models.AuditLog{}, "action = ?", ActionLaborRateCreate))
}

func TestCreateRate_Validation(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	from := testutils.Date(2024, time.January, 1, 0, 0)
	before := from.AddDate(0, 0, -1)
	other := testutils.CreateTestCompany(t, env.db, "other")
	foreignUser := testutils.CreateTestUser(t, env.db, other.ID, "foreign", models.RoleTechnician)

	tests := []struct {
		name  string
		input CreateRateInput
		kind  error
		field string
	}{
		{"нет адресата", CreateRateInput{HourlyRate: decimal.NewFromInt(10), EffectiveFrom: from}, ErrValidation, "target"},
		{"пустая роль", CreateRateInput{Target: models.RoleTarget(""), HourlyRate: decimal.NewFromInt(10), EffectiveFrom: from}, ErrValidation, "target"},
		{"нулевая ставка", CreateRateInput{Target: models.RoleTarget("technician"), EffectiveFrom: from}, ErrValidation, "hourly_rate"},
		{"отрицательные сверхурочные", CreateRateInput{
			Target: models.RoleTarget("technician"), HourlyRate: decimal.NewFromInt(10),
			OvertimeRate: decimal.NewNullDecimal(decimal.NewFromInt(-1)), EffectiveFrom: from,
		}, ErrValidation, "overtime_rate"},
		{"без даты начала", CreateRateInput{Target: models.RoleTarget("technician"), HourlyRate: decimal.NewFromInt(10)}, ErrValidation, "effective_from"},
		{"конец раньше начала", CreateRateInput{
			Target: models.RoleTarget("technician"), HourlyRate: decimal.NewFromInt(10), EffectiveFrom: from, EffectiveTo: &before,
		}, ErrValidation, "effective_to"},
		{"чужой пользователь", CreateRateInput{Target: models.UserTarget(foreignUser.ID), HourlyRate: decimal.NewFromInt(10), EffectiveFrom: from}, ErrAuthorization, ""},
		{"нет пользователя", CreateRateInput{Target: models.UserTarget(9999), HourlyRate: decimal.NewFromInt(10), EffectiveFrom: from}, ErrNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.rates.CreateRate(ctx, env.company.ID, tt.input)
			require.ErrorIs(t, err, tt.kind)
			if tt.field != "" {
				svcErr, ok := AsServiceError(err)
				require.True(t, ok)
				assert.Equal(t, tt.field, svcErr.Field)
			}
		})
	}
	assert.Equal(t, int64(0), countRows(t, env.db, &models.LaborRate{}, ""))
}

func TestResolveRate_Precedence(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	tech := testutils.CreateTestUser(t, env.db, env.company.ID, "tech", models.RoleTechnician)
	newcomer := testutils.CreateTestUser(t, env.db, env.company.ID, "newcomer", models.RoleTechnician)

	testutils.CreateTestLaborRate(t, env.db, env.company.ID, nil, models.RoleTechnician, decimal.NewFromInt(30), testutils.Date(2023, time.January, 1, 0, 0))
	testutils.CreateTestLaborRate(t, env.db, env.company.ID, nil, models.RoleTechnician, decimal.NewFromInt(35), testutils.Date(2024, time.January, 1, 0, 0))
	testutils.CreateTestLaborRate(t, env.db, env.company.ID, &tech.ID, "", decimal.NewFromInt(50), testutils.Date(2024, time.February, 1, 0, 0))

	at := testutils.Date(2024, time.March, 1, 12, 0)

	rate, err := env.rates.ResolveRate(ctx, env.company.ID, tech.ID, models.RoleTechnician, at)
	require.NoError(t, err)
	require.NotNil(t, rate)
	assert.True(t, rate.HourlyRate.Equal(decimal.NewFromInt(50)), "персональная ставка важнее роли")

	rate, err = env.rates.ResolveRate(ctx, env.company.ID, newcomer.ID, models.RoleTechnician, at)
	require.NoError(t, err)
	require.NotNil(t, rate)
	assert.True(t, rate.HourlyRate.Equal(decimal.NewFromInt(35)), "самая поздняя ставка роли")

	rate, err = env.rates.ResolveRate(ctx, env.company.ID, tech.ID, models.RoleTechnician, testutils.Date(2024, time.January, 15, 0, 0))
	require.NoError(t, err)
	require.NotNil(t, rate)
	assert.True(t, rate.HourlyRate.Equal(decimal.NewFromInt(35)), "персональная ставка еще не действует")

	rate, err = env.rates.ResolveRate(ctx, env.company.ID, newcomer.ID, models.RoleManager, at)
	require.NoError(t, err)
	assert.Nil(t, rate)

	other := testutils.CreateTestCompany(t, env.db, "other")
	rate, err = env.rates.ResolveRate(ctx, other.ID, tech.ID, models.RoleTechnician, at)
	require.NoError(t, err)
	assert.Nil(t, rate, "ставки другой компании не применяются")
}
