package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backend_cmms/models"
	"backend_cmms/testutils"
)

func TestAuditService_LogAndQuery(t *testing.T) {
	env := setupServiceTest(t)
	user := testutils.CreateTestUser(t, env.db, env.company.ID, "planner", models.RolePlanner)

	require.NoError(t, env.audit.LogTx(env.db, AuditContext{
		CompanyID:  env.company.ID,
		UserID:     &user.ID,
		Action:     ActionSlotCreate,
		Resource:   "planning_slot",
		ResourceID: uintPtr(1),
		NewValues:  map[string]int{"duration_minutes": 60},
	}))
	require.NoError(t, env.audit.LogTx(env.db, AuditContext{
		CompanyID: env.company.ID,
		Action:    ActionLaborRateCreate,
		Resource:  "labor_rate",
		Details:   map[string]interface{}{"role": "technician"},
	}))
	env.audit.LogFailure(AuditContext{
		CompanyID: env.company.ID,
		Action:    ActionWorkOrderComplete,
		Resource:  "work_order",
	}, errors.New("insufficient stock"))

	all, err := env.audit.GetAuditLogs(env.company.ID, AuditFilters{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byUser, err := env.audit.GetAuditLogs(env.company.ID, AuditFilters{UserID: &user.ID})
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.JSONEq(t, `{"duration_minutes":60}`, byUser[0].NewValues)

	failed := false
	failures, err := env.audit.GetAuditLogs(env.company.ID, AuditFilters{Success: &failed})
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "insufficient stock", failures[0].ErrorMsg)

	byResource, err := env.audit.GetAuditLogs(env.company.ID, AuditFilters{Resource: "labor_rate"})
	require.NoError(t, err)
	require.Len(t, byResource, 1)
	assert.JSONEq(t, `{"role":"technician"}`, byResource[0].Details)

	paged, err := env.audit.GetAuditLogs(env.company.ID, AuditFilters{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, paged, 1)

	other, err := env.audit.GetAuditLogs(env.company.ID+1, AuditFilters{})
	require.NoError(t, err)
	assert.Empty(t, other)
}
