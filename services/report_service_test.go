package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"backend_cmms/testutils"
)

func buildTestReport(t *testing.T) (*testEnv, *ReportService, *AnalyticsReport) {
	t.Helper()
	env := setupServiceTest(t)
	machine := testutils.CreateTestMachine(t, env.db, env.company.ID, "press", decimal.Zero, nil)
	category := testutils.CreateTestDowntimeCategory(t, env.db, env.company.ID, "Mechanical", false)
	seedRun(t, env, machine.ID, testutils.Date(2024, time.March, 4, 6, 0), 72.5, map[uint]int{category.ID: 45})

	reports := NewReportService(env.oee, env.accuracy)
	report, err := reports.BuildAnalyticsReport(context.Background(), env.company.ID, AnalyticsFilter{
		DateFrom: testutils.Date(2024, time.March, 1, 0, 0),
		DateTo:   testutils.Date(2024, time.March, 31, 0, 0),
	})
	require.NoError(t, err)
	return env, reports, report
}

func TestBuildAnalyticsReport(t *testing.T) {
	_, _, report := buildTestReport(t)

	assert.Equal(t, 1, report.Summary.RunCount)
	require.Len(t, report.Pareto, 1)
	require.Len(t, report.Machines, 1)
	require.NotNil(t, report.Adherence)

	sections := report.Sections()
	require.Len(t, sections, 4)
	assert.Equal(t, "OEE", sections[0].Title)
	assert.Len(t, sections[1].Rows, 1)
	for _, section := range sections {
		for _, row := range section.Rows {
			assert.Len(t, row, len(section.Headers), section.Title)
		}
	}
}

func TestBuildAnalyticsReport_InvalidFilter(t *testing.T) {
	env := setupServiceTest(t)
	reports := NewReportService(env.oee, env.accuracy)

	_, err := reports.BuildAnalyticsReport(context.Background(), env.company.ID, AnalyticsFilter{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestWriteExcel(t *testing.T) {
	_, reports, report := buildTestReport(t)

	var buf bytes.Buffer
	require.NoError(t, reports.WriteExcel(&buf, report))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"OEE", "Pareto", "Machines", "Adherence"}, f.GetSheetList())

	header, err := f.GetCellValue("Pareto", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Category", header)

	category, err := f.GetCellValue("Pareto", "A2")
	require.NoError(t, err)
	assert.Equal(t, "Mechanical", category)

	minutes, err := f.GetCellValue("Pareto", "B2")
	require.NoError(t, err)
	assert.Equal(t, "45", minutes)

	oee, err := f.GetCellValue("OEE", "B6")
	require.NoError(t, err)
	assert.Equal(t, "72.5", oee)
}

func TestWritePDF(t *testing.T) {
	_, reports, report := buildTestReport(t)

	var buf bytes.Buffer
	require.NoError(t, reports.WritePDF(&buf, report))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
	assert.Greater(t, buf.Len(), 500)
}

func TestPdfValue(t *testing.T) {
	assert.Equal(t, "12.35", pdfValue(12.346))
	assert.Equal(t, "7", pdfValue(7))
	assert.Equal(t, "short", pdfValue("short"))
	assert.Len(t, pdfValue("a very long machine name that will not fit into the table cell"), 40)
}
