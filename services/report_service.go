package services

import (
	"context"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"backend_cmms/logger"
)

// ReportService выгружает аналитику OEE и планирования в xlsx и pdf
type ReportService struct {
	oee      *OeeService
	accuracy *PlanningAccuracyService
}

// NewReportService создает новый экземпляр ReportService
func NewReportService(oee *OeeService, accuracy *PlanningAccuracyService) *ReportService {
	return &ReportService{oee: oee, accuracy: accuracy}
}

// ReportData представляет одну таблицу отчета
type ReportData struct {
	Title   string          `json:"title"`
	Headers []string        `json:"headers"`
	Rows    [][]interface{} `json:"rows"`
}

// AnalyticsReport все разделы аналитического отчета за период
type AnalyticsReport struct {
	Filter    AnalyticsFilter    `json:"filter"`
	Summary   *OeeSummary        `json:"summary"`
	Pareto    []ParetoEntry      `json:"pareto"`
	Machines  []MachineOee       `json:"machines"`
	Adherence *ScheduleAdherence `json:"adherence"`
}

// BuildAnalyticsReport собирает все разделы отчета
func (rs *ReportService) BuildAnalyticsReport(ctx context.Context, companyID uint, filter AnalyticsFilter) (*AnalyticsReport, error) {
	summary, err := rs.oee.ComputeOeeSummary(ctx, companyID, filter)
	if err != nil {
		return nil, err
	}
	pareto, err := rs.oee.ComputeParetoLoss(ctx, companyID, filter)
	if err != nil {
		return nil, err
	}
	machines, err := rs.oee.CompareMachines(ctx, companyID, filter)
	if err != nil {
		return nil, err
	}
	adherence, err := rs.accuracy.ComputeScheduleAdherence(ctx, companyID, filter.DateFrom, filter.DateTo)
	if err != nil {
		return nil, err
	}

	return &AnalyticsReport{
		Filter:    filter,
		Summary:   summary,
		Pareto:    pareto,
		Machines:  machines,
		Adherence: adherence,
	}, nil
}

// Sections раскладывает отчет на таблицы
func (r *AnalyticsReport) Sections() []ReportData {
	summary := ReportData{
		Title:   "OEE",
		Headers: []string{"Metric", "Value"},
		Rows: [][]interface{}{
			{"Runs", r.Summary.RunCount},
			{"Availability %", r.Summary.AvgAvailabilityPct},
			{"Performance %", r.Summary.AvgPerformancePct},
			{"Quality %", r.Summary.AvgQualityPct},
			{"OEE %", r.Summary.AvgOeePct},
			{"Downtime, min", r.Summary.TotalDowntimeMinutes},
		},
	}

	pareto := ReportData{
		Title:   "Pareto",
		Headers: []string{"Category", "Minutes", "Count", "Percent", "Cumulative %"},
	}
	for _, e := range r.Pareto {
		pareto.Rows = append(pareto.Rows, []interface{}{e.CategoryName, e.TotalMinutes, e.Occurrences, e.Percentage, e.CumulativePercentage})
	}

	machines := ReportData{
		Title:   "Machines",
		Headers: []string{"Machine", "Runs", "Avg OEE %", "Downtime, min"},
	}
	for _, m := range r.Machines {
		machines.Rows = append(machines.Rows, []interface{}{m.MachineName, m.RunCount, m.AvgOeePct, m.TotalDowntimeMinutes})
	}

	adherence := ReportData{
		Title:   "Adherence",
		Headers: []string{"Metric", "Value"},
		Rows: [][]interface{}{
			{"Slots", r.Adherence.TotalSlots},
			{"On-time start %", r.Adherence.OnTimeStartRate},
			{"Duration accuracy", r.Adherence.DurationAccuracy},
			{"Avg delay, min", r.Adherence.AvgDelayMinutes},
			{"Schedule adherence %", r.Adherence.ScheduleAdherence},
		},
	}

	return []ReportData{summary, pareto, machines, adherence}
}

// WriteExcel пишет отчет в xlsx, по листу на раздел
func (rs *ReportService) WriteExcel(w io.Writer, report *AnalyticsReport) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Log.WithError(err).Warn("Не удалось закрыть Excel файл")
		}
	}()

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("ошибка создания стиля: %w", err)
	}

	for i, section := range report.Sections() {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", section.Title); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(section.Title); err != nil {
			return err
		}

		// Записываем заголовки
		for col, header := range section.Headers {
			cell, _ := excelize.CoordinatesToCellName(col+1, 1)
			if err := f.SetCellValue(section.Title, cell, header); err != nil {
				return err
			}
		}
		lastHeader, _ := excelize.CoordinatesToCellName(len(section.Headers), 1)
		if err := f.SetCellStyle(section.Title, "A1", lastHeader, headerStyle); err != nil {
			return err
		}

		// Записываем данные
		for rowIdx, row := range section.Rows {
			for col, value := range row {
				cell, _ := excelize.CoordinatesToCellName(col+1, rowIdx+2)
				if err := f.SetCellValue(section.Title, cell, value); err != nil {
					return err
				}
			}
		}

		endCol, _ := excelize.ColumnNumberToName(len(section.Headers))
		if err := f.SetColWidth(section.Title, "A", endCol, 20); err != nil {
			return err
		}
		if len(section.Rows) > 0 {
			endCell, _ := excelize.CoordinatesToCellName(len(section.Headers), len(section.Rows)+1)
			if err := f.AutoFilter(section.Title, "A1:"+endCell, []excelize.AutoFilterOptions{}); err != nil {
				return err
			}
		}
	}

	return f.Write(w)
}

// WritePDF пишет отчет в pdf. Встроенные шрифты gofpdf не содержат кириллицы,
// поэтому подписи латиницей.
func (rs *ReportService) WritePDF(w io.Writer, report *AnalyticsReport) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Maintenance analytics", false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Maintenance analytics")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 8, fmt.Sprintf("Period: %s - %s",
		report.Filter.DateFrom.Format("2006-01-02"), report.Filter.DateTo.Format("2006-01-02")))
	pdf.Ln(12)

	for _, section := range report.Sections() {
		width := 190 / float64(len(section.Headers))

		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(0, 8, section.Title)
		pdf.Ln(9)

		pdf.SetFont("Arial", "B", 9)
		for _, header := range section.Headers {
			pdf.CellFormat(width, 7, header, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 9)
		for _, row := range section.Rows {
			for _, value := range row {
				pdf.CellFormat(width, 6, pdfValue(value), "1", 0, "L", false, 0, "")
			}
			pdf.Ln(-1)
		}
		pdf.Ln(6)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("ошибка формирования PDF: %w", err)
	}
	return nil
}

func pdfValue(v interface{}) string {
	switch val := v.(type) {
	case float64:
		return fmt.Sprintf("%.2f", val)
	case string:
		if len(val) > 40 {
			return val[:40]
		}
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}
