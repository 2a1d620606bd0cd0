package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"backend_cmms/models"
)

// AnalyticsFilter фильтр аналитических отчетов
type AnalyticsFilter struct {
	DateFrom  time.Time `json:"date_from"`
	DateTo    time.Time `json:"date_to"`
	MachineID *uint     `json:"machine_id,omitempty"`
}

// Validate проверяет границы периода
func (f AnalyticsFilter) Validate(op string) error {
	if f.DateFrom.IsZero() || f.DateTo.IsZero() {
		return validationError(op, "date_from", "период отчета обязателен")
	}
	if f.DateTo.Before(f.DateFrom) {
		return validationError(op, "date_to", "конец периода раньше начала")
	}
	return nil
}

// cacheParams строит часть ключа кэша из параметров фильтра
func (f AnalyticsFilter) cacheParams() string {
	machine := "all"
	if f.MachineID != nil {
		machine = fmt.Sprintf("%d", *f.MachineID)
	}
	return fmt.Sprintf("%s:%s:%s", f.DateFrom.Format("2006-01-02"), f.DateTo.Format("2006-01-02"), machine)
}

// OeeSummary средние показатели OEE по завершенным прогонам
type OeeSummary struct {
	RunCount             int     `json:"run_count"`
	AvgAvailabilityPct   float64 `json:"avg_availability_pct"`
	AvgPerformancePct    float64 `json:"avg_performance_pct"`
	AvgQualityPct        float64 `json:"avg_quality_pct"`
	AvgOeePct            float64 `json:"avg_oee_pct"`
	TotalDowntimeMinutes int     `json:"total_downtime_minutes"`
	TotalPlannedQuantity int     `json:"total_planned_quantity"`
	TotalActualQuantity  int     `json:"total_actual_quantity"`
	TotalGoodQuantity    int     `json:"total_good_quantity"`
}

// DowntimeSample длительность простоя с категорией, вход для расчета Парето
type DowntimeSample struct {
	CategoryID      uint
	CategoryName    string
	CategoryCode    string
	Color           string
	DurationMinutes int
}

// ParetoEntry строка диаграммы Парето
type ParetoEntry struct {
	CategoryID           uint    `json:"category_id"`
	CategoryName         string  `json:"category_name"`
	CategoryCode         string  `json:"category_code,omitempty"`
	Color                string  `json:"color,omitempty"`
	TotalMinutes         int     `json:"total_minutes"`
	Occurrences          int     `json:"occurrences"`
	Percentage           float64 `json:"percentage"`
	CumulativePercentage float64 `json:"cumulative_percentage"`
}

// MachineOee показатели одного станка для сравнения
type MachineOee struct {
	MachineID            uint    `json:"machine_id"`
	MachineName          string  `json:"machine_name"`
	RunCount             int     `json:"run_count"`
	AvgOeePct            float64 `json:"avg_oee_pct"`
	TotalDowntimeMinutes int     `json:"total_downtime_minutes"`
}

// OeeService рассчитывает OEE и потери от простоев
type OeeService struct {
	DB       *gorm.DB
	Cache    *CacheService
	CacheTTL time.Duration
}

// NewOeeService создает новый экземпляр OeeService
func NewOeeService(db *gorm.DB, cache *CacheService, ttl time.Duration) *OeeService {
	if ttl <= 0 {
		ttl = CacheTTLShort
	}
	return &OeeService{DB: db, Cache: cache, CacheTTL: ttl}
}

// completedRuns загружает завершенные прогоны периода вместе с простоями
func (s *OeeService) completedRuns(ctx context.Context, companyID uint, filter AnalyticsFilter, withMachine bool) ([]models.ProductionRun, error) {
	start, end := dayBounds(filter.DateFrom, filter.DateTo)
	query := s.DB.WithContext(ctx).
		Preload("Downtimes").
		Where("company_id = ? AND end_time IS NOT NULL AND start_time >= ? AND start_time < ?", companyID, start, end)
	if filter.MachineID != nil {
		query = query.Where("machine_id = ?", *filter.MachineID)
	}
	if withMachine {
		query = query.Preload("Machine")
	}

	var runs []models.ProductionRun
	if err := query.Order("start_time, id").Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// ComputeOeeSummary считает средние показатели по завершенным прогонам
func (s *OeeService) ComputeOeeSummary(ctx context.Context, companyID uint, filter AnalyticsFilter) (*OeeSummary, error) {
	const op = "analytics.oee"
	if err := filter.Validate(op); err != nil {
		return nil, err
	}

	var summary OeeSummary
	key := s.Cache.AnalyticsKey(ctx, companyID, "oee", filter.cacheParams())
	err := s.Cache.Remember(ctx, key, s.CacheTTL, &summary, func() (interface{}, error) {
		runs, err := s.completedRuns(ctx, companyID, filter, false)
		if err != nil {
			return nil, err
		}
		return SummarizeRuns(runs), nil
	})
	if err != nil {
		return nil, persistenceError(op, err)
	}
	return &summary, nil
}

// SummarizeRuns агрегирует показатели набора прогонов
func SummarizeRuns(runs []models.ProductionRun) *OeeSummary {
	summary := &OeeSummary{RunCount: len(runs)}
	if len(runs) == 0 {
		return summary
	}

	var availability, performance, quality, oee float64
	for i := range runs {
		availability += runs[i].AvailabilityPct
		performance += runs[i].PerformancePct
		quality += runs[i].QualityPct
		oee += runs[i].OeePct
		summary.TotalPlannedQuantity += runs[i].PlannedQuantity
		summary.TotalActualQuantity += runs[i].ActualQuantity
		summary.TotalGoodQuantity += runs[i].GoodQuantity
		for j := range runs[i].Downtimes {
			summary.TotalDowntimeMinutes += runs[i].Downtimes[j].DurationMinutes
		}
	}

	n := float64(len(runs))
	summary.AvgAvailabilityPct = round2(availability / n)
	summary.AvgPerformancePct = round2(performance / n)
	summary.AvgQualityPct = round2(quality / n)
	summary.AvgOeePct = round2(oee / n)
	return summary
}

// ComputeParetoLoss ранжирует категории простоев по суммарной длительности
func (s *OeeService) ComputeParetoLoss(ctx context.Context, companyID uint, filter AnalyticsFilter) ([]ParetoEntry, error) {
	const op = "analytics.pareto"
	if err := filter.Validate(op); err != nil {
		return nil, err
	}

	var entries []ParetoEntry
	key := s.Cache.AnalyticsKey(ctx, companyID, "pareto", filter.cacheParams())
	err := s.Cache.Remember(ctx, key, s.CacheTTL, &entries, func() (interface{}, error) {
		start, end := dayBounds(filter.DateFrom, filter.DateTo)
		query := s.DB.WithContext(ctx).Model(&models.Downtime{}).
			Preload("Category").
			Where("downtimes.company_id = ? AND downtimes.end_time IS NOT NULL AND downtimes.start_time >= ? AND downtimes.start_time < ?",
				companyID, start, end)
		if filter.MachineID != nil {
			query = query.Joins("JOIN production_runs ON production_runs.id = downtimes.production_run_id").
				Where("production_runs.machine_id = ?", *filter.MachineID)
		}

		var downtimes []models.Downtime
		if err := query.Order("downtimes.start_time, downtimes.id").Find(&downtimes).Error; err != nil {
			return nil, err
		}

		samples := make([]DowntimeSample, 0, len(downtimes))
		for i := range downtimes {
			sample := DowntimeSample{CategoryID: downtimes[i].CategoryID, DurationMinutes: downtimes[i].DurationMinutes}
			if c := downtimes[i].Category; c != nil {
				sample.CategoryName = c.Name
				sample.CategoryCode = c.Code
				sample.Color = c.Color
			}
			samples = append(samples, sample)
		}
		return BuildPareto(samples), nil
	})
	if err != nil {
		return nil, persistenceError(op, err)
	}
	return entries, nil
}

// BuildPareto группирует простои по категориям и строит кумулятивную кривую.
// Категории с равной длительностью сохраняют порядок первого появления.
func BuildPareto(samples []DowntimeSample) []ParetoEntry {
	entries := []ParetoEntry{}
	index := map[uint]int{}
	total := 0

	for _, sample := range samples {
		i, ok := index[sample.CategoryID]
		if !ok {
			i = len(entries)
			index[sample.CategoryID] = i
			entries = append(entries, ParetoEntry{
				CategoryID:   sample.CategoryID,
				CategoryName: sample.CategoryName,
				CategoryCode: sample.CategoryCode,
				Color:        sample.Color,
			})
		}
		entries[i].TotalMinutes += sample.DurationMinutes
		entries[i].Occurrences++
		total += sample.DurationMinutes
	}

	if total == 0 {
		return []ParetoEntry{}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalMinutes > entries[j].TotalMinutes
	})

	// Накопленный процент считается от неокругленной суммы
	running := 0
	for i := range entries {
		running += entries[i].TotalMinutes
		entries[i].Percentage = round2(float64(entries[i].TotalMinutes) / float64(total) * 100)
		entries[i].CumulativePercentage = round2(float64(running) / float64(total) * 100)
	}
	return entries
}

// CompareMachines сравнивает станки по среднему OEE
func (s *OeeService) CompareMachines(ctx context.Context, companyID uint, filter AnalyticsFilter) ([]MachineOee, error) {
	const op = "analytics.machines"
	if err := filter.Validate(op); err != nil {
		return nil, err
	}

	var result []MachineOee
	key := s.Cache.AnalyticsKey(ctx, companyID, "machines", filter.cacheParams())
	err := s.Cache.Remember(ctx, key, s.CacheTTL, &result, func() (interface{}, error) {
		runs, err := s.completedRuns(ctx, companyID, filter, true)
		if err != nil {
			return nil, err
		}
		return GroupByMachine(runs), nil
	})
	if err != nil {
		return nil, persistenceError(op, err)
	}
	return result, nil
}

// GroupByMachine группирует прогоны по станкам, сортировка по убыванию OEE
func GroupByMachine(runs []models.ProductionRun) []MachineOee {
	machines := []MachineOee{}
	sums := []float64{}
	index := map[uint]int{}

	for i := range runs {
		run := &runs[i]
		j, ok := index[run.MachineID]
		if !ok {
			j = len(machines)
			index[run.MachineID] = j
			item := MachineOee{MachineID: run.MachineID}
			if run.Machine != nil {
				item.MachineName = run.Machine.Name
			}
			machines = append(machines, item)
			sums = append(sums, 0)
		}
		machines[j].RunCount++
		sums[j] += run.OeePct
		for k := range run.Downtimes {
			machines[j].TotalDowntimeMinutes += run.Downtimes[k].DurationMinutes
		}
	}

	for j := range machines {
		machines[j].AvgOeePct = round2(sums[j] / float64(machines[j].RunCount))
	}

	sort.SliceStable(machines, func(i, j int) bool {
		return machines[i].AvgOeePct > machines[j].AvgOeePct
	})
	return machines
}
