// Package aggregate computes read-only production views from committed
// cut records: daily totals, per-job and per-thickness breakdowns, daily
// idle time and a period summary.
package aggregate

import (
	"fmt"
	"strings"
)

// DailyMetrics aggregates one process date.
type DailyMetrics struct {
	Date                 string  `json:"date"`
	Records              int     `json:"records"`
	DistinctJobs         int     `json:"distinct_jobs"`
	TotalPlates          int     `json:"total_plates"`
	AvgDurationSeconds   float64 `json:"avg_duration_seconds"`
	TotalDurationSeconds int64   `json:"total_duration_seconds"`
	AvgAreaMM2           float64 `json:"avg_area_mm2"`
	TotalAreaMM2         float64 `json:"total_area_mm2"`
	AvgThicknessMM       float64 `json:"avg_thickness_mm"`
	MinThicknessMM       float64 `json:"min_thickness_mm"`
	MaxThicknessMM       float64 `json:"max_thickness_mm"`
	PlatesPerHour        float64 `json:"plates_per_hour"`
}

// JobMetrics aggregates one job at one set of board dimensions.
type JobMetrics struct {
	JobKey               string  `json:"job_key"`
	LengthMM             float64 `json:"length_mm"`
	WidthMM              float64 `json:"width_mm"`
	ThicknessMM          float64 `json:"thickness_mm"`
	AreaMM2              float64 `json:"area_mm2"`
	VolumeMM3            float64 `json:"volume_mm3"`
	Records              int     `json:"records"`
	TotalPlates          int     `json:"total_plates"`
	FirstDate            string  `json:"first_date"`
	LastDate             string  `json:"last_date"`
	AvgDurationSeconds   float64 `json:"avg_duration_seconds"`
	TotalDurationSeconds int64   `json:"total_duration_seconds"`
}

// ThicknessMetrics aggregates one board thickness.
type ThicknessMetrics struct {
	ThicknessMM        float64 `json:"thickness_mm"`
	Records            int     `json:"records"`
	TotalPlates        int     `json:"total_plates"`
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`
	AvgAreaMM2         float64 `json:"avg_area_mm2"`
	DistinctJobs       int     `json:"distinct_jobs"`
}

// IdleMetrics reconciles a day's machine span against its recorded work.
// Anomalous is set when recorded work exceeds the span (overlapping
// records); idle figures are then clamped to zero.
type IdleMetrics struct {
	Date              string  `json:"date"`
	FirstStart        string  `json:"first_start"`
	LastEnd           string  `json:"last_end"`
	Records           int     `json:"records"`
	SpanSeconds       int64   `json:"span_seconds"`
	ProductiveSeconds int64   `json:"productive_seconds"`
	IdleSeconds       int64   `json:"idle_seconds"`
	IdlePercent       float64 `json:"idle_percent"`
	Anomalous         bool    `json:"anomalous"`
}

// Summary holds the period KPIs.
type Summary struct {
	From                 string  `json:"from,omitempty"`
	To                   string  `json:"to,omitempty"`
	Records              int     `json:"records"`
	TotalPlates          int     `json:"total_plates"`
	DistinctJobs         int     `json:"distinct_jobs"`
	ActiveDays           int     `json:"active_days"`
	AvgDurationSeconds   float64 `json:"avg_duration_seconds"`
	AvgPlatesPerDay      float64 `json:"avg_plates_per_day"`
	HighlightThicknessMM float64 `json:"highlight_thickness_mm"`
	HighlightPlates      int     `json:"highlight_plates"`
	SpanSeconds          int64   `json:"span_seconds"`
	ProductiveSeconds    int64   `json:"productive_seconds"`
	ProductivityPercent  float64 `json:"productivity_percent"`
	AnomalousDays        int     `json:"anomalous_days"`
}

// Report bundles every view over one date range.
type Report struct {
	Summary   *Summary           `json:"summary"`
	Daily     []DailyMetrics     `json:"daily"`
	Jobs      []JobMetrics       `json:"jobs"`
	Thickness []ThicknessMetrics `json:"thickness"`
	Idle      []IdleMetrics      `json:"idle"`
}

// JobSort selects the primary ordering of the job view. All sorts are
// descending with ties broken by job key, then length, width, thickness.
type JobSort string

const (
	SortPlates      JobSort = "plates"
	SortRecords     JobSort = "records"
	SortTotalTime   JobSort = "total_time"
	SortAvgDuration JobSort = "avg_duration"
)

// JobOptions tunes the job view.
type JobOptions struct {
	Sort JobSort
	// Top limits the number of rows returned; 0 means all.
	Top int
}

// ParseJobSort validates a sort key. Empty selects SortPlates.
func ParseJobSort(s string) (JobSort, error) {
	switch JobSort(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortPlates:
		return SortPlates, nil
	case SortRecords:
		return SortRecords, nil
	case SortTotalTime:
		return SortTotalTime, nil
	case SortAvgDuration:
		return SortAvgDuration, nil
	default:
		return "", fmt.Errorf("invalid job sort %q (must be plates, records, total_time, or avg_duration)", s)
	}
}
