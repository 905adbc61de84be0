// Package cut defines the cut-event record persisted by cutlog and the
// formulas for its derived production metrics.
//
// The derived columns (duration, area, volume) are never supplied from
// outside: they are recomputed from the base fields by Derive, which runs
// before every insert and after every read.
package cut

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Record is one cut event: a single execution of a cutting scheme.
type Record struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	// OptimizationName identifies the cutting scheme as written by the machine.
	OptimizationName string `gorm:"column:optimization_name;not null" json:"optimization_name"`

	// JobKey is the scheme file name without its extension.
	JobKey string `gorm:"column:job_key;not null;index:idx_cut_records_job_key" json:"job_key"`

	ProcessDate datatypes.Date `gorm:"column:process_date;not null;index:idx_cut_records_process_date" json:"process_date"`
	StartTime   datatypes.Time `gorm:"column:start_time;not null" json:"start_time"`
	EndTime     datatypes.Time `gorm:"column:end_time;not null" json:"end_time"`

	LengthMM    float64 `gorm:"column:length_mm;not null" json:"length_mm"`
	WidthMM     float64 `gorm:"column:width_mm;not null" json:"width_mm"`
	ThicknessMM float64 `gorm:"column:thickness_mm;not null;index:idx_cut_records_thickness_mm" json:"thickness_mm"`
	PlateCount  int     `gorm:"column:plate_count;not null" json:"plate_count"`

	// Derived columns.
	DurationSeconds int64   `gorm:"column:duration_seconds;not null" json:"duration_seconds"`
	AreaMM2         float64 `gorm:"column:area_mm2;not null" json:"area_mm2"`
	VolumeMM3       float64 `gorm:"column:volume_mm3;not null" json:"volume_mm3"`

	// Provenance. (SourceChecksum, SourceLine) is unique so a file's content
	// can never be committed twice.
	SourceFile     string `gorm:"column:source_file;not null" json:"source_file"`
	SourceChecksum string `gorm:"column:source_checksum;size:64;not null;uniqueIndex:idx_cut_records_source_line,priority:1" json:"source_checksum"`
	SourceLine     int    `gorm:"column:source_line;not null;uniqueIndex:idx_cut_records_source_line,priority:2" json:"source_line"`

	LoadTimestamp time.Time `gorm:"column:load_timestamp;not null;autoCreateTime" json:"load_timestamp"`
}

// TableName pins the relation name.
func (Record) TableName() string {
	return "cut_records"
}

// BeforeCreate recomputes the derived columns so callers cannot supply them.
func (r *Record) BeforeCreate(_ *gorm.DB) error {
	r.Derive()
	return nil
}

// AfterFind recomputes the derived columns from the stored base fields.
func (r *Record) AfterFind(_ *gorm.DB) error {
	r.Derive()
	return nil
}

// Day returns the process date as a time.Time at UTC midnight.
func (r *Record) Day() time.Time {
	return time.Time(r.ProcessDate)
}

// DayKey returns the process date formatted as YYYY-MM-DD.
func (r *Record) DayKey() string {
	return DateKey(r.ProcessDate)
}
