package cut

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// DateLayout is the canonical calendar date format used in keys and reports.
const DateLayout = "2006-01-02"

// DurationSeconds returns the whole seconds elapsed between two times of day.
func DurationSeconds(start, end datatypes.Time) int64 {
	return int64(time.Duration(end-start) / time.Second)
}

// Area returns the board area in square millimeters.
func Area(lengthMM, widthMM float64) float64 {
	return lengthMM * widthMM
}

// Volume returns the board volume in cubic millimeters.
func Volume(areaMM2, thicknessMM float64) float64 {
	return areaMM2 * thicknessMM
}

// Derive fills the derived columns from the base fields.
func (r *Record) Derive() {
	r.DurationSeconds = DurationSeconds(r.StartTime, r.EndTime)
	r.AreaMM2 = Area(r.LengthMM, r.WidthMM)
	r.VolumeMM3 = Volume(r.AreaMM2, r.ThicknessMM)
}

// NewDate builds a calendar date at UTC midnight.
func NewDate(year int, month time.Month, day int) datatypes.Date {
	return datatypes.Date(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// Clock builds a time of day.
func Clock(hour, minute, second int) datatypes.Time {
	return datatypes.NewTime(hour, minute, second, 0)
}

// DateKey formats a date as YYYY-MM-DD.
func DateKey(d datatypes.Date) string {
	return time.Time(d).UTC().Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD string into a UTC date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// FormatClock renders a time of day as HH:MM:SS.
func FormatClock(t datatypes.Time) string {
	secs := int64(time.Duration(t) / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs/60%60, secs%60)
}
