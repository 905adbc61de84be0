package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lcdc/cutlog/pkg/cut"
)

// ParseLine parses one line in the standard layout.
func ParseLine(line string) (*cut.Record, error) {
	return Standard.Parse(line)
}

// Parse turns one log line into a validated record with derived fields set.
// It never touches provenance fields; FileSource fills those in.
func (l *Layout) Parse(line string) (*cut.Record, error) {
	content := strings.TrimSpace(line)
	if content == "" {
		return nil, newParseError(line, "empty line")
	}

	if l.KeyPrefix {
		eq := strings.IndexByte(content, '=')
		if eq < 0 {
			return nil, newParseError(line, "missing KEY= prefix")
		}
		content = content[eq+1:]
	}

	fields := strings.Split(content, ",")
	if l.ExactFields && len(fields) != l.Fields {
		return nil, newParseError(line, "expected %d fields, got %d", l.Fields, len(fields))
	}
	if len(fields) < l.Fields {
		return nil, newParseError(line, "expected at least %d fields, got %d", l.Fields, len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	path := l.stripPath(fields[l.Path])
	key := JobKey(path)
	if key == "" {
		return nil, newParseError(line, "empty job key in path %q", fields[l.Path])
	}

	f := fieldReader{fields: fields}
	length := f.dimension(l.Length, "length_mm")
	width := f.dimension(l.Width, "width_mm")
	thickness := f.dimension(l.Thickness, "thickness_mm")

	year := f.integer(l.Year, "year", 1, 9999)
	month := f.integer(l.Month, "month", 1, 12)
	day := f.integer(l.Day, "day", 1, 31)

	startHour := f.integer(l.StartHour, "start_hour", 0, 23)
	startMin := f.integer(l.StartMin, "start_min", 0, 59)
	startSec := f.integer(l.StartSec, "start_sec", 0, 59)
	endHour := f.integer(l.EndHour, "end_hour", 0, 23)
	endMin := f.integer(l.EndMin, "end_min", 0, 59)
	endSec := f.integer(l.EndSec, "end_sec", 0, 59)

	plates := f.integer(l.Plates, "plate_count", 1, math.MaxInt32)

	if f.reason != "" {
		return nil, newParseError(line, "%s", f.reason)
	}

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Day() != day {
		return nil, newParseError(line, "invalid date %04d-%02d-%02d", year, month, day)
	}

	rec := &cut.Record{
		OptimizationName: path,
		JobKey:           key,
		ProcessDate:      cut.NewDate(year, time.Month(month), day),
		StartTime:        cut.Clock(startHour, startMin, startSec),
		EndTime:          cut.Clock(endHour, endMin, endSec),
		LengthMM:         length,
		WidthMM:          width,
		ThicknessMM:      thickness,
		PlateCount:       plates,
	}
	if rec.EndTime < rec.StartTime {
		return nil, newParseError(line, "end time %s before start time %s", cut.FormatClock(rec.EndTime), cut.FormatClock(rec.StartTime))
	}
	rec.Derive()
	return rec, nil
}

// JobKey returns the final path segment with its last extension removed.
// Both '/' and '\' separate segments.
func JobKey(path string) string {
	seg := path
	if i := strings.LastIndexAny(seg, `/\`); i >= 0 {
		seg = seg[i+1:]
	}
	if i := strings.LastIndexByte(seg, '.'); i >= 0 {
		seg = seg[:i]
	}
	return strings.TrimSpace(seg)
}

// fieldReader converts positional fields, keeping only the first failure.
type fieldReader struct {
	fields []string
	reason string
}

func (r *fieldReader) fail(format string, args ...any) {
	if r.reason == "" {
		r.reason = fmt.Sprintf(format, args...)
	}
}

func (r *fieldReader) integer(idx int, name string, lo, hi int) int {
	raw := r.fields[idx]
	v, err := strconv.Atoi(raw)
	if err != nil {
		r.fail("%s: %q is not an integer", name, raw)
		return 0
	}
	if v < lo || v > hi {
		r.fail("%s: %d out of range %d-%d", name, v, lo, hi)
		return 0
	}
	return v
}

func (r *fieldReader) dimension(idx int, name string) float64 {
	raw := r.fields[idx]
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		r.fail("%s: %q is not a number", name, raw)
		return 0
	}
	if v <= 0 {
		r.fail("%s: %s must be positive", name, raw)
		return 0
	}
	return v
}
