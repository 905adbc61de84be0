package parser

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/lcdc/cutlog/pkg/cut"
)

// Layout maps the comma-separated fields of a log line to record fields.
// Indexes are zero-based positions after any key prefix has been removed.
type Layout struct {
	Name        string
	Description string

	// KeyPrefix means each line starts with "KEY=" before the fields.
	KeyPrefix bool

	// Fields is the required field count. When ExactFields is false it is a minimum.
	Fields      int
	ExactFields bool

	Path, Length, Width, Thickness int
	StartHour, StartMin, StartSec  int
	EndHour, EndMin, EndSec        int
	Year, Month, Day               int
	Plates                         int

	// StripPrefixes are removed, in order, from the start of the path field.
	StripPrefixes []string

	// Example is a representative line, used by detection output and tests.
	Example string
}

// Standard is the documented 14-field layout:
// path, length, width, thickness, start_min, start_hour, start_sec,
// month, year, day, end_hour, end_min, end_sec, plate_count.
var Standard = Layout{
	Name:        "standard",
	Description: "14 comma-separated fields, start minute before hour",
	Fields:      14,
	ExactFields: true,
	Path:        0, Length: 1, Width: 2, Thickness: 3,
	StartMin: 4, StartHour: 5, StartSec: 6,
	Month: 7, Year: 8, Day: 9,
	EndHour: 10, EndMin: 11, EndSec: 12,
	Plates:  13,
	Example: "logs/esquema_A.opt,1200,600,18,0,8,0,3,2024,10,8,30,0,250",
}

// WinCut is the native export of the cutting machine software. Each line
// carries a KEY= prefix and at least 17 fields, several of them unused.
var WinCut = Layout{
	Name:        "wincut",
	Description: "KEY= prefixed machine export, 17+ fields",
	KeyPrefix:   true,
	Fields:      17,
	Path:        0, Length: 1, Width: 2, Thickness: 3,
	StartMin: 4, StartHour: 5, StartSec: 7,
	Year: 8, Day: 9, Month: 10,
	EndMin: 11, EndHour: 12, EndSec: 14,
	Plates:        16,
	StripPrefixes: []string{`.\prg\`, `C:\WinCut\prg\`, `.\`, `C:WinCut\prg\`},
	Example:       `K1=.\prg\MUEBLE_01.opt,2440,1830,18,15,9,0,5,2024,12,3,40,9,0,20,0,12`,
}

var layouts = map[string]*Layout{
	Standard.Name: &Standard,
	WinCut.Name:   &WinCut,
}

// Layouts returns all known layouts sorted by name.
func Layouts() []*Layout {
	out := make([]*Layout, 0, len(layouts))
	for _, l := range layouts {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LayoutByName looks up a layout. Names are case-insensitive.
func LayoutByName(name string) (*Layout, error) {
	l, ok := layouts[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown layout %q", name)
	}
	return l, nil
}

// LayoutNames returns the names of all known layouts.
func LayoutNames() []string {
	var names []string
	for _, l := range Layouts() {
		names = append(names, l.Name)
	}
	return names
}

func (l *Layout) stripPath(path string) string {
	for _, p := range l.StripPrefixes {
		path = strings.TrimPrefix(path, p)
	}
	return path
}

// Format renders a record as a line in this layout. Unused positions are
// written as 0. Parsing the result yields the same base fields.
func (l *Layout) Format(rec *cut.Record) string {
	fields := make([]string, l.Fields)
	for i := range fields {
		fields[i] = "0"
	}

	day := rec.Day()
	start := clockParts(rec.StartTime)
	end := clockParts(rec.EndTime)

	fields[l.Path] = rec.OptimizationName
	fields[l.Length] = strconv.FormatFloat(rec.LengthMM, 'f', -1, 64)
	fields[l.Width] = strconv.FormatFloat(rec.WidthMM, 'f', -1, 64)
	fields[l.Thickness] = strconv.FormatFloat(rec.ThicknessMM, 'f', -1, 64)
	fields[l.StartHour] = strconv.Itoa(start[0])
	fields[l.StartMin] = strconv.Itoa(start[1])
	fields[l.StartSec] = strconv.Itoa(start[2])
	fields[l.EndHour] = strconv.Itoa(end[0])
	fields[l.EndMin] = strconv.Itoa(end[1])
	fields[l.EndSec] = strconv.Itoa(end[2])
	fields[l.Year] = strconv.Itoa(day.Year())
	fields[l.Month] = strconv.Itoa(int(day.Month()))
	fields[l.Day] = strconv.Itoa(day.Day())
	fields[l.Plates] = strconv.Itoa(rec.PlateCount)

	line := strings.Join(fields, ",")
	if l.KeyPrefix {
		line = "K=" + line
	}
	return line
}

func clockParts(t datatypes.Time) [3]int {
	secs := int(time.Duration(t) / time.Second)
	return [3]int{secs / 3600, secs / 60 % 60, secs % 60}
}
