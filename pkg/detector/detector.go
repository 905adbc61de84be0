// Package detector identifies which line layout a machine log file uses.
package detector

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/lcdc/cutlog/pkg/parser"
)

// ErrNoLayout is returned by Resolve when no layout parses the sample.
var ErrNoLayout = errors.New("no known layout matches")

// DetectionResult holds the result of analyzing a log file.
type DetectionResult struct {
	Matches      []LayoutMatch // Layouts that parsed at least one line, best first
	SampledLines int           // Number of non-blank lines sampled
}

// LayoutMatch is one layout's score against the sample.
type LayoutMatch struct {
	Layout     *parser.Layout
	Confidence float64 // share of sampled lines that parsed, 0.0 to 1.0
	MatchCount int
	SampleLine string
	FirstError string // first rejection reason, empty if every line parsed
}

// Detector samples files and scores them against the known layouts.
type Detector struct {
	layouts       []*parser.Layout
	sampleSize    int
	minConfidence float64
}

// Option configures the Detector.
type Option func(*Detector)

// WithSampleSize sets the number of lines to sample (default 100).
func WithSampleSize(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.sampleSize = n
		}
	}
}

// WithMinConfidence sets the lowest confidence Resolve accepts (default 0.5).
func WithMinConfidence(c float64) Option {
	return func(d *Detector) {
		if c > 0 && c <= 1 {
			d.minConfidence = c
		}
	}
}

// WithLayouts restricts detection to the given layouts.
func WithLayouts(layouts ...*parser.Layout) Option {
	return func(d *Detector) {
		if len(layouts) > 0 {
			d.layouts = layouts
		}
	}
}

// New creates a Detector over all known layouts.
func New(opts ...Option) *Detector {
	d := &Detector{
		layouts:       parser.Layouts(),
		sampleSize:    100,
		minConfidence: 0.5,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectFromFile samples a log file and scores it.
func (d *Detector) DetectFromFile(ctx context.Context, path string) (*DetectionResult, error) {
	lines, err := d.sampleFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return d.DetectFromLines(lines), nil
}

// DetectFromLines scores a slice of log lines against every layout.
func (d *Detector) DetectFromLines(lines []string) *DetectionResult {
	var sample []string
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			sample = append(sample, line)
		}
	}
	result := &DetectionResult{SampledLines: len(sample)}
	if len(sample) == 0 {
		return result
	}

	for _, layout := range d.layouts {
		m := LayoutMatch{Layout: layout}
		for _, line := range sample {
			if _, err := layout.Parse(line); err != nil {
				if m.FirstError == "" {
					m.FirstError = err.Error()
				}
				continue
			}
			if m.MatchCount == 0 {
				m.SampleLine = strings.TrimSpace(line)
			}
			m.MatchCount++
		}
		if m.MatchCount == 0 {
			continue
		}
		m.Confidence = float64(m.MatchCount) / float64(len(sample))
		result.Matches = append(result.Matches, m)
	}

	// Highest confidence first; ties go to the stricter layout.
	sort.SliceStable(result.Matches, func(i, j int) bool {
		a, b := result.Matches[i], result.Matches[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Layout.KeyPrefix != b.Layout.KeyPrefix {
			return a.Layout.KeyPrefix
		}
		return a.Layout.Name < b.Layout.Name
	})

	return result
}

// Resolve picks the layout for a file. It satisfies ingest.LayoutResolver.
func (d *Detector) Resolve(ctx context.Context, path string) (*parser.Layout, error) {
	result, err := d.DetectFromFile(ctx, path)
	if err != nil {
		return nil, err
	}
	best := result.BestMatch()
	if best == nil || best.Confidence < d.minConfidence {
		return nil, fmt.Errorf("%s: %w", path, ErrNoLayout)
	}
	return best.Layout, nil
}

// sampleFile reads up to sampleSize non-blank lines from a file.
func (d *Detector) sampleFile(ctx context.Context, path string) ([]string, error) {
	// #nosec G304 - path comes from the input directory or the CLI
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() && len(lines) < d.sampleSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := scanner.Text()
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// BestMatch returns the highest confidence match, or nil if none found.
func (r *DetectionResult) BestMatch() *LayoutMatch {
	if len(r.Matches) == 0 {
		return nil
	}
	return &r.Matches[0]
}

// HasMatch returns true if at least one layout matched.
func (r *DetectionResult) HasMatch() bool {
	return len(r.Matches) > 0
}
