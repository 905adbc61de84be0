// Package metrics exposes ingestion run results in the Prometheus text
// format, written to a file for the node exporter textfile collector.
package metrics

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/lcdc/cutlog/pkg/ingest"
)

const namespace = "cutlog_"

// Families builds the metric families for one ingestion run. stored is the
// total number of records in the store after the run; negative omits it.
func Families(r *ingest.Report, stored int64) []*dto.MetricFamily {
	files := &dto.MetricFamily{
		Name: proto.String(namespace + "ingest_files_total"),
		Help: proto.String("Candidate files in the last ingestion run by outcome."),
		Type: dto.MetricType_GAUGE.Enum(),
	}
	for _, o := range ingest.Outcomes {
		files.Metric = append(files.Metric, &dto.Metric{
			Label: []*dto.LabelPair{{Name: proto.String("outcome"), Value: proto.String(string(o))}},
			Gauge: &dto.Gauge{Value: proto.Float64(float64(r.Count(o)))},
		})
	}

	aborted := 0.0
	if r.Aborted {
		aborted = 1
	}

	families := []*dto.MetricFamily{
		files,
		gauge("ingest_records_committed", "Records committed by the last ingestion run.", float64(r.RecordsCommitted())),
		gauge("ingest_lines_skipped", "Lines rejected by the parser in the last ingestion run.", float64(r.LinesSkipped())),
		gauge("ingest_last_run_timestamp_seconds", "Unix time the last ingestion run finished.", float64(r.FinishedAt.Unix())+float64(r.FinishedAt.Nanosecond())/1e9),
		gauge("ingest_run_duration_seconds", "Wall time of the last ingestion run.", r.Duration().Seconds()),
		gauge("ingest_last_run_aborted", "1 if the last ingestion run stopped on a storage failure.", aborted),
	}
	if stored >= 0 {
		families = append(families, gauge("records_stored", "Cut records in the store.", float64(stored)))
	}

	sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })
	return families
}

func gauge(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(namespace + name),
		Help: proto.String(help),
		Type: dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{
			Gauge: &dto.Gauge{Value: proto.Float64(v)},
		}},
	}
}

// Write encodes families in the Prometheus text format.
func Write(w io.Writer, families []*dto.MetricFamily) error {
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("encoding %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// WriteTextfile replaces path with the run's metrics. The file is written
// next to path and renamed so collectors never read a partial file.
func WriteTextfile(path string, r *ingest.Report, stored int64) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating metrics file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, Families(r, stored)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing metrics file: %w", err)
	}
	return nil
}
