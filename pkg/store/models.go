package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/lcdc/cutlog/pkg/cut"
)

// IngestedFile marks a file's content as committed. The unique checksum is
// what keeps a file from being committed twice when its archive move fails
// or two runs race for it.
type IngestedFile struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Checksum     string    `gorm:"column:checksum;size:64;not null;uniqueIndex:idx_ingested_files_checksum" json:"checksum"`
	FileName     string    `gorm:"column:file_name;not null" json:"file_name"`
	RunID        string    `gorm:"column:run_id;size:36;not null;index" json:"run_id"`
	RecordCount  int       `gorm:"column:record_count;not null" json:"record_count"`
	SkippedLines int       `gorm:"column:skipped_lines;not null" json:"skipped_lines"`
	IngestedAt   time.Time `gorm:"column:ingested_at;not null" json:"ingested_at"`
}

func (IngestedFile) TableName() string { return "ingested_files" }

// IngestionIssue is a line of a committed file that failed to parse.
type IngestionIssue struct {
	ID         int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Checksum   string `gorm:"column:checksum;size:64;not null;index" json:"checksum"`
	FileName   string `gorm:"column:file_name;not null" json:"file_name"`
	LineNumber int    `gorm:"column:line_number;not null" json:"line_number"`
	Reason     string `gorm:"column:reason;not null" json:"reason"`
	RawLine    string `gorm:"column:raw_line" json:"raw_line"`
}

func (IngestionIssue) TableName() string { return "ingestion_issues" }

// FileBatch is everything committed for one source file.
type FileBatch struct {
	RunID    uuid.UUID
	FileName string
	Checksum string
	LoadedAt time.Time
	Records  []*cut.Record
	Issues   []IngestionIssue
}

func models() []interface{} {
	return []interface{}{&cut.Record{}, &IngestedFile{}, &IngestionIssue{}}
}
