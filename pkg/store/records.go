package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lcdc/cutlog/pkg/cut"
	"github.com/lcdc/cutlog/pkg/dbctx"
	"github.com/lcdc/cutlog/pkg/logger"
)

const insertBatchSize = 200

// RecordRepo reads and appends cut records. There is no update or delete.
type RecordRepo interface {
	Create(dbc dbctx.Context, recs []*cut.Record) error
	CreateIgnoringDuplicates(dbc dbctx.Context, recs []*cut.Record) (int64, error)
	Stream(dbc dbctx.Context, r cut.DateRange) (cut.Source, error)
	Count(dbc dbctx.Context) (int64, error)
}

type recordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecordRepo(db *gorm.DB, baseLog *logger.Logger) RecordRepo {
	return &recordRepo{
		db:  db,
		log: baseLog.With("repo", "RecordRepo"),
	}
}

func (r *recordRepo) Create(dbc dbctx.Context, recs []*cut.Record) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(recs) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).CreateInBatches(recs, insertBatchSize).Error
}

// CreateIgnoringDuplicates inserts records, silently skipping any whose
// (source_checksum, source_line) already exists. It returns the number of
// rows actually inserted.
func (r *recordRepo) CreateIgnoringDuplicates(dbc dbctx.Context, recs []*cut.Record) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(recs) == 0 {
		return 0, nil
	}
	res := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&recs)
	return res.RowsAffected, res.Error
}

func (r *recordRepo) Stream(dbc dbctx.Context, rng cut.DateRange) (cut.Source, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).Model(&cut.Record{})
	if !rng.From.IsZero() {
		q = q.Where("process_date >= ?", datatypes.Date(rng.From))
	}
	if !rng.To.IsZero() {
		q = q.Where("process_date <= ?", datatypes.Date(rng.To))
	}
	rows, err := q.Order("id").Rows()
	if err != nil {
		return nil, fmt.Errorf("querying cut records: %w", err)
	}
	return &rowSource{db: transaction, rows: rows}, nil
}

func (r *recordRepo) Count(dbc dbctx.Context) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(dbc.Ctx).Model(&cut.Record{}).Count(&n).Error
	return n, err
}

// rowSource streams records from an open result set. Rows scanned this way
// bypass AfterFind, so derived fields are recomputed here.
type rowSource struct {
	db   *gorm.DB
	rows *sql.Rows
}

func (s *rowSource) Next(ctx context.Context) (*cut.Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return nil, fmt.Errorf("reading cut records: %w", err)
		}
		return nil, io.EOF
	}

	var rec cut.Record
	if err := s.db.ScanRows(s.rows, &rec); err != nil {
		return nil, fmt.Errorf("scanning cut record: %w", err)
	}
	rec.Derive()
	return &rec, nil
}

func (s *rowSource) Close() error {
	return s.rows.Close()
}
