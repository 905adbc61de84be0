package store

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lcdc/cutlog/pkg/dbctx"
	"github.com/lcdc/cutlog/pkg/logger"
)

// FileRepo tracks committed files and their skipped lines.
type FileRepo interface {
	Create(dbc dbctx.Context, file *IngestedFile) error
	CreateIssues(dbc dbctx.Context, issues []IngestionIssue) error
	ExistsChecksum(dbc dbctx.Context, checksum string) (bool, error)
	List(dbc dbctx.Context) ([]IngestedFile, error)
	CopyMissing(dbc dbctx.Context, files []IngestedFile) (int64, error)
}

type fileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFileRepo(db *gorm.DB, baseLog *logger.Logger) FileRepo {
	return &fileRepo{
		db:  db,
		log: baseLog.With("repo", "FileRepo"),
	}
}

func (r *fileRepo) Create(dbc dbctx.Context, file *IngestedFile) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Create(file).Error
}

func (r *fileRepo) CreateIssues(dbc dbctx.Context, issues []IngestionIssue) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(issues) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).CreateInBatches(issues, insertBatchSize).Error
}

func (r *fileRepo) ExistsChecksum(dbc dbctx.Context, checksum string) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&IngestedFile{}).
		Where("checksum = ?", checksum).
		Count(&n).Error
	return n > 0, err
}

func (r *fileRepo) List(dbc dbctx.Context) ([]IngestedFile, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []IngestedFile
	err := transaction.WithContext(dbc.Ctx).Order("id").Find(&out).Error
	return out, err
}

func (r *fileRepo) CopyMissing(dbc dbctx.Context, files []IngestedFile) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(files) == 0 {
		return 0, nil
	}
	for i := range files {
		files[i].ID = 0
	}
	res := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&files)
	return res.RowsAffected, res.Error
}
