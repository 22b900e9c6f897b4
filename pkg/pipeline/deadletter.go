/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package pipeline

import (
	"context"
	"encoding/json"
	"github.com/pkg/errors"
	"github.com/traas-stack/holoinsight-ingest/pkg/model"
	"github.com/traas-stack/holoinsight-ingest/pkg/plugin/output"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"os"
	"path/filepath"
	"time"
)

type (
	// DeadLetterStore keeps batches that could not be published.
	DeadLetterStore interface {
		Save(ctx context.Context, batchID, publisher string, envelopes []*model.Envelope, cause error) error
		Close() error
	}

	// DeadLetterDO is one failed batch.
	DeadLetterDO struct {
		ID        int64  `gorm:"primarykey"`
		BatchID   string `gorm:"unique;"`
		GmtCreate time.Time
		Publisher string `gorm:"index;"`
		Error     string `gorm:""`
		Count     int    `gorm:""`
		// JSON array of envelopes
		Payload []byte `gorm:""`
	}

	// SqliteDeadLetterStore stores failed batches in a local sqlite file.
	SqliteDeadLetterStore struct {
		db *gorm.DB
	}
)

func (DeadLetterDO) TableName() string {
	return "dead_letter_batches"
}

func OpenDeadLetterStore(path string) (*SqliteDeadLetterStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "create dead letter dir %s", dir)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open dead letter store %s", path)
	}
	if err := db.AutoMigrate(&DeadLetterDO{}); err != nil {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		return nil, errors.Wrap(err, "migrate dead letter store")
	}
	return &SqliteDeadLetterStore{db: db}, nil
}

func (s *SqliteDeadLetterStore) Save(ctx context.Context, batchID, publisher string, envelopes []*model.Envelope, cause error) error {
	// unencodable envelopes are left out, the rest of the batch is kept
	payload, count := []byte("[]"), 0
	if chunks, _ := output.Split(envelopes, 0); len(chunks) > 0 {
		payload, count = chunks[0].Payload, chunks[0].Count
	}
	do := &DeadLetterDO{
		BatchID:   batchID,
		GmtCreate: time.Now(),
		Publisher: publisher,
		Count:     count,
		Payload:   payload,
	}
	if cause != nil {
		do.Error = cause.Error()
	}
	return s.db.WithContext(ctx).Create(do).Error
}

// List returns the most recent failed batches first.
func (s *SqliteDeadLetterStore) List(ctx context.Context, limit int) ([]*DeadLetterDO, error) {
	var dos []*DeadLetterDO
	tx := s.db.WithContext(ctx).Model(&DeadLetterDO{}).Order("id desc")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if r := tx.Find(&dos); r.Error != nil {
		return nil, r.Error
	}
	return dos, nil
}

// Envelopes decodes the stored payload.
func (do *DeadLetterDO) Envelopes() ([]*model.Envelope, error) {
	var ret []*model.Envelope
	err := json.Unmarshal(do.Payload, &ret)
	return ret, err
}

func (s *SqliteDeadLetterStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
