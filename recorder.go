package carve

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/simsong/bulk-extractor-sub001/pkg/db"
)

// Recorder durably records one repair event. Implementations are safe for
// concurrent use.
type Recorder interface {
	Write(pos, description, filename string) error
	Close() error
}

const featureFileHeader = "# Feature-File-Version: 1.1\n"

// FeatureRecorder appends tab separated lines to a feature file.
type FeatureRecorder struct {
	mu   sync.Mutex
	file *os.File
	w    *bufio.Writer
}

func NewFeatureRecorder(path string) (*FeatureRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	r := &FeatureRecorder{file: f, w: bufio.NewWriter(f)}
	if info, err := f.Stat(); err == nil && info.Size() == 0 {
		r.w.WriteString(featureFileHeader)
	}
	return r, nil
}

func (r *FeatureRecorder) Write(pos, description, filename string) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err = fmt.Fprintf(r.w, "%s\t%s\t%s\n", pos, filename, description); err != nil {
		return
	}
	return r.w.Flush()
}

func (r *FeatureRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return errors.Join(r.w.Flush(), r.file.Close())
}

// RepairRecord is one row of the report database.
type RepairRecord struct {
	ID          uint `gorm:"primarykey"`
	CreatedAt   time.Time
	Position    string `gorm:"index"`
	Filename    string
	Description string
}

// DBRecorder saves RepairRecord rows through gorm.
type DBRecorder struct {
	DB *gorm.DB
}

func NewDBRecorder(dbType, dsn string) (*DBRecorder, error) {
	gdb, err := db.Open(dbType, dsn)
	if err != nil {
		return nil, err
	}
	if err = gdb.AutoMigrate(&RepairRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate RepairRecord: %w", err)
	}
	return &DBRecorder{DB: gdb}, nil
}

func (r *DBRecorder) Write(pos, description, filename string) error {
	return r.DB.Create(&RepairRecord{Position: pos, Filename: filename, Description: description}).Error
}

func (r *DBRecorder) Close() error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// LogRecorder reports repairs to a logger only.
type LogRecorder struct {
	*slog.Logger
}

func (r LogRecorder) Write(pos, description, filename string) error {
	r.Info("repaired", "pos", pos, "file", filename, "description", description)
	return nil
}

func (LogRecorder) Close() error {
	return nil
}

// MultiRecorder writes to every recorder, stopping at the first error.
type MultiRecorder []Recorder

func (m MultiRecorder) Write(pos, description, filename string) error {
	for _, r := range m {
		if err := r.Write(pos, description, filename); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiRecorder) Close() error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.Close())
	}
	return errors.Join(errs...)
}
