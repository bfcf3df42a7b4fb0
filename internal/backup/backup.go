// Package backup uploads point-in-time copies of the user database to object storage.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"user-accounts/internal/repository/sqlite"
	"user-accounts/internal/storage"
)

const (
	snapshotPrefix = "users-"
	snapshotSuffix = ".db"
	timestampFmt   = "20060102T150405Z"
)

type Config struct {
	UploadOptions storage.UploadOptions
	Logger        logrus.FieldLogger
}

// Runner snapshots a sqlite database and ships the copy to object storage.
type Runner struct {
	db      *sql.DB
	storage storage.Service
	cfg     Config
	now     func() time.Time
}

func NewRunner(db *sql.DB, store storage.Service, cfg Config) *Runner {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Runner{
		db:      db,
		storage: store,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Run takes a snapshot, uploads it and returns the remote location.
func (r *Runner) Run(ctx context.Context) (string, error) {
	tmpDir, err := os.MkdirTemp("", "user-snapshot-")
	if err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	name := SnapshotName(r.now())
	local := filepath.Join(tmpDir, name)
	if err := sqlite.Snapshot(ctx, r.db, local); err != nil {
		return "", err
	}

	location, err := r.storage.UploadFile(ctx, local, name, r.cfg.UploadOptions)
	if err != nil {
		return "", err
	}
	r.cfg.Logger.WithField("location", location).Info("database snapshot uploaded")
	return location, nil
}

// List returns the uploaded snapshots, newest first.
func (r *Runner) List(ctx context.Context) ([]storage.ObjectInfo, error) {
	prefix := storage.ObjectKey(r.cfg.UploadOptions.KeyPrefix, snapshotPrefix)
	objects, err := r.storage.ListObjects(ctx, r.cfg.UploadOptions.Bucket, prefix)
	if err != nil {
		return nil, err
	}

	snapshots := objects[:0]
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, snapshotSuffix) {
			snapshots = append(snapshots, obj)
		}
	}
	// names embed a sortable UTC timestamp
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Key > snapshots[j].Key })
	return snapshots, nil
}

// SnapshotName returns the object name for a snapshot taken at t.
func SnapshotName(t time.Time) string {
	return snapshotPrefix + t.UTC().Format(timestampFmt) + snapshotSuffix
}
