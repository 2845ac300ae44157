package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/iara-orders/orders-api/utils"
	"gorm.io/gorm"
)

// ErrBackupUnsupported is returned for stores without a file to copy
var ErrBackupUnsupported = errors.New("backup is only supported for sqlite databases")

// BackupSQLite snapshots a sqlite database with VACUUM INTO and saves the
// copy to storage as orders_backup_<date>.db.
func BackupSQLite(ctx context.Context, db *gorm.DB, storage ExportStorage, day time.Time) (string, error) {
	if db.Dialector.Name() != "sqlite" {
		return "", ErrBackupUnsupported
	}

	tmpDir, err := os.MkdirTemp("", "orders-backup-")
	if err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	snapshot := filepath.Join(tmpDir, "snapshot.db")
	if err := db.WithContext(ctx).Exec("VACUUM INTO ?", snapshot).Error; err != nil {
		return "", fmt.Errorf("failed to snapshot database: %w", err)
	}

	content, err := os.ReadFile(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to read database snapshot: %w", err)
	}
	return storage.Save(ctx, utils.BackupFilename(day), content)
}
