package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// MaxExportFileSize caps export files read back for import (50MB)
	MaxExportFileSize = 50 * 1024 * 1024

	// ExportFormatJSON is the JSON export extension
	ExportFormatJSON = "json"
	// ExportFormatSQL is the SQL export extension
	ExportFormatSQL = "sql"
	// BackupFormat is the sqlite backup extension
	BackupFormat = "db"
)

var allowedExportExtensions = map[string]bool{
	"." + ExportFormatJSON: true,
	"." + ExportFormatSQL:  true,
	"." + BackupFormat:     true,
}

// ExportFileError represents an export file validation error
type ExportFileError struct {
	Code    string
	Message string
}

func (e *ExportFileError) Error() string {
	return e.Message
}

// ValidateExportFilename rejects paths, traversal and unknown extensions
func ValidateExportFilename(name string) error {
	if name == "" {
		return &ExportFileError{Code: "INVALID_FILENAME", Message: "Filename is required"}
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return &ExportFileError{Code: "INVALID_FILENAME", Message: "Filename must not contain path separators"}
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedExportExtensions[ext] {
		return &ExportFileError{
			Code:    "INVALID_FILE_FORMAT",
			Message: fmt.Sprintf("Unsupported export file extension %q", ext),
		}
	}
	return nil
}

// ExportFilename returns orders_export_<date>.<format>
func ExportFilename(format string, day time.Time) string {
	return fmt.Sprintf("orders_export_%s.%s", day.Format("2006-01-02"), format)
}

// BackupFilename returns orders_backup_<date>.db
func BackupFilename(day time.Time) string {
	return fmt.Sprintf("orders_backup_%s.%s", day.Format("2006-01-02"), BackupFormat)
}

// WriteExportFile writes content to dir/name and returns the full path
func WriteExportFile(dir, name string, content []byte) (string, error) {
	if err := ValidateExportFilename(name); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	fullPath := filepath.Join(dir, name)
	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return fullPath, nil
}

// ReadExportFile reads dir/name, refusing files over MaxExportFileSize
func ReadExportFile(dir, name string) ([]byte, error) {
	if err := ValidateExportFilename(name); err != nil {
		return nil, err
	}

	fullPath := filepath.Join(dir, name)
	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ExportFileError{Code: "FILE_NOT_FOUND", Message: fmt.Sprintf("Export file %s not found", name)}
		}
		return nil, fmt.Errorf("failed to stat export file: %w", err)
	}
	if info.Size() > MaxExportFileSize {
		return nil, &ExportFileError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("Export file exceeds maximum allowed size of %d MB", MaxExportFileSize/(1024*1024)),
		}
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read export file: %w", err)
	}
	return content, nil
}
