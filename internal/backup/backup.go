package backup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// backupPattern matches backup filenames: armory-YYYYMMDD-HHMMSS.db
var backupPattern = regexp.MustCompile(`^armory-\d{8}-\d{6}\.db$`)

// Info describes a backup file on disk.
type Info struct {
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Service creates and prunes database snapshots.
type Service struct {
	db         *sql.DB
	backupDir  string
	retention  int
	maxAgeDays int
	logger     *slog.Logger
}

// NewService creates a backup service. retention is the number of snapshots to
// keep; maxAgeDays additionally removes snapshots older than that many days
// when greater than zero.
func NewService(db *sql.DB, backupDir string, retention, maxAgeDays int, logger *slog.Logger) *Service {
	return &Service{
		db:         db,
		backupDir:  backupDir,
		retention:  retention,
		maxAgeDays: maxAgeDays,
		logger:     logger.With(slog.String("component", "backup")),
	}
}

// Backup snapshots the database into the backup directory using VACUUM INTO.
func (s *Service) Backup(ctx context.Context) (*Info, error) {
	if err := os.MkdirAll(s.backupDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}

	now := time.Now().UTC()
	filename := fmt.Sprintf("armory-%s.db", now.Format("20060102-150405"))
	dest := filepath.Join(s.backupDir, filename)

	s.logger.Info("starting backup", slog.String("dest", dest))

	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return nil, fmt.Errorf("VACUUM INTO: %w", err)
	}

	fi, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("stat backup file: %w", err)
	}

	s.logger.Info("backup complete",
		slog.String("filename", filename),
		slog.Int64("size", fi.Size()))

	return &Info{
		Filename:  filename,
		Size:      fi.Size(),
		CreatedAt: now,
	}, nil
}

// List returns all backup files sorted by date descending.
func (s *Service) List() ([]Info, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var backups []Info
	for _, entry := range entries {
		if entry.IsDir() || !backupPattern.MatchString(entry.Name()) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}

		name := strings.TrimSuffix(strings.TrimPrefix(entry.Name(), "armory-"), ".db")
		ts, err := time.Parse("20060102-150405", name)
		if err != nil {
			ts = fi.ModTime()
		}

		backups = append(backups, Info{
			Filename:  entry.Name(),
			Size:      fi.Size(),
			CreatedAt: ts,
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})

	return backups, nil
}

// Delete removes a single backup file by filename.
func (s *Service) Delete(filename string) error {
	if !IsValidBackupFilename(filename) {
		return fmt.Errorf("invalid backup filename")
	}
	path := filepath.Join(s.backupDir, filename)
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing backup: %w", err)
	}
	s.logger.Info("backup deleted", slog.String("filename", filename))
	return nil
}

// Prune deletes backups exceeding the retention count and older than max age.
func (s *Service) Prune() error {
	backups, err := s.List()
	if err != nil {
		return err
	}

	if len(backups) > s.retention {
		for _, b := range backups[s.retention:] {
			path := filepath.Join(s.backupDir, b.Filename)
			if err := os.Remove(path); err != nil {
				s.logger.Warn("failed to remove old backup",
					slog.String("filename", b.Filename),
					slog.Any("error", err))
				continue
			}
			s.logger.Info("pruned old backup", slog.String("filename", b.Filename))
		}
	}

	if s.maxAgeDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -s.maxAgeDays)
		// Re-read because count-based pruning may have removed some.
		backups, err = s.List()
		if err != nil {
			return err
		}
		for _, b := range backups {
			if b.CreatedAt.Before(cutoff) {
				path := filepath.Join(s.backupDir, b.Filename)
				if err := os.Remove(path); err != nil {
					s.logger.Warn("failed to remove aged backup",
						slog.String("filename", b.Filename),
						slog.Any("error", err))
					continue
				}
				s.logger.Info("pruned aged backup",
					slog.String("filename", b.Filename),
					slog.Int("max_age_days", s.maxAgeDays))
			}
		}
	}

	return nil
}

// BackupDir returns the configured backup directory path.
func (s *Service) BackupDir() string {
	return s.backupDir
}

// StartScheduler runs backups on a fixed interval until the context is canceled.
func (s *Service) StartScheduler(ctx context.Context, interval time.Duration) {
	s.logger.Info("backup scheduler started",
		slog.String("interval", interval.String()),
		slog.Int("retention", s.retention))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("backup scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.Backup(ctx); err != nil {
				s.logger.Error("scheduled backup failed", slog.Any("error", err))
				continue
			}
			if err := s.Prune(); err != nil {
				s.logger.Error("backup prune failed", slog.Any("error", err))
			}
		}
	}
}

// IsValidBackupFilename reports whether a filename matches the expected backup
// pattern and contains no path traversal characters.
func IsValidBackupFilename(filename string) bool {
	if strings.Contains(filename, "/") || strings.Contains(filename, "\\") || strings.Contains(filename, "..") {
		return false
	}
	return backupPattern.MatchString(filename)
}
