// Package validate checks whether a filesystem path is a usable game/mod
// data directory.
package validate

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Error codes reported in a Result.
const (
	CodeEmptyPath       = "empty_path"
	CodePathNotFound    = "path_not_found"
	CodeNotADirectory   = "not_a_directory"
	CodeNotReadable     = "not_readable"
	CodeMissingGameData = "missing_game_data"
)

// Result is the outcome of validating one path. Produced fresh on every
// call, never persisted.
type Result struct {
	Valid     bool   `json:"valid"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Validator checks directory paths against filesystem and content rules.
type Validator struct {
	logger *slog.Logger
}

// NewValidator creates a directory validator.
func NewValidator(logger *slog.Logger) *Validator {
	return &Validator{logger: logger.With(slog.String("component", "validator"))}
}

// Validate checks that path exists, is a readable directory, and contains
// game content: either a media/packages tree or weapon/item definition
// files somewhere below it.
func (v *Validator) Validate(ctx context.Context, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Valid: false, ErrorCode: CodeEmptyPath, Message: "path is empty"}
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Valid: false, ErrorCode: CodePathNotFound, Message: "path does not exist"}
		}
		return Result{Valid: false, ErrorCode: CodeNotReadable, Message: err.Error()}
	}
	if !info.IsDir() {
		return Result{Valid: false, ErrorCode: CodeNotADirectory, Message: "path is not a directory"}
	}

	if _, err := os.ReadDir(path); err != nil {
		return Result{Valid: false, ErrorCode: CodeNotReadable, Message: err.Error()}
	}

	if hasPackagesTree(path) || hasDefinitions(ctx, path) {
		return Result{Valid: true}
	}

	v.logger.Debug("no game data found", slog.String("path", path))
	return Result{
		Valid:     false,
		ErrorCode: CodeMissingGameData,
		Message:   "directory contains no media/packages tree and no weapon or item definitions",
	}
}

// hasPackagesTree reports whether path looks like a game installation root.
func hasPackagesTree(path string) bool {
	info, err := os.Stat(filepath.Join(path, "media", "packages"))
	return err == nil && info.IsDir()
}

// hasDefinitions reports whether any weapon or carry-item definition file
// exists under path. The walk stops at the first match.
func hasDefinitions(ctx context.Context, path string) bool {
	found := false
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtrees don't disqualify the rest
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && p != path {
				return filepath.SkipDir
			}
			return nil
		}
		switch filepath.Ext(d.Name()) {
		case ".weapon", ".carry_item":
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found
}
