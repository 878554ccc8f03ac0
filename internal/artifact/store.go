// Package artifact persists encoded audio under a title-derived file name.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/book-expert/logger"
	"github.com/book-expert/speech-publisher/internal/core"
	"github.com/book-expert/speech-publisher/internal/fileutil"
)

const filePermissions = 0o600

// Store writes artifacts to the output directory and degrades to the fallback
// directory when the output directory cannot be created or written.
// Files with the same name overwrite each other; the last writer wins.
type Store struct {
	outputDir   string
	fallbackDir string
	log         *logger.Logger
}

// Result describes where an artifact landed.
type Result struct {
	Path     string
	FellBack bool
	Size     int
}

// NewStore creates a Store. An empty fallbackDir means the working directory.
func NewStore(outputDir, fallbackDir string, log *logger.Logger) *Store {
	if fallbackDir == "" {
		fallbackDir = "."
	}

	return &Store{
		outputDir:   outputDir,
		fallbackDir: fallbackDir,
		log:         log,
	}
}

// Write stores data as fileName. It returns an error wrapping core.ErrStorage
// only when both directories fail.
func (s *Store) Write(fileName string, data []byte) (Result, error) {
	path, primaryErr := writeInto(s.outputDir, fileName, data)
	if primaryErr == nil {
		return Result{Path: path, FellBack: false, Size: len(data)}, nil
	}

	s.log.Warn("Could not write to output directory %s, using %s: %v", s.outputDir, s.fallbackDir, primaryErr)

	path, fallbackErr := writeInto(s.fallbackDir, fileName, data)
	if fallbackErr != nil {
		return Result{}, fmt.Errorf("%w: output dir: %w; fallback dir: %w", core.ErrStorage, primaryErr, fallbackErr)
	}

	return Result{Path: path, FellBack: true, Size: len(data)}, nil
}

func writeInto(dir, fileName string, data []byte) (string, error) {
	dirErr := fileutil.EnsureDir(dir)
	if dirErr != nil {
		return "", dirErr
	}

	path := filepath.Join(dir, fileName)

	writeErr := os.WriteFile(path, data, filePermissions)
	if writeErr != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, writeErr)
	}

	return path, nil
}
