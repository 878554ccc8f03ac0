// Package fileutil provides path and file-name helpers shared by the storage,
// synthesis and upload components.
package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Environment variable names used for path resolution.
const (
	envCacheDir     = "CACHE_DIR"
	envXDGCacheHome = "XDG_CACHE_HOME"
)

// Common application directory and path constants.
const (
	appName               = "speech-publisher"
	modelsDirName         = "models"
	dotCache              = ".cache"
	untitledName          = "untitled"
	defaultDirPermissions = 0o750
)

// Size formatting constants.
const (
	formatGB    = "%.1f GB"
	formatMB    = "%.1f MB"
	formatKB    = "%.1f KB"
	formatBytes = "%d B"
)

// Error format strings.
const (
	errFmtFailedToCreateDir           = "failed to create directory %s: %w"
	errFmtCouldNotResolveAbsolutePath = "could not resolve absolute path for %q: %w"
	errFmtErrorCheckingModelPath      = "error checking model path %q: %w"
	errFmtModelNotFound               = "%w: %s"
)

// ErrModelNotFound is returned when a model file cannot be located.
var ErrModelNotFound = errors.New("model not found")

// GetCacheDir returns the application's cache directory. CACHE_DIR wins over
// XDG_CACHE_HOME, which wins over ~/.cache.
func GetCacheDir() string {
	if cacheDir := os.Getenv(envCacheDir); cacheDir != "" {
		return cacheDir
	}

	if xdgCache := os.Getenv(envXDGCacheHome); xdgCache != "" {
		return filepath.Join(xdgCache, appName)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appName)
	}

	return filepath.Join(homeDir, dotCache, appName)
}

// EnsureDir creates path and its parents when missing.
func EnsureDir(path string) error {
	mkdirErr := os.MkdirAll(path, defaultDirPermissions)
	if mkdirErr != nil {
		return fmt.Errorf(errFmtFailedToCreateDir, path, mkdirErr)
	}

	return nil
}

// ResolveModelPath looks for a model file as given, under ./models and under
// the cache directory, in that order.
func ResolveModelPath(modelName string) (string, error) {
	candidatePaths := []string{
		modelName,
		filepath.Join(modelsDirName, modelName),
		filepath.Join(GetCacheDir(), modelsDirName, modelName),
	}

	for _, path := range candidatePaths {
		resolvedPath, found, err := resolveSinglePath(path)
		if err != nil {
			return "", err
		}

		if found {
			return resolvedPath, nil
		}
	}

	return "", fmt.Errorf(errFmtModelNotFound, ErrModelNotFound, modelName)
}

// resolveSinglePath reports found=false with no error when path does not exist.
func resolveSinglePath(path string) (resolvedPath string, found bool, err error) {
	_, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return "", false, nil
		}

		return "", false, fmt.Errorf(errFmtErrorCheckingModelPath, path, statErr)
	}

	absPath, absErr := filepath.Abs(path)
	if absErr != nil {
		return "", false, fmt.Errorf(errFmtCouldNotResolveAbsolutePath, path, absErr)
	}

	return absPath, true, nil
}

// SanitizeFilename replaces characters that are invalid in most filesystems.
func SanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"<", "_",
		">", "_",
		":", "_",
		"\"", "_",
		"/", "_",
		"\\", "_",
		"|", "_",
		"?", "_",
		"*", "_",
	)

	return replacer.Replace(filename)
}

// ArtifactFileName derives "<title>.<ext>". Titles that sanitize to nothing
// become "untitled".
func ArtifactFileName(title, extension string) string {
	name := strings.TrimSpace(SanitizeFilename(title))
	if name == "" || name == "." || name == ".." {
		name = untitledName
	}

	return name + "." + extension
}

// FormatFileSize formats a size as "1.2 GB", "500.5 MB" and so on.
func FormatFileSize(bytes int64) string {
	const (
		kilobyte = 1024
		megabyte = kilobyte * 1024
		gigabyte = megabyte * 1024
	)

	switch {
	case bytes >= gigabyte:
		return fmt.Sprintf(formatGB, float64(bytes)/gigabyte)
	case bytes >= megabyte:
		return fmt.Sprintf(formatMB, float64(bytes)/megabyte)
	case bytes >= kilobyte:
		return fmt.Sprintf(formatKB, float64(bytes)/kilobyte)
	default:
		return fmt.Sprintf(formatBytes, bytes)
	}
}

// FormatDuration rounds a duration for log lines.
func FormatDuration(duration time.Duration) string {
	return duration.Round(10 * time.Millisecond).String()
}
