package logging

import (
	"os"
	"path/filepath"
)

// baseDir returns the recall data directory (~/.recall).
// Falls back to the current directory when the home dir is unknown.
func baseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".recall"
	}
	return filepath.Join(home, ".recall")
}

// LogDir returns the directory where log files are written.
func LogDir() string {
	return filepath.Join(baseDir(), "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(LogDir(), "recall.log")
}
