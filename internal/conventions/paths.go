package conventions

import (
	"fmt"
	"path/filepath"
	"time"
)

const (
	// DefaultDataDir is the default data directory name (relative to home).
	DefaultDataDir = ".imagegen"
	// OutputDir is the subdirectory for generated images.
	OutputDir = "output"

	// CheckpointFile is the session checkpoint filename.
	CheckpointFile = "checkpoint.json"
	// LockFile is the instance lock PID filename.
	LockFile = "supervisor.pid"
	// LockGuardFile serializes lock acquisition between processes.
	LockGuardFile = "supervisor.pid.guard"
	// LogFile is the background generation log filename.
	LogFile = "generation.log"
	// HistoryDBFile is the SQLite session history filename.
	HistoryDBFile = "history.db"

	// ArtifactTimeLayout is the timestamp layout used in generated image filenames.
	ArtifactTimeLayout = "20060102_150405"
	// ArtifactExt is the generated image extension.
	ArtifactExt = ".png"
)

// CheckpointPath returns the checkpoint path inside a data directory.
func CheckpointPath(dataDir string) string {
	return filepath.Join(dataDir, CheckpointFile)
}

// LockPath returns the instance lock path inside a data directory.
func LockPath(dataDir string) string {
	return filepath.Join(dataDir, LockFile)
}

// LogPath returns the generation log path inside a data directory.
func LogPath(dataDir string) string {
	return filepath.Join(dataDir, LogFile)
}

// HistoryDBPath returns the history database path inside a data directory.
func HistoryDBPath(dataDir string) string {
	return filepath.Join(dataDir, HistoryDBFile)
}

// SessionOutputDir returns the default output directory of a session.
func SessionOutputDir(dataDir, sessionID string) string {
	return filepath.Join(dataDir, OutputDir, sessionID)
}

// ArtifactPath returns the output path of a generated image.
// Example: "<outputDir>/header-20250101_103000.png".
func ArtifactPath(outputDir, position string, t time.Time) string {
	return filepath.Join(outputDir, fmt.Sprintf("%s-%s%s", position, t.Format(ArtifactTimeLayout), ArtifactExt))
}
