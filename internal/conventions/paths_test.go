package conventions_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slok/imagegen/internal/conventions"
)

func TestPaths(t *testing.T) {
	assert.Equal(t, "/data/checkpoint.json", conventions.CheckpointPath("/data"))
	assert.Equal(t, "/data/supervisor.pid", conventions.LockPath("/data"))
	assert.Equal(t, "/data/generation.log", conventions.LogPath("/data"))
	assert.Equal(t, "/data/history.db", conventions.HistoryDBPath("/data"))
	assert.Equal(t, "/data/output/s1", conventions.SessionOutputDir("/data", "s1"))
}

func TestArtifactPath(t *testing.T) {
	ts := time.Date(2025, 7, 14, 9, 5, 3, 0, time.UTC)
	assert.Equal(t, "/out/header-20250714_090503.png", conventions.ArtifactPath("/out", "header", ts))
}
