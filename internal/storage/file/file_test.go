package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/imagegen/internal/log"
	"github.com/slok/imagegen/internal/model"
	"github.com/slok/imagegen/internal/storage/file"
)

func sessionFixture() model.Session {
	startedAt := time.Date(2025, 7, 14, 9, 0, 0, 0, time.UTC)
	s := model.NewSession("s1", "/out/s1", []model.WorkItem{
		{Position: "header", Prompt: "a calm desk", NegativePrompt: "people", Parameters: model.DefaultGenerationParameters()},
		{Position: "section1", Prompt: "a notebook", Parameters: model.DefaultGenerationParameters()},
	}, startedAt)
	s.Status = model.SessionStatusRunning
	_ = s.Record(model.ItemResult{
		Index:      0,
		Position:   "header",
		Status:     model.ItemStatusSuccess,
		OutputPath: "/out/s1/header-20250714_090010.png",
		Duration:   9500 * time.Millisecond,
		Timestamp:  startedAt.Add(10 * time.Second),
	})
	return s
}

func newRepo(t *testing.T) (*file.Repository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "checkpoint.json")
	repo, err := file.NewRepository(file.RepositoryConfig{Path: path, Logger: log.Noop})
	require.NoError(t, err)
	return repo, path
}

func TestNewRepository(t *testing.T) {
	_, err := file.NewRepository(file.RepositoryConfig{})
	assert.Error(t, err)
}

func TestRepositorySaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)

	exp := sessionFixture()
	require.NoError(t, repo.SaveSession(ctx, exp))

	got, err := repo.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, exp, *got)
}

func TestRepositoryGetMissingIsNotFound(t *testing.T) {
	repo, path := newRepo(t)

	_, err := repo.GetSession(context.Background())
	assert.ErrorIs(t, err, model.ErrNotFound)

	// An empty document means nothing was ever checkpointed.
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("\n"), 0644))
	_, err = repo.GetSession(context.Background())
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRepositoryGetCorrupt(t *testing.T) {
	tests := map[string]struct {
		doc string
	}{
		"Truncated JSON should be corrupt.": {
			doc: `{"sessionId": "s1", "status": "runn`,
		},
		"Unknown status should be corrupt.": {
			doc: `{"sessionId": "s1", "status": "generating", "cursor": 0, "completedCount": 0, "failedCount": 0, "items": [], "results": []}`,
		},
		"Cursor out of range should be corrupt.": {
			doc: `{"sessionId": "s1", "status": "running", "cursor": 2, "completedCount": 2, "failedCount": 0,
				"items": [{"position": "a", "prompt": "p", "negativePrompt": "", "parameters": {"width": 1, "height": 1, "steps": 1, "guidanceScale": 1}}],
				"results": []}`,
		},
		"Counters not matching cursor should be corrupt.": {
			doc: `{"sessionId": "s1", "status": "running", "cursor": 1, "completedCount": 0, "failedCount": 0,
				"items": [{"position": "a", "prompt": "p", "negativePrompt": "", "parameters": {"width": 1, "height": 1, "steps": 1, "guidanceScale": 1}}],
				"results": [{"index": 0, "position": "a", "status": "success", "generationTimeSeconds": 1, "timestamp": "2025-07-14T09:00:00Z"}]}`,
		},
		"Unknown fields should be corrupt.": {
			doc: `{"sessionId": "s1", "status": "pending", "imageGeneration": {}, "cursor": 0, "completedCount": 0, "failedCount": 0, "items": [], "results": []}`,
		},
		"Missing session ID should be corrupt.": {
			doc: `{"status": "pending", "cursor": 0, "completedCount": 0, "failedCount": 0, "items": [], "results": []}`,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo, path := newRepo(t)
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
			require.NoError(t, os.WriteFile(path, []byte(test.doc), 0644))

			_, err := repo.GetSession(context.Background())
			assert.ErrorIs(t, err, model.ErrCorruptCheckpoint)
			assert.NotErrorIs(t, err, model.ErrNotFound)
		})
	}
}

func TestRepositorySaveInvalidSession(t *testing.T) {
	repo, path := newRepo(t)

	s := sessionFixture()
	s.Cursor = 2

	err := repo.SaveSession(context.Background(), s)
	assert.ErrorIs(t, err, model.ErrNotValid)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRepositorySaveOverwritesWithoutLeftovers(t *testing.T) {
	ctx := context.Background()
	repo, path := newRepo(t)

	s := sessionFixture()
	require.NoError(t, repo.SaveSession(ctx, s))
	require.NoError(t, s.Record(model.ItemResult{Index: 1, Position: "section1", Status: model.ItemStatusFailed, Error: "boom", Timestamp: time.Now()}))
	s.Finalize(time.Now())
	require.NoError(t, repo.SaveSession(ctx, s))

	got, err := repo.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusCompletedWithErrors, got.Status)
	assert.Equal(t, 2, got.Cursor)
	assert.Equal(t, "boom", got.Results[1].Error)

	// Only the checkpoint must be left in the directory, no temporary files.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "checkpoint.json", entries[0].Name())
}

func TestRepositoryDocumentFormat(t *testing.T) {
	repo, path := newRepo(t)
	require.NoError(t, repo.SaveSession(context.Background(), sessionFixture()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	doc := string(data)
	for _, field := range []string{
		`"sessionId": "s1"`, `"status": "running"`, `"cursor": 1`, `"completedCount": 1`, `"failedCount": 0`,
		`"negativePrompt": "people"`, `"guidanceScale": 7.5`, `"generationTimeSeconds": 9.5`,
		`"outputPath": "/out/s1/header-20250714_090010.png"`,
	} {
		assert.Contains(t, doc, field)
	}
}
