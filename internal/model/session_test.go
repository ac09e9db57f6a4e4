package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/imagegen/internal/model"
)

var t0 = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func newTestSession(n int) model.Session {
	items := make([]model.WorkItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, model.WorkItem{
			Position:   string(rune('a' + i)),
			Prompt:     "a prompt",
			Parameters: model.DefaultGenerationParameters(),
		})
	}
	return model.NewSession("s1", "/out", items, t0)
}

func TestSessionRecordAndFinalize(t *testing.T) {
	tests := map[string]struct {
		results   []model.ItemStatus
		expStatus model.SessionStatus
	}{
		"All the items succeeding should complete the session.": {
			results:   []model.ItemStatus{model.ItemStatusSuccess, model.ItemStatusSuccess, model.ItemStatusSuccess},
			expStatus: model.SessionStatusCompleted,
		},

		"A failed item should complete the session with errors.": {
			results:   []model.ItemStatus{model.ItemStatusSuccess, model.ItemStatusFailed, model.ItemStatusSuccess},
			expStatus: model.SessionStatusCompletedWithErrors,
		},

		"All the items failing should complete the session with errors.": {
			results:   []model.ItemStatus{model.ItemStatusFailed, model.ItemStatusFailed, model.ItemStatusFailed},
			expStatus: model.SessionStatusCompletedWithErrors,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			s := newTestSession(len(test.results))
			s.Status = model.SessionStatusRunning
			require.NoError(s.Validate())

			for i, st := range test.results {
				require.NoError(s.Record(model.ItemResult{Index: i, Position: s.Items[i].Position, Status: st}))
				// Invariants hold after every record.
				require.NoError(s.Validate())
				assert.Equal(i+1, s.Cursor)
				assert.Len(s.Results, s.Cursor)
				assert.Equal(s.Cursor, s.CompletedCount+s.FailedCount)
			}

			assert.True(s.Finished())
			assert.Equal(0, s.Pending())

			s.Finalize(t0.Add(time.Hour))
			assert.Equal(test.expStatus, s.Status)
			require.NotNil(s.CompletedAt)
			assert.Equal(t0.Add(time.Hour), *s.CompletedAt)
			assert.NoError(s.Validate())
		})
	}
}

func TestSessionRecordInvalid(t *testing.T) {
	tests := map[string]struct {
		session func() model.Session
		result  model.ItemResult
	}{
		"A result for another index should fail.": {
			session: func() model.Session { return newTestSession(2) },
			result:  model.ItemResult{Index: 1, Status: model.ItemStatusSuccess},
		},

		"A result with an unknown status should fail.": {
			session: func() model.Session { return newTestSession(2) },
			result:  model.ItemResult{Index: 0, Status: "skipped"},
		},

		"A result on a finished session should fail.": {
			session: func() model.Session {
				s := newTestSession(1)
				_ = s.Record(model.ItemResult{Index: 0, Status: model.ItemStatusSuccess})
				return s
			},
			result: model.ItemResult{Index: 1, Status: model.ItemStatusSuccess},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			s := test.session()
			cursor := s.Cursor

			err := s.Record(test.result)
			assert.ErrorIs(t, err, model.ErrNotValid)
			assert.Equal(t, cursor, s.Cursor)
			assert.Len(t, s.Results, cursor)
		})
	}
}

func TestSessionValidate(t *testing.T) {
	tests := map[string]struct {
		mutate func(s *model.Session)
		expErr bool
	}{
		"A new session should be valid.": {
			mutate: func(s *model.Session) {},
		},

		"A session without ID should fail.": {
			mutate: func(s *model.Session) { s.ID = "" },
			expErr: true,
		},

		"An unknown status should fail.": {
			mutate: func(s *model.Session) { s.Status = "paused" },
			expErr: true,
		},

		"A cursor out of range should fail.": {
			mutate: func(s *model.Session) { s.Cursor = 3 },
			expErr: true,
		},

		"A negative cursor should fail.": {
			mutate: func(s *model.Session) { s.Cursor = -1 },
			expErr: true,
		},

		"Counters not matching the cursor should fail.": {
			mutate: func(s *model.Session) {
				_ = s.Record(model.ItemResult{Index: 0, Status: model.ItemStatusSuccess})
				s.CompletedCount = 0
			},
			expErr: true,
		},

		"Results not matching the cursor should fail.": {
			mutate: func(s *model.Session) {
				_ = s.Record(model.ItemResult{Index: 0, Status: model.ItemStatusSuccess})
				s.Results = nil
			},
			expErr: true,
		},

		"Results not matching the counters should fail.": {
			mutate: func(s *model.Session) {
				_ = s.Record(model.ItemResult{Index: 0, Status: model.ItemStatusSuccess})
				s.CompletedCount, s.FailedCount = 0, 1
			},
			expErr: true,
		},

		"A completed session with pending items should fail.": {
			mutate: func(s *model.Session) { s.Status = model.SessionStatusCompleted },
			expErr: true,
		},

		"A failed session with pending items should be valid.": {
			mutate: func(s *model.Session) {
				s.Status = model.SessionStatusFailed
				s.Error = "engine not loaded"
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			s := newTestSession(2)
			test.mutate(&s)

			err := s.Validate()
			if test.expErr {
				assert.ErrorIs(t, err, model.ErrNotValid)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateItems(t *testing.T) {
	params := model.DefaultGenerationParameters()

	tests := map[string]struct {
		items  []model.WorkItem
		expErr bool
	}{
		"Valid items should not fail.": {
			items: []model.WorkItem{
				{Position: "header", Prompt: "a", Parameters: params},
				{Position: "section-0", Prompt: "b", Parameters: params},
			},
		},

		"No items should fail.": {
			expErr: true,
		},

		"An item without position should fail.": {
			items:  []model.WorkItem{{Prompt: "a", Parameters: params}},
			expErr: true,
		},

		"Duplicated positions should fail.": {
			items: []model.WorkItem{
				{Position: "header", Prompt: "a", Parameters: params},
				{Position: "header", Prompt: "b", Parameters: params},
			},
			expErr: true,
		},

		"An item without prompt should fail.": {
			items:  []model.WorkItem{{Position: "header", Parameters: params}},
			expErr: true,
		},

		"An item with unset parameters should fail.": {
			items:  []model.WorkItem{{Position: "header", Prompt: "a"}},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := model.ValidateItems(test.items)
			if test.expErr {
				assert.ErrorIs(t, err, model.ErrNotValid)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestGenerationParametersWithDefaults(t *testing.T) {
	got := model.GenerationParameters{Width: 1024, Steps: 50}.WithDefaults(model.DefaultGenerationParameters())
	assert.Equal(t, model.GenerationParameters{Width: 1024, Height: 896, Steps: 50, GuidanceScale: 7.5}, got)
}

func TestSessionStatus(t *testing.T) {
	tests := map[string]struct {
		status       model.SessionStatus
		expValid     bool
		expResumable bool
		expTerminal  bool
	}{
		"pending":               {status: model.SessionStatusPending, expValid: true, expResumable: true},
		"running":               {status: model.SessionStatusRunning, expValid: true, expResumable: true},
		"completed":             {status: model.SessionStatusCompleted, expValid: true, expTerminal: true},
		"completed with errors": {status: model.SessionStatusCompletedWithErrors, expValid: true, expTerminal: true},
		"failed":                {status: model.SessionStatusFailed, expValid: true, expTerminal: true},
		"unknown":               {status: "paused"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expValid, test.status.Valid())
			assert.Equal(t, test.expResumable, test.status.Resumable())
			assert.Equal(t, test.expTerminal, test.status.Terminal())
		})
	}
}
