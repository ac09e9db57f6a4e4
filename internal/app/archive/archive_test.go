package archive_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/imagegen/internal/app/archive"
	"github.com/slok/imagegen/internal/model"
	"github.com/slok/imagegen/internal/storage/storagemock"
)

func TestServiceRun(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

	tests := map[string]struct {
		mock     func(r *storagemock.MockCheckpointRepository, h *storagemock.MockHistoryRepository)
		expErr   bool
		expErrIs error
	}{
		"a finished session should be archived": {
			mock: func(r *storagemock.MockCheckpointRepository, h *storagemock.MockHistoryRepository) {
				r.On("GetSession", mock.Anything).Once().Return(&model.Session{ID: "s1", Status: model.SessionStatusCompletedWithErrors}, nil)
				h.On("ArchiveSession", mock.Anything, mock.MatchedBy(func(a model.ArchivedSession) bool {
					return len(a.ID) == 26 && a.ArchivedAt.Equal(now) && a.Session.ID == "s1"
				})).Once().Return(nil)
			},
		},

		"a running session should not be archived": {
			mock: func(r *storagemock.MockCheckpointRepository, h *storagemock.MockHistoryRepository) {
				r.On("GetSession", mock.Anything).Once().Return(&model.Session{ID: "s1", Status: model.SessionStatusRunning}, nil)
			},
			expErr:   true,
			expErrIs: model.ErrNotValid,
		},

		"a missing checkpoint should fail": {
			mock: func(r *storagemock.MockCheckpointRepository, h *storagemock.MockHistoryRepository) {
				r.On("GetSession", mock.Anything).Once().Return(nil, model.ErrNotFound)
			},
			expErr:   true,
			expErrIs: model.ErrNotFound,
		},

		"a history error should fail": {
			mock: func(r *storagemock.MockCheckpointRepository, h *storagemock.MockHistoryRepository) {
				r.On("GetSession", mock.Anything).Once().Return(&model.Session{ID: "s1", Status: model.SessionStatusFailed}, nil)
				h.On("ArchiveSession", mock.Anything, mock.Anything).Once().Return(fmt.Errorf("something"))
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			r := storagemock.NewMockCheckpointRepository(t)
			h := storagemock.NewMockHistoryRepository(t)
			test.mock(r, h)

			svc, err := archive.NewService(archive.ServiceConfig{
				Repository: r,
				History:    h,
				Clock:      func() time.Time { return now },
			})
			require.NoError(err)

			got, err := svc.Run(context.TODO(), archive.Request{})
			if test.expErr {
				require.Error(err)
				if test.expErrIs != nil {
					assert.ErrorIs(err, test.expErrIs)
				}
				return
			}
			require.NoError(err)
			assert.Equal("s1", got.Session.ID)
		})
	}
}
