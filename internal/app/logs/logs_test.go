package logs_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/imagegen/internal/app/logs"
	"github.com/slok/imagegen/internal/model"
)

func TestServiceRun(t *testing.T) {
	numbered := func(from, to int) []string {
		lines := []string{}
		for i := from; i <= to; i++ {
			lines = append(lines, fmt.Sprintf("line %d", i))
		}
		return lines
	}

	tests := map[string]struct {
		content  *string
		req      logs.Request
		expLines []string
		expErr   bool
		expErrIs error
	}{
		"by default the last 50 lines should be returned": {
			content:  ptr(strings.Join(numbered(1, 120), "\n") + "\n"),
			expLines: numbered(71, 120),
		},

		"a number of lines should be returned": {
			content:  ptr(strings.Join(numbered(1, 10), "\n")),
			req:      logs.Request{Lines: 3},
			expLines: numbered(8, 10),
		},

		"asking more lines than the file has should return all": {
			content:  ptr("a\nb\n"),
			req:      logs.Request{Lines: 10},
			expLines: []string{"a", "b"},
		},

		"an empty file should return no lines": {
			content:  ptr(""),
			expLines: []string{},
		},

		"a missing file should fail with not found": {
			expErr:   true,
			expErrIs: model.ErrNotFound,
		},

		"negative lines should fail": {
			content:  ptr(""),
			req:      logs.Request{Lines: -1},
			expErr:   true,
			expErrIs: model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			path := filepath.Join(t.TempDir(), "generation.log")
			if test.content != nil {
				require.NoError(os.WriteFile(path, []byte(*test.content), 0o644))
			}

			svc, err := logs.NewService(logs.ServiceConfig{LogPath: path})
			require.NoError(err)

			gotLines, err := svc.Run(context.TODO(), test.req)
			if test.expErr {
				require.Error(err)
				if test.expErrIs != nil {
					assert.ErrorIs(err, test.expErrIs)
				}
				return
			}
			require.NoError(err)
			assert.Equal(test.expLines, gotLines)
		})
	}
}

func ptr(s string) *string { return &s }
