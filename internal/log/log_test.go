package log_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/imagegen/internal/log"
)

func TestCtxValues(t *testing.T) {
	tests := map[string]struct {
		ctx    func() context.Context
		expKVs log.Kv
	}{
		"Empty context should return empty values.": {
			ctx:    context.Background,
			expKVs: log.Kv{},
		},
		"Values should be merged with the previous ones.": {
			ctx: func() context.Context {
				ctx := log.CtxWithValues(context.Background(), log.Kv{"a": 1, "b": 2})
				return log.CtxWithValues(ctx, log.Kv{"b": 3, "c": 4})
			},
			expKVs: log.Kv{"a": 1, "b": 3, "c": 4},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expKVs, log.ValuesFromCtx(test.ctx()))
		})
	}
}

func TestCtxValuesAreNotMutated(t *testing.T) {
	parent := log.CtxWithValues(context.Background(), log.Kv{"a": 1})
	_ = log.CtxWithValues(parent, log.Kv{"a": 2})

	assert.Equal(t, log.Kv{"a": 1}, log.ValuesFromCtx(parent))
}
