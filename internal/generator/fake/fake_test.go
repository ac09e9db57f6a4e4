package fake_test

import (
	"bytes"
	"context"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/imagegen/internal/generator"
	"github.com/slok/imagegen/internal/generator/fake"
	"github.com/slok/imagegen/internal/model"
)

func TestEngineGenerate(t *testing.T) {
	tests := map[string]struct {
		cfg     fake.EngineConfig
		load    bool
		req     generator.Request
		expW    int
		expH    int
		expErr  bool
		expItem bool
	}{
		"Generating without loading should fail.": {
			req:    generator.Request{Prompt: "p", Parameters: model.DefaultGenerationParameters()},
			expErr: true,
		},
		"Generating should return a scaled PNG.": {
			load: true,
			req:  generator.Request{Prompt: "p", Parameters: model.DefaultGenerationParameters()},
			expW: 64,
			expH: 35,
		},
		"Small images should not be scaled.": {
			load: true,
			req:  generator.Request{Prompt: "p", Parameters: model.GenerationParameters{Width: 10, Height: 20, Steps: 1}},
			expW: 10,
			expH: 20,
		},
		"Failing prompts should return an item generation error.": {
			cfg:     fake.EngineConfig{FailPrompts: []string{"FAIL"}},
			load:    true,
			req:     generator.Request{Prompt: "a FAIL prompt", Parameters: model.DefaultGenerationParameters()},
			expErr:  true,
			expItem: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			e, err := fake.NewEngine(test.cfg)
			require.NoError(t, err)
			if test.load {
				require.NoError(t, e.Load(context.Background()))
			}

			data, err := e.Generate(context.Background(), test.req)
			if test.expErr {
				require.Error(t, err)
				if test.expItem {
					assert.ErrorIs(t, err, model.ErrItemGeneration)
				}
				return
			}
			require.NoError(t, err)

			img, err := png.Decode(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, test.expW, img.Bounds().Dx())
			assert.Equal(t, test.expH, img.Bounds().Dy())
			assert.Equal(t, 1, e.Generated())
		})
	}
}

func TestEngineLatencyHonorsContext(t *testing.T) {
	e, err := fake.NewEngine(fake.EngineConfig{Latency: time.Hour})
	require.NoError(t, err)
	require.NoError(t, e.Load(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Generate(ctx, generator.Request{Prompt: "p"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngineFailLoad(t *testing.T) {
	e, err := fake.NewEngine(fake.EngineConfig{FailLoad: true})
	require.NoError(t, err)
	assert.Error(t, e.Load(context.Background()))
}
