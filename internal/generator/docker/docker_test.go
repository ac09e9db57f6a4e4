package docker_test

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/imagegen/internal/generator"
	"github.com/slok/imagegen/internal/generator/docker"
	"github.com/slok/imagegen/internal/model"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error) {
	args := m.Called(ctx, refStr, options)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *mockClient) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error) {
	args := m.Called(ctx, config, hostConfig, networkingConfig, platform, containerName)
	return args.Get(0).(container.CreateResponse), args.Error(1)
}

func (m *mockClient) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	return m.Called(ctx, containerID, options).Error(0)
}

func (m *mockClient) ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	args := m.Called(ctx, containerID, condition)
	return args.Get(0).(<-chan container.WaitResponse), args.Get(1).(<-chan error)
}

func (m *mockClient) CopyFromContainer(ctx context.Context, containerID, srcPath string) (io.ReadCloser, container.PathStat, error) {
	args := m.Called(ctx, containerID, srcPath)
	if args.Get(0) == nil {
		return nil, container.PathStat{}, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), container.PathStat{}, args.Error(1)
}

func (m *mockClient) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	return m.Called(ctx, containerID, options).Error(0)
}

func tarWith(t *testing.T, name string, data []byte) io.ReadCloser {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0644, Size: int64(len(data)), Typeflag: tar.TypeReg}))
	_, err := tw.Write(data)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	return io.NopCloser(&buf)
}

func waitResult(code int64) (<-chan container.WaitResponse, <-chan error) {
	statusCh := make(chan container.WaitResponse, 1)
	errCh := make(chan error, 1)
	statusCh <- container.WaitResponse{StatusCode: code}
	return statusCh, errCh
}

func TestNewEngine(t *testing.T) {
	tests := map[string]struct {
		cfg    docker.EngineConfig
		expErr bool
	}{
		"Missing image should fail.": {
			cfg:    docker.EngineConfig{Client: &mockClient{}},
			expErr: true,
		},
		"Invalid platform should fail.": {
			cfg:    docker.EngineConfig{Client: &mockClient{}, Image: "sd:latest", Platform: "amd64"},
			expErr: true,
		},
		"Valid config should create the engine.": {
			cfg: docker.EngineConfig{Client: &mockClient{}, Image: "sd:latest", Platform: "linux/arm64"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			e, err := docker.NewEngine(test.cfg)
			if test.expErr {
				assert.Error(t, err)
				assert.Nil(t, e)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, e)
			}
		})
	}
}

func TestEngineLoad(t *testing.T) {
	m := &mockClient{}
	m.On("ImagePull", mock.Anything, "sd:latest", image.PullOptions{Platform: "linux/amd64"}).Once().Return(io.NopCloser(bytes.NewBufferString("{}")), nil)

	e, err := docker.NewEngine(docker.EngineConfig{Client: m, Image: "sd:latest", Platform: "linux/amd64"})
	require.NoError(t, err)
	require.NoError(t, e.Load(context.Background()))
	m.AssertExpectations(t)
}

func TestEngineGenerate(t *testing.T) {
	req := generator.Request{
		Prompt:     "a desk",
		Parameters: model.GenerationParameters{Width: 1600, Height: 896, Steps: 25, GuidanceScale: 7.5},
	}

	tests := map[string]struct {
		mock      func(t *testing.T, m *mockClient)
		expData   string
		expErr    bool
		expItemEr bool
	}{
		"A successful container should return the output image.": {
			mock: func(t *testing.T, m *mockClient) {
				m.On("ContainerCreate", mock.Anything, mock.MatchedBy(func(c *container.Config) bool {
					return c.Image == "sd:latest" &&
						assert.ObjectsAreEqual([]string{"generate", "--prompt", "a desk", "--size", "1600x896", "--out", "/output/image.png"}, []string(c.Cmd))
				}), mock.Anything, (*network.NetworkingConfig)(nil), (*ocispec.Platform)(nil), mock.Anything).Once().Return(container.CreateResponse{ID: "c1"}, nil)
				m.On("ContainerStart", mock.Anything, "c1", mock.Anything).Once().Return(nil)
				statusCh, errCh := waitResult(0)
				m.On("ContainerWait", mock.Anything, "c1", container.WaitConditionNotRunning).Once().Return(statusCh, errCh)
				m.On("CopyFromContainer", mock.Anything, "c1", "/output/image.png").Once().Return(tarWith(t, "image.png", []byte("png-data")), nil)
				m.On("ContainerRemove", mock.Anything, "c1", container.RemoveOptions{Force: true}).Once().Return(nil)
			},
			expData: "png-data",
		},
		"A failing container should be an item error and be removed.": {
			mock: func(t *testing.T, m *mockClient) {
				m.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Once().Return(container.CreateResponse{ID: "c1"}, nil)
				m.On("ContainerStart", mock.Anything, "c1", mock.Anything).Once().Return(nil)
				statusCh, errCh := waitResult(1)
				m.On("ContainerWait", mock.Anything, "c1", container.WaitConditionNotRunning).Once().Return(statusCh, errCh)
				m.On("ContainerRemove", mock.Anything, "c1", container.RemoveOptions{Force: true}).Once().Return(nil)
			},
			expErr:    true,
			expItemEr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			m := &mockClient{}
			test.mock(t, m)

			e, err := docker.NewEngine(docker.EngineConfig{
				Client:   m,
				Image:    "sd:latest",
				Command:  []string{"generate", "--prompt", "{{prompt}}", "--size", "{{width}}x{{height}}", "--out", "{{output}}"},
				SkipPull: true,
			})
			require.NoError(t, err)

			data, err := e.Generate(context.Background(), req)
			if test.expErr {
				require.Error(t, err)
				if test.expItemEr {
					assert.ErrorIs(t, err, model.ErrItemGeneration)
				}
			} else {
				require.NoError(t, err)
				assert.Equal(t, test.expData, string(data))
			}
			m.AssertExpectations(t)
		})
	}
}
