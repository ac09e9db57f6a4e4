// Package docker implements a generation engine that runs the model inside a
// container, one container per item.
package docker

import (
	"archive/tar"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/oklog/ulid/v2"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/slok/imagegen/internal/generator"
	"github.com/slok/imagegen/internal/log"
	"github.com/slok/imagegen/internal/model"
)

// DockerClient is the interface for Docker operations that we use.
// This allows us to mock the Docker client for testing.
type DockerClient interface {
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	CopyFromContainer(ctx context.Context, containerID, srcPath string) (io.ReadCloser, container.PathStat, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// DefaultOutputPath is the path inside the container where the image is expected.
const DefaultOutputPath = "/output/image.png"

// EngineConfig is the configuration for the Docker engine.
type EngineConfig struct {
	Client DockerClient
	// Image is the generator image, it must contain the model.
	Image string
	// Command is the container command, it can use the generator.Arg* placeholders.
	Command []string
	Env     map[string]string
	// Binds are host volume binds (e.g. a model cache).
	Binds []string
	// GPUs requests all the GPUs of the host.
	GPUs bool
	// Platform is an optional "os/arch" platform.
	Platform string
	// OutputPath is where the container writes the image.
	OutputPath string
	// SkipPull doesn't pull the image on Load.
	SkipPull bool
	Logger   log.Logger
}

func (c *EngineConfig) defaults() error {
	if c.Image == "" {
		return fmt.Errorf("image is required")
	}
	if c.OutputPath == "" {
		c.OutputPath = DefaultOutputPath
	}
	if c.Platform != "" {
		if _, err := parsePlatform(c.Platform); err != nil {
			return err
		}
	}
	if c.Client == nil {
		// Create a default Docker client
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return fmt.Errorf("could not create Docker client: %w", err)
		}
		c.Client = cli
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "generator.Docker"})
	return nil
}

// Engine is the Docker implementation of the generator.Engine interface.
type Engine struct {
	client     DockerClient
	image      string
	command    []string
	env        []string
	binds      []string
	gpus       bool
	platform   *ocispec.Platform
	outputPath string
	skipPull   bool
	logger     log.Logger
}

// NewEngine creates a new Docker engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var platform *ocispec.Platform
	if cfg.Platform != "" {
		platform, _ = parsePlatform(cfg.Platform)
	}

	keys := make([]string, 0, len(cfg.Env))
	for k := range cfg.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, cfg.Env[k]))
	}

	return &Engine{
		client:     cfg.Client,
		image:      cfg.Image,
		command:    cfg.Command,
		env:        env,
		binds:      cfg.Binds,
		gpus:       cfg.GPUs,
		platform:   platform,
		outputPath: cfg.OutputPath,
		skipPull:   cfg.SkipPull,
		logger:     cfg.Logger,
	}, nil
}

// Load pulls the generator image.
func (e *Engine) Load(ctx context.Context) error {
	if e.skipPull {
		return nil
	}

	e.logger.Infof("Pulling generator image: %s", e.image)
	opts := image.PullOptions{}
	if e.platform != nil {
		opts.Platform = e.platform.OS + "/" + e.platform.Architecture
	}
	pullResp, err := e.client.ImagePull(ctx, e.image, opts)
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", e.image, err)
	}
	defer pullResp.Close()

	// Consume the pull response to ensure it completes
	if _, err := io.Copy(io.Discard, pullResp); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", e.image, err)
	}

	return nil
}

// Generate runs a generator container and copies the image out of it.
func (e *Engine) Generate(ctx context.Context, req generator.Request) ([]byte, error) {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	containerName := fmt.Sprintf("imagegen-%s", strings.ToLower(id))

	containerConfig := &container.Config{
		Image: e.image,
		Env:   e.env,
		Cmd:   generator.ExpandArgs(e.command, req, e.outputPath),
	}
	hostConfig := &container.HostConfig{Binds: e.binds}
	if e.gpus {
		hostConfig.Resources.DeviceRequests = []container.DeviceRequest{
			{Count: -1, Capabilities: [][]string{{"gpu"}}},
		}
	}

	resp, err := e.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, e.platform, containerName)
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	containerID := resp.ID
	defer func() {
		// Clean up even if the generation was canceled.
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := e.client.ContainerRemove(cctx, containerID, container.RemoveOptions{Force: true}); err != nil {
			e.logger.Warningf("could not remove generator container %s: %v", containerID, err)
		}
	}()

	if err := e.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	statusCh, errCh := e.client.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed waiting container: %w", err)
	case st := <-statusCh:
		if st.Error != nil && st.Error.Message != "" {
			return nil, fmt.Errorf("generator container error: %s: %w", st.Error.Message, model.ErrItemGeneration)
		}
		if st.StatusCode != 0 {
			return nil, fmt.Errorf("generator container exited with code %d: %w", st.StatusCode, model.ErrItemGeneration)
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	rc, _, err := e.client.CopyFromContainer(ctx, containerID, e.outputPath)
	if err != nil {
		return nil, fmt.Errorf("could not copy output image from container: %w: %w", err, model.ErrItemGeneration)
	}
	defer rc.Close()

	data, err := readFirstFile(rc)
	if err != nil {
		return nil, fmt.Errorf("could not read output image: %w: %w", err, model.ErrItemGeneration)
	}

	return data, nil
}

// Close is a no-op, containers are removed after each item.
func (e *Engine) Close() error { return nil }

// readFirstFile reads the first regular file of a tar stream.
func readFirstFile(r io.Reader) ([]byte, error) {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("no file in archive")
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("empty image")
		}
		return data, nil
	}
}

func parsePlatform(s string) (*ocispec.Platform, error) {
	osName, arch, ok := strings.Cut(s, "/")
	if !ok || osName == "" || arch == "" {
		return nil, fmt.Errorf("invalid platform %q, expected os/arch", s)
	}

	p := &ocispec.Platform{OS: osName, Architecture: arch}
	if a, variant, ok := strings.Cut(arch, "/"); ok {
		p.Architecture = a
		p.Variant = variant
	}
	return p, nil
}
