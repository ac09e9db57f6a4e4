package commands

import (
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/imagegen/internal/generator"
	"github.com/slok/imagegen/internal/generator/command"
	"github.com/slok/imagegen/internal/generator/docker"
	"github.com/slok/imagegen/internal/generator/fake"
	"github.com/slok/imagegen/internal/log"
	utilsenv "github.com/slok/imagegen/internal/utils/env"
)

const (
	engineCommand = "command"
	engineDocker  = "docker"
	engineFake    = "fake"
)

// EngineFlags are the generation engine global flags.
type EngineFlags struct {
	Type     string
	Command  []string
	EnvSpecs []string
	WorkDir  string

	// Docker engine.
	DockerImage    string
	DockerBinds    []string
	DockerGPUs     bool
	DockerPlatform string
	DockerSkipPull bool

	// Fake engine.
	FakeLatency     time.Duration
	FakeFailPrompts []string
	FakeFailLoad    bool
}

func (e *EngineFlags) register(app *kingpin.Application) {
	app.Flag("engine", "Generation engine (command, docker, fake).").Default(engineCommand).EnumVar(&e.Type, engineCommand, engineDocker, engineFake)
	app.Flag("engine-command", "Generator program and arguments, repeat for each argument. Arguments can use the {{prompt}}, {{negative_prompt}}, {{width}}, {{height}}, {{steps}}, {{guidance_scale}} and {{output}} placeholders.").StringsVar(&e.Command)
	app.Flag("engine-env", "Generator environment variables (KEY=VALUE or KEY from current environment). Can be repeated.").StringsVar(&e.EnvSpecs)
	app.Flag("engine-workdir", "Generator program working directory.").StringVar(&e.WorkDir)

	app.Flag("docker-image", "Generator image for the docker engine.").StringVar(&e.DockerImage)
	app.Flag("docker-bind", "Volume bind for the generator container (e.g. a model cache). Can be repeated.").StringsVar(&e.DockerBinds)
	app.Flag("docker-gpus", "Request all the host GPUs for the generator container.").BoolVar(&e.DockerGPUs)
	app.Flag("docker-platform", "Generator image platform (os/arch).").StringVar(&e.DockerPlatform)
	app.Flag("docker-skip-pull", "Don't pull the generator image before generating.").BoolVar(&e.DockerSkipPull)

	app.Flag("fake-latency", "Generation time of each item for the fake engine.").Default("0s").DurationVar(&e.FakeLatency)
	app.Flag("fake-fail-prompt", "Fail the items whose prompt contains this text on the fake engine. Can be repeated.").StringsVar(&e.FakeFailPrompts)
	app.Flag("fake-fail-load", "Fail loading the fake engine.").BoolVar(&e.FakeFailLoad)
}

// newEngine creates the generation engine selected by the flags.
func newEngine(flags EngineFlags, logger log.Logger) (generator.Engine, error) {
	env, err := utilsenv.ParseSpecs(flags.EnvSpecs)
	if err != nil {
		return nil, fmt.Errorf("invalid --engine-env value: %w", err)
	}

	switch flags.Type {
	case engineFake:
		return fake.NewEngine(fake.EngineConfig{
			Latency:     flags.FakeLatency,
			FailPrompts: flags.FakeFailPrompts,
			FailLoad:    flags.FakeFailLoad,
			Logger:      logger,
		})
	case engineDocker:
		return docker.NewEngine(docker.EngineConfig{
			Image:    flags.DockerImage,
			Command:  flags.Command,
			Env:      env,
			Binds:    flags.DockerBinds,
			GPUs:     flags.DockerGPUs,
			Platform: flags.DockerPlatform,
			SkipPull: flags.DockerSkipPull,
			Logger:   logger,
		})
	case engineCommand:
		return command.NewEngine(command.EngineConfig{
			Command: flags.Command,
			Env:     env,
			WorkDir: flags.WorkDir,
			Logger:  logger,
		})
	}

	return nil, fmt.Errorf("unknown engine %q", flags.Type)
}
