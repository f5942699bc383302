package genericio

import (
	"context"
	"time"

	"github.com/Pret-a-LLOD/Fintan/component"
	apperrors "github.com/Pret-a-LLOD/Fintan/errors"
	"github.com/Pret-a-LLOD/Fintan/logger"
	"github.com/Pret-a-LLOD/Fintan/process"
	"github.com/Pret-a-LLOD/Fintan/stream"
)

type commandConfig struct {
	Command     string        `mapstructure:"command" validate:"required"`
	Args        []string      `mapstructure:"args"`
	Dir         string        `mapstructure:"dir"`
	Env         []string      `mapstructure:"env"`
	GracePeriod time.Duration `mapstructure:"gracePeriod"`
}

// CommandStreamTransformer pipes each named input through an external
// command (e.g. xsltproc) and writes its standard output to the output of
// the same name. A non-zero exit fails the component.
type CommandStreamTransformer struct {
	*component.Base
	cfg commandConfig
}

// NewCommandStreamTransformer is the CommandStreamTransformer factory.
func NewCommandStreamTransformer(spec component.Spec, deps component.Dependencies) (component.StreamComponent, error) {
	var cfg commandConfig
	if err := spec.Node.Decode(&cfg); err != nil {
		return nil, err
	}
	return &CommandStreamTransformer{
		Base: component.NewBase(spec, component.CategoryTransformer, deps),
		cfg:  cfg,
	}, nil
}

func (c *CommandStreamTransformer) Start(ctx context.Context) error {
	return component.ForEachStream(ctx, c.Base, c.run)
}

func (c *CommandStreamTransformer) run(ctx context.Context, name string, in stream.Input, out stream.Output) error {
	res, err := process.Run(ctx, process.Command{
		Binary:      c.cfg.Command,
		Args:        c.cfg.Args,
		Dir:         c.cfg.Dir,
		Env:         c.cfg.Env,
		Stdin:       in.Reader(),
		Stdout:      c.Writer(ctx, out),
		GracePeriod: c.cfg.GracePeriod,
	})
	if res != nil {
		for _, line := range res.StderrLines() {
			c.Logger().Warn(line, logger.Fields(logger.FieldStream, name, "command", c.cfg.Command))
		}
	}
	if err != nil {
		return apperrors.Segment("command failed on stream '"+name+"'", err)
	}
	// The command may exit before reading all of its input.
	return stream.Drain(ctx, in)
}
