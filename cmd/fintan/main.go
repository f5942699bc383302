// Command fintan runs a pipeline document, or serves pipelines over HTTP
// with the serve subcommand.
//
//	fintan -c pipeline.json [-p value ...] [value ...]
//	fintan serve [--settings fintan.yaml]
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/Pret-a-LLOD/Fintan/bootstrap"
	"github.com/Pret-a-LLOD/Fintan/config"
	"github.com/Pret-a-LLOD/Fintan/dag"
	"github.com/Pret-a-LLOD/Fintan/server"
	"github.com/Pret-a-LLOD/Fintan/version"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "fintan:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) > 0 && args[0] == "serve" {
		return serve(ctx, args[1:], stderr)
	}

	fs := pflag.NewFlagSet("fintan", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.StringP("config", "c", "", "pipeline document (.json, .yaml)")
	params := fs.StringArrayP("params", "p", nil, "value for the next <$paramN> placeholder (repeatable)")
	settingsPath := fs.String("settings", "", "settings file")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		_, err := fmt.Fprintln(stdout, version.Get().String())
		return err
	}
	if *configPath == "" {
		fmt.Fprintf(stderr, "Usage: fintan -c <document> [-p value]... [value]...\n%s", fs.FlagUsages())
		return fmt.Errorf("--config is required")
	}

	values := append(append([]string{}, *params...), fs.Args()...)
	doc, err := config.LoadDocument(*configPath, values)
	if err != nil {
		return err
	}

	app, err := newApp(ctx, *settingsPath)
	if err != nil {
		return err
	}
	return app.RunTask(ctx, func(ctx context.Context) error {
		res, err := app.Run(ctx, doc, stdin, stdout)
		if err != nil {
			return err
		}
		if failed := res.Failed(); len(failed) > 0 {
			return fmt.Errorf("%s: %w", failed[0].Instance, failed[0].Error)
		}
		return nil
	})
}

func serve(ctx context.Context, args []string, stderr io.Writer) error {
	fs := pflag.NewFlagSet("fintan serve", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	settingsPath := fs.String("settings", "", "settings file")
	pipelinesDir := fs.String("pipelines", "", "pipelines directory (overrides server.pipelines_dir)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	app, err := newApp(ctx, *settingsPath)
	if err != nil {
		return err
	}
	cfg := app.Settings.Server
	if *pipelinesDir != "" {
		cfg.PipelinesDir = *pipelinesDir
	}

	srv := server.New(cfg, app.Logger)
	server.NewAPI(cfg, app, app.Registry, dag.NewFileDocumentLoader(cfg.PipelinesDir), server.NewMetrics(), app.Logger).
		Register(srv.GinEngine())
	if err := srv.Start(ctx); err != nil {
		_ = app.Shutdown(context.Background())
		return err
	}
	app.OnStop(srv.Stop)

	app.WaitForSignal(ctx)
	return app.Shutdown(context.Background())
}

func newApp(ctx context.Context, settingsPath string) (*bootstrap.App, error) {
	var opts []config.LoaderOption
	if settingsPath != "" {
		opts = append(opts, config.WithConfigFile(settingsPath))
	}
	settings, err := config.LoadSettings(opts...)
	if err != nil {
		return nil, err
	}
	return bootstrap.NewApp(ctx, settings)
}
