// Package bootstrap assembles a Fintan process: logging, optional OTLP
// metrics and tracing, the component registry and the endpoint resolver.
// Both the command line runner and the HTTP run service build pipelines
// through an App.
//
//	app, err := bootstrap.NewApp(ctx, settings)
//	if err != nil { ... }
//	err = app.RunTask(ctx, func(ctx context.Context) error {
//		_, err := app.Run(ctx, doc, os.Stdin, os.Stdout)
//		return err
//	})
package bootstrap
