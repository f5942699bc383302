package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pret-a-LLOD/Fintan/config"
	apperrors "github.com/Pret-a-LLOD/Fintan/errors"
	"github.com/Pret-a-LLOD/Fintan/logger"
)

func newApp(t *testing.T, opts ...Option) *App {
	t.Helper()
	app, err := NewApp(context.Background(), &config.Settings{}, append([]Option{WithLogger(logger.Nop())}, opts...)...)
	require.NoError(t, err)
	return app
}

func TestNewAppDefaults(t *testing.T) {
	app := newApp(t)
	assert.Equal(t, 100, app.Settings.Stream.Capacity)
	assert.NotNil(t, app.Metrics)
	assert.Contains(t, app.Registry.Names(), "fintan.load.RDFStreamLoader")
	assert.Equal(t, 3, app.Dependencies().Retry.MaxAttempts)
}

func TestNewAppRejectsInvalidSettings(t *testing.T) {
	s := &config.Settings{}
	s.Logging.Level = "loud"
	_, err := NewApp(context.Background(), s, WithLogger(logger.Nop()))
	require.Error(t, err)
}

func TestRunStdioPipeline(t *testing.T) {
	app := newApp(t)
	doc, err := config.ParseDocument([]byte(`{
		"input": "System.in",
		"output": "System.out",
		"pipeline": [
			{"class": "RDFStreamLoader"},
			{"class": "RDFStreamWriter", "lang": "NT"}
		]
	}`), "stdio.json", nil)
	require.NoError(t, err)

	var out bytes.Buffer
	res, err := app.Run(context.Background(), doc, strings.NewReader("<http://x/s> <http://x/p> <http://x/o> .\n"), &out)
	require.NoError(t, err)
	assert.Empty(t, res.Failed())
	assert.Equal(t, "<http://x/s> <http://x/p> <http://x/o> .\n", out.String())
}

func TestRunReportsBuildErrors(t *testing.T) {
	app := newApp(t)
	doc, err := config.ParseDocument([]byte(`{
		"input": "System.in", "output": "System.out",
		"pipeline": [{"class": "NoSuchComponent"}]
	}`), "bad.json", nil)
	require.NoError(t, err)
	_, err = app.Run(context.Background(), doc, strings.NewReader(""), &bytes.Buffer{})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTypeNotFound))
}

func TestShutdownRunsHooksInReverseOnce(t *testing.T) {
	app := newApp(t)
	var order []int
	app.OnStop(
		func(context.Context) error { order = append(order, 1); return nil },
		func(context.Context) error { order = append(order, 2); return errors.New("boom") },
	)
	err := app.Shutdown(context.Background())
	require.Error(t, err)
	assert.Equal(t, []int{2, 1}, order)
	require.NoError(t, app.Shutdown(context.Background()))
	assert.Len(t, order, 2)
}

func TestRunTaskPrefersTaskError(t *testing.T) {
	app := newApp(t)
	app.OnStop(func(context.Context) error { return errors.New("stop") })
	taskErr := errors.New("task")
	assert.Equal(t, taskErr, app.RunTask(context.Background(), func(context.Context) error { return taskErr }))

	app.OnStop(func(context.Context) error { return errors.New("stop") })
	assert.EqualError(t, app.RunTask(context.Background(), func(context.Context) error { return nil }), "hook 0 failed: stop")
}
