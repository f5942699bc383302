package component

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Pret-a-LLOD/Fintan/config"
	apperrors "github.com/Pret-a-LLOD/Fintan/errors"
	"github.com/Pret-a-LLOD/Fintan/logger"
	"github.com/Pret-a-LLOD/Fintan/segment"
	"github.com/Pret-a-LLOD/Fintan/stream"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testDeps = Dependencies{Logger: logger.Nop()}

type passthrough struct {
	*Base
}

func newPassthrough(spec Spec, deps Dependencies) (StreamComponent, error) {
	return &passthrough{Base: NewBase(spec, CategoryUpdater, deps)}, nil
}

func (p *passthrough) Start(ctx context.Context) error {
	return ForEachStream(ctx, p.Base, func(ctx context.Context, name string, in stream.Input, out stream.Output) error {
		return p.EachSegment(ctx, name, in, func(s segment.Segment) error {
			return p.Emit(ctx, name, s)
		})
	})
}

func seg(label string) segment.Segment { return segment.Segment{Label: label} }

func TestRegistryResolveNamespaces(t *testing.T) {
	r := NewRegistry(WithNamespaces("ns.one", "ns.two", "ns.three"))
	require.NoError(t, r.Register("ns.two.Echo", newPassthrough))

	name, _, err := r.Resolve("Echo")
	require.NoError(t, err)
	assert.Equal(t, "ns.two.Echo", name)

	name, _, err = r.Resolve("ns.two.Echo")
	require.NoError(t, err)
	assert.Equal(t, "ns.two.Echo", name)

	_, _, err = r.Resolve("Missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTypeNotFound))
}

func TestRegistryFactoryFallback(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("fintan.rdf.RDFUpdaterFactory", newPassthrough))

	name, _, err := r.Resolve("RDFUpdater")
	require.NoError(t, err)
	assert.Equal(t, "fintan.rdf.RDFUpdaterFactory", name)

	assert.NotContains(t, r.Candidates("XFactory"), "XFactoryFactory")
}

func TestRegistryDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("a.B", newPassthrough))
	assert.Error(t, r.Register("a.B", newPassthrough))
	assert.Panics(t, func() { r.MustRegister("a.B", newPassthrough) })
	assert.Equal(t, []string{"a.B"}, r.Names())
}

func TestRegistryBuild(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("fintan.core.Echo", newPassthrough)

	c, err := r.Build(config.Node{"class": "Echo", "componentInstance": "x"}, testDeps)
	require.NoError(t, err)
	assert.Equal(t, "x", c.InstanceName())
	assert.Equal(t, "fintan.core.Echo", c.Class())
	assert.Equal(t, StateConfigured, c.State())
	assert.Equal(t, "Echo", c.Config().Class())

	anon, err := r.Build(config.Node{"type": "Echo"}, testDeps)
	require.NoError(t, err)
	assert.Len(t, anon.InstanceName(), 36)

	_, err = r.Build(config.Node{"lang": "TTL"}, testDeps)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfigInvalid))
}

func TestRegistryBuildWrapsFactoryErrors(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("fintan.core.Broken", func(Spec, Dependencies) (StreamComponent, error) {
		return nil, errors.New("bad query")
	})
	_, err := r.Build(config.Node{"class": "Broken"}, testDeps)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfigInvalid))
	assert.Contains(t, err.Error(), "bad query")
}

func TestBaseTransitions(t *testing.T) {
	b := NewBase(Spec{Instance: "i", Class: "C"}, CategoryLoader, testDeps)
	assert.Equal(t, StateConstructed, b.State())

	assert.Error(t, b.Transition(StateWired), "skipping Configured must fail")
	for _, s := range []State{StateConfigured, StateWired, StateRunning, StateDraining, StateTerminated} {
		require.NoError(t, b.Transition(s))
	}
	assert.Error(t, b.Transition(StateTerminated))
	assert.Equal(t, "terminated", b.State().String())
}

func TestBaseSlots(t *testing.T) {
	b := NewBase(Spec{Instance: "w"}, CategoryWriter, testDeps, OnlyDefaultInput())

	require.NoError(t, b.SetInput(DefaultStream, stream.NewChannel(1)))
	err := b.SetInput(DefaultStream, stream.NewChannel(1))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeWiring), "occupied slot")

	err = b.SetInput("graph", stream.NewChannel(1))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeWiring), "named slot on default-only component")

	err = b.SetOutput(DefaultStream, stream.NewChannel(1))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeWiring), "writer cannot produce segments")

	p := stream.NewPipe(0)
	defer p.Close()
	require.NoError(t, b.SetOutput("b", p))
	require.NoError(t, b.SetOutput("a", stream.NewPipe(0)))
	assert.Equal(t, []string{"a", "b"}, b.OutputNames())
	assert.Equal(t, []string{""}, b.InputNames())
	assert.True(t, b.RequiresInput())
	_ = b.Output("a").Terminate()
}

func TestBaseInputKinds(t *testing.T) {
	loader := NewBase(Spec{Instance: "l"}, CategoryLoader, testDeps)
	assert.True(t, loader.AcceptsInput(stream.KindBytes))
	assert.False(t, loader.AcceptsInput(stream.KindSegments))
	err := loader.SetInput(DefaultStream, stream.NewChannel(1))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeWiring))

	sql := NewBase(Spec{Instance: "s"}, CategoryTransformer, testDeps, OptionalInput(),
		AcceptInputs(stream.KindBytes, stream.KindSegments))
	assert.False(t, sql.RequiresInput())
	assert.True(t, sql.AcceptsInput(stream.KindSegments))
}

func TestBaseRejectsWiringWhileRunning(t *testing.T) {
	b := NewBase(Spec{Instance: "r"}, CategoryUpdater, testDeps)
	for _, s := range []State{StateConfigured, StateWired, StateRunning} {
		require.NoError(t, b.Transition(s))
	}
	err := b.SetInput(DefaultStream, stream.NewChannel(1))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeWiring))
	b.MarkDraining()
	assert.Equal(t, StateDraining, b.State())
}

func TestEmitDropsUnconnected(t *testing.T) {
	b := NewBase(Spec{Instance: "u"}, CategoryUpdater, testDeps)
	ch := stream.NewChannel(2)
	require.NoError(t, b.SetOutput("a", ch))

	ctx := context.Background()
	require.NoError(t, b.Emit(ctx, "b", seg("lost")))
	require.NoError(t, b.Emit(ctx, "a", seg("kept")))
	assert.Equal(t, 1, ch.Segments().Len())
}

func TestForEachStreamRoutesAndDrops(t *testing.T) {
	c, err := newPassthrough(Spec{Instance: "multi"}, testDeps)
	require.NoError(t, err)
	p := c.(*passthrough)

	inA, inB, outA := stream.NewChannel(1), stream.NewChannel(1), stream.NewChannel(1)
	require.NoError(t, p.SetInput("a", inA))
	require.NoError(t, p.SetInput("b", inB))
	require.NoError(t, p.SetOutput("a", outA))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Start(ctx) }()

	// Producers for both streams write more than the channel capacity;
	// "b" must not block even though nothing consumes it downstream.
	for i := 0; i < 3; i++ {
		require.NoError(t, inB.Segments().Write(ctx, seg("b")))
	}
	require.NoError(t, inB.Terminate())

	go func() {
		for _, l := range []string{"1", "2", "3"} {
			_ = inA.Segments().Write(ctx, seg(l))
		}
		_ = inA.Terminate()
	}()

	var got []string
	for {
		s, ok, err := outA.Segments().Read(ctx)
		require.NoError(t, err)
		if !ok {
			if !outA.Segments().CanRead() {
				break
			}
			continue
		}
		got = append(got, s.Label)
	}
	assert.Equal(t, []string{"1", "2", "3"}, got)
	require.NoError(t, <-done)
}

func TestLazy(t *testing.T) {
	calls := 0
	closed := 0
	fail := true
	l := NewLazy("db", func(context.Context) (int, error) {
		calls++
		if fail {
			return 0, errors.New("refused")
		}
		return 42, nil
	}).WithCloser(func(int) error { closed++; return nil })

	ctx := context.Background()
	_, err := l.Get(ctx)
	require.Error(t, err)
	assert.False(t, l.IsInitialized())

	fail = false
	v, err := l.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	v, _ = l.Get(ctx)
	assert.Equal(t, 42, v)
	assert.Equal(t, 2, calls)

	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	assert.Equal(t, 1, closed)
}

func TestCategoryKinds(t *testing.T) {
	assert.Equal(t, stream.KindSegments, CategoryLoader.OutputKind())
	assert.Equal(t, stream.KindSegments, CategoryUpdater.OutputKind())
	assert.Equal(t, stream.KindBytes, CategoryTransformer.OutputKind())
	assert.Equal(t, stream.KindBytes, CategoryWriter.OutputKind())
	assert.Equal(t, stream.KindBytes, CategoryLoader.InputKind())
	assert.Equal(t, stream.KindSegments, CategoryWriter.InputKind())
	assert.Equal(t, "writer", CategoryWriter.String())
}
