package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pret-a-LLOD/Fintan/component"
	"github.com/Pret-a-LLOD/Fintan/components/componenttest"
	"github.com/Pret-a-LLOD/Fintan/config"
	"github.com/Pret-a-LLOD/Fintan/segment"
)

func TestSplitterReplacesBlankRuns(t *testing.T) {
	s := componenttest.Build(t, NewSimpleLineBreakSplitter, SimpleLineBreakSplitterClass, nil)
	require.NoError(t, s.SetInput(component.DefaultStream, componenttest.BytesIn("\n\na\nb\n\n\n  \nc\n\n")))
	sink, out := componenttest.BytesOut()
	require.NoError(t, s.SetOutput(component.DefaultStream, out))

	require.NoError(t, componenttest.Run(t, s))
	d := segment.DefaultDelimiter
	assert.Equal(t, d+"\na\nb\n"+d+"\nc\n", sink.String())
	assert.True(t, sink.Closed())
}

func TestSplitterCustomDelimiter(t *testing.T) {
	s := componenttest.Build(t, NewSimpleLineBreakSplitter, SimpleLineBreakSplitterClass, config.Node{KeyDelimiter: "--"})
	require.NoError(t, s.SetInput(component.DefaultStream, componenttest.BytesIn("a\n\nb")))
	sink, out := componenttest.BytesOut()
	require.NoError(t, s.SetOutput(component.DefaultStream, out))

	require.NoError(t, componenttest.Run(t, s))
	assert.Equal(t, "a\n--\nb\n", sink.String())
}

func TestSplitterNamedStreams(t *testing.T) {
	s := componenttest.Build(t, NewSimpleLineBreakSplitter, SimpleLineBreakSplitterClass, config.Node{KeyDelimiter: "--"})
	require.NoError(t, s.SetInput("x", componenttest.BytesIn("1\n\n2\n")))
	require.NoError(t, s.SetInput("y", componenttest.BytesIn("3\n")))
	sinkX, outX := componenttest.BytesOut()
	require.NoError(t, s.SetOutput("x", outX))

	require.NoError(t, componenttest.Run(t, s))
	assert.Equal(t, "1\n--\n2\n", sinkX.String())
}
