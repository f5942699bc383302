package components_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pret-a-LLOD/Fintan/component"
	"github.com/Pret-a-LLOD/Fintan/components"
	"github.com/Pret-a-LLOD/Fintan/config"
	"github.com/Pret-a-LLOD/Fintan/dag"
	"github.com/Pret-a-LLOD/Fintan/dag/testutil"
	"github.com/Pret-a-LLOD/Fintan/logger"
)

func TestRegisterAllResolvesShortNames(t *testing.T) {
	r, err := components.NewRegistry()
	require.NoError(t, err)
	for _, class := range []string{
		"RDFStreamLoader",
		"SimpleLineBreakSplitter",
		"RDFStreamDuplicator",
		"RDFUpdater",
		"IOStreamDuplicator",
		"SQLStreamTransformer",
		"CommandStreamTransformer",
		"HTTPServiceStreamTransformer",
		"RDFStreamWriter",
		"TSVStreamWriter",
		"KafkaStreamWriter",
		"NATSStreamWriter",
	} {
		_, _, err := r.Resolve(class)
		assert.NoError(t, err, class)
	}
	assert.Error(t, components.RegisterAll(r), "second registration must fail")
}

func TestTextToNTriplesPipeline(t *testing.T) {
	r, err := components.NewRegistry()
	require.NoError(t, err)
	mem := testutil.NewMemoryOpener(map[string]string{
		"in.ttl": "@prefix x: <http://x/> .\nx:s x:p x:o .\n\nx:s2 x:p x:o2 .\n",
	})
	doc, err := config.ParseDocument([]byte(`{
		"input": "in.ttl",
		"output": "out.nt",
		"pipeline": [
			{"class": "SimpleLineBreakSplitter"},
			{"class": "RDFStreamLoader", "delimiter": "###FINTAN#end#segment###"},
			{"class": "RDFUpdater", "threads": 2, "updates": [{"predicate": "http://x/p", "replaceWith": "http://y/q"}]},
			{"class": "RDFStreamWriter", "lang": "NT"}
		]
	}`), "text-to-nt.json", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	g, err := dag.NewBuilder(r,
		dag.WithOpener(mem),
		dag.WithDependencies(component.Dependencies{Logger: logger.Nop()}),
		dag.WithLogger(logger.Nop()),
	).Build(ctx, doc)
	require.NoError(t, err)

	res, err := (&dag.Engine{Logger: logger.Nop()}).Run(ctx, g)
	require.NoError(t, err)
	assert.Empty(t, res.Failed())
	assert.Equal(t,
		"<http://x/s> <http://y/q> <http://x/o> .\n<http://x/s2> <http://y/q> <http://x/o2> .\n",
		mem.Output("out.nt"))
	assert.True(t, mem.Closed("out.nt"))
}
