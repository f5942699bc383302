package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Pret-a-LLOD/Fintan/errors"
)

func TestParseDocumentJSONWithComments(t *testing.T) {
	raw := `{
		// default I/O
		"input": "<$param0>",
		"output": "System.out",
		"pipeline": [
			{ "class": "RDFStreamLoader", "lang": "TTL", "delimiter": "" },
			{ "class": "RDFStreamWriter", "componentInstance": "w", }, /* trailing comma */
		]
	}`
	doc, err := ParseDocument([]byte(raw), "pipeline.json", []string{"data/in.ttl.gz"})
	require.NoError(t, err)

	assert.Equal(t, "data/in.ttl.gz", doc.Input)
	assert.Equal(t, StdoutRef, doc.Output)
	require.Len(t, doc.Pipeline, 2)
	assert.Equal(t, "RDFStreamLoader", doc.Pipeline[0].Class())
	assert.Equal(t, "w", doc.Pipeline[1].Instance())
	assert.False(t, doc.HasComponents())
	assert.False(t, doc.HasStreams())
}

func TestParseDocumentYAML(t *testing.T) {
	raw := `
components:
  - type: RDFStreamLoader
    componentInstance: load
  - class: RDFStreamWriter
    componentInstance: write
streams:
  - readsFromSource: in.ttl
    writesToInstance: load
  - readsFromInstance: load
    writesToInstance: write
  - readsFromInstance: write
    writesToDestination: out.ttl
`
	doc, err := ParseDocument([]byte(raw), "pipeline.yaml", nil)
	require.NoError(t, err)
	require.Len(t, doc.Components, 2)
	assert.Equal(t, "RDFStreamLoader", doc.Components[0].Class())
	require.Len(t, doc.Streams, 3)
	assert.Equal(t, "load", doc.Streams[1].ReadsFromInstance)
	assert.Equal(t, "out.ttl", doc.Streams[2].WritesToDestination)
}

func TestDocumentValidateRules(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		valid bool
	}{
		{"pipeline with io", `{"input":"a","output":"b","pipeline":[]}`, true},
		{"pipeline without output", `{"input":"a","pipeline":[]}`, false},
		{"streams with components", `{"components":[],"streams":[]}`, true},
		{"streams with pipeline", `{"pipeline":[],"streams":[]}`, true},
		{"streams alone", `{"streams":[]}`, false},
		{"components with io", `{"input":"a","output":"b","components":[]}`, true},
		{"components without io", `{"components":[]}`, false},
		{"null pipeline", `{"input":"a","output":"b","pipeline":null}`, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDocument([]byte(tc.raw), "c.json", nil)
			if tc.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfigInvalid), "got %v", err)
		})
	}
}

func TestParseDocumentSchemaErrors(t *testing.T) {
	_, err := ParseDocument([]byte(`{"input":"a","output":"b","pipeline":[{"lang":"TTL"}]}`), "c.json", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfigInvalid))

	_, err = ParseDocument([]byte(`{"pipeline":[],"streams":[{"readsFrom":"x"}]}`), "c.json", nil)
	require.Error(t, err)

	_, err = ParseDocument([]byte(`[1,2]`), "c.json", nil)
	require.Error(t, err)

	_, err = ParseDocument([]byte(`{"input": `), "c.json", nil)
	require.Error(t, err)
}

func TestStreamDeclValidate(t *testing.T) {
	tests := []struct {
		name string
		decl StreamDecl
		ok   bool
	}{
		{"instance to instance", StreamDecl{ReadsFromInstance: "a", WritesToInstance: "b"}, true},
		{"source to instance", StreamDecl{ReadsFromSource: "f", WritesToInstance: "b"}, true},
		{"instance to destination", StreamDecl{ReadsFromInstance: "a", WritesToDestination: "f"}, true},
		{"both sources", StreamDecl{ReadsFromInstance: "a", ReadsFromSource: "f", WritesToInstance: "b"}, false},
		{"both destinations", StreamDecl{ReadsFromInstance: "a", WritesToInstance: "b", WritesToDestination: "f"}, false},
		{"file copy", StreamDecl{ReadsFromSource: "f", WritesToDestination: "g"}, false},
		{"no source", StreamDecl{WritesToInstance: "b"}, false},
		{"no destination", StreamDecl{ReadsFromInstance: "a"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.decl.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfigInvalid), "got %v", err)
			}
		})
	}
}

func TestSubstituteParams(t *testing.T) {
	got := SubstituteParams(`{"a":"<$param0>","b":"<$param1>/<$param0>","c":"<$param2>"}`, []string{"x", "y"})
	assert.Equal(t, `{"a":"x","b":"y/x","c":"<$param2>"}`, got)
}

func TestLoadDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"input":"System.in","output":"System.out","pipeline":[{"class":"X"}]}`), 0o644))

	doc, err := LoadDocument(path, nil)
	require.NoError(t, err)
	assert.Equal(t, StdinRef, doc.Input)

	_, err = LoadDocument(filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeResource))
}

func TestNodeGetters(t *testing.T) {
	n := Node{
		"class":     "RDFStreamWriter",
		"split":     "true",
		"threads":   float64(4),
		"prefixes":  []any{"rdf", "rdfs"},
		"brokers":   "a:9092, b:9092",
		"nothing":   nil,
		"timeout":   "3s",
		"rateLimit": 2.5,
	}
	assert.Equal(t, "RDFStreamWriter", n.Class())
	assert.Equal(t, "", n.Instance())
	assert.True(t, n.Bool("split", false))
	assert.True(t, n.Bool("missing", true))
	assert.Equal(t, 4, n.Int("threads", 1))
	assert.Equal(t, 1, n.Int("nothing", 1))
	assert.False(t, n.Has("nothing"))
	assert.Equal(t, []string{"rdf", "rdfs"}, n.StringSlice("prefixes"))
	assert.Equal(t, []string{"a:9092", "b:9092"}, n.StringSlice("brokers"))
	assert.Equal(t, "RDFUpdater", Node{"type": "RDFUpdater"}.Class())

	var opts struct {
		Threads   int           `mapstructure:"threads" validate:"gte=1"`
		Timeout   time.Duration `mapstructure:"timeout"`
		RateLimit float64       `mapstructure:"rateLimit"`
		Brokers   []string      `mapstructure:"brokers"`
	}
	require.NoError(t, n.Decode(&opts))
	assert.Equal(t, 4, opts.Threads)
	assert.Equal(t, 3*time.Second, opts.Timeout)
	assert.InDelta(t, 2.5, opts.RateLimit, 1e-9)
	assert.Len(t, opts.Brokers, 2)
}

func TestNodeDecodeValidation(t *testing.T) {
	var opts struct {
		Query string `mapstructure:"query" validate:"required"`
	}
	err := Node{"class": "SQLStreamTransformer"}.Decode(&opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query")
}
