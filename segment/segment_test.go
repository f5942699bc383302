package segment

import (
	"strings"
	"testing"

	"github.com/knakk/rdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ttl = `@prefix ex: <http://example.org/> .
@prefix rdfs: <http://www.w3.org/2000/01/rdf-schema#> .
ex:a ex:p ex:b .
ex:a rdfs:label "A" .
`

func TestParseTurtleKeepsPrefixes(t *testing.T) {
	seg, err := Parse(ttl, rdf.Turtle)
	require.NoError(t, err)
	assert.Equal(t, 2, seg.Len())
	assert.Equal(t, "http://example.org/", seg.Prefixes["ex"])
	assert.Equal(t, "http://www.w3.org/2000/01/rdf-schema#", seg.Prefixes["rdfs"])
}

func TestParseNTriples(t *testing.T) {
	seg, err := Parse("<http://x/a> <http://x/p> <http://x/b> .\n", rdf.NTriples)
	require.NoError(t, err)
	assert.Equal(t, 1, seg.Len())
	assert.Empty(t, seg.Prefixes)
	assert.Equal(t, "http://x/p", seg.Triples[0].Pred.String())
}

func TestParseRejectsUndeclaredPrefix(t *testing.T) {
	_, err := Parse("ex:a ex:p ex:b .\n", rdf.Turtle)
	assert.Error(t, err)
}

func TestEncodeRoundTrip(t *testing.T) {
	seg, err := Parse(ttl, rdf.Turtle)
	require.NoError(t, err)

	var b strings.Builder
	require.NoError(t, seg.Encode(&b, rdf.Turtle))
	out := b.String()
	assert.True(t, strings.HasPrefix(out, "@prefix ex: <http://example.org/> .\n@prefix rdfs:"))

	again, err := Parse(out, rdf.Turtle)
	require.NoError(t, err)
	assert.Equal(t, seg.Len(), again.Len())
}

func TestEncodeNTriplesHasNoHeader(t *testing.T) {
	seg, err := Parse(ttl, rdf.Turtle)
	require.NoError(t, err)

	var b strings.Builder
	require.NoError(t, seg.Encode(&b, rdf.NTriples))
	assert.NotContains(t, b.String(), "@prefix")
	assert.Equal(t, 2, strings.Count(b.String(), " .\n"))
}

func TestCloneIsIndependent(t *testing.T) {
	seg, err := Parse(ttl, rdf.Turtle)
	require.NoError(t, err)
	c := seg.Clone()
	c.Prefixes["new"] = "http://new/"
	c.Triples = c.Triples[:1]
	assert.NotContains(t, seg.Prefixes, "new")
	assert.Equal(t, 2, seg.Len())
}

func TestFormat(t *testing.T) {
	f, err := Format("")
	require.NoError(t, err)
	assert.Equal(t, rdf.Turtle, f)

	f, err = Format("nt")
	require.NoError(t, err)
	assert.Equal(t, rdf.NTriples, f)

	_, err = Format("JSON-LD")
	assert.Error(t, err)
}

func TestPrefixHeaderSorted(t *testing.T) {
	h := PrefixHeader(map[string]string{"b": "http://b/", "a": "http://a/"})
	assert.Equal(t, "@prefix a: <http://a/> .\n@prefix b: <http://b/> .\n", h)
}

func collect(t *testing.T, c Chunker, in string) []string {
	t.Helper()
	var out []string
	require.NoError(t, c.Each(strings.NewReader(in), func(chunk string) error {
		out = append(out, chunk)
		return nil
	}))
	return out
}

func TestChunkerWholeStream(t *testing.T) {
	got := collect(t, Chunker{}, "a\n"+DefaultDelimiter+"\nb\n")
	assert.Equal(t, []string{"a\n" + DefaultDelimiter + "\nb\n"}, got)
}

func TestChunkerDelimiter(t *testing.T) {
	got := collect(t, Chunker{Split: true, Delimiter: DefaultDelimiter},
		"a\n"+DefaultDelimiter+"\nb\nc\n"+DefaultDelimiter+"\n\n")
	assert.Equal(t, []string{"a\n", "b\nc\n"}, got)
}

func TestChunkerPerLine(t *testing.T) {
	got := collect(t, Chunker{Split: true}, "a\nb\n")
	assert.Equal(t, []string{"a\n", "b\n"}, got)
}
