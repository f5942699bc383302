// Package segment defines the unit of structured data that flows through
// handoff channels: one parsed RDF graph plus the prefixes it was written
// with.
package segment

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/knakk/rdf"
)

// DefaultDelimiter separates serialized segments in a byte stream.
const DefaultDelimiter = "###FINTAN#end#segment###"

// Segment is one discrete graph. Segments are values; components that
// modify a segment must Clone it first if it may be shared.
type Segment struct {
	// Label is an optional free-form identifier (e.g. the source line or a sentence id).
	Label string
	// Prefixes maps prefix names to namespace IRIs.
	Prefixes map[string]string
	Triples  []rdf.Triple
}

// Len returns the number of triples.
func (s Segment) Len() int { return len(s.Triples) }

// Clone returns a copy that shares no mutable state with s.
func (s Segment) Clone() Segment {
	return Segment{
		Label:    s.Label,
		Prefixes: maps.Clone(s.Prefixes),
		Triples:  slices.Clone(s.Triples),
	}
}

// Format resolves the "lang" values accepted in pipeline configurations.
func Format(lang string) (rdf.Format, error) {
	switch strings.ToUpper(strings.TrimSpace(lang)) {
	case "", "TTL", "TURTLE":
		return rdf.Turtle, nil
	case "NT", "N-TRIPLES", "NTRIPLES", "N-TRIPLE":
		return rdf.NTriples, nil
	case "RDF/XML", "RDFXML", "XML":
		return rdf.RDFXML, nil
	}
	return rdf.Turtle, fmt.Errorf("segment: unsupported lang %q", lang)
}

var prefixLine = regexp.MustCompile(`(?i)^\s*@?prefix\s+([A-Za-z0-9_.\-]*):\s*<([^>]*)>`)

// Prefixes extracts Turtle/SPARQL prefix declarations from text.
func Prefixes(text string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		if m := prefixLine.FindStringSubmatch(line); m != nil {
			out[m[1]] = m[2]
		}
	}
	return out
}

// Parse decodes one serialized graph.
func Parse(text string, format rdf.Format) (Segment, error) {
	dec := rdf.NewTripleDecoder(strings.NewReader(text), format)
	triples, err := dec.DecodeAll()
	if err != nil {
		return Segment{}, fmt.Errorf("segment: parse: %w", err)
	}
	seg := Segment{Triples: triples}
	if format == rdf.Turtle {
		seg.Prefixes = Prefixes(text)
	}
	return seg, nil
}

// PrefixHeader renders prefixes as sorted Turtle @prefix lines.
func PrefixHeader(prefixes map[string]string) string {
	var b strings.Builder
	for _, p := range slices.Sorted(maps.Keys(prefixes)) {
		fmt.Fprintf(&b, "@prefix %s: <%s> .\n", p, prefixes[p])
	}
	return b.String()
}

// Encode writes the segment. Turtle output carries the prefix header
// followed by one statement per line; N-Triples output has no header.
func (s Segment) Encode(w io.Writer, format rdf.Format) error {
	bw := bufio.NewWriter(w)
	if format == rdf.Turtle && len(s.Prefixes) > 0 {
		if _, err := bw.WriteString(PrefixHeader(s.Prefixes)); err != nil {
			return err
		}
	}
	for _, t := range s.Triples {
		if _, err := bw.WriteString(Statement(t)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Statement renders one triple as a terminated N-Triples line.
func Statement(t rdf.Triple) string {
	line := strings.TrimSpace(t.Serialize(rdf.NTriples))
	if !strings.HasSuffix(line, ".") {
		line += " ."
	}
	return line + "\n"
}

// String returns the Turtle serialization, mainly for logs and tests.
func (s Segment) String() string {
	var b strings.Builder
	_ = s.Encode(&b, rdf.Turtle)
	return b.String()
}
