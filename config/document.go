package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tailscale/hujson"
	"github.com/xeipuuv/gojsonschema"
	"go.yaml.in/yaml/v3"

	apperrors "github.com/Pret-a-LLOD/Fintan/errors"
)

// Literal endpoint references for the process standard streams.
const (
	StdinRef  = "System.in"
	StdoutRef = "System.out"
)

//go:embed schema.json
var documentSchema string

// Document is a parsed pipeline configuration. Absent arrays are nil;
// present but empty arrays are non-nil.
type Document struct {
	Input      string       `json:"input,omitempty"`
	Output     string       `json:"output,omitempty"`
	Pipeline   []Node       `json:"pipeline"`
	Components []Node       `json:"components"`
	Streams    []StreamDecl `json:"streams"`
}

// StreamDecl is one explicit edge of the graph. Each side is either a
// component slot or an external endpoint.
type StreamDecl struct {
	ReadsFromInstance      string `json:"readsFromInstance,omitempty"`
	ReadsFromInstanceGraph string `json:"readsFromInstanceGraph,omitempty"`
	ReadsFromSource        string `json:"readsFromSource,omitempty"`
	WritesToInstance       string `json:"writesToInstance,omitempty"`
	WritesToInstanceGraph  string `json:"writesToInstanceGraph,omitempty"`
	WritesToDestination    string `json:"writesToDestination,omitempty"`
}

// Validate rejects contradictory declarations.
func (s StreamDecl) Validate() error {
	switch {
	case s.ReadsFromSource != "" && s.ReadsFromInstance != "":
		return apperrors.ConfigInvalid("single stream cannot read from both an instance and a file/url source")
	case s.WritesToDestination != "" && s.WritesToInstance != "":
		return apperrors.ConfigInvalid("single stream cannot write to both an instance and a file destination")
	case s.ReadsFromSource != "" && s.WritesToDestination != "":
		return apperrors.ConfigInvalid("cannot write from a file/url source to a file destination: file copying is not supported")
	case s.ReadsFromSource == "" && s.ReadsFromInstance == "":
		return apperrors.ConfigInvalid("stream declares no source: set readsFromInstance or readsFromSource")
	case s.WritesToDestination == "" && s.WritesToInstance == "":
		return apperrors.ConfigInvalid("stream declares no destination: set writesToInstance or writesToDestination")
	}
	return nil
}

// String renders the edge for log output.
func (s StreamDecl) String() string {
	from := s.ReadsFromSource
	if from == "" {
		from = s.ReadsFromInstance + "[" + s.ReadsFromInstanceGraph + "]"
	}
	to := s.WritesToDestination
	if to == "" {
		to = s.WritesToInstance + "[" + s.WritesToInstanceGraph + "]"
	}
	return from + " -> " + to
}

func (d *Document) HasPipeline() bool   { return d.Pipeline != nil }
func (d *Document) HasComponents() bool { return d.Components != nil }
func (d *Document) HasStreams() bool    { return d.Streams != nil }
func (d *Document) HasInput() bool      { return d.Input != "" }
func (d *Document) HasOutput() bool     { return d.Output != "" }

// Validate checks that the sections present can form a runnable graph.
func (d *Document) Validate() error {
	valid := (d.HasPipeline() && d.HasInput() && d.HasOutput()) ||
		(d.HasStreams() && (d.HasComponents() || d.HasPipeline())) ||
		(d.HasComponents() && d.HasInput() && d.HasOutput())
	if !valid {
		return apperrors.ConfigInvalid("file is no valid pipeline config: expected pipeline with input and output, " +
			"streams with components or pipeline, or components with input and output")
	}
	for i, s := range d.Streams {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("streams[%d]: %w", i, err)
		}
	}
	return nil
}

// SubstituteParams replaces <$param0>, <$param1>, ... in raw with params.
func SubstituteParams(raw string, params []string) string {
	for i, p := range params {
		raw = strings.ReplaceAll(raw, "<$param"+strconv.Itoa(i)+">", p)
	}
	return raw
}

// LoadDocument reads, substitutes and parses the configuration at path.
func LoadDocument(path string, params []string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Resource(path, err)
	}
	return ParseDocument(raw, path, params)
}

// ParseDocument parses raw configuration text. name selects the syntax by
// extension: .yaml and .yml are YAML, anything else is JSON with comments.
func ParseDocument(raw []byte, name string, params []string) (*Document, error) {
	text := SubstituteParams(string(raw), params)

	var generic any
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal([]byte(text), &generic); err != nil {
			return nil, apperrors.ConfigInvalid(fmt.Sprintf("parse %s: %v", name, err)).WithCause(err)
		}
	default:
		std, err := hujson.Standardize([]byte(text))
		if err != nil {
			return nil, apperrors.ConfigInvalid(fmt.Sprintf("parse %s: %v", name, err)).WithCause(err)
		}
		if err := json.Unmarshal(std, &generic); err != nil {
			return nil, apperrors.ConfigInvalid(fmt.Sprintf("parse %s: %v", name, err)).WithCause(err)
		}
	}

	if err := validateSchema(generic); err != nil {
		return nil, err
	}

	// Round-trip through JSON so YAML and JSON share one decoding path.
	normalized, err := json.Marshal(generic)
	if err != nil {
		return nil, apperrors.ConfigInvalid(fmt.Sprintf("normalize %s: %v", name, err)).WithCause(err)
	}
	var doc Document
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return nil, apperrors.ConfigInvalid(fmt.Sprintf("decode %s: %v", name, err)).WithCause(err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func validateSchema(generic any) error {
	if _, ok := generic.(map[string]any); !ok {
		return apperrors.ConfigInvalid("configuration must be an object")
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(documentSchema),
		gojsonschema.NewGoLoader(generic),
	)
	if err != nil {
		return apperrors.Internal(err)
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return apperrors.ConfigInvalid(strings.Join(problems, "; ")).WithDetail("problems", problems)
}
