package genericio

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pret-a-LLOD/Fintan/component"
	"github.com/Pret-a-LLOD/Fintan/components/componenttest"
	"github.com/Pret-a-LLOD/Fintan/config"
	"github.com/Pret-a-LLOD/Fintan/database"
	apperrors "github.com/Pret-a-LLOD/Fintan/errors"
	"github.com/Pret-a-LLOD/Fintan/logger"
)

func TestIOStreamDuplicator(t *testing.T) {
	d := componenttest.Build(t, NewIOStreamDuplicator, IOStreamDuplicatorClass, nil)
	text := strings.Repeat("0123456789", 2000)
	require.NoError(t, d.SetInput(component.DefaultStream, componenttest.BytesIn(text)))
	a, outA := componenttest.BytesOut()
	b, outB := componenttest.BytesOut()
	require.NoError(t, d.SetOutput(component.DefaultStream, outA))
	require.NoError(t, d.SetOutput("copy", outB))

	require.NoError(t, componenttest.Run(t, d))
	assert.Equal(t, text, a.String())
	assert.Equal(t, text, b.String())
	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
}

func TestIOStreamDuplicatorRejectsNamedInput(t *testing.T) {
	d := componenttest.Build(t, NewIOStreamDuplicator, IOStreamDuplicatorClass, nil)
	err := d.SetInput("x", componenttest.BytesIn(""))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeWiring))
}

func newWordsDB(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "words.db")
	db, err := database.Open(ctx, database.Config{DSN: path}, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, db.Exec(ctx, "CREATE TABLE words (id INTEGER, word TEXT, pos TEXT)"))
	require.NoError(t, db.Exec(ctx, `INSERT INTO words VALUES (1, 'the', 'DET'), (2, 'say "hi"', NULL), (3, 'cat', '')`))
	require.NoError(t, db.Close())
	return path
}

func TestSQLStreamTransformerCoNLL(t *testing.T) {
	path := newWordsDB(t)
	s := componenttest.Build(t, NewSQLStreamTransformer, SQLStreamTransformerClass, config.Node{
		"driver":     "org.sqlite.JDBC",
		"connectUrl": "jdbc:sqlite:" + path,
		"query":      "SELECT id, word, pos FROM words ORDER BY id",
		"outFormat":  "CoNLL",
		"delimiter":  "",
	})
	sink, out := componenttest.BytesOut()
	require.NoError(t, s.SetOutput(component.DefaultStream, out))

	require.NoError(t, componenttest.Run(t, s))
	assert.Equal(t, "1\tthe\tDET\n\n2\tsay \"hi\"\t_\n\n3\tcat\t_\n\n", sink.String())
	assert.True(t, sink.Closed())
}

func TestSQLStreamTransformerCustomFormat(t *testing.T) {
	path := newWordsDB(t)
	s := componenttest.Build(t, NewSQLStreamTransformer, SQLStreamTransformerClass, config.Node{
		"connectUrl":   path,
		"query":        "SELECT word, pos FROM words WHERE id = 2",
		"delimiterCSV": ",",
		"quoteChar":    `"`,
		"escapeChar":   `\`,
		"emptyChar":    "-",
	})
	require.NoError(t, s.SetInput(component.DefaultStream, componenttest.BytesIn("ignored")))
	sink, out := componenttest.BytesOut()
	require.NoError(t, s.SetOutput(component.DefaultStream, out))

	require.NoError(t, componenttest.Run(t, s))
	assert.Equal(t, `"say \"hi\"",-`+"\n", sink.String())
}

func TestSQLStreamTransformerConfig(t *testing.T) {
	_, err := componenttest.BuildErr(NewSQLStreamTransformer, SQLStreamTransformerClass, config.Node{"query": "SELECT 1"})
	assert.Error(t, err)

	_, err = componenttest.BuildErr(NewSQLStreamTransformer, SQLStreamTransformerClass, config.Node{
		"connectUrl": "x.db", "query": "SELECT 1", "outFormat": "xlsx",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfigInvalid))

	_, err = componenttest.BuildErr(NewSQLStreamTransformer, SQLStreamTransformerClass, config.Node{
		"connectUrl": "x", "driver": "com.mysql.Driver", "query": "SELECT 1",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfigInvalid))
}

func TestCSVFormatColumn(t *testing.T) {
	assert.Equal(t, "_", CoNLL.Column(""))
	assert.Equal(t, "a b", CoNLL.Column("a b"))
	f := CSVFormat{QuoteChar: "'", EscapeChar: "'"}
	assert.Equal(t, "'it''s'", f.Column("it's"))
}

func TestCommandStreamTransformer(t *testing.T) {
	c := componenttest.Build(t, NewCommandStreamTransformer, CommandStreamTransformerClass, config.Node{
		"command": "tr",
		"args":    []any{"a-z", "A-Z"},
	})
	require.NoError(t, c.SetInput(component.DefaultStream, componenttest.BytesIn("hello\nworld\n")))
	sink, out := componenttest.BytesOut()
	require.NoError(t, c.SetOutput(component.DefaultStream, out))

	require.NoError(t, componenttest.Run(t, c))
	assert.Equal(t, "HELLO\nWORLD\n", sink.String())
	assert.True(t, sink.Closed())
}

func TestCommandStreamTransformerFailure(t *testing.T) {
	c := componenttest.Build(t, NewCommandStreamTransformer, CommandStreamTransformerClass, config.Node{
		"command": "sh",
		"args":    []any{"-c", "exit 3"},
	})
	require.NoError(t, c.SetInput(component.DefaultStream, componenttest.BytesIn("x\n")))
	_, out := componenttest.BytesOut()
	require.NoError(t, c.SetOutput(component.DefaultStream, out))

	err := componenttest.Run(t, c)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeSegment))
}

func TestCommandStreamTransformerRequiresCommand(t *testing.T) {
	_, err := componenttest.BuildErr(NewCommandStreamTransformer, CommandStreamTransformerClass, config.Node{})
	assert.Error(t, err)
}

func TestHTTPServiceStreamTransformer(t *testing.T) {
	var (
		mu  sync.Mutex
		ids []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/upper", r.URL.Path)
		assert.Equal(t, "en", r.URL.Query().Get("lang"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		mu.Lock()
		ids = append(ids, r.URL.Query().Get("id"))
		mu.Unlock()
		b, _ := io.ReadAll(r.Body)
		_, _ = w.Write([]byte(strings.ToUpper(strings.TrimSpace(string(b)))))
	}))
	defer srv.Close()

	h := componenttest.Build(t, NewHTTPServiceStreamTransformer, HTTPServiceStreamTransformerClass, config.Node{
		"apiURI":               srv.URL,
		"apiMethodPath":        "/api/{op}",
		"pathParams":           map[string]any{"op": "upper"},
		"queryParams":          map[string]any{"lang": "en"},
		"acceptTypes":          []any{"application/json"},
		"delimiterIn":          "##",
		"delimiterOut":         "@@",
		"useStreamNameAsParam": "query:::id",
	})
	require.NoError(t, h.SetInput(component.DefaultStream, componenttest.BytesIn("a\n##\nb\n")))
	sink, out := componenttest.BytesOut()
	require.NoError(t, h.SetOutput(component.DefaultStream, out))

	require.NoError(t, componenttest.Run(t, h))
	assert.Equal(t, "A\n@@\nB\n@@\n", sink.String())
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, ids, 2)
	assert.True(t, strings.HasPrefix(ids[0], "default"))
	assert.NotEqual(t, ids[0], ids[1])
}

func TestHTTPServiceDataAsFormParam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		_, _ = w.Write([]byte(r.PostForm.Get("text") + "|" + r.PostForm.Get("mode")))
	}))
	defer srv.Close()

	h := componenttest.Build(t, NewHTTPServiceStreamTransformer, HTTPServiceStreamTransformerClass, config.Node{
		"apiURI":         srv.URL,
		"useDataAsParam": "form:::text",
		"formParams":     map[string]any{"mode": "fast"},
	})
	require.NoError(t, h.SetInput(component.DefaultStream, componenttest.BytesIn("payload")))
	sink, out := componenttest.BytesOut()
	require.NoError(t, h.SetOutput(component.DefaultStream, out))

	require.NoError(t, componenttest.Run(t, h))
	assert.Equal(t, "payload\n|fast\n", sink.String())
}

func TestHTTPServiceRetriesAndSkips(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body := strings.TrimSpace(string(b))
		switch {
		case body == "bad":
			http.Error(w, "no", http.StatusBadRequest)
		case calls.Add(1) == 1:
			http.Error(w, "busy", http.StatusServiceUnavailable)
		default:
			_, _ = w.Write([]byte("ok:" + body))
		}
	}))
	defer srv.Close()

	h := componenttest.Build(t, NewHTTPServiceStreamTransformer, HTTPServiceStreamTransformerClass, config.Node{
		"apiURI":      srv.URL,
		"delimiterIn": "##",
	})
	require.NoError(t, h.SetInput(component.DefaultStream, componenttest.BytesIn("good\n##\nbad\n")))
	sink, out := componenttest.BytesOut()
	require.NoError(t, h.SetOutput(component.DefaultStream, out))

	require.NoError(t, componenttest.Run(t, h))
	assert.Equal(t, "ok:good\n", sink.String())
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPServiceConfig(t *testing.T) {
	for _, node := range []config.Node{
		{},
		{"apiURI": "not a url"},
		{"apiURI": "http://x", "useDataAsParam": "body"},
		{"apiURI": "http://x", "useDataAsParam": "cookie:::x"},
		{"apiURI": "http://x", "useDataAsParam": "path:::x"},
	} {
		_, err := componenttest.BuildErr(NewHTTPServiceStreamTransformer, HTTPServiceStreamTransformerClass, node)
		assert.Error(t, err, "%v", node)
	}
}
