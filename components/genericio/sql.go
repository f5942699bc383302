package genericio

import (
	"bufio"
	"context"
	"database/sql"
	"os"
	"strings"

	"github.com/Pret-a-LLOD/Fintan/component"
	"github.com/Pret-a-LLOD/Fintan/database"
	apperrors "github.com/Pret-a-LLOD/Fintan/errors"
	"github.com/Pret-a-LLOD/Fintan/logger"
	"github.com/Pret-a-LLOD/Fintan/stream"
)

// CSVFormat describes how result rows are rendered.
type CSVFormat struct {
	EscapeChar   string `mapstructure:"escapeChar"`
	DelimiterCSV string `mapstructure:"delimiterCSV"`
	QuoteChar    string `mapstructure:"quoteChar"`
	EmptyChar    string `mapstructure:"emptyChar"`
}

// CoNLL renders tab separated columns with "_" for empty values.
var CoNLL = CSVFormat{DelimiterCSV: "\t", EmptyChar: "_"}

var namedFormats = map[string]CSVFormat{"conll": CoNLL}

// Column renders one value.
func (f CSVFormat) Column(v string) string {
	if v == "" {
		return f.EmptyChar
	}
	if f.QuoteChar == "" {
		return v
	}
	if f.EscapeChar != "" {
		v = strings.ReplaceAll(v, f.QuoteChar, f.EscapeChar+f.QuoteChar)
	}
	return f.QuoteChar + v + f.QuoteChar
}

type sqlConfig struct {
	CSVFormat  `mapstructure:",squash"`
	Driver     string  `mapstructure:"driver"`
	ConnectURL string  `mapstructure:"connectUrl" validate:"required"`
	User       string  `mapstructure:"user"`
	Password   string  `mapstructure:"password"`
	Query      string  `mapstructure:"query" validate:"required"`
	Delimiter  *string `mapstructure:"delimiter"`
	OutFormat  string  `mapstructure:"outFormat"`
}

// SQLStreamTransformer runs one query and writes the result rows to its
// default output, optionally followed by a delimiter line per row. It does
// not read input; a connected input is drained.
type SQLStreamTransformer struct {
	*component.Base
	db        *component.Lazy[*database.DB]
	query     string
	format    CSVFormat
	delimiter *string
}

// NewSQLStreamTransformer is the SQLStreamTransformer factory.
func NewSQLStreamTransformer(spec component.Spec, deps component.Dependencies) (component.StreamComponent, error) {
	var cfg sqlConfig
	if err := spec.Node.Decode(&cfg); err != nil {
		return nil, err
	}
	format := cfg.CSVFormat
	if cfg.OutFormat != "" {
		f, ok := namedFormats[strings.ToLower(strings.TrimSpace(cfg.OutFormat))]
		if !ok {
			return nil, apperrors.ConfigInvalid("'" + cfg.OutFormat + "' is no valid outFormat")
		}
		format = f
	}
	query, err := readQuery(cfg.Query)
	if err != nil {
		return nil, err
	}
	dbCfg := database.Config{Driver: cfg.Driver, DSN: cfg.ConnectURL, User: cfg.User, Password: cfg.Password}
	dbCfg.ApplyDefaults()
	if err := dbCfg.Validate(); err != nil {
		return nil, apperrors.ConfigInvalid(err.Error())
	}

	t := &SQLStreamTransformer{
		Base:      component.NewBase(spec, component.CategoryTransformer, deps, component.OptionalInput(), component.OnlyDefaultOutput()),
		query:     query,
		format:    format,
		delimiter: cfg.Delimiter,
	}
	t.db = component.NewLazy("database", func(ctx context.Context) (*database.DB, error) {
		return database.Open(ctx, dbCfg, t.Logger())
	}).WithCloser(func(db *database.DB) error { return db.Close() })
	return t, nil
}

// readQuery accepts either a query or the path of a file holding one.
func readQuery(q string) (string, error) {
	if strings.ContainsAny(q, " \n\t") {
		return q, nil
	}
	b, err := os.ReadFile(q)
	if err != nil {
		if os.IsNotExist(err) {
			return q, nil
		}
		return "", apperrors.Resource(q, err)
	}
	return string(b), nil
}

func (t *SQLStreamTransformer) Start(ctx context.Context) error {
	defer func() { _ = t.db.Close() }()
	for _, name := range t.InputNames() {
		t.Logger().Info("input is ignored", logger.Fields(logger.FieldStream, name))
		if err := stream.Drain(ctx, t.Input(name)); err != nil {
			return err
		}
	}

	db, err := t.db.Get(ctx)
	if err != nil {
		return err
	}
	rows, err := db.Rows(ctx, t.query)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	n, err := t.write(ctx, rows)
	if err != nil {
		return err
	}
	t.Logger().Debug("query finished", logger.Fields(logger.FieldCount, n))
	t.MarkDraining()
	return t.TerminateOutputs()
}

func (t *SQLStreamTransformer) write(ctx context.Context, rows *sql.Rows) (int, error) {
	cols, err := rows.Columns()
	if err != nil {
		return 0, database.FromDatabase(err, "query")
	}
	w := bufio.NewWriter(t.Writer(ctx, t.Output(component.DefaultStream)))
	values := make([]sql.NullString, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	n := 0
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return n, database.FromDatabase(err, "query")
		}
		for i, v := range values {
			if i > 0 {
				_, _ = w.WriteString(t.format.DelimiterCSV)
			}
			_, _ = w.WriteString(t.format.Column(v.String))
		}
		_ = w.WriteByte('\n')
		if t.delimiter != nil {
			_, _ = w.WriteString(*t.delimiter + "\n")
		}
		if err := w.Flush(); err != nil {
			return n, err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, database.FromDatabase(err, "query")
	}
	return n, w.Flush()
}
