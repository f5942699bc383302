package segment

import (
	"bufio"
	"io"
	"strings"
)

const maxLineSize = 16 * 1024 * 1024

// Chunker cuts a serialized byte stream into segment texts.
//
// With Split unset the whole stream is one chunk. With Split set and an
// empty Delimiter every line is its own chunk. Otherwise a line equal to
// Delimiter closes the current chunk. Blank trailing chunks are dropped.
type Chunker struct {
	Split     bool
	Delimiter string
}

// Each calls fn for every chunk in r, stopping at the first error.
func (c Chunker) Each(r io.Reader, fn func(chunk string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)

	var cur strings.Builder
	for sc.Scan() {
		line := sc.Text()
		switch {
		case c.Split && c.Delimiter == "":
			if err := fn(line + "\n"); err != nil {
				return err
			}
		case c.Split && line == c.Delimiter:
			if err := fn(cur.String()); err != nil {
				return err
			}
			cur.Reset()
		default:
			cur.WriteString(line)
			cur.WriteByte('\n')
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(cur.String()) != "" {
		return fn(cur.String())
	}
	return nil
}
