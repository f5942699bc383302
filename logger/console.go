package logger

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

const colorReset = "\033[0m"

var levelStyles = map[string]struct{ tag, color string }{
	"trace": {"TRC", ""},
	"debug": {"DBG", "\033[36m"},
	"info":  {"INF", "\033[32m"},
	"warn":  {"WRN", "\033[33m"},
	"error": {"ERR", "\033[31m"},
	"fatal": {"FTL", "\033[35m"},
	"panic": {"PNC", "\033[35m"},
}

// consoleWriter renders lines as "15:04:05 [FIN][INF] message key:value".
func consoleWriter(w io.Writer, service string, noColor bool) zerolog.ConsoleWriter {
	paint := func(color, s string) string {
		if noColor || color == "" {
			return s
		}
		return color + s + colorReset
	}
	prefix := ""
	if len(service) >= 3 {
		prefix = paint("\033[34m", "["+strings.ToUpper(service[:3])+"]")
	}
	str := func(i interface{}) string {
		if i == nil {
			return ""
		}
		return fmt.Sprint(i)
	}

	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
		NoColor:    noColor,
		FormatLevel: func(i interface{}) string {
			lvl := str(i)
			style, ok := levelStyles[lvl]
			if !ok {
				return prefix + "[" + strings.ToUpper(lvl) + "]"
			}
			return prefix + paint(style.color, "["+style.tag+"]")
		},
		FormatMessage:    str,
		FormatFieldName:  func(i interface{}) string { return str(i) + ":" },
		FormatFieldValue: str,
	}
}
