// Package dumpsys parses the text produced by `dumpsys window` and
// `dumpsys activity activities`.
//
// Both parsers are best effort: the dump formats change between Android
// releases and vendor builds, so lines that are not recognised are skipped
// rather than reported as errors.
package dumpsys

import (
	"strings"

	"github.com/rs/zerolog"
)

// Option configures a parser.
type Option func(*options)

type options struct {
	log zerolog.Logger
}

// WithLogger sets the logger used for skipped and suspicious lines.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

func newOptions(opts []Option) options {
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// splitLines normalises CRLF output from adb and splits it into lines.
func splitLines(raw string) []string {
	return strings.Split(strings.ReplaceAll(raw, "\r", ""), "\n")
}

// scanFields calls fn for every `key=value` token of line whose key is in
// keys. Tokens are separated by single spaces as dumpsys prints them.
func scanFields(line string, keys []string, fn func(key, val string)) {
	for _, item := range strings.Split(line, " ") {
		pos := strings.IndexByte(item, '=')
		if pos < 0 {
			continue
		}
		key := item[:pos]
		for _, k := range keys {
			if k == key {
				fn(key, item[pos+1:])
				break
			}
		}
	}
}

// indent returns the number of leading spaces.
func indent(line string) int {
	return len(line) - len(strings.TrimLeft(line, " "))
}

// qualifiedName expands a component name: "pkg/.Cls" becomes "pkg.Cls" and
// "pkg/Cls" becomes "Cls". Names without a slash are returned unchanged.
func qualifiedName(s string) string {
	pkg, cls, ok := strings.Cut(s, "/")
	if !ok {
		return s
	}
	if strings.HasPrefix(cls, ".") {
		return pkg + cls
	}
	return cls
}
