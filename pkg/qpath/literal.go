package qpath

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Kind is the type of a predicate value literal.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	}
	return "unknown"
}

// Value is an evaluated predicate literal.
type Value struct {
	Kind  Kind
	Str   string
	Int   int64
	Float float64
	Bool  bool
}

// StringValue returns a string literal value.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// IntValue returns an integer literal value.
func IntValue(i int64) Value { return Value{Kind: KindInt, Int: i} }

// BoolValue returns a boolean literal value.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Text returns the value the way a control property would spell it.
func (v Value) Text() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindBool:
		if v.Bool {
			return "True"
		}
		return "False"
	}
	return v.Str
}

// Literal renders the value as a literal that parseLiteral reads back.
func (v Value) Literal() string {
	if v.Kind == KindFloat {
		t := v.Text()
		if !strings.ContainsAny(t, ".eEIN") {
			t += ".0"
		}
		return t
	}
	if v.Kind != KindString {
		return v.Text()
	}
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range v.Str {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// Equal reports whether two values have the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		return v.Float == o.Float || (math.IsNaN(v.Float) && math.IsNaN(o.Float))
	case KindBool:
		return v.Bool == o.Bool
	}
	return v.Str == o.Str
}

// Matches compares the literal against a property value as reported by a
// control. Numbers compare numerically, booleans case-insensitively.
func (v Value) Matches(actual string) bool {
	if v.Kind == KindString {
		return actual == v.Str
	}
	actual = strings.TrimSpace(actual)
	switch v.Kind {
	case KindInt:
		if n, err := parseInteger(actual); err == nil {
			return n == v.Int
		}
		if f, err := strconv.ParseFloat(actual, 64); err == nil {
			return f == float64(v.Int)
		}
		return false
	case KindFloat:
		f, err := strconv.ParseFloat(actual, 64)
		return err == nil && f == v.Float
	case KindBool:
		b, err := strconv.ParseBool(strings.ToLower(actual))
		return err == nil && b == v.Bool
	}
	return false
}

// parseLiteral evaluates the restricted literal grammar used for predicate
// values: quoted strings, integers, floats and booleans. Anything else is
// rejected; there is no expression evaluation.
func parseLiteral(src string) (Value, error) {
	s := strings.TrimSpace(src)
	if s == "" {
		return Value{}, fmt.Errorf("empty value")
	}
	switch s {
	case "True", "true":
		return BoolValue(true), nil
	case "False", "false":
		return BoolValue(false), nil
	}

	prefix, body := splitStringPrefix(s)
	if len(body) > 0 && (body[0] == '\'' || body[0] == '"') {
		raw := strings.ContainsAny(prefix, "rR")
		str, rest, err := readQuoted(body, raw)
		if err != nil {
			return Value{}, err
		}
		if strings.TrimSpace(rest) != "" {
			return Value{}, fmt.Errorf("unexpected %q after string literal", rest)
		}
		return StringValue(str), nil
	}

	if i, err := parseInteger(s); err == nil {
		return IntValue(i), nil
	}
	if isFloatLiteral(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Value{Kind: KindFloat, Float: f}, nil
		}
	}
	return Value{}, fmt.Errorf("%q is not a string, number or boolean literal", s)
}

// splitStringPrefix separates an optional u/r string prefix ("u", "r",
// "ur", "ru" in any case) from the quoted body.
func splitStringPrefix(s string) (string, string) {
	n := 0
	for n < len(s) && n < 2 && strings.IndexByte("uUrR", s[n]) >= 0 {
		n++
	}
	if n > 0 && n < len(s) && (s[n] == '\'' || s[n] == '"') {
		return s[:n], s[n:]
	}
	return "", s
}

// parseInteger accepts an optionally signed decimal integer or a 0x hex
// integer. Octal, binary and underscore separators are rejected.
func parseInteger(s string) (int64, error) {
	body := s
	neg := false
	if len(body) > 0 && (body[0] == '+' || body[0] == '-') {
		neg = body[0] == '-'
		body = body[1:]
	}
	if len(body) > 2 && body[0] == '0' && (body[1] == 'x' || body[1] == 'X') {
		u, err := strconv.ParseUint(body[2:], 16, 64)
		if err != nil {
			return 0, err
		}
		if neg {
			if u > 1<<63 {
				return 0, strconv.ErrRange
			}
			return -int64(u), nil
		}
		if u > 1<<63-1 {
			return 0, strconv.ErrRange
		}
		return int64(u), nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// isFloatLiteral restricts ParseFloat to plain decimal notation so that
// words like "Inf" or "NaN" are not taken as numbers.
func isFloatLiteral(s string) bool {
	digits := 0
	for i, c := range s {
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '+' || c == '-':
			if i != 0 && s[i-1] != 'e' && s[i-1] != 'E' {
				return false
			}
		case c == '.' || c == 'e' || c == 'E':
		default:
			return false
		}
	}
	return digits > 0
}

// readQuoted reads one quoted string starting at s[0] and returns the
// decoded content plus whatever follows the closing quote.
func readQuoted(s string, raw bool) (string, string, error) {
	quote := s[0]
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		if c == quote {
			return b.String(), s[i+1:], nil
		}
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(s) {
			break
		}
		i++
		e := s[i]
		if raw {
			b.WriteByte('\\')
			b.WriteByte(e)
			continue
		}
		switch e {
		case '\\', '\'', '"':
			b.WriteByte(e)
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'x', 'u':
			width := 2
			if e == 'u' {
				width = 4
			}
			if i+width >= len(s) {
				return "", "", fmt.Errorf("truncated \\%c escape", e)
			}
			n, err := strconv.ParseUint(s[i+1:i+1+width], 16, 32)
			if err != nil {
				return "", "", fmt.Errorf("invalid \\%c escape: %w", e, err)
			}
			var buf [utf8.UTFMax]byte
			w := utf8.EncodeRune(buf[:], rune(n))
			b.Write(buf[:w])
			i += width
		default:
			// unknown escapes are kept verbatim, e.g. regex classes like \d
			b.WriteByte('\\')
			b.WriteByte(e)
		}
	}
	return "", "", fmt.Errorf("unterminated string literal")
}
