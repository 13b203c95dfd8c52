// Package binder compiles metric SQL templates that use "?" as the client
// placeholder into positional pgx statements, and binds a client id to them.
package binder

import (
	"errors"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrParamMismatch is returned when a statement's declared parameter count
// disagrees with the arguments supplied to it.
var ErrParamMismatch = errors.New("binder: parameter count mismatch")

// Statement is a compiled template. Params is fixed at compile time and every
// parameter slot receives the same client id.
type Statement struct {
	Name   string
	SQL    string
	Params int
}

// Compile rewrites every "?" placeholder in template to $1..$N.
//
// Question marks inside single-quoted literals, double-quoted identifiers,
// "--" line comments, "/* */" block comments (nested as Postgres nests them)
// and dollar-quoted strings such as $$...$$ or $fn$...$fn$ are left alone.
// "??" emits a literal "?".
func Compile(name, template string) Statement {
	var b strings.Builder
	b.Grow(len(template) + 16)

	n := 0
	inQuote, inIdent, inComment := false, false, false
	depth := 0
	for i := 0; i < len(template); i++ {
		c := template[i]
		switch {
		case depth > 0:
			switch {
			case c == '/' && next(template, i) == '*':
				depth++
				b.WriteString("/*")
				i++
				continue
			case c == '*' && next(template, i) == '/':
				depth--
				b.WriteString("*/")
				i++
				continue
			}
		case inComment:
			if c == '\n' {
				inComment = false
			}
		case inQuote:
			if c == '\'' {
				inQuote = false
			}
		case inIdent:
			if c == '"' {
				inIdent = false
			}
		case c == '\'':
			inQuote = true
		case c == '"':
			inIdent = true
		case c == '-' && next(template, i) == '-':
			inComment = true
		case c == '/' && next(template, i) == '*':
			depth = 1
			b.WriteString("/*")
			i++
			continue
		case c == '$':
			if tag, ok := dollarTag(template, i); ok {
				body := len(template)
				if j := strings.Index(template[i+len(tag):], tag); j >= 0 {
					body = i + len(tag) + j + len(tag)
				}
				b.WriteString(template[i:body])
				i = body - 1
				continue
			}
		case c == '?':
			if next(template, i) == '?' {
				b.WriteByte('?')
				i++
				continue
			}
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(c)
	}

	return Statement{Name: name, SQL: b.String(), Params: n}
}

func next(s string, i int) byte {
	if i+1 < len(s) {
		return s[i+1]
	}
	return 0
}

// dollarTag returns the opening delimiter of a dollar-quoted string starting
// at s[i], e.g. "$$" or "$body$". Positional parameters such as $1 are not
// tags because a tag cannot start with a digit.
func dollarTag(s string, i int) (string, bool) {
	for j := i + 1; j < len(s); j++ {
		c := s[j]
		switch {
		case c == '$':
			return s[i : j+1], true
		case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80:
		case c >= '0' && c <= '9' && j > i+1:
		default:
			return "", false
		}
	}
	return "", false
}

// MustCompile compiles template and panics when it does not carry exactly
// want placeholders. Use it for statements built at package init.
func MustCompile(name, template string, want int) Statement {
	st := Compile(name, template)
	if st.Params != want {
		panic(eris.Errorf("binder: %s declares %d parameters, template has %d", name, want, st.Params))
	}
	return st
}

// Bind returns the positional arguments for st, one copy of clientID per
// parameter slot.
func (st Statement) Bind(clientID int64) ([]any, error) {
	args := make([]any, st.Params)
	for i := range args {
		args[i] = clientID
	}
	if err := st.Check(args); err != nil {
		return nil, err
	}
	return args, nil
}

// Check asserts that args fills every parameter slot of st.
func (st Statement) Check(args []any) error {
	if len(args) != st.Params {
		return eris.Wrapf(ErrParamMismatch, "%s: want %d, got %d", st.Name, st.Params, len(args))
	}
	return nil
}
