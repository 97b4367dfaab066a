package wire

import (
	"errors"
	"strings"
)

// ErrEmptyLine is returned by Parse for a line without a command.
var ErrEmptyLine = errors.New("empty line")

// Message is a parsed protocol line.
type Message struct {
	// Prefix is the origin without the leading ':' (empty if absent).
	Prefix string

	// Command is the command word or three-digit numeric, as sent.
	Command string

	// Params are the middle parameters followed by the trailing one, if any.
	Params []string

	// HasTrailing reports whether the last param was introduced by " :".
	HasTrailing bool
}

// Parse splits a line into its prefix, command and parameters.
func Parse(line string) (*Message, error) {
	line = strings.TrimRight(line, "\r\n")
	m := &Message{}

	if strings.HasPrefix(line, ":") {
		sp := strings.IndexByte(line, ' ')
		if sp < 0 {
			return nil, ErrEmptyLine
		}
		m.Prefix = line[1:sp]
		line = line[sp+1:]
	}

	line = strings.TrimLeft(line, " ")
	if line == "" {
		return nil, ErrEmptyLine
	}

	for line != "" {
		if strings.HasPrefix(line, ":") && m.Command != "" {
			m.Params = append(m.Params, line[1:])
			m.HasTrailing = true
			break
		}
		word := line
		rest := ""
		if sp := strings.IndexByte(line, ' '); sp >= 0 {
			word, rest = line[:sp], strings.TrimLeft(line[sp+1:], " ")
		}
		if m.Command == "" {
			m.Command = word
		} else {
			m.Params = append(m.Params, word)
		}
		line = rest
	}

	return m, nil
}

// Param returns the i-th parameter or "" when out of range.
func (m *Message) Param(i int) string {
	if i < 0 || i >= len(m.Params) {
		return ""
	}
	return m.Params[i]
}

// Trailing returns the trailing parameter, or "" when there is none.
func (m *Message) Trailing() string {
	if !m.HasTrailing || len(m.Params) == 0 {
		return ""
	}
	return m.Params[len(m.Params)-1]
}

// Nick returns the nickname part of a "nick!user@host" prefix.
func (m *Message) Nick() string {
	if i := strings.IndexAny(m.Prefix, "!@"); i >= 0 {
		return m.Prefix[:i]
	}
	return m.Prefix
}

// FormatCommand builds a command line without terminator.
//
// Params are separated by single spaces. A param that is empty, contains a
// space or starts with ':' cannot be a middle param; it becomes the trailing
// param, and any later params are folded into the same trailing text.
func FormatCommand(cmd string, params ...string) string {
	parts := []string{cmd}
	var trailing *string
	for _, p := range params {
		if trailing != nil {
			t := *trailing + " " + p
			trailing = &t
			continue
		}
		if p == "" || strings.Contains(p, " ") || strings.HasPrefix(p, ":") {
			t := p
			trailing = &t
			continue
		}
		parts = append(parts, p)
	}
	if trailing != nil {
		parts = append(parts, ":"+*trailing)
	}
	return strings.Join(parts, " ")
}

// FormatWithTrailing builds a command line whose last param is always sent
// as trailing text, even when it has no spaces.
func FormatWithTrailing(cmd string, trailing string, params ...string) string {
	return FormatCommand(cmd, params...) + " :" + trailing
}
