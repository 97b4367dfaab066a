package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line     string
		prefix   string
		command  string
		params   []string
		trailing bool
	}{
		{":server 001 alice :Welcome to IRC", "server", "001", []string{"alice", "Welcome to IRC"}, true},
		{"PING server", "", "PING", []string{"server"}, false},
		{":a!u@h PRIVMSG #c :hello world", "a!u@h", "PRIVMSG", []string{"#c", "hello world"}, true},
		{"JOIN  #c   key", "", "JOIN", []string{"#c", "key"}, false},
		{"QUIT :", "", "QUIT", []string{""}, true},
		{"NICK\r\n", "", "NICK", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			m, err := Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.prefix, m.Prefix)
			assert.Equal(t, tt.command, m.Command)
			assert.Equal(t, tt.params, m.Params)
			assert.Equal(t, tt.trailing, m.HasTrailing)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	for _, line := range []string{"", "   ", ":prefixonly"} {
		_, err := Parse(line)
		assert.ErrorIs(t, err, ErrEmptyLine, "line %q", line)
	}
}

func TestMessageAccessors(t *testing.T) {
	m, err := Parse(":bob!b@host KICK #key u2 :bye now")
	require.NoError(t, err)
	assert.Equal(t, "bob", m.Nick())
	assert.Equal(t, "#key", m.Param(0))
	assert.Equal(t, "", m.Param(9))
	assert.Equal(t, "bye now", m.Trailing())

	code, ok := m.Numeric()
	assert.False(t, ok)
	assert.Empty(t, code)

	n, err := Parse(":server 433 * bob :Nickname is already in use")
	require.NoError(t, err)
	code, ok = n.Numeric()
	assert.True(t, ok)
	assert.Equal(t, ErrNicknameInUse, code)
}

func TestFormatCommand(t *testing.T) {
	tests := []struct {
		cmd    string
		params []string
		want   string
	}{
		{"PASS", nil, "PASS"},
		{"NICK", []string{"alice"}, "NICK alice"},
		{"NICK", []string{"bad nick"}, "NICK :bad nick"},
		{"PRIVMSG", []string{"#c", "hello channel"}, "PRIVMSG #c :hello channel"},
		{"TOPIC", []string{"#c", ""}, "TOPIC #c :"},
		{"PRIVMSG", []string{"#c", ":x", "y"}, "PRIVMSG #c ::x y"},
		{"MODE", []string{"#m", "+o", "user"}, "MODE #m +o user"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCommand(tt.cmd, tt.params...))
	}
	assert.Equal(t, "USER u host server :Real", FormatWithTrailing("USER", "Real", "u", "host", "server"))
}

func TestNumericHelpers(t *testing.T) {
	assert.True(t, IsNumeric("001"))
	assert.False(t, IsNumeric("+01"))
	assert.False(t, IsNumeric("PING"))
	assert.Equal(t, "ERR_NICKNAMEINUSE", NumericName("433"))
	assert.Equal(t, "999", NumericName("999"))
}
