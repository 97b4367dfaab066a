package assertions

import (
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errEnded = errors.New("ended")

// scriptedSource yields lines at fixed offsets from its creation.
type scriptedSource struct {
	mu     sync.Mutex
	start  time.Time
	lines  []timedLine
	endAt  time.Duration
	ends   bool
	served int
}

type timedLine struct {
	at   time.Duration
	text string
}

func newSource(lines ...timedLine) *scriptedSource {
	return &scriptedSource{start: time.Now(), lines: lines}
}

func (s *scriptedSource) Label() string { return "S" }

func (s *scriptedSource) NextLine(slice time.Duration) (string, bool, error) {
	deadline := time.Now().Add(slice)
	for {
		s.mu.Lock()
		now := time.Since(s.start)
		if s.served < len(s.lines) && s.lines[s.served].at <= now {
			line := s.lines[s.served].text
			s.served++
			s.mu.Unlock()
			return line, true, nil
		}
		if s.ends && s.served == len(s.lines) && now >= s.endAt {
			s.mu.Unlock()
			return "", false, errEnded
		}
		s.mu.Unlock()
		if !time.Now().Before(deadline) {
			return "", false, nil
		}
		time.Sleep(time.Millisecond)
	}
}

func TestExpectSkipsUnrelatedLines(t *testing.T) {
	src := newSource(
		timedLine{0, ":server NOTICE * :Looking up your hostname"},
		timedLine{10 * time.Millisecond, ":server 001 alice :Welcome"},
		timedLine{20 * time.Millisecond, ":server 433 * alice :Nickname is already in use"},
	)

	m := Expect(src, regexp.MustCompile(`\s433\s`), time.Second)

	require.True(t, m.Matched, m.String())
	assert.Equal(t, ":server 433 * alice :Nickname is already in use", m.Line)
	assert.Len(t, m.Seen, 3)
	assert.NoError(t, m.AsError())
}

func TestExpectTimeoutIsBounded(t *testing.T) {
	src := newSource(timedLine{0, ":server 001 alice :Welcome"})
	timeout := 100 * time.Millisecond

	start := time.Now()
	m := Expect(src, regexp.MustCompile(`never`), timeout)
	elapsed := time.Since(start)

	assert.False(t, m.Matched)
	assert.False(t, m.Closed)
	assert.Equal(t, []string{":server 001 alice :Welcome"}, m.Seen)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+DefaultPoll+50*time.Millisecond)
	assert.ErrorIs(t, m.AsError(), ErrNoMatch)
	assert.Contains(t, m.String(), "received 1 line(s)")
}

func TestExpectLineAfterDeadlineIsNotMatched(t *testing.T) {
	src := newSource(timedLine{300 * time.Millisecond, ":server PONG server :x"})

	m := Expect(src, regexp.MustCompile(`PONG`), 80*time.Millisecond)
	assert.False(t, m.Matched)
	assert.Empty(t, m.Seen)
	assert.Contains(t, m.String(), "no lines received")
}

func TestExpectZeroTimeoutSeesBufferedLine(t *testing.T) {
	src := newSource(timedLine{0, ":server PONG server :x"})
	m := Expect(src, regexp.MustCompile(`PONG`), 0)
	assert.True(t, m.Matched)
}

func TestExpectStopsWhenSourceEnds(t *testing.T) {
	src := newSource(timedLine{0, "ERROR :Closing link"})
	src.ends = true

	start := time.Now()
	m := Expect(src, regexp.MustCompile(`PONG`), 5*time.Second)

	assert.False(t, m.Matched)
	assert.True(t, m.Closed)
	assert.ErrorIs(t, m.Err, errEnded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Contains(t, m.String(), "before connection ended")
}

func TestExpectHonoursPoll(t *testing.T) {
	src := newSource(timedLine{30 * time.Millisecond, "late"})
	m := Expect(src, regexp.MustCompile(`late`), time.Second, WithPoll(5*time.Millisecond))
	assert.True(t, m.Matched)
	assert.Less(t, m.Elapsed, 500*time.Millisecond)
}

func TestExpectAbsent(t *testing.T) {
	src := newSource(timedLine{0, ":bob!b@h PART #c"})
	m := ExpectAbsent(src, regexp.MustCompile(`PRIVMSG`), 50*time.Millisecond)
	assert.True(t, m.Matched)

	src = newSource(timedLine{0, ":bob!b@h PRIVMSG #c :hi"})
	m = ExpectAbsent(src, regexp.MustCompile(`PRIVMSG`), 50*time.Millisecond)
	assert.False(t, m.Matched)
}

func TestDrain(t *testing.T) {
	src := newSource(
		timedLine{0, "a"},
		timedLine{10 * time.Millisecond, "b"},
		timedLine{400 * time.Millisecond, "c"},
	)
	lines := Drain(src, 60*time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, lines)
}

func TestNumericPattern(t *testing.T) {
	tests := []struct {
		code, contains, line string
		want                 bool
	}{
		{"433", "", ":server 433 * alice :Nickname is already in use", true},
		{"433", "alice", ":server 433 * alice :Nickname is already in use", true},
		{"433", "bob", ":server 433 * alice :Nickname is already in use", false},
		{"001", "", ":server 0010 alice :x", false},
		{"001", "", ":alice!u@h PRIVMSG #c :001 in text", false},
		{"353", "#c", ":server 353 alice = #c :@alice", true},
	}
	for _, tt := range tests {
		got := NumericPattern(tt.code, tt.contains).MatchString(tt.line)
		assert.Equal(t, tt.want, got, "code=%s contains=%q line=%q", tt.code, tt.contains, tt.line)
	}
}

func TestCommandPattern(t *testing.T) {
	re := CommandPattern("privmsg")
	assert.True(t, re.MatchString(":alice!u@h PRIVMSG #c :hi"))
	assert.False(t, re.MatchString(":alice!u@h PRIVMSGX #c :hi"))
	assert.False(t, re.MatchString("PRIVMSG #c :hi"))
}

func TestNumericSpecStrictness(t *testing.T) {
	spec := Numeric("461").WithContains("PASS").WithWording("* PASS :Not enough parameters")

	exact := ":server 461 * PASS :Not enough parameters"
	loose := ":server 461 * PASS :Need more params"

	assert.True(t, spec.Pattern(false).MatchString(exact))
	assert.True(t, spec.Pattern(false).MatchString(loose))
	assert.True(t, spec.Pattern(true).MatchString(exact))
	assert.False(t, spec.Pattern(true).MatchString(loose))

	noWording := Numeric("001")
	assert.True(t, noWording.Pattern(true).MatchString(":server 001 alice :Welcome"))
	assert.Equal(t, "461 (PASS)", spec.String())
}
