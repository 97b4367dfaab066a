package scenarios

import (
	"fmt"
	"strings"
	"time"

	"github.com/ircconform/irctest-go/internal/testharness/engine"
)

// FragmentDelay separates the chunks of a fragmented write.
const FragmentDelay = 20 * time.Millisecond

func robustnessScenarios() []*engine.Scenario {
	return []*engine.Scenario{
		{
			Name:        "Robustness: partial command assembly",
			Description: "A command split over several writes is assembled into one line",
			Tags:        []string{"robustness"},
			Run:         partialCommandAssembly,
		},
		{
			Name:        "Robustness: slow reader doesn't block others",
			Description: "A client that stops reading must not stall delivery to others",
			Tags:        []string{"robustness", "slow"},
			Run:         slowReaderDoesNotBlock,
		},
		{
			Name:        "Robustness: abrupt disconnect doesn't hang server",
			Description: "A reset connection leaves the server responsive",
			Tags:        []string{"robustness"},
			Run:         abruptDisconnect,
		},
	}
}

// SendFragments writes the chunks back to back without adding terminators,
// sleeping delay between writes.
func SendFragments(tc *engine.Context, label string, delay time.Duration, chunks ...string) {
	c := tc.Conn(label)
	for i, chunk := range chunks {
		if i > 0 {
			tc.Sleep(delay)
		}
		tc.SendRaw(c, []byte(chunk))
	}
}

func partialCommandAssembly(tc *engine.Context) error {
	conns := RegisterAll(tc,
		Registration{Label: "PC1", Nick: "pa"},
		Registration{Label: "PC2", Nick: "pb"},
	)
	_, b := conns[0], conns[1]
	Join(tc, "#p", conns...)

	SendFragments(tc, "PC1", FragmentDelay, "PRIV", "MSG #p :hello ", "world\r\n")

	line := expectCommand(tc, b, "PRIVMSG", "Server must assemble fragmented lines")
	if !strings.Contains(line, "hello world") {
		tc.Failf("fragmented PRIVMSG arrived altered: %s", line)
	}
	return nil
}

func slowReaderDoesNotBlock(tc *engine.Context) error {
	conns := RegisterAll(tc,
		Registration{Label: "SLOW", Nick: "slow"},
		Registration{Label: "FAST", Nick: "fast"},
		Registration{Label: "CTRL", Nick: "ctrl"},
	)
	slow, fast, ctrl := conns[0], conns[1], conns[2]
	Join(tc, "#f", slow, fast)

	// SLOW stops draining its socket from here on.
	slow.Pause()

	// Each PING gets its own deadline counted from its send.
	var pending []PendingPong
	for i := 0; i < 50; i++ {
		tc.SendCommand(fast, "PRIVMSG", "#f", fmt.Sprintf("msg %d", i))
		if i%10 == 0 {
			pending = append(pending, SendPing(tc, ctrl, fmt.Sprintf("tick-%d", i), ProbeTimeout))
		}
	}
	AwaitPongs(tc, ctrl, pending...)

	slow.Resume()
	DrainUntilSilent(tc, slow, 200*time.Millisecond)
	return nil
}

func abruptDisconnect(tc *engine.Context) error {
	conns := RegisterAll(tc,
		Registration{Label: "AB1", Nick: "alive"},
		Registration{Label: "AB2", Nick: "boom"},
	)
	a, b := conns[0], conns[1]
	Join(tc, "#ab", b)

	if err := b.Abort(); err != nil {
		tc.Logf("abort: %v", err)
	}
	// A write on the reset connection is expected to fail.
	if err := b.Send("PING late"); err == nil {
		tc.Failf("write after abort succeeded on %s", b.Label())
	}

	tc.SendCommand(a, "PING", "server")
	expectCommand(tc, a, "PONG", "Server should remain responsive after peer abort")
	return nil
}
