package scenarios

import (
	"slices"
	"time"

	"github.com/ircconform/irctest-go/internal/testharness/assertions"
	"github.com/ircconform/irctest-go/internal/testharness/engine"
	"github.com/ircconform/irctest-go/pkg/transport"
)

// Reply checks shared by the strict scenarios. Wording is only enforced
// when the run is strict.
var (
	replyPassMissing   = assertions.Numeric("461").WithContains("PASS").WithWording("* PASS :Not enough parameters")
	replyPassIncorrect = assertions.Numeric("464").WithWording("* :Password incorrect")
	replyUserMissing   = assertions.Numeric("461").WithContains("USER").WithWording("* USER :Not enough parameters")
	replyNoNick        = assertions.Numeric("431").WithWording("* :No nickname given")
	replyBadNick       = assertions.Numeric("432").WithContains("bad nick").WithWording("* bad nick :Erroneous nickname")
	replyNickInUse     = assertions.Numeric("433").WithContains("taken").WithWording("* taken :Nickname is already in use")
	replyReregister    = assertions.Numeric("462").WithWording("* :You may not reregister")
	replyNotRegistered = assertions.Numeric("451").WithWording("* :You have not registered")
)

func strictScenarios() []*engine.Scenario {
	return []*engine.Scenario{
		{Name: "PASS missing -> 461", Tags: []string{"strict", "auth"}, Run: passMissing},
		{Name: "PASS wrong -> 464", Tags: []string{"strict", "auth"}, Run: passWrong},
		{Name: "Unauthed NICK -> 464", Tags: []string{"strict", "auth"}, Run: unauthedNick},
		{Name: "USER missing params -> 461", Tags: []string{"strict", "registration"}, Run: userMissingParams},
		{Name: "Register -> 001/002/003/004", Tags: []string{"strict", "registration"}, Run: welcomeBurst},
		{Name: "NICK missing -> 431", Tags: []string{"strict", "nick"}, Run: nickMissing},
		{Name: "NICK erroneous -> 432", Tags: []string{"strict", "nick"}, Run: nickErroneous},
		{Name: "NICK in use -> 433", Tags: []string{"strict", "nick"}, Run: nickInUse},
		{Name: "USER after registration -> 462", Tags: []string{"strict", "registration"}, Run: reregister},
		{Name: "Before registration JOIN -> 451", Tags: []string{"strict", "registration"}, Run: unregisteredGuard},
		{Name: "PING -> PONG", Tags: []string{"strict"}, Run: pingPong},
		{
			Name:        "Core commands smoke (JOIN/PART/PRIVMSG/NOTICE/MODE/TOPIC/NAMES/LIST/INVITE/KICK/WHO/WHOIS/QUIT)",
			Description: "Every core command is understood after registration",
			Tags:        []string{"strict", "smoke"},
			Run:         coreCommandsSmoke,
		},
	}
}

func requirePassword(tc *engine.Context) string {
	pw := tc.Password()
	if pw == "" {
		tc.Skipf("server password not configured")
	}
	return pw
}

// sendPass sends PASS when a password is configured.
func sendPass(tc *engine.Context, c *transport.Conn) {
	if pw := tc.Password(); pw != "" {
		tc.SendCommand(c, "PASS", pw)
	}
}

func passMissing(tc *engine.Context) error {
	c := tc.Open("A")
	tc.Send(c, "PASS")
	tc.RequireNumeric(c, replyPassMissing)
	return nil
}

func passWrong(tc *engine.Context) error {
	pw := requirePassword(tc)
	c := tc.Open("A")
	tc.SendCommand(c, "PASS", "wrong"+pw)
	tc.RequireNumeric(c, replyPassIncorrect)
	return nil
}

func unauthedNick(tc *engine.Context) error {
	requirePassword(tc)
	c := tc.Open("A")
	tc.Send(c, "NICK foo")
	tc.RequireNumeric(c, replyPassIncorrect)
	return nil
}

func userMissingParams(tc *engine.Context) error {
	c := tc.Open("A")
	sendPass(tc, c)
	tc.Send(c, "USER onlyoneparam")
	tc.RequireNumeric(c, replyUserMissing)
	return nil
}

func welcomeBurst(tc *engine.Context) error {
	c := tc.Open("A")
	tc.Check(RegisterConn(tc, c, Registration{Nick: "alice", User: "aliceu"}))

	if tc.Strict() {
		// 001 was consumed by registration; check its wording in the log.
		welcome := assertions.Numeric("001").WithWording("alice :Welcome").Pattern(true)
		if !slices.ContainsFunc(c.Lines(), welcome.MatchString) {
			tc.Failf("[%s] 001 does not match /%s/", c.Label(), welcome)
		}
	}

	tc.RequireNumeric(c, assertions.Numeric("002").WithWording("alice :Your host is"), ProbeTimeout)
	tc.RequireNumeric(c, assertions.Numeric("003").WithWording("alice :This server was created"), 1200*time.Millisecond)
	tc.RequireNumeric(c, assertions.Numeric("004").WithContains("alice").WithWording("alice server 1.0 o o"), 1200*time.Millisecond)
	return nil
}

func nickMissing(tc *engine.Context) error {
	c := tc.Open("A")
	sendPass(tc, c)
	tc.Send(c, "NICK")
	tc.RequireNumeric(c, replyNoNick)
	return nil
}

func nickErroneous(tc *engine.Context) error {
	c := tc.Open("A")
	sendPass(tc, c)
	tc.Send(c, "NICK bad nick")
	tc.RequireNumeric(c, replyBadNick)
	return nil
}

func nickInUse(tc *engine.Context) error {
	RegisterNick(tc, "A", "taken")
	b := tc.Open("B")
	sendPass(tc, b)
	tc.Send(b, "NICK taken")
	tc.RequireNumeric(b, replyNickInUse)
	return nil
}

func reregister(tc *engine.Context) error {
	c := RegisterNick(tc, "A", "rr")
	tc.Send(c, "USER rr host server :Real Again")
	tc.RequireNumeric(c, replyReregister)
	return nil
}

func unregisteredGuard(tc *engine.Context) error {
	c := tc.Open("A")
	sendPass(tc, c)
	tc.Send(c, "JOIN #test")
	tc.RequireNumeric(c, replyNotRegistered)
	return nil
}

func pingPong(tc *engine.Context) error {
	c := RegisterNick(tc, "A", "pinger")
	tc.Send(c, "PING 12345")
	pattern := `\sPONG\b.*12345`
	if tc.Strict() {
		pattern = `^:\S+ PONG \S+ :12345$`
	}
	tc.RequirePattern(c, pattern)
	return nil
}

func coreCommandsSmoke(tc *engine.Context) error {
	conns := RegisterAll(tc,
		Registration{Label: "A", Nick: "u1"},
		Registration{Label: "B", Nick: "u2"},
	)
	a, b := conns[0], conns[1]

	Join(tc, "#room", a, b)
	tc.Send(a, "PRIVMSG #room :hello room")
	tc.Send(b, "PRIVMSG u1 :hi u1")
	tc.Send(a, "NOTICE #room :notice msg")
	tc.Send(a, "WHO #room")
	tc.Send(a, "WHOIS u2")
	tc.Send(a, "MODE #room")
	tc.Send(a, "MODE u1")
	tc.Send(a, "TOPIC #room :Welcome here")
	tc.Send(a, "NAMES #room")
	tc.Send(a, "LIST")
	tc.Send(a, "INVITE u2 #room")
	tc.Send(a, "KICK #room u2 :bye")
	tc.Send(b, "PART #room :leaving")
	tc.Send(b, "QUIT :bye")

	got := append(DrainUntilSilent(tc, a, 300*time.Millisecond), DrainUntilSilent(tc, b, 50*time.Millisecond)...)
	if len(got) == 0 {
		tc.Failf("no responses captured")
	}
	unknown := assertions.NumericPattern("421", "")
	for _, line := range got {
		if unknown.MatchString(line) {
			tc.Failf("core command rejected as unknown: %s", line)
		}
	}
	return nil
}
