package scenarios

import (
	"github.com/ircconform/irctest-go/internal/testharness/assertions"
	"github.com/ircconform/irctest-go/internal/testharness/engine"
)

func registrationScenarios() []*engine.Scenario {
	return []*engine.Scenario{
		{
			Name:        "Registration: basic errors",
			Description: "Parameter and state errors before registration completes",
			Tags:        []string{"registration"},
			Run:         registrationBasicErrors,
		},
		{
			Name:        "Registration: success & already registered",
			Description: "A registered client may not send USER or PASS again",
			Tags:        []string{"registration"},
			Run:         registrationSuccess,
		},
		{
			Name:        "Nick collision (433)",
			Description: "Taking a nick owned by another client is refused",
			Tags:        []string{"registration", "nick"},
			Run:         nickCollision,
		},
	}
}

func registrationBasicErrors(tc *engine.Context) error {
	a := tc.Open("R1")

	tc.SendCommand(a, "PASS")
	expectNumeric(tc, a, assertions.Numeric("461").WithContains("PASS"), "Expected 461 for PASS missing parameter")

	tc.SendCommand(a, "FOOBAR", "x")
	expectReply(tc, a, "421", "Expected 421 ERR_UNKNOWNCOMMAND")

	tc.SendCommand(a, "NICK")
	expectReply(tc, a, "431", "Expected 431 ERR_NONICKNAMEGIVEN")

	tc.SendCommand(a, "NICK", "bad nick")
	expectReply(tc, a, "432", "Expected 432 ERR_ERRONEUSNICKNAME")

	tc.SendCommand(a, "USER", "justone")
	m := tc.ExpectPattern(a, `\s(461|451|464)\s.*USER`, ReplyTimeout)
	if !m.Matched {
		tc.Failf("Expected error for USER (missing params or not registered): %s", m)
	}

	tc.SendCommand(a, "PRIVMSG", "nobody", "hi there")
	expectReply(tc, a, "451", "Expected 451 You have not registered")
	return nil
}

func registrationSuccess(tc *engine.Context) error {
	a := RegisterNick(tc, "R2", "alice")

	tc.SendCommand(a, "USER", "aliceu", "h", "s", "Real")
	expectReply(tc, a, "462", "Expected 462 ERR_ALREADYREGISTRED on USER after register")

	if pw := tc.Password(); pw != "" {
		tc.SendCommand(a, "PASS", pw)
		expectReply(tc, a, "462", "Expected 462 on PASS after register")
	}

	// Re-sending the current nick must not disturb the session.
	tc.SendCommand(a, "NICK", "alice")
	DrainUntilSilent(tc, a)
	Probe(tc, a, "after-nick", ReplyTimeout)
	return nil
}

func nickCollision(tc *engine.Context) error {
	conns := RegisterAll(tc,
		Registration{Label: "N1", Nick: "bob"},
		Registration{Label: "N2", Nick: "charlie"},
	)
	b := conns[1]

	tc.SendCommand(b, "NICK", "bob")
	expectReply(tc, b, "433", "Expected 433 ERR_NICKNAMEINUSE")
	return nil
}
