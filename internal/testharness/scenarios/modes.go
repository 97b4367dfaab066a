package scenarios

import (
	"github.com/ircconform/irctest-go/internal/testharness/engine"
)

func modeScenarios() []*engine.Scenario {
	return []*engine.Scenario{
		{
			Name:        "Modes: +o/+t topic protection",
			Description: "Only channel operators may set the topic of a +t channel",
			Tags:        []string{"modes"},
			Run:         modesTopicProtection,
		},
		{
			Name:        "Modes: unknown flag & param errors (472/461/442)",
			Description: "Unknown flags, missing mode params and PART outside a channel",
			Tags:        []string{"modes"},
			Run:         modesUnknownAndErrors,
		},
		{
			Name:        "Modes: +k/+l/+i with JOIN/INVITE/KICK (475/471/473/482)",
			Description: "Key, limit and invite-only gates plus operator-only KICK",
			Tags:        []string{"modes"},
			Run:         modesKeyLimitInvite,
		},
	}
}

// topicSet waits for the TOPIC broadcast on watcher or, failing that, the
// 332 reply on setter.
func topicSet(tc *engine.Context, watcher, setter string, msg string) {
	if m := tc.Expect(tc.Conn(watcher), commandRE("TOPIC"), ReplyTimeout); m.Matched {
		return
	}
	if m := tc.Expect(tc.Conn(setter), codeRE("332"), ReplyTimeout); !m.Matched {
		tc.Failf("%s: %s", msg, m)
	}
}

func modesTopicProtection(tc *engine.Context) error {
	conns := RegisterAll(tc,
		Registration{Label: "M1", Nick: "ops"},
		Registration{Label: "M2", Nick: "user"},
	)
	a, b := conns[0], conns[1]

	Join(tc, "#m", a)
	tc.SendCommand(a, "MODE", "#m", "+t")
	DrainUntilSilent(tc, a)

	tc.SendCommand(a, "TOPIC", "#m", "welcome")
	topicSet(tc, "M1", "M1", "Topic should be set/echoed")

	Join(tc, "#m", b)
	tc.SendCommand(b, "TOPIC", "#m", "hack")
	expectReply(tc, b, "482", "Expected 482 for non-op topic set when +t")

	tc.SendCommand(a, "MODE", "#m", "+o", "user")
	DrainUntilSilent(tc, a)
	tc.SendCommand(b, "TOPIC", "#m", "allowed now")
	topicSet(tc, "M1", "M2", "Op can set topic")

	tc.SendCommand(a, "MODE", "#m", "-o", "user")
	DrainUntilSilent(tc, a)
	tc.SendCommand(b, "TOPIC", "#m", "blocked again")
	expectReply(tc, b, "482", "Removing +o should block topic")
	return nil
}

func modesUnknownAndErrors(tc *engine.Context) error {
	a := RegisterNick(tc, "MZ", "moz")
	Join(tc, "#z", a)

	tc.SendCommand(a, "MODE", "#z", "+z")
	expectReply(tc, a, "472", "Expected 472 ERR_UNKNOWNMODE for +z (not supported)")

	tc.SendCommand(a, "MODE", "#z", "+k")
	expectReply(tc, a, "461", "Expected 461 Need more params for +k without key")

	tc.SendCommand(a, "PART", "#idontexist", "bye bye")
	expectReply(tc, a, "442", "Expected 442 You're not on that channel")
	return nil
}

func modesKeyLimitInvite(tc *engine.Context) error {
	conns := RegisterAll(tc,
		Registration{Label: "K1", Nick: "keeper"},
		Registration{Label: "K2", Nick: "u1"},
		Registration{Label: "K3", Nick: "u2"},
	)
	a, b, c := conns[0], conns[1], conns[2]

	Join(tc, "#key", a)
	tc.SendCommand(a, "MODE", "#key", "+k", "sekret")
	tc.SendCommand(a, "MODE", "#key", "+l", "2")
	DrainUntilSilent(tc, a)

	tc.SendCommand(b, "JOIN", "#key", "wrong")
	expectReply(tc, b, "475", "Expected 475 bad key")
	tc.SendCommand(b, "JOIN", "#key", "sekret")
	expectCode(tc, b, "353", "")

	tc.SendCommand(c, "JOIN", "#key", "sekret")
	expectReply(tc, c, "471", "Expected 471 channel full")

	// Lift the limit so only invite-only gates the next join.
	tc.SendCommand(a, "MODE", "#key", "+l", "3")
	tc.SendCommand(a, "MODE", "#key", "+i")
	DrainUntilSilent(tc, a)
	tc.SendCommand(c, "JOIN", "#key", "sekret")
	expectReply(tc, c, "473", "Expected 473 invite-only")

	tc.SendCommand(a, "INVITE", "u2", "#key")
	DrainUntilSilent(tc, a)
	tc.SendCommand(c, "JOIN", "#key", "sekret")
	expectReply(tc, c, "353", "Invited user should be able to join")

	tc.SendCommand(b, "KICK", "#key", "u2", "bye bye")
	expectReply(tc, b, "482", "Non-op KICK must fail")

	tc.SendCommand(a, "KICK", "#key", "u2", "bye bye")
	expectCommand(tc, c, "KICK", "Kicked user should see KICK")
	return nil
}
