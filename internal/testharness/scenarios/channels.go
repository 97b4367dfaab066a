package scenarios

import (
	"github.com/ircconform/irctest-go/internal/testharness/engine"
)

func channelScenarios() []*engine.Scenario {
	return []*engine.Scenario{
		{
			Name:        "JOIN + NAMES (353/366/331/324)",
			Description: "Joining a new channel lists names, reports no topic and shows modes",
			Tags:        []string{"channel"},
			Run:         joinAndNames,
		},
		{
			Name:        "PRIVMSG/NOTICE + common errors (401/404/411/412)",
			Description: "Direct and channel messages are delivered; bad targets are refused",
			Tags:        []string{"channel", "messaging"},
			Run:         privmsgChannelAndUser,
		},
	}
}

func visibilityScenarios() []*engine.Scenario {
	return []*engine.Scenario{
		{
			Name:        "PART + QUIT visibility to peers",
			Description: "Channel peers see PART and QUIT",
			Tags:        []string{"channel"},
			Run:         partQuitVisibility,
		},
		{
			Name:        "WHOIS + PING/PONG",
			Description: "WHOIS answers for a registered nick and PING is answered",
			Tags:        []string{"query"},
			Run:         whoisPing,
		},
	}
}

func joinAndNames(tc *engine.Context) error {
	a := RegisterNick(tc, "C1", "dana")

	tc.SendCommand(a, "JOIN", "#room1")
	expectReply(tc, a, "353", "Expected 353 RPL_NAMREPLY")
	expectReply(tc, a, "366", "Expected 366 RPL_ENDOFNAMES")

	tc.SendCommand(a, "TOPIC", "#room1")
	expectReply(tc, a, "331", "Expected 331 RPL_NOTOPIC")

	tc.SendCommand(a, "MODE", "#room1")
	expectReply(tc, a, "324", "Expected 324 RPL_CHANNELMODEIS")
	return nil
}

func privmsgChannelAndUser(tc *engine.Context) error {
	conns := RegisterAll(tc,
		Registration{Label: "P1", Nick: "erin"},
		Registration{Label: "P2", Nick: "frank"},
	)
	a, b := conns[0], conns[1]

	tc.SendCommand(a, "PRIVMSG")
	expectReply(tc, a, "411", "Expected 411 ERR_NORECIPIENT")
	tc.SendCommand(a, "PRIVMSG", "frank")
	expectReply(tc, a, "412", "Expected 412 ERR_NOTEXTTOSEND")

	tc.SendCommand(a, "PRIVMSG", "idontexist", "hi there")
	expectReply(tc, a, "401", "Expected 401 ERR_NOSUCHNICK")

	tc.SendCommand(a, "PRIVMSG", "frank", "hello user")
	expectCommand(tc, b, "PRIVMSG", "frank should receive PRIVMSG")

	tc.SendCommand(a, "PRIVMSG", "#c1", "hello?")
	expectReply(tc, a, "404", "Expected 404 Cannot send to channel (not joined)")

	Join(tc, "#c1", a, b)

	tc.SendCommand(a, "PRIVMSG", "#c1", "hello channel")
	expectCommand(tc, b, "PRIVMSG", "channel msg should reach other member")

	tc.SendCommand(a, "NOTICE", "#c1", "notice msg")
	expectCommand(tc, b, "NOTICE", "NOTICE should reach other member")
	return nil
}

func partQuitVisibility(tc *engine.Context) error {
	conns := RegisterAll(tc,
		Registration{Label: "PQ1", Nick: "sam"},
		Registration{Label: "PQ2", Nick: "tom"},
	)
	a, b := conns[0], conns[1]
	Join(tc, "#pq", a, b)

	tc.SendCommand(b, "PART", "#pq", "see ya")
	expectCommand(tc, a, "PART", "PART should be broadcast to channel")

	c := RegisterNick(tc, "PQ3", "tim")
	Join(tc, "#pq", c)
	tc.SendCommand(c, "QUIT", "bye now")
	expectCommand(tc, a, "QUIT", "QUIT should be seen by shared channel peers")
	return nil
}

func whoisPing(tc *engine.Context) error {
	a := RegisterNick(tc, "W1", "zara")

	tc.SendCommand(a, "WHOIS", "zara")
	m := tc.ExpectPattern(a, `\s(311|318)\s|RPL_WHOIS`, ProbeTimeout)
	if !m.Matched {
		tc.Failf("Expected WHOIS reply (311 + 318 typical): %s", m)
	}

	tc.SendCommand(a, "PING", "server")
	expectCommand(tc, a, "PONG", "Expected PONG")
	return nil
}
