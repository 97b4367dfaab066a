package mock

import (
	"strconv"
	"strings"

	"github.com/ircconform/irctest-go/pkg/wire"
)

const version = "1.0"

type handler struct {
	fn func(s *Server, c *client, m *wire.Message)
	// preReg allows the command before registration completes.
	preReg bool
}

var commands map[string]handler

func init() {
	commands = map[string]handler{
		"PASS":    {fn: (*Server).cmdPass, preReg: true},
		"NICK":    {fn: (*Server).cmdNick, preReg: true},
		"USER":    {fn: (*Server).cmdUser, preReg: true},
		"PING":    {fn: (*Server).cmdPing, preReg: true},
		"PONG":    {fn: func(*Server, *client, *wire.Message) {}, preReg: true},
		"CAP":     {fn: func(*Server, *client, *wire.Message) {}, preReg: true},
		"QUIT":    {fn: (*Server).cmdQuit, preReg: true},
		"JOIN":    {fn: (*Server).cmdJoin},
		"PART":    {fn: (*Server).cmdPart},
		"PRIVMSG": {fn: (*Server).cmdPrivmsg},
		"NOTICE":  {fn: (*Server).cmdNotice},
		"TOPIC":   {fn: (*Server).cmdTopic},
		"MODE":    {fn: (*Server).cmdMode},
		"INVITE":  {fn: (*Server).cmdInvite},
		"KICK":    {fn: (*Server).cmdKick},
		"NAMES":   {fn: (*Server).cmdNames},
		"WHOIS":   {fn: (*Server).cmdWhois},
		"WHO":     {fn: (*Server).cmdWho},
		"LIST":    {fn: (*Server).cmdList},
	}
}

// handle executes one line from c.
func (s *Server) handle(c *client, line string) {
	m, err := wire.Parse(line)
	if err != nil {
		return
	}
	cmd := strings.ToUpper(m.Command)

	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-c.done:
		return
	default:
	}

	h, ok := commands[cmd]
	if !ok {
		s.numeric(c, wire.ErrUnknownCommand, cmd+" :Unknown command")
		return
	}
	if !h.preReg && !c.registered {
		s.numeric(c, wire.ErrNotRegistered, ":You have not registered")
		return
	}
	h.fn(s, c, m)
}

func (s *Server) numeric(c *client, code, text string) {
	c.send(":" + s.config.Name + " " + code + " " + c.target() + " " + text)
}

func (s *Server) needMore(c *client, cmd string) {
	s.numeric(c, wire.ErrNeedMoreParams, cmd+" :Not enough parameters")
}

func (s *Server) cmdPass(c *client, m *wire.Message) {
	if len(m.Params) == 0 {
		s.needMore(c, "PASS")
		return
	}
	if c.registered {
		c.send(":" + s.config.Name + " " + wire.ErrAlreadyRegistr + " * :You may not reregister")
		return
	}
	if s.config.Password != "" && m.Params[0] != s.config.Password {
		c.authed = false
		s.numeric(c, wire.ErrPasswdMismatch, ":Password incorrect")
		return
	}
	c.authed = true
}

func validNick(nick string) bool {
	if nick == "" || len(nick) > 30 {
		return false
	}
	for i, r := range nick {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case strings.ContainsRune("[]\\`_^{|}", r):
		case i > 0 && (r >= '0' && r <= '9' || r == '-'):
		default:
			return false
		}
	}
	return true
}

func (s *Server) cmdNick(c *client, m *wire.Message) {
	if len(m.Params) == 0 || m.Params[0] == "" {
		s.numeric(c, wire.ErrNoNicknameGive, ":No nickname given")
		return
	}
	nick := strings.Join(m.Params, " ")
	if !validNick(nick) {
		s.numeric(c, wire.ErrErroneusNick, nick+" :Erroneous nickname")
		return
	}
	if !c.authed {
		s.numeric(c, wire.ErrPasswdMismatch, ":Password incorrect")
		return
	}
	if owner, taken := s.nicks[fold(nick)]; taken {
		if owner == c {
			if nick != c.nick && c.registered {
				s.renameLocked(c, nick)
			}
			return
		}
		s.numeric(c, wire.ErrNicknameInUse, nick+" :Nickname is already in use")
		return
	}

	if c.registered {
		s.renameLocked(c, nick)
		return
	}
	if c.nick != "" {
		delete(s.nicks, fold(c.nick))
	}
	c.nick = nick
	s.nicks[fold(nick)] = c
	s.maybeWelcome(c)
}

func (s *Server) renameLocked(c *client, nick string) {
	line := ":" + c.source() + " NICK :" + nick
	c.send(line)
	for _, peer := range s.peersLocked(c) {
		peer.send(line)
	}
	delete(s.nicks, fold(c.nick))
	c.nick = nick
	s.nicks[fold(nick)] = c
}

func (s *Server) cmdUser(c *client, m *wire.Message) {
	if len(m.Params) < 4 {
		s.needMore(c, "USER")
		return
	}
	if c.registered {
		c.send(":" + s.config.Name + " " + wire.ErrAlreadyRegistr + " * :You may not reregister")
		return
	}
	if !c.authed {
		s.numeric(c, wire.ErrPasswdMismatch, ":Password incorrect")
		return
	}
	c.user = m.Params[0]
	c.real = m.Params[3]
	s.maybeWelcome(c)
}

func (s *Server) maybeWelcome(c *client) {
	if c.registered || c.nick == "" || c.user == "" || !c.authed {
		return
	}
	c.registered = true
	name := s.config.Name
	s.numeric(c, wire.RplWelcome, ":Welcome to the Internet Relay Network "+c.source())
	s.numeric(c, wire.RplYourHost, ":Your host is "+name+", running version "+version)
	s.numeric(c, wire.RplCreated, ":This server was created "+s.created.Format("Mon Jan 2 2006 at 15:04:05 MST"))
	s.numeric(c, wire.RplMyInfo, name+" "+version+" o oitkl")
}

func (s *Server) cmdPing(c *client, m *wire.Message) {
	if len(m.Params) == 0 {
		s.numeric(c, wire.ErrNoOrigin, ":No origin specified")
		return
	}
	c.send(":" + s.config.Name + " PONG " + s.config.Name + " :" + m.Params[0])
}

func (s *Server) cmdQuit(c *client, m *wire.Message) {
	reason := "Client Quit"
	if len(m.Params) > 0 && m.Params[0] != "" {
		reason = "Quit: " + m.Params[0]
	}
	if c.registered && !c.quitSent {
		line := ":" + c.source() + " QUIT :" + reason
		for _, peer := range s.peersLocked(c) {
			peer.send(line)
		}
		c.quitSent = true
		c.registered = false
	}
	c.sendAndClose("ERROR :Closing link (" + reason + ")")
}

func (s *Server) cmdJoin(c *client, m *wire.Message) {
	if len(m.Params) == 0 {
		s.needMore(c, "JOIN")
		return
	}
	keys := []string{}
	if len(m.Params) > 1 {
		keys = strings.Split(m.Params[1], ",")
	}
	for i, name := range strings.Split(m.Params[0], ",") {
		key := ""
		if i < len(keys) {
			key = keys[i]
		}
		s.joinOne(c, name, key)
	}
}

func (s *Server) joinOne(c *client, name, key string) {
	if !strings.HasPrefix(name, "#") || len(name) < 2 || strings.ContainsAny(name, " ,\a") {
		s.numeric(c, wire.ErrNoSuchChannel, name+" :No such channel")
		return
	}

	ch, exists := s.channels[fold(name)]
	if exists {
		if ch.has(c) {
			return
		}
		switch {
		case ch.inviteOnly && !ch.invited[fold(c.nick)]:
			s.numeric(c, wire.ErrInviteOnlyChan, ch.name+" :Cannot join channel (+i)")
			return
		case ch.key != "" && key != ch.key:
			s.numeric(c, wire.ErrBadChannelKey, ch.name+" :Cannot join channel (+k)")
			return
		case ch.limit > 0 && len(ch.order) >= ch.limit:
			s.numeric(c, wire.ErrChannelIsFull, ch.name+" :Cannot join channel (+l)")
			return
		}
		ch.add(c, false)
		delete(ch.invited, fold(c.nick))
	} else {
		ch = newChannel(name)
		s.channels[fold(name)] = ch
		ch.add(c, true)
	}

	ch.broadcast(":"+c.source()+" JOIN "+ch.name, nil)
	if ch.topic != "" {
		s.numeric(c, wire.RplTopic, ch.name+" :"+ch.topic)
	}
	s.sendNames(c, ch)
}

func (s *Server) sendNames(c *client, ch *channel) {
	s.numeric(c, wire.RplNamReply, "= "+ch.name+" :"+ch.names())
	s.numeric(c, wire.RplEndOfNames, ch.name+" :End of /NAMES list")
}

func (s *Server) cmdPart(c *client, m *wire.Message) {
	if len(m.Params) == 0 {
		s.needMore(c, "PART")
		return
	}
	reason := ""
	if len(m.Params) > 1 {
		reason = " :" + m.Params[1]
	}
	for _, name := range strings.Split(m.Params[0], ",") {
		ch, ok := s.channels[fold(name)]
		if !ok || !ch.has(c) {
			s.numeric(c, wire.ErrNotOnChannel, name+" :You're not on that channel")
			continue
		}
		ch.broadcast(":"+c.source()+" PART "+ch.name+reason, nil)
		ch.remove(c)
		if ch.empty() {
			delete(s.channels, fold(ch.name))
		}
	}
}

func (s *Server) cmdPrivmsg(c *client, m *wire.Message) {
	s.message(c, m, "PRIVMSG", true)
}

func (s *Server) cmdNotice(c *client, m *wire.Message) {
	s.message(c, m, "NOTICE", false)
}

// message delivers PRIVMSG or NOTICE. NOTICE never produces error replies.
func (s *Server) message(c *client, m *wire.Message, cmd string, replies bool) {
	if len(m.Params) == 0 || m.Params[0] == "" {
		if replies {
			s.numeric(c, wire.ErrNoRecipient, ":No recipient given ("+cmd+")")
		}
		return
	}
	if len(m.Params) < 2 || m.Params[1] == "" {
		if replies {
			s.numeric(c, wire.ErrNoTextToSend, ":No text to send")
		}
		return
	}
	text := m.Params[len(m.Params)-1]

	for _, target := range strings.Split(m.Params[0], ",") {
		line := ":" + c.source() + " " + cmd + " " + target + " :" + text
		if strings.HasPrefix(target, "#") {
			ch, ok := s.channels[fold(target)]
			if !ok || !ch.has(c) {
				if replies {
					s.numeric(c, wire.ErrCannotSendChan, target+" :Cannot send to channel")
				}
				continue
			}
			ch.broadcast(line, c)
			continue
		}
		dst, ok := s.nicks[fold(target)]
		if !ok || !dst.registered {
			if replies {
				s.numeric(c, wire.ErrNoSuchNick, target+" :No such nick/channel")
			}
			continue
		}
		dst.send(line)
	}
}

func (s *Server) cmdTopic(c *client, m *wire.Message) {
	if len(m.Params) == 0 {
		s.needMore(c, "TOPIC")
		return
	}
	ch, ok := s.channels[fold(m.Params[0])]
	if !ok {
		s.numeric(c, wire.ErrNoSuchChannel, m.Params[0]+" :No such channel")
		return
	}
	if !ch.has(c) {
		s.numeric(c, wire.ErrNotOnChannel, ch.name+" :You're not on that channel")
		return
	}
	if len(m.Params) == 1 {
		if ch.topic == "" {
			s.numeric(c, wire.RplNoTopic, ch.name+" :No topic is set")
		} else {
			s.numeric(c, wire.RplTopic, ch.name+" :"+ch.topic)
		}
		return
	}
	if ch.topicLock && !ch.isOp(c) {
		s.numeric(c, wire.ErrChanOPrivsNeed, ch.name+" :You're not channel operator")
		return
	}
	ch.topic = m.Params[1]
	ch.broadcast(":"+c.source()+" TOPIC "+ch.name+" :"+ch.topic, nil)
}

func (s *Server) cmdMode(c *client, m *wire.Message) {
	if len(m.Params) == 0 {
		s.needMore(c, "MODE")
		return
	}
	target := m.Params[0]
	if !strings.HasPrefix(target, "#") {
		s.userMode(c, target)
		return
	}

	ch, ok := s.channels[fold(target)]
	if !ok {
		s.numeric(c, wire.ErrNoSuchChannel, target+" :No such channel")
		return
	}
	if len(m.Params) == 1 {
		s.numeric(c, wire.RplChannelModeIs, ch.name+" "+ch.modeString())
		return
	}
	if !ch.isOp(c) {
		s.numeric(c, wire.ErrChanOPrivsNeed, ch.name+" :You're not channel operator")
		return
	}

	args := m.Params[2:]
	next := func() (string, bool) {
		if len(args) == 0 {
			return "", false
		}
		a := args[0]
		args = args[1:]
		return a, true
	}

	adding := true
	var applied strings.Builder
	var appliedArgs []string
	lastSign := byte(0)
	record := func(flag byte, arg string) {
		sign := byte('-')
		if adding {
			sign = '+'
		}
		if sign != lastSign {
			applied.WriteByte(sign)
			lastSign = sign
		}
		applied.WriteByte(flag)
		if arg != "" {
			appliedArgs = append(appliedArgs, arg)
		}
	}

	for i := 0; i < len(m.Params[1]); i++ {
		flag := m.Params[1][i]
		switch flag {
		case '+':
			adding = true
		case '-':
			adding = false
		case 'i':
			ch.inviteOnly = adding
			record(flag, "")
		case 't':
			ch.topicLock = adding
			record(flag, "")
		case 'k':
			if !adding {
				ch.key = ""
				record(flag, "")
				continue
			}
			key, ok := next()
			if !ok {
				s.needMore(c, "MODE")
				continue
			}
			ch.key = key
			record(flag, key)
		case 'l':
			if !adding {
				ch.limit = 0
				record(flag, "")
				continue
			}
			arg, ok := next()
			if !ok {
				s.needMore(c, "MODE")
				continue
			}
			n, err := strconv.Atoi(arg)
			if err != nil || n <= 0 {
				continue
			}
			ch.limit = n
			record(flag, arg)
		case 'o':
			nick, ok := next()
			if !ok {
				s.needMore(c, "MODE")
				continue
			}
			member := ch.memberByNick(nick)
			if member == nil {
				s.numeric(c, wire.ErrUserNotInChan, nick+" "+ch.name+" :They aren't on that channel")
				continue
			}
			ch.ops[member] = adding
			record(flag, member.nick)
		default:
			s.numeric(c, wire.ErrUnknownMode, string(flag)+" :is unknown mode char to me for "+ch.name)
		}
	}

	if applied.Len() == 0 {
		return
	}
	line := ":" + c.source() + " MODE " + ch.name + " " + applied.String()
	if len(appliedArgs) > 0 {
		line += " " + strings.Join(appliedArgs, " ")
	}
	ch.broadcast(line, nil)
}

func (s *Server) userMode(c *client, nick string) {
	if _, ok := s.nicks[fold(nick)]; !ok {
		s.numeric(c, wire.ErrNoSuchNick, nick+" :No such nick/channel")
		return
	}
	if fold(nick) != fold(c.nick) {
		s.numeric(c, wire.ErrUsersDontMatch, ":Cant change mode for other users")
		return
	}
	s.numeric(c, wire.RplUModeIs, "+")
}

func (s *Server) cmdInvite(c *client, m *wire.Message) {
	if len(m.Params) < 2 {
		s.needMore(c, "INVITE")
		return
	}
	nick, name := m.Params[0], m.Params[1]
	dst, ok := s.nicks[fold(nick)]
	if !ok {
		s.numeric(c, wire.ErrNoSuchNick, nick+" :No such nick/channel")
		return
	}
	if ch, ok := s.channels[fold(name)]; ok {
		if !ch.has(c) {
			s.numeric(c, wire.ErrNotOnChannel, ch.name+" :You're not on that channel")
			return
		}
		if ch.has(dst) {
			s.numeric(c, wire.ErrUserOnChannel, dst.nick+" "+ch.name+" :is already on channel")
			return
		}
		if ch.inviteOnly && !ch.isOp(c) {
			s.numeric(c, wire.ErrChanOPrivsNeed, ch.name+" :You're not channel operator")
			return
		}
		ch.invited[fold(dst.nick)] = true
	}
	s.numeric(c, wire.RplInviting, dst.nick+" "+name)
	dst.send(":" + c.source() + " INVITE " + dst.nick + " :" + name)
}

func (s *Server) cmdKick(c *client, m *wire.Message) {
	if len(m.Params) < 2 {
		s.needMore(c, "KICK")
		return
	}
	ch, ok := s.channels[fold(m.Params[0])]
	if !ok {
		s.numeric(c, wire.ErrNoSuchChannel, m.Params[0]+" :No such channel")
		return
	}
	if !ch.has(c) {
		s.numeric(c, wire.ErrNotOnChannel, ch.name+" :You're not on that channel")
		return
	}
	if !ch.isOp(c) {
		s.numeric(c, wire.ErrChanOPrivsNeed, ch.name+" :You're not channel operator")
		return
	}
	reason := c.nick
	if len(m.Params) > 2 && m.Params[2] != "" {
		reason = m.Params[2]
	}
	for _, nick := range strings.Split(m.Params[1], ",") {
		victim := ch.memberByNick(nick)
		if victim == nil {
			s.numeric(c, wire.ErrUserNotInChan, nick+" "+ch.name+" :They aren't on that channel")
			continue
		}
		ch.broadcast(":"+c.source()+" KICK "+ch.name+" "+victim.nick+" :"+reason, nil)
		ch.remove(victim)
	}
	if ch.empty() {
		delete(s.channels, fold(ch.name))
	}
}

func (s *Server) cmdNames(c *client, m *wire.Message) {
	if len(m.Params) == 0 {
		for _, ch := range s.channels {
			s.numeric(c, wire.RplNamReply, "= "+ch.name+" :"+ch.names())
		}
		s.numeric(c, wire.RplEndOfNames, "* :End of /NAMES list")
		return
	}
	for _, name := range strings.Split(m.Params[0], ",") {
		if ch, ok := s.channels[fold(name)]; ok {
			s.numeric(c, wire.RplNamReply, "= "+ch.name+" :"+ch.names())
		}
		s.numeric(c, wire.RplEndOfNames, name+" :End of /NAMES list")
	}
}

func (s *Server) cmdWhois(c *client, m *wire.Message) {
	if len(m.Params) == 0 {
		s.numeric(c, wire.ErrNoNicknameGive, ":No nickname given")
		return
	}
	nick := m.Params[len(m.Params)-1]
	dst, ok := s.nicks[fold(nick)]
	if !ok || !dst.registered {
		s.numeric(c, wire.ErrNoSuchNick, nick+" :No such nick/channel")
		s.numeric(c, wire.RplEndOfWhois, nick+" :End of /WHOIS list")
		return
	}
	s.numeric(c, wire.RplWhoisUser, dst.nick+" "+dst.user+" "+dst.host+" * :"+dst.real)
	var chans []string
	for _, ch := range s.channels {
		if ch.has(dst) {
			prefix := ""
			if ch.isOp(dst) {
				prefix = "@"
			}
			chans = append(chans, prefix+ch.name)
		}
	}
	if len(chans) > 0 {
		s.numeric(c, wire.RplWhoisChannels, dst.nick+" :"+strings.Join(chans, " "))
	}
	s.numeric(c, wire.RplEndOfWhois, dst.nick+" :End of /WHOIS list")
}

func (s *Server) cmdWho(c *client, m *wire.Message) {
	mask := "*"
	if len(m.Params) > 0 {
		mask = m.Params[0]
	}
	reply := func(chName string, u *client) {
		s.numeric(c, wire.RplWhoReply, chName+" "+u.user+" "+u.host+" "+s.config.Name+" "+u.nick+" H :0 "+u.real)
	}
	if ch, ok := s.channels[fold(mask)]; ok {
		for _, u := range ch.order {
			reply(ch.name, u)
		}
	} else if u, ok := s.nicks[fold(mask)]; ok {
		reply("*", u)
	}
	s.numeric(c, wire.RplEndOfWho, mask+" :End of /WHO list")
}

func (s *Server) cmdList(c *client, m *wire.Message) {
	for _, ch := range s.channels {
		s.numeric(c, wire.RplList, ch.name+" "+strconv.Itoa(len(ch.order))+" :"+ch.topic)
	}
	s.numeric(c, wire.RplListEnd, ":End of /LIST")
}
