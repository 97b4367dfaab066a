package mock

import (
	"strconv"
	"strings"
)

type channel struct {
	name       string
	topic      string
	ops        map[*client]bool
	order      []*client
	inviteOnly bool
	topicLock  bool
	key        string
	limit      int
	invited    map[string]bool
}

func newChannel(name string) *channel {
	return &channel{
		name:    name,
		ops:     make(map[*client]bool),
		invited: make(map[string]bool),
	}
}

func (ch *channel) has(c *client) bool {
	_, ok := ch.ops[c]
	return ok
}

func (ch *channel) isOp(c *client) bool {
	return ch.ops[c]
}

func (ch *channel) add(c *client, op bool) {
	if ch.has(c) {
		return
	}
	ch.ops[c] = op
	ch.order = append(ch.order, c)
}

func (ch *channel) remove(c *client) {
	if !ch.has(c) {
		return
	}
	delete(ch.ops, c)
	for i, m := range ch.order {
		if m == c {
			ch.order = append(ch.order[:i], ch.order[i+1:]...)
			break
		}
	}
}

func (ch *channel) empty() bool {
	return len(ch.order) == 0
}

func (ch *channel) broadcast(line string, except *client) {
	for _, m := range ch.order {
		if m != except {
			m.send(line)
		}
	}
}

func (ch *channel) names() string {
	parts := make([]string, 0, len(ch.order))
	for _, m := range ch.order {
		if ch.ops[m] {
			parts = append(parts, "@"+m.nick)
		} else {
			parts = append(parts, m.nick)
		}
	}
	return strings.Join(parts, " ")
}

// modeString renders the channel modes as "+itkl key limit".
func (ch *channel) modeString() string {
	flags := "+"
	var args []string
	if ch.inviteOnly {
		flags += "i"
	}
	if ch.topicLock {
		flags += "t"
	}
	if ch.key != "" {
		flags += "k"
		args = append(args, ch.key)
	}
	if ch.limit > 0 {
		flags += "l"
		args = append(args, strconv.Itoa(ch.limit))
	}
	if len(args) == 0 {
		return flags
	}
	return flags + " " + strings.Join(args, " ")
}

func (ch *channel) memberByNick(nick string) *client {
	for _, m := range ch.order {
		if fold(m.nick) == fold(nick) {
			return m
		}
	}
	return nil
}
