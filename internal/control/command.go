package control

import "log"

// Command is an operator instruction for the evaluation loop.
type Command int

const (
	CmdStop Command = iota + 1
	CmdForceBuy
	CmdForceSell
)

func (c Command) String() string {
	switch c {
	case CmdStop:
		return "stop"
	case CmdForceBuy:
		return "force-buy"
	case CmdForceSell:
		return "force-sell"
	default:
		return "unknown"
	}
}

const defaultChannelSize = 16

// Channel queues commands until the evaluation loop drains them.
type Channel struct {
	ch chan Command
}

// NewChannel creates a channel holding up to size pending commands.
func NewChannel(size int) *Channel {
	if size <= 0 {
		size = defaultChannelSize
	}
	return &Channel{ch: make(chan Command, size)}
}

// Send enqueues c. It returns false if the queue is full.
func (c *Channel) Send(cmd Command) bool {
	select {
	case c.ch <- cmd:
		return true
	default:
		log.Printf("[control] queue full, dropping %s", cmd)
		return false
	}
}

// Drain returns every pending command in arrival order without blocking.
func (c *Channel) Drain() []Command {
	var out []Command
	for {
		select {
		case cmd := <-c.ch:
			out = append(out, cmd)
		default:
			return out
		}
	}
}
