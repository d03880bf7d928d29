package game

import (
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const outboxSize = 256

// intentSink is where a client's read pump delivers what it reads.
type intentSink interface {
	Deliver(playerID string, from Client, in intent)
	Disconnected(playerID string, from Client)
}

type client struct {
	playerID  string
	socket    WebsocketConnection
	limiter   *rate.Limiter
	outbox    chan []byte
	pingChan  chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeCode string
}

func newClient(playerID string, socket WebsocketConnection) *client {
	return &client{
		playerID: playerID,
		socket:   socket,
		limiter:  rate.NewLimiter(2, 6),
		outbox:   make(chan []byte, outboxSize),
		pingChan: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Send queues data without blocking. A client whose buffer is full is closed.
func (c *client) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.outbox <- data:
		return nil
	default:
		c.Close(ErrSendBufferFull.Error())
		return ErrSendBufferFull
	}
}

func (c *client) Ping() {
	select {
	case c.pingChan <- struct{}{}:
	default:
	}
}

// Close stops the write pump, which flushes what is queued and then closes
// the socket with errCode.
func (c *client) Close(errCode string) {
	c.closeOnce.Do(func() {
		c.closeCode = errCode
		close(c.done)
	})
}

func (c *client) ReadPump(sink intentSink) {
	defer func() {
		c.Close("")
		sink.Disconnected(c.playerID, c)
	}()

	for {
		data, err := c.socket.Read()
		if err != nil {
			return
		}
		if !c.limiter.Allow() {
			continue
		}
		in, err := decodeIntent(data)
		if err != nil {
			log.Debug().Str("player", c.playerID).Err(err).Msg("dropping packet")
			continue
		}
		sink.Deliver(c.playerID, c, in)
	}
}

func (c *client) WritePump() {
	defer func() {
		c.Close("")
		c.socket.Close(c.closeCode)
	}()

	for {
		select {
		case data := <-c.outbox:
			if err := c.socket.Write(data); err != nil {
				return
			}
		case <-c.pingChan:
			if err := c.socket.Ping(); err != nil {
				return
			}
		case <-c.done:
			c.flush()
			return
		}
	}
}

func (c *client) flush() {
	for {
		select {
		case data := <-c.outbox:
			if err := c.socket.Write(data); err != nil {
				return
			}
		default:
			return
		}
	}
}
