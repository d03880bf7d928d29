package game

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	locker       sync.Mutex
	delivered    []intent
	disconnected []Client
}

func (s *recordingSink) Deliver(_ string, _ Client, in intent) {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.delivered = append(s.delivered, in)
}

func (s *recordingSink) Disconnected(_ string, from Client) {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.disconnected = append(s.disconnected, from)
}

func TestReadPump(t *testing.T) {
	t.Parallel()
	t.Run("Read Error", func(t *testing.T) {
		t.Parallel()
		mockSocket := &MockWebsocketConnection{}
		mockSocket.On("Read").Return([]byte{}, assert.AnError)
		c := newClient("p1", mockSocket)
		sink := &recordingSink{}

		wg := sync.WaitGroup{}
		wg.Go(func() {
			c.ReadPump(sink)
		})
		wg.Wait()

		assert.Equal(t, []Client{c}, sink.disconnected)
		assert.Empty(t, sink.delivered)
		select {
		case <-c.done:
		default:
			t.Fatal("client should be closed")
		}
		mockSocket.AssertExpectations(t)
	})

	t.Run("Decodes And Drops Malformed", func(t *testing.T) {
		t.Parallel()
		mockSocket := &MockWebsocketConnection{}
		mockSocket.On("Read").Return([]byte(`{"type":"submitRoll"}`), nil).Once()
		mockSocket.On("Read").Return([]byte(`garbage`), nil).Once()
		mockSocket.On("Read").Return([]byte(`{"type":"submitVote","payload":{"decision":"continue"}}`), nil).Once()
		mockSocket.On("Read").Return([]byte{}, assert.AnError).Once()
		c := newClient("p1", mockSocket)
		sink := &recordingSink{}

		c.ReadPump(sink)

		assert.Equal(t, []intent{
			{Kind: IntentSubmitRoll},
			{Kind: IntentSubmitVote, Decision: VoteContinue},
		}, sink.delivered)
		mockSocket.AssertExpectations(t)
	})

	t.Run("Rate Limited", func(t *testing.T) {
		t.Parallel()
		mockSocket := &MockWebsocketConnection{}
		mockSocket.On("Read").Return([]byte(`{"type":"submitRoll"}`), nil).Times(50)
		mockSocket.On("Read").Return([]byte{}, assert.AnError).Once()
		c := newClient("p1", mockSocket)
		sink := &recordingSink{}

		c.ReadPump(sink)

		assert.Less(t, len(sink.delivered), 50)
		assert.NotEmpty(t, sink.delivered)
	})
}

func TestSendBufferFullClosesClient(t *testing.T) {
	t.Parallel()
	c := newClient("p1", &MockWebsocketConnection{})
	for range outboxSize {
		require.NoError(t, c.Send([]byte("x")))
	}
	assert.ErrorIs(t, c.Send([]byte("x")), ErrSendBufferFull)
	assert.Equal(t, ErrSendBufferFull.Error(), c.closeCode)
	assert.ErrorIs(t, c.Send([]byte("x")), ErrClientClosed)
}

func TestWritePump(t *testing.T) {
	t.Parallel()
	t.Run("Flushes On Close", func(t *testing.T) {
		t.Parallel()
		mockSocket := &MockWebsocketConnection{}
		mockSocket.On("Write", []byte("one")).Return(nil).Once()
		mockSocket.On("Write", []byte("two")).Return(nil).Once()
		mockSocket.On("Close", "bye").Return().Once()
		c := newClient("p1", mockSocket)

		require.NoError(t, c.Send([]byte("one")))
		require.NoError(t, c.Send([]byte("two")))
		c.Close("bye")

		done := make(chan struct{})
		go func() {
			c.WritePump()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("write pump did not exit")
		}
		mockSocket.AssertExpectations(t)
	})

	t.Run("Write Error", func(t *testing.T) {
		t.Parallel()
		mockSocket := &MockWebsocketConnection{}
		mockSocket.On("Write", mock.Anything).Return(assert.AnError).Once()
		mockSocket.On("Close", "").Return().Once()
		c := newClient("p1", mockSocket)
		require.NoError(t, c.Send([]byte("one")))

		c.WritePump()

		assert.ErrorIs(t, c.Send([]byte("two")), ErrClientClosed)
		mockSocket.AssertExpectations(t)
	})

	t.Run("Ping", func(t *testing.T) {
		t.Parallel()
		mockSocket := &MockWebsocketConnection{}
		pinged := make(chan struct{})
		mockSocket.On("Ping").Return(nil).Once().Run(func(mock.Arguments) { close(pinged) })
		mockSocket.On("Close", "").Return().Once()
		c := newClient("p1", mockSocket)

		var wg sync.WaitGroup
		wg.Go(c.WritePump)
		c.Ping()
		<-pinged
		c.Close("")
		wg.Wait()
		mockSocket.AssertExpectations(t)
	})
}
