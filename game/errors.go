package game

import "errors"

var (
	ErrRoomNotFound     = errors.New("room-not-found")
	ErrRoomFull         = errors.New("room-full")
	ErrRunInProgress    = errors.New("run-in-progress")
	ErrAlreadyInRoom    = errors.New("already-in-room")
	ErrReconnectFailed  = errors.New("reconnect-failed")
	ErrAlreadyConnected = errors.New("already-connected")
	ErrSendBufferFull   = errors.New("send-buffer-full")
	ErrClientClosed     = errors.New("client-closed")
	ErrShuttingDown     = errors.New("shutting-down")
)
