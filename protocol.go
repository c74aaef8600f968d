package main

import (
	"encoding/json"
	"errors"
)

// ProtocolID must match between client and server.
const ProtocolID uint64 = 0

// DefaultPort is the game port servers listen on unless told otherwise.
const DefaultPort = 4761

var (
	ErrProtocolMismatch = errors.New("protocol mismatch")
	ErrBadPassword      = errors.New("wrong password")
	ErrServerFull       = errors.New("server full")
)

// Client -> Server message types
const (
	MsgHello = "hello"
	MsgDiff  = "diff"
	MsgLeave = "leave"
)

// Server -> Client message types
const (
	MsgWelcome = "welcome"
	MsgError   = "error"
)

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages; json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// HelloMsg opens a session. Token, when valid, reclaims a previous seat.
type HelloMsg struct {
	Protocol uint64 `json:"protocol"`
	ClientID uint64 `json:"client_id"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
}

// WelcomeMsg confirms the seat the server assigned.
type WelcomeMsg struct {
	ClientID   uint64      `json:"client_id"`
	Color      PlayerColor `json:"color"`
	Token      string      `json:"token"`
	ServerName string      `json:"server_name"`
}

type ErrorMsg struct {
	Msg string `json:"msg"`
}

// errorFromMsg maps error text received over the wire back to a sentinel.
func errorFromMsg(msg string) error {
	for _, err := range []error{ErrProtocolMismatch, ErrBadPassword, ErrServerFull} {
		if msg == err.Error() {
			return err
		}
	}
	return errors.New(msg)
}
