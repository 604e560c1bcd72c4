package server

import "encoding/json"

// ClientMessage is every inbound websocket frame.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ServerMessage is every outbound websocket frame.
type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Envelope is one outbound message and the connections it goes to.
type Envelope struct {
	To      []string
	Message ServerMessage
}

// Inbound commands.
const (
	CmdCreateRoom   = "createRoom"
	CmdJoinRoom     = "joinRoom"
	CmdQuickMatch   = "quickMatch"
	CmdSetSecret    = "setSecret"
	CmdMakeGuess    = "makeGuess"
	CmdChatMessage  = "chatMessage"
	CmdChatReaction = "chatReaction"
	CmdPlayAgain    = "playAgain"
	CmdPing         = "ping"
)

// Outbound events.
const (
	EvtRoomCreated          = "roomCreated"
	EvtQuickMatchWaiting    = "quickMatchWaiting"
	EvtRoomJoined           = "roomJoined"
	EvtOpponentJoined       = "opponentJoined"
	EvtPhaseChange          = "phaseChange"
	EvtSecretSet            = "secretSet"
	EvtOpponentReady        = "opponentReady"
	EvtTurnUpdate           = "turnUpdate"
	EvtGuessResult          = "guessResult"
	EvtGameOver             = "gameOver"
	EvtGameReset            = "gameReset"
	EvtChatMessage          = "chatMessage"
	EvtChatReactionUpdate   = "chatReactionUpdate"
	EvtOpponentDisconnected = "opponentDisconnected"
	EvtError                = "error"
	EvtPong                 = "pong"
)

func to(connectionID, msgType string, payload any) Envelope {
	return Envelope{
		To:      []string{connectionID},
		Message: ServerMessage{Type: msgType, Payload: payload},
	}
}

// decodePayload treats a missing payload as an empty object.
func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}
