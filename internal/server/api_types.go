package server

import "decode-server/internal/stats"

// ============================================================================
// ERROR RESPONSES
// ============================================================================
// tygo:generate
type ErrorMessage struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Empty is the payload of events that carry no data.
// tygo:generate
type Empty struct{}

// ============================================================================
// CREATE ROOM (createRoom)
// ============================================================================
// tygo:generate
type CreateRoomRequest struct {
	PlayerName   string `json:"playerName"`
	NumberLength int    `json:"numberLength"`
}

// tygo:generate
type RoomCreatedEvent struct {
	Code         string `json:"code"`
	NumberLength int    `json:"numberLength"`
	PlayerIndex  int    `json:"playerIndex"`
}

// ============================================================================
// JOIN ROOM (joinRoom)
// ============================================================================
// tygo:generate
type JoinRoomRequest struct {
	Code       string `json:"code"`
	PlayerName string `json:"playerName"`
}

// tygo:generate
type RoomJoinedEvent struct {
	Code         string `json:"code"`
	NumberLength int    `json:"numberLength"`
	PlayerIndex  int    `json:"playerIndex"`
	OpponentName string `json:"opponentName"`
}

// tygo:generate
type OpponentJoinedEvent struct {
	OpponentName string `json:"opponentName"`
}

// ============================================================================
// QUICK MATCH (quickMatch)
// ============================================================================
// tygo:generate
type QuickMatchRequest struct {
	PlayerName   string `json:"playerName"`
	NumberLength int    `json:"numberLength"`
}

// tygo:generate
type QuickMatchWaitingEvent struct {
	Code         string `json:"code"`
	NumberLength int    `json:"numberLength"`
}

// ============================================================================
// PHASE CHANGES (phaseChange broadcast)
// ============================================================================
// tygo:generate
type PhaseChangeEvent struct {
	Phase        Phase `json:"phase"`
	NumberLength int   `json:"numberLength,omitempty"`
}

// ============================================================================
// SET SECRET (setSecret)
// ============================================================================
// tygo:generate
type SetSecretRequest struct {
	Secret string `json:"secret"`
}

// tygo:generate
type SecretSetEvent struct {
	Success bool `json:"success"`
}

// ============================================================================
// MAKE GUESS (makeGuess)
// ============================================================================
// tygo:generate
type MakeGuessRequest struct {
	Guess string `json:"guess"`
}

// tygo:generate
type GuessResultEvent struct {
	PlayerName      string `json:"playerName"`
	PlayerSocketID  string `json:"playerSocketId"`
	Guess           string `json:"guess"`
	CorrectDigit    int    `json:"correctDigit"`
	CorrectPosition int    `json:"correctPosition"`
	GuessNumber     int    `json:"guessNumber"`
}

// CurrentTurn is the display name of the player to move.
// tygo:generate
type TurnUpdateEvent struct {
	CurrentTurn         string `json:"currentTurn"`
	CurrentTurnSocketID string `json:"currentTurnSocketId"`
}

// ============================================================================
// GAME OVER (gameOver broadcast)
// ============================================================================
// Maps are keyed by player display name.
// tygo:generate
type GameOverEvent struct {
	Winner         string                  `json:"winner"`
	WinnerSocketID string                  `json:"winnerSocketId"`
	Secrets        map[string]string       `json:"secrets"`
	TotalGuesses   map[string]int          `json:"totalGuesses"`
	Stats          map[string]stats.Record `json:"stats"`
}

// ============================================================================
// CHAT (chatMessage, chatReaction)
// ============================================================================
// tygo:generate
type ChatMessageRequest struct {
	Text string `json:"text"`
}

// tygo:generate
type ChatReactionRequest struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

// tygo:generate
type ChatMessageEvent struct {
	ID             string              `json:"id"`
	Sender         string              `json:"sender"`
	SenderSocketID string              `json:"senderSocketId"`
	Text           string              `json:"text"`
	Timestamp      int64               `json:"timestamp"`
	Reactions      map[string][]string `json:"reactions"`
}

// tygo:generate
type ChatReactionUpdateEvent struct {
	MessageID string              `json:"messageId"`
	Reactions map[string][]string `json:"reactions"`
}

// ============================================================================
// HTTP API
// ============================================================================
// tygo:generate
type HealthResponse struct {
	Status  string  `json:"status"`
	Uptime  float64 `json:"uptime"`
	Rooms   int     `json:"rooms"`
	Players int     `json:"players"`
}

// tygo:generate
type OnlineResponse struct {
	Online int `json:"online"`
	Rooms  int `json:"rooms"`
}
