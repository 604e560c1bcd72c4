package server

import (
	"cmp"
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"decode-server/internal/decode"
	"decode-server/internal/stats"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	maxUsernameLength = 20
	maxChatLength     = 500
	quickMatchRetries = 8

	defaultCreatorName = "Player 1"
	defaultJoinerName  = "Player 2"
)

// Sink delivers outbound messages to a connection. Send must not block.
type Sink interface {
	Send(connectionID string, msg ServerMessage)
}

type handlerFunc func(c *Coordinator, connectionID string, payload json.RawMessage) []Envelope

var commandHandlers = map[string]handlerFunc{
	CmdCreateRoom:   (*Coordinator).createRoom,
	CmdJoinRoom:     (*Coordinator).joinRoom,
	CmdQuickMatch:   (*Coordinator).quickMatch,
	CmdSetSecret:    (*Coordinator).setSecret,
	CmdMakeGuess:    (*Coordinator).makeGuess,
	CmdChatMessage:  (*Coordinator).chatMessage,
	CmdChatReaction: (*Coordinator).chatReaction,
	CmdPlayAgain:    (*Coordinator).playAgain,
	CmdPing:         (*Coordinator).ping,
}

// Coordinator runs player commands against the room registry. Every handler
// delivers its events to the sink while the affected room is still locked,
// so all participants observe one room's events in the same order. The
// returned envelopes are the same events, for callers that want to inspect
// them.
type Coordinator struct {
	registry     *RoomRegistry
	stats        stats.Store
	sink         Sink
	now          func() time.Time
	newID        func() string
	statsTimeout time.Duration
}

func NewCoordinator(registry *RoomRegistry, store stats.Store, sink Sink) *Coordinator {
	return &Coordinator{
		registry:     registry,
		stats:        store,
		sink:         sink,
		now:          time.Now,
		newID:        uuid.NewString,
		statsTimeout: 5 * time.Second,
	}
}

// Handle dispatches one inbound command.
func (c *Coordinator) Handle(connectionID, msgType string, payload json.RawMessage) []Envelope {
	handler, ok := commandHandlers[msgType]
	if !ok {
		return c.reject(connectionID, unknownCommand(msgType))
	}
	return handler(c, connectionID, payload)
}

// Disconnect removes the connection from its room, if any.
func (c *Coordinator) Disconnect(connectionID string) []Envelope {
	return c.leave(connectionID)
}

// ============================================================================
// ROOM ENTRY
// ============================================================================

func (c *Coordinator) createRoom(connectionID string, payload json.RawMessage) []Envelope {
	var req CreateRoomRequest
	if err := decodePayload(payload, &req); err != nil {
		return c.reject(connectionID, ErrInvalidPayload)
	}
	name, err := normalizeName(req.PlayerName, defaultCreatorName)
	if err != nil {
		return c.reject(connectionID, err)
	}
	length, err := normalizeLength(req.NumberLength)
	if err != nil {
		return c.reject(connectionID, err)
	}

	events := c.leave(connectionID)
	room := c.registry.CreateRoom(length, newParticipant(connectionID, name), func(room *Room) {
		events = append(events, c.deliver(
			to(connectionID, EvtRoomCreated, RoomCreatedEvent{
				Code:         room.Code,
				NumberLength: room.NumberLength,
				PlayerIndex:  0,
			}),
		)...)
	})

	log.Info().Str("room", room.Code).Str("player", name).Int("numberLength", length).Msg("Room created")
	return events
}

func (c *Coordinator) joinRoom(connectionID string, payload json.RawMessage) []Envelope {
	var req JoinRoomRequest
	if err := decodePayload(payload, &req); err != nil {
		return c.reject(connectionID, ErrInvalidPayload)
	}
	name, err := normalizeName(req.PlayerName, defaultJoinerName)
	if err != nil {
		return c.reject(connectionID, err)
	}

	events := c.leave(connectionID)
	p := newParticipant(connectionID, name)
	room, err := c.registry.JoinRoom(req.Code, p, func(room *Room) {
		events = append(events, c.deliver(c.pairedEvents(room, p)...)...)
	})
	if err != nil {
		log.Debug().Str("room", NormalizeRoomCode(req.Code)).Err(err).Msg("Join rejected")
		return append(events, c.reject(connectionID, err)...)
	}

	log.Info().Str("room", room.Code).Str("player", name).Msg("Player joined room")
	return events
}

func (c *Coordinator) quickMatch(connectionID string, payload json.RawMessage) []Envelope {
	var req QuickMatchRequest
	if err := decodePayload(payload, &req); err != nil {
		return c.reject(connectionID, ErrInvalidPayload)
	}
	name, err := normalizeName(req.PlayerName, "")
	if err != nil {
		return c.reject(connectionID, err)
	}
	length, err := normalizeLength(req.NumberLength)
	if err != nil {
		return c.reject(connectionID, err)
	}

	events := c.leave(connectionID)

	joinerName := cmp.Or(name, defaultJoinerName)
	for range quickMatchRetries {
		open := c.registry.FindOpenRoom(length)
		if open == nil {
			break
		}
		p := newParticipant(connectionID, joinerName)
		room, err := c.registry.JoinRoom(open.Code, p, func(room *Room) {
			events = append(events, c.deliver(c.pairedEvents(room, p)...)...)
		})
		if err == nil {
			log.Info().Str("room", room.Code).Str("player", joinerName).Msg("Quick match paired")
			return events
		}
		// Someone else took the seat or the room went away; look again.
	}

	creatorName := cmp.Or(name, defaultCreatorName)
	room := c.registry.CreateRoom(length, newParticipant(connectionID, creatorName), func(room *Room) {
		events = append(events, c.deliver(
			to(connectionID, EvtQuickMatchWaiting, QuickMatchWaitingEvent{
				Code:         room.Code,
				NumberLength: room.NumberLength,
			}),
		)...)
	})

	log.Info().Str("room", room.Code).Str("player", creatorName).Msg("Quick match waiting")
	return events
}

// pairedEvents announces a second player. Called with room locked.
func (c *Coordinator) pairedEvents(room *Room, joiner *Participant) []Envelope {
	host := room.opponentOf(joiner.ConnectionID)
	return []Envelope{
		to(joiner.ConnectionID, EvtRoomJoined, RoomJoinedEvent{
			Code:         room.Code,
			NumberLength: room.NumberLength,
			PlayerIndex:  room.indexOf(joiner.ConnectionID),
			OpponentName: host.Name,
		}),
		to(host.ConnectionID, EvtOpponentJoined, OpponentJoinedEvent{OpponentName: joiner.Name}),
		toRoom(room, EvtPhaseChange, PhaseChangeEvent{Phase: PhaseSetup, NumberLength: room.NumberLength}),
	}
}

// ============================================================================
// GAMEPLAY
// ============================================================================

func (c *Coordinator) setSecret(connectionID string, payload json.RawMessage) []Envelope {
	var req SetSecretRequest
	if err := decodePayload(payload, &req); err != nil {
		return c.reject(connectionID, ErrInvalidPayload)
	}

	var events []Envelope
	c.registry.WithConnectionRoom(connectionID, func(room *Room) {
		if room.Phase != PhaseSetup {
			return
		}
		if !decode.IsValid(req.Secret, room.NumberLength) {
			events = c.reject(connectionID, invalidNumber(room.NumberLength))
			return
		}

		room.participant(connectionID).Secret = req.Secret

		out := []Envelope{to(connectionID, EvtSecretSet, SecretSetEvent{Success: true})}
		if opponent := room.opponentOf(connectionID); opponent != nil {
			out = append(out, to(opponent.ConnectionID, EvtOpponentReady, Empty{}))
		}
		if room.bothSecretsSet() {
			room.Phase = PhasePlaying
			room.Turn = 0
			out = append(out,
				toRoom(room, EvtPhaseChange, PhaseChangeEvent{Phase: PhasePlaying}),
				turnUpdate(room),
			)
			log.Info().Str("room", room.Code).Msg("Game started")
		}
		events = c.deliver(out...)
	})
	return events
}

func (c *Coordinator) makeGuess(connectionID string, payload json.RawMessage) []Envelope {
	var req MakeGuessRequest
	if err := decodePayload(payload, &req); err != nil {
		return c.reject(connectionID, ErrInvalidPayload)
	}

	var events []Envelope
	c.registry.WithConnectionRoom(connectionID, func(room *Room) {
		if room.Phase != PhasePlaying || len(room.Players) != maxPlayers {
			return
		}
		guesser := room.Players[room.Turn]
		if guesser.ConnectionID != connectionID {
			events = c.reject(connectionID, ErrNotYourTurn)
			return
		}
		if !decode.IsValid(req.Guess, room.NumberLength) {
			events = c.reject(connectionID, invalidNumber(room.NumberLength))
			return
		}

		opponent := room.Players[1-room.Turn]
		feedback := decode.Score(opponent.Secret, req.Guess)
		guesser.Guesses = append(guesser.Guesses, GuessRecord{
			Guess:           req.Guess,
			CorrectDigit:    feedback.CorrectDigit,
			CorrectPosition: feedback.CorrectPosition,
			Timestamp:       c.now(),
		})

		out := []Envelope{toRoom(room, EvtGuessResult, GuessResultEvent{
			PlayerName:      guesser.Name,
			PlayerSocketID:  guesser.ConnectionID,
			Guess:           req.Guess,
			CorrectDigit:    feedback.CorrectDigit,
			CorrectPosition: feedback.CorrectPosition,
			GuessNumber:     len(guesser.Guesses),
		})}

		if feedback.Solved(room.NumberLength) {
			room.Phase = PhaseFinished
			room.Winner = guesser
			result := c.recordResult(room.Code, guesser.Name, opponent.Name)
			out = append(out, toRoom(room, EvtGameOver, gameOver(room, guesser, opponent, result)))
			log.Info().
				Str("room", room.Code).
				Str("winner", guesser.Name).
				Int("guesses", len(guesser.Guesses)).
				Msg("Game over")
		} else {
			room.Turn = 1 - room.Turn
			out = append(out, turnUpdate(room))
		}
		events = c.deliver(out...)
	})
	return events
}

func (c *Coordinator) playAgain(connectionID string, payload json.RawMessage) []Envelope {
	var events []Envelope
	c.registry.WithConnectionRoom(connectionID, func(room *Room) {
		if len(room.Players) != maxPlayers {
			return
		}
		room.resetRound()
		room.Phase = PhaseSetup
		events = c.deliver(
			toRoom(room, EvtPhaseChange, PhaseChangeEvent{Phase: PhaseSetup, NumberLength: room.NumberLength}),
			toRoom(room, EvtGameReset, Empty{}),
		)
		log.Info().Str("room", room.Code).Msg("Round reset")
	})
	return events
}

// recordResult persists the outcome. Failures are logged and the game still
// ends; the returned records are whatever the store could produce.
func (c *Coordinator) recordResult(code, winner, loser string) stats.Result {
	ctx, cancel := context.WithTimeout(context.Background(), c.statsTimeout)
	defer cancel()

	result, err := c.stats.RecordResult(ctx, winner, loser)
	if err != nil {
		log.Error().Err(err).Str("room", code).Str("winner", winner).Str("loser", loser).Msg("Failed to record stats")
	}
	return result
}

func gameOver(room *Room, winner, loser *Participant, result stats.Result) GameOverEvent {
	event := GameOverEvent{
		Winner:         winner.Name,
		WinnerSocketID: winner.ConnectionID,
		Secrets:        make(map[string]string, len(room.Players)),
		TotalGuesses:   make(map[string]int, len(room.Players)),
		Stats: map[string]stats.Record{
			winner.Name: result.Winner,
		},
	}
	for _, p := range room.Players {
		event.Secrets[p.Name] = p.Secret
		event.TotalGuesses[p.Name] = len(p.Guesses)
	}
	event.Stats[loser.Name] = result.Loser
	return event
}

func turnUpdate(room *Room) Envelope {
	return toRoom(room, EvtTurnUpdate, TurnUpdateEvent{
		CurrentTurn:         room.Players[room.Turn].Name,
		CurrentTurnSocketID: room.Players[room.Turn].ConnectionID,
	})
}

// ============================================================================
// CHAT
// ============================================================================

func (c *Coordinator) chatMessage(connectionID string, payload json.RawMessage) []Envelope {
	var req ChatMessageRequest
	if err := decodePayload(payload, &req); err != nil {
		return c.reject(connectionID, ErrInvalidPayload)
	}
	text := truncateRunes(strings.TrimSpace(req.Text), maxChatLength)
	if text == "" {
		return nil
	}

	var events []Envelope
	c.registry.WithConnectionRoom(connectionID, func(room *Room) {
		sender := room.participant(connectionID)
		msg := &ChatMessage{
			ID:             c.newID(),
			Sender:         sender.Name,
			SenderSocketID: connectionID,
			Text:           text,
			Timestamp:      c.now(),
			Reactions:      make(map[string][]string),
		}
		room.Chat = append(room.Chat, msg)

		events = c.deliver(toRoom(room, EvtChatMessage, ChatMessageEvent{
			ID:             msg.ID,
			Sender:         msg.Sender,
			SenderSocketID: msg.SenderSocketID,
			Text:           msg.Text,
			Timestamp:      msg.Timestamp.UnixMilli(),
			Reactions:      msg.reactionsSnapshot(),
		}))
	})
	return events
}

func (c *Coordinator) chatReaction(connectionID string, payload json.RawMessage) []Envelope {
	var req ChatReactionRequest
	if err := decodePayload(payload, &req); err != nil {
		return c.reject(connectionID, ErrInvalidPayload)
	}
	if req.MessageID == "" || req.Emoji == "" {
		return nil
	}

	var events []Envelope
	c.registry.WithConnectionRoom(connectionID, func(room *Room) {
		msg := room.findMessage(req.MessageID)
		if msg == nil {
			return
		}
		msg.toggleReaction(req.Emoji, room.participant(connectionID).Name)

		events = c.deliver(toRoom(room, EvtChatReactionUpdate, ChatReactionUpdateEvent{
			MessageID: msg.ID,
			Reactions: msg.reactionsSnapshot(),
		}))
	})
	return events
}

// ============================================================================
// CONNECTION LIFECYCLE
// ============================================================================

func (c *Coordinator) ping(connectionID string, payload json.RawMessage) []Envelope {
	return c.deliver(to(connectionID, EvtPong, Empty{}))
}

func (c *Coordinator) leave(connectionID string) []Envelope {
	var events []Envelope
	c.registry.RemoveParticipant(connectionID, func(room *Room, left *Participant) {
		log.Info().Str("room", room.Code).Str("player", left.Name).Int("remaining", len(room.Players)).Msg("Player left room")
		if len(room.Players) == 0 {
			return
		}
		events = c.deliver(toRoom(room, EvtOpponentDisconnected, Empty{}))
	})
	return events
}

// ============================================================================
// HELPERS
// ============================================================================

func (c *Coordinator) deliver(events ...Envelope) []Envelope {
	for _, e := range events {
		for _, id := range e.To {
			c.sink.Send(id, e.Message)
		}
	}
	return events
}

func (c *Coordinator) reject(connectionID string, err error) []Envelope {
	return c.deliver(to(connectionID, EvtError, errorMessage(err)))
}

func toRoom(room *Room, msgType string, payload any) Envelope {
	return Envelope{
		To:      room.connectionIDs(),
		Message: ServerMessage{Type: msgType, Payload: payload},
	}
}

func newParticipant(connectionID, name string) *Participant {
	return &Participant{ConnectionID: connectionID, Name: name}
}

func normalizeName(name, fallback string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return fallback, nil
	}
	if utf8.RuneCountInString(name) > maxUsernameLength {
		return "", ErrInvalidUsername
	}
	return name, nil
}

func normalizeLength(n int) (int, error) {
	if n == 0 {
		return decode.DefaultLength, nil
	}
	if !decode.LengthInRange(n) {
		return 0, ErrInvalidLength
	}
	return n, nil
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
