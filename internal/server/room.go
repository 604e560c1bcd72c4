package server

import (
	"slices"
	"sync"
	"time"
)

type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseSetup    Phase = "setup"
	PhasePlaying  Phase = "playing"
	PhaseFinished Phase = "finished"
)

const maxPlayers = 2

// Room is one two-player match. Every field except Code and CreatedAt is
// guarded by mu; handlers only see a Room through Registry callbacks, which
// run with mu held.
type Room struct {
	Code         string
	NumberLength int
	Players      []*Participant
	Phase        Phase
	Turn         int
	Winner       *Participant
	Chat         []*ChatMessage
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// closed is set once the room has been dropped from the registry, so a
	// caller that looked it up just before deletion can tell.
	closed bool
	mu     sync.Mutex
}

type Participant struct {
	ConnectionID string
	Name         string
	Secret       string
	Guesses      []GuessRecord
}

type GuessRecord struct {
	Guess           string
	CorrectDigit    int
	CorrectPosition int
	Timestamp       time.Time
}

type ChatMessage struct {
	ID             string
	Sender         string
	SenderSocketID string
	Text           string
	Timestamp      time.Time
	Reactions      map[string][]string
}

func newRoom(code string, numberLength int, now time.Time) *Room {
	return &Room{
		Code:         code,
		NumberLength: numberLength,
		Phase:        PhaseWaiting,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (r *Room) indexOf(connectionID string) int {
	return slices.IndexFunc(r.Players, func(p *Participant) bool {
		return p.ConnectionID == connectionID
	})
}

func (r *Room) participant(connectionID string) *Participant {
	if i := r.indexOf(connectionID); i >= 0 {
		return r.Players[i]
	}
	return nil
}

func (r *Room) opponentOf(connectionID string) *Participant {
	for _, p := range r.Players {
		if p.ConnectionID != connectionID {
			return p
		}
	}
	return nil
}

func (r *Room) isFull() bool {
	return len(r.Players) >= maxPlayers
}

func (r *Room) bothSecretsSet() bool {
	if len(r.Players) != maxPlayers {
		return false
	}
	for _, p := range r.Players {
		if p.Secret == "" {
			return false
		}
	}
	return true
}

func (r *Room) connectionIDs() []string {
	ids := make([]string, len(r.Players))
	for i, p := range r.Players {
		ids[i] = p.ConnectionID
	}
	return ids
}

// resetRound clears everything a finished or abandoned round leaves behind.
// Phase is left to the caller.
func (r *Room) resetRound() {
	for _, p := range r.Players {
		p.Secret = ""
		p.Guesses = nil
	}
	r.Turn = 0
	r.Winner = nil
	r.Chat = nil
}

func (r *Room) findMessage(id string) *ChatMessage {
	for _, m := range r.Chat {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// toggleReaction adds name to the emoji's set, or removes it if present.
// An emoji with no reactors left is dropped entirely.
func (m *ChatMessage) toggleReaction(emoji, name string) {
	if m.Reactions == nil {
		m.Reactions = make(map[string][]string)
	}
	names := m.Reactions[emoji]
	if i := slices.Index(names, name); i >= 0 {
		names = slices.Delete(names, i, i+1)
	} else {
		names = append(names, name)
	}
	if len(names) == 0 {
		delete(m.Reactions, emoji)
		return
	}
	m.Reactions[emoji] = names
}

// reactionsSnapshot copies the reaction sets so an event payload never
// aliases room state.
func (m *ChatMessage) reactionsSnapshot() map[string][]string {
	out := make(map[string][]string, len(m.Reactions))
	for emoji, names := range m.Reactions {
		out[emoji] = slices.Clone(names)
	}
	return out
}
