package domain

import (
	"math/rand"
	"strings"
	"time"
)

// PlayerRecord is one active participant, keyed by its live connection.
type PlayerRecord struct {
	ConnID     string    `json:"connId"`
	ClientKey  string    `json:"clientKey"`
	Name       string    `json:"name"`
	Color      Color     `json:"color"`
	Ready      bool      `json:"ready"`
	LastActive time.Time `json:"lastActive"`
}

// Recall is what the session remembers about a client key after its
// connection is gone.
type Recall struct {
	Name       string `json:"name"`
	Color      *Color `json:"color,omitempty"`
	LastConnID string `json:"lastConnId,omitempty"`
}

// JoinOutcome describes the record produced by Join.
type JoinOutcome struct {
	Player PlayerRecord
	// PreviousConnID is the connection this client key used before, if any.
	PreviousConnID string
	// Evicted is set when PreviousConnID still had a live record that Join
	// retired.
	Evicted bool
}

// Rejoined reports whether the client key had a previous connection.
func (o JoinOutcome) Rejoined() bool {
	return o.PreviousConnID != ""
}

// SessionStore maps live connections to players and client keys to
// connections. It is not safe for concurrent use.
type SessionStore struct {
	players map[string]*PlayerRecord
	order   []string          // connection ids in join order
	byKey   map[string]string // client key -> live connection id
	memory  map[string]Recall // client key -> recall, survives disconnects
	colors  *ColorPool
}

// NewSessionStore returns an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		players: make(map[string]*PlayerRecord),
		byKey:   make(map[string]string),
		memory:  make(map[string]Recall),
		colors:  NewColorPool(),
	}
}

// Join registers connID for clientKey. A client key that already owns a live
// record hands that record's colour and turn position to connID and the old
// record is retired. A key seen before but without a live record reclaims its
// remembered colour when it is still free. The new record is never ready.
func (s *SessionStore) Join(connID, clientKey, name string, now time.Time, rng *rand.Rand) (JoinOutcome, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return JoinOutcome{}, ErrEmptyName
	}
	if clientKey == "" {
		clientKey = connID
	}

	// Same connection joining again, e.g. to change its name.
	if rec, ok := s.players[connID]; ok {
		if rec.ClientKey == clientKey {
			rec.Name = name
			rec.Ready = false
			rec.LastActive = now
			s.remember(clientKey, name, rec.Color, connID)
			return JoinOutcome{Player: *rec}, nil
		}
		s.Remove(connID)
	}

	out := JoinOutcome{}
	var color Color

	if old, ok := s.byKey[clientKey]; ok && old != connID {
		prev := s.players[old]
		color = prev.Color
		delete(s.players, old)
		for i, id := range s.order {
			if id == old {
				s.order[i] = connID
				break
			}
		}
		out.PreviousConnID = old
		out.Evicted = true
	} else {
		recall, known := s.memory[clientKey]
		if known && recall.Color != nil && s.colors.Claim(*recall.Color) {
			color = *recall.Color
		} else {
			color = s.colors.Acquire(rng)
		}
		if known && recall.LastConnID != connID {
			out.PreviousConnID = recall.LastConnID
		}
		s.order = append(s.order, connID)
	}

	rec := &PlayerRecord{
		ConnID:     connID,
		ClientKey:  clientKey,
		Name:       name,
		Color:      color,
		Ready:      false,
		LastActive: now,
	}
	s.players[connID] = rec
	s.byKey[clientKey] = connID
	s.remember(clientKey, name, color, connID)

	out.Player = *rec
	return out, nil
}

// MarkReady flags connID as ready and reports whether every active player is
// now ready. Unknown connections are ignored.
func (s *SessionStore) MarkReady(connID string, now time.Time) bool {
	rec, ok := s.players[connID]
	if !ok {
		return false
	}
	rec.Ready = true
	rec.LastActive = now
	return s.AllReady()
}

// AllReady reports whether at least one player is active and all are ready.
func (s *SessionStore) AllReady() bool {
	if len(s.players) == 0 {
		return false
	}
	for _, rec := range s.players {
		if !rec.Ready {
			return false
		}
	}
	return true
}

// ClearReady resets every ready flag.
func (s *SessionStore) ClearReady() {
	for _, rec := range s.players {
		rec.Ready = false
	}
}

// Touch refreshes a player's activity timestamp.
func (s *SessionStore) Touch(connID string, now time.Time) {
	if rec, ok := s.players[connID]; ok {
		rec.LastActive = now
	}
}

// Remove retires connID, releasing its colour and its client-key mapping.
// What the session remembers about the key is kept.
func (s *SessionStore) Remove(connID string) (PlayerRecord, bool) {
	rec, ok := s.players[connID]
	if !ok {
		return PlayerRecord{}, false
	}
	delete(s.players, connID)
	for i, id := range s.order {
		if id == connID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.colors.Release(rec.Color)
	if s.byKey[rec.ClientKey] == connID {
		delete(s.byKey, rec.ClientKey)
	}
	return *rec, true
}

// Player returns the record for connID.
func (s *SessionStore) Player(connID string) (PlayerRecord, bool) {
	rec, ok := s.players[connID]
	if !ok {
		return PlayerRecord{}, false
	}
	return *rec, true
}

// Players returns all active records in join order.
func (s *SessionStore) Players() []PlayerRecord {
	out := make([]PlayerRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.players[id])
	}
	return out
}

// Order returns active connection ids in join order.
func (s *SessionStore) Order() []string {
	return append([]string(nil), s.order...)
}

// Len returns the number of active players.
func (s *SessionStore) Len() int {
	return len(s.players)
}

// ConnForKey returns the live connection registered for clientKey.
func (s *SessionStore) ConnForKey(clientKey string) (string, bool) {
	id, ok := s.byKey[clientKey]
	return id, ok
}

// LastConnForKey returns the live connection for clientKey or, failing that,
// the last one it used.
func (s *SessionStore) LastConnForKey(clientKey string) string {
	if id, ok := s.byKey[clientKey]; ok {
		return id
	}
	return s.memory[clientKey].LastConnID
}

// Recall returns what is remembered about clientKey.
func (s *SessionStore) Recall(clientKey string) (Recall, bool) {
	r, ok := s.memory[clientKey]
	return r, ok
}

// Colors exposes the pool for inspection.
func (s *SessionStore) Colors() *ColorPool {
	return s.colors
}

func (s *SessionStore) remember(clientKey, name string, color Color, connID string) {
	c := color
	s.memory[clientKey] = Recall{Name: name, Color: &c, LastConnID: connID}
}
