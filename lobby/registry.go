/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package lobby owns the set of live rooms and the mapping from player
// tokens to the room they sit in. A Registry is not safe for concurrent
// use; the gateway serializes every call through one goroutine.
package lobby

import (
	"crypto/rand"
	"encoding/json"
	"io"
	mrand "math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Seednode/partyline/games"
)

const (
	codeLength   = 4
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeAttempts = 1024
	maxBots      = 16
)

// codeCeiling is the largest multiple of len(codeAlphabet) that fits in a
// byte. Bytes at or above it are discarded so every symbol is equally likely.
const codeCeiling = 256 - 256%len(codeAlphabet)

// Change is what an operation did: the room it touched, the events to fan
// out, and whether the room was deleted as a result.
type Change struct {
	Room   *Room
	Events []games.Event
	Closed bool
}

type Registry struct {
	log       zerolog.Logger
	rooms     map[string]*Room
	tokens    map[string]string
	factories map[string]Factory
	codes     io.Reader
	rand      func() games.Rand
	clock     games.Clock
}

type Option func(*Registry)

func WithLogger(log zerolog.Logger) Option {
	return func(r *Registry) { r.log = log }
}

// WithCodeSource replaces crypto/rand as the source of room code bytes.
func WithCodeSource(src io.Reader) Option {
	return func(r *Registry) { r.codes = src }
}

// WithRand sets how each new room's randomness is created.
func WithRand(fn func() games.Rand) Option {
	return func(r *Registry) { r.rand = fn }
}

func WithClock(c games.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// WithFactory registers or replaces a game type.
func WithFactory(name string, f Factory) Option {
	return func(r *Registry) { r.factories[name] = f }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		log:       zerolog.Nop(),
		rooms:     make(map[string]*Room),
		tokens:    make(map[string]string),
		factories: DefaultFactories(),
		codes:     rand.Reader,
		rand:      func() games.Rand { return games.NewRand(mrand.Uint64(), mrand.Uint64()) },
		clock:     games.SystemClock,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Registry) now() time.Time {
	return r.clock.Now()
}

// GameTypes lists the registered game names in order.
func (r *Registry) GameTypes() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// newCode draws codes until one is not held by a live room.
func (r *Registry) newCode() (string, error) {
	buf := make([]byte, 1)

	for range codeAttempts {
		out := make([]byte, 0, codeLength)
		for len(out) < codeLength {
			if _, err := io.ReadFull(r.codes, buf); err != nil {
				return "", err
			}
			if int(buf[0]) >= codeCeiling {
				continue
			}
			out = append(out, codeAlphabet[int(buf[0])%len(codeAlphabet)])
		}

		code := string(out)
		if _, exists := r.rooms[code]; !exists {
			return code, nil
		}
	}

	return "", &games.Error{Kind: games.KindInternal, Message: "unable to allocate a room code"}
}

// NormalizeCode upper-cases and trims a user-supplied room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (r *Registry) Rooms() int {
	return len(r.rooms)
}

func (r *Registry) Lookup(code string) (*Room, bool) {
	room, ok := r.rooms[NormalizeCode(code)]

	return room, ok
}

// RoomOf finds the room a token is seated in.
func (r *Registry) RoomOf(token string) (*Room, bool) {
	code, ok := r.tokens[token]
	if !ok {
		return nil, false
	}

	room, ok := r.rooms[code]

	return room, ok
}

func (r *Registry) CreateRoom(gameType, token, name string, settings json.RawMessage) (Change, error) {
	if _, ok := r.tokens[token]; ok {
		return Change{}, games.ErrInRoom
	}

	factory, ok := r.factories[gameType]
	if !ok {
		return Change{}, games.Wrap(games.ErrUnknownGame, "%q", gameType)
	}

	if _, err := games.NormalizeName(name); err != nil {
		return Change{}, err
	}

	variant, err := factory(settings, games.Env{Rand: r.rand(), Clock: r.clock})
	if err != nil {
		return Change{}, err
	}

	code, err := r.newCode()
	if err != nil {
		return Change{}, err
	}

	room := newRoom(code, gameType, variant, r.now)

	p, events, err := room.AddPlayer(token, name)
	if err != nil {
		return Change{}, err
	}

	r.rooms[code] = room
	r.tokens[token] = code

	r.log.Info().Str("room", code).Str("game", gameType).Str("player", p.ID).Msg("room created")

	events = append([]games.Event{games.Broadcast("room-created", map[string]string{
		"code":     code,
		"gameType": gameType,
	})}, events...)

	return Change{Room: room, Events: events}, nil
}

func (r *Registry) JoinRoom(code, token, name string) (Change, error) {
	if _, ok := r.tokens[token]; ok {
		return Change{}, games.ErrInRoom
	}

	room, ok := r.Lookup(code)
	if !ok {
		return Change{}, games.Wrap(games.ErrRoomNotFound, "%q", NormalizeCode(code))
	}

	p, events, err := room.AddPlayer(token, name)
	if err != nil {
		return Change{}, err
	}

	r.tokens[token] = room.Code()

	r.log.Debug().Str("room", room.Code()).Str("player", p.ID).Msg("player joined")

	return Change{Room: room, Events: events}, nil
}

// Leave removes the player behind token. A room without humans is deleted.
func (r *Registry) Leave(token string) (Change, error) {
	room, ok := r.RoomOf(token)
	if !ok {
		return Change{}, games.ErrNotInRoom
	}

	delete(r.tokens, token)

	p, events, _ := room.RemovePlayer(token)

	r.log.Debug().Str("room", room.Code()).Str("player", p.ID).Msg("player left")

	if room.Empty() {
		r.deleteRoom(room, "empty")

		return Change{Room: room, Closed: true}, nil
	}

	return Change{Room: room, Events: events}, nil
}

func (r *Registry) deleteRoom(room *Room, reason string) {
	for _, p := range room.Players() {
		delete(r.tokens, p.Token)
	}
	delete(r.rooms, room.Code())

	r.log.Info().Str("room", room.Code()).Str("reason", reason).Msg("room closed")
}

func (r *Registry) Start(token string) (Change, error) {
	room, ok := r.RoomOf(token)
	if !ok {
		return Change{}, games.ErrNotInRoom
	}

	events, err := room.Start(token)
	if err != nil {
		return Change{}, err
	}

	r.log.Info().Str("room", room.Code()).Str("game", room.GameType()).Int("players", len(room.Players())).Msg("game started")

	return Change{Room: room, Events: events}, nil
}

func (r *Registry) AddBots(token string, n int) (Change, error) {
	room, ok := r.RoomOf(token)
	if !ok {
		return Change{}, games.ErrNotInRoom
	}
	if n > maxBots {
		return Change{}, games.Validationf("at most %d bots can be added at once", maxBots)
	}

	events, err := room.AddBots(token, n)
	if err != nil {
		return Change{}, err
	}

	return Change{Room: room, Events: events}, nil
}

// Route decodes a game event and hands it to the sender's room. Nothing is
// mutated when decoding or validation fails.
func (r *Registry) Route(token, event string, payload json.RawMessage) (Change, error) {
	room, ok := r.RoomOf(token)
	if !ok {
		return Change{}, games.ErrNotInRoom
	}

	action, err := games.DecodeAction(event, payload)
	if err != nil {
		return Change{}, err
	}

	events, err := room.Handle(token, action)
	if err != nil {
		return Change{}, err
	}

	return Change{Room: room, Events: events}, nil
}

func (r *Registry) Disconnect(token string) (Change, bool) {
	return r.setConnected(token, false, "player-disconnected")
}

func (r *Registry) Reconnect(token string) (Change, bool) {
	return r.setConnected(token, true, "player-reconnected")
}

func (r *Registry) setConnected(token string, connected bool, event string) (Change, bool) {
	room, ok := r.RoomOf(token)
	if !ok {
		return Change{}, false
	}

	p, ok := room.SetConnected(token, connected)
	if !ok {
		return Change{}, false
	}

	return Change{
		Room:   room,
		Events: []games.Event{games.Broadcast(event, map[string]string{"playerId": p.ID})},
	}, true
}

// TickAll advances every started room with timed transitions. Rooms are
// visited in code order.
func (r *Registry) TickAll(now time.Time) []Change {
	codes := make([]string, 0, len(r.rooms))
	for code := range r.rooms {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var changes []Change
	for _, code := range codes {
		room := r.rooms[code]
		if events := room.Tick(now); len(events) > 0 {
			changes = append(changes, Change{Room: room, Events: events})
		}
	}

	return changes
}

// Purge deletes rooms with no connected humans that have been idle for at
// least maxAge, returning their codes.
func (r *Registry) Purge(now time.Time, maxAge time.Duration) []string {
	var purged []string

	for _, room := range r.rooms {
		if room.Connected() > 0 || now.Sub(room.LastActive()) < maxAge {
			continue
		}

		purged = append(purged, room.Code())
		r.deleteRoom(room, "idle")
	}
	sort.Strings(purged)

	return purged
}
