package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"trivia-room-service/internal/domain"
	"trivia-room-service/internal/identity"
	"trivia-room-service/internal/store"
)

// PlayerService tracks who is in a room. A player record is created once per
// (room, user) and never removed on leave, so a disconnect-reconnect keeps the
// accumulated score.
type PlayerService struct {
	store    store.Store
	identity identity.Provider
	now      func() time.Time
}

func NewPlayerService(st store.Store, idp identity.Provider) *PlayerService {
	return &PlayerService{store: st, identity: idp, now: time.Now}
}

// NewPlayerServiceWithClock is test-only for deterministic timestamps.
func NewPlayerServiceWithClock(st store.Store, idp identity.Provider, now func() time.Time) *PlayerService {
	return &PlayerService{store: st, identity: idp, now: now}
}

// JoinRoom resolves the code, then either revives the caller's existing player
// record (rejoin, score preserved) or creates a fresh one.
func (s *PlayerService) JoinRoom(ctx context.Context, token, code, name string) (domain.Player, domain.Room, error) {
	caller, err := s.identity.CallerFromToken(ctx, token)
	if err != nil {
		return domain.Player{}, domain.Room{}, domain.ErrPermissionDenied
	}
	if !caller.Permissions.CanJoinRooms && !caller.IsAdmin() {
		return domain.Player{}, domain.Room{}, domain.ErrPermissionDenied
	}

	room, err := roomByCode(ctx, s.store, code)
	if err != nil {
		return domain.Player{}, domain.Room{}, err
	}

	if existing, ok, err := s.findPlayer(ctx, room.ID, caller.UserID); err != nil {
		return domain.Player{}, domain.Room{}, err
	} else if ok {
		existing.IsOnline = true
		if name != "" {
			existing.Name = name
		}
		now := s.now()
		existing.RejoinedAt = &now
		if err := store.PutJSON(ctx, s.store, store.PlayerPath(existing.ID), existing); err != nil {
			return domain.Player{}, domain.Room{}, err
		}
		return existing, room, nil
	}

	if !room.IsPublished {
		return domain.Player{}, domain.Room{}, domain.ErrRoomUnpublished
	}
	if room.IsStarted {
		return domain.Player{}, domain.Room{}, domain.ErrQuizStarted
	}
	if room.MaxPlayers > 0 {
		online, err := s.onlineCount(ctx, room.ID)
		if err != nil {
			return domain.Player{}, domain.Room{}, err
		}
		if online >= room.MaxPlayers {
			return domain.Player{}, domain.Room{}, domain.ErrRoomFull
		}
	}

	player := domain.Player{
		ID:       uuid.NewString(),
		Name:     name,
		RoomID:   room.ID,
		UserID:   caller.UserID,
		Score:    0,
		IsReady:  false,
		IsOnline: true,
		JoinedAt: s.now(),
	}
	if err := store.PutJSON(ctx, s.store, store.PlayerPath(player.ID), player); err != nil {
		return domain.Player{}, domain.Room{}, err
	}
	return player, room, nil
}

// CanRejoin reports whether the caller already has a player record in the room
// with the given code.
func (s *PlayerService) CanRejoin(ctx context.Context, token, code string) (bool, error) {
	caller, err := s.identity.CallerFromToken(ctx, token)
	if err != nil {
		return false, domain.ErrPermissionDenied
	}
	room, err := roomByCode(ctx, s.store, code)
	if err != nil {
		return false, nil
	}
	_, ok, err := s.findPlayer(ctx, room.ID, caller.UserID)
	return ok, err
}

// SetPlayerReady flags readiness in the lobby.
func (s *PlayerService) SetPlayerReady(ctx context.Context, playerID string, ready bool) (domain.Player, error) {
	player, ok, err := store.GetJSON[domain.Player](ctx, s.store, store.PlayerPath(playerID))
	if err != nil {
		return domain.Player{}, err
	}
	if !ok {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	player.IsReady = ready
	if err := store.PutJSON(ctx, s.store, store.PlayerPath(playerID), player); err != nil {
		return domain.Player{}, err
	}
	return player, nil
}

// LeaveRoom only flips the online flag; the record stays for rejoin and for
// round statistics integrity.
func (s *PlayerService) LeaveRoom(ctx context.Context, playerID string) error {
	player, ok, err := store.GetJSON[domain.Player](ctx, s.store, store.PlayerPath(playerID))
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrPlayerNotFound
	}
	player.IsOnline = false
	return store.PutJSON(ctx, s.store, store.PlayerPath(playerID), player)
}

// Player reads one player record.
func (s *PlayerService) Player(ctx context.Context, playerID string) (domain.Player, error) {
	player, ok, err := store.GetJSON[domain.Player](ctx, s.store, store.PlayerPath(playerID))
	if err != nil {
		return domain.Player{}, err
	}
	if !ok {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	return player, nil
}

// PlayersInRoom lists every player record of a room, online or not.
func (s *PlayerService) PlayersInRoom(ctx context.Context, roomID string) ([]domain.Player, error) {
	players, err := store.ListJSON[domain.Player](ctx, s.store, store.PlayersPath)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Player, 0, len(players))
	for _, player := range players {
		if player.RoomID == roomID {
			out = append(out, player)
		}
	}
	return out, nil
}

func (s *PlayerService) findPlayer(ctx context.Context, roomID, userID string) (domain.Player, bool, error) {
	players, err := store.ListJSON[domain.Player](ctx, s.store, store.PlayersPath)
	if err != nil {
		return domain.Player{}, false, err
	}
	for _, player := range players {
		if player.RoomID == roomID && player.UserID == userID {
			return player, true, nil
		}
	}
	return domain.Player{}, false, nil
}

func (s *PlayerService) onlineCount(ctx context.Context, roomID string) (int, error) {
	players, err := s.PlayersInRoom(ctx, roomID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, player := range players {
		if player.IsOnline {
			count++
		}
	}
	return count, nil
}
