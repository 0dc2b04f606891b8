package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"trivia-room-service/internal/domain"
	"trivia-room-service/internal/identity"
	"trivia-room-service/internal/store"
)

// QuestionBank loads reusable question sets (from cache/backing store).
type QuestionBank interface {
	QuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// RoomService owns the room lifecycle: create, publish, start, end, delete.
// Every mutating call re-reads the room from the store immediately before
// writing; no cached state is trusted.
type RoomService struct {
	store    store.Store
	identity identity.Provider
	bank     QuestionBank // optional
	now      func() time.Time
}

func NewRoomService(st store.Store, idp identity.Provider, bank QuestionBank) *RoomService {
	return &RoomService{store: st, identity: idp, bank: bank, now: time.Now}
}

// NewRoomServiceWithClock is test-only for deterministic timestamps.
func NewRoomServiceWithClock(st store.Store, idp identity.Provider, bank QuestionBank, now func() time.Time) *RoomService {
	return &RoomService{store: st, identity: idp, bank: bank, now: now}
}

type CreateRoomParams struct {
	Name       string
	MaxPlayers int
	Questions  []domain.Question
}

// CreateRoom creates an unpublished room owned by the caller.
func (s *RoomService) CreateRoom(ctx context.Context, token string, params CreateRoomParams) (domain.Room, error) {
	caller, err := s.identity.CallerFromToken(ctx, token)
	if err != nil {
		return domain.Room{}, domain.ErrPermissionDenied
	}
	if !caller.Permissions.CanCreateRooms && !caller.IsAdmin() {
		return domain.Room{}, domain.ErrPermissionDenied
	}
	if err := validateQuestions(params.Questions); err != nil {
		return domain.Room{}, err
	}

	questions := make([]domain.Question, len(params.Questions))
	copy(questions, params.Questions)
	for i := range questions {
		if questions[i].ID == "" {
			questions[i].ID = uuid.NewString()
		}
	}

	code, err := s.uniqueCode(ctx)
	if err != nil {
		return domain.Room{}, err
	}

	room := domain.Room{
		ID:                   uuid.NewString(),
		Name:                 params.Name,
		Code:                 code,
		OwnerID:              caller.UserID,
		MaxPlayers:           params.MaxPlayers,
		Questions:            questions,
		CurrentQuestionIndex: -1,
		CreatedAt:            s.now(),
	}
	if err := store.PutJSON(ctx, s.store, store.RoomPath(room.ID), room); err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

// CreateRoomFromBank builds a room from a stored question set.
func (s *RoomService) CreateRoomFromBank(ctx context.Context, token, setID, name string, maxPlayers int) (domain.Room, error) {
	if s.bank == nil {
		return domain.Room{}, domain.ErrQuestionSetNotFound
	}
	set, err := s.bank.QuestionSet(ctx, setID)
	if err != nil {
		return domain.Room{}, err
	}
	if name == "" {
		name = set.Name
	}
	return s.CreateRoom(ctx, token, CreateRoomParams{
		Name:       name,
		MaxPlayers: maxPlayers,
		Questions:  set.Questions,
	})
}

type UpdateRoomParams struct {
	Name       *string
	MaxPlayers *int
	Questions  *[]domain.Question
}

// UpdateRoom applies partial edits to a room the caller owns.
func (s *RoomService) UpdateRoom(ctx context.Context, token, roomID string, params UpdateRoomParams) (domain.Room, error) {
	room, _, err := authorizeRoom(ctx, s.store, s.identity, token, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if params.Name != nil {
		room.Name = *params.Name
	}
	if params.MaxPlayers != nil {
		room.MaxPlayers = *params.MaxPlayers
	}
	if params.Questions != nil {
		if err := validateQuestions(*params.Questions); err != nil {
			return domain.Room{}, err
		}
		room.Questions = *params.Questions
		for i := range room.Questions {
			if room.Questions[i].ID == "" {
				room.Questions[i].ID = uuid.NewString()
			}
		}
	}
	if err := store.PutJSON(ctx, s.store, store.RoomPath(roomID), room); err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

// PublishRoom opens the room for joins. A room without questions cannot be
// published.
func (s *RoomService) PublishRoom(ctx context.Context, token, roomID string) (domain.Room, error) {
	room, _, err := authorizeRoom(ctx, s.store, s.identity, token, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if len(room.Questions) == 0 {
		return domain.Room{}, domain.ErrNoQuestions
	}
	room.IsPublished = true
	if err := store.PutJSON(ctx, s.store, store.RoomPath(roomID), room); err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

// StartQuiz begins the quiz; after this point only returning players may join.
func (s *RoomService) StartQuiz(ctx context.Context, token, roomID string) (domain.Room, error) {
	room, _, err := authorizeRoom(ctx, s.store, s.identity, token, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if !room.IsPublished {
		return domain.Room{}, domain.ErrRoomUnpublished
	}
	room.IsStarted = true
	room.CurrentQuestionIndex = -1
	if err := store.PutJSON(ctx, s.store, store.RoomPath(roomID), room); err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

// EndQuiz captures the final round's statistics, clears the active round and
// marks the room completed.
func (s *RoomService) EndQuiz(ctx context.Context, token, roomID string) (domain.Room, error) {
	room, _, err := authorizeRoom(ctx, s.store, s.identity, token, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if err := captureRoundStatistics(ctx, s.store, roomID, room); err != nil {
		return domain.Room{}, err
	}
	if err := s.store.Delete(ctx, store.ActiveRoundPath(roomID)); err != nil {
		return domain.Room{}, err
	}
	room.IsStarted = true
	room.IsCompleted = true
	if err := store.PutJSON(ctx, s.store, store.RoomPath(roomID), room); err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

// ShowLeaderboard flips the leaderboard overlay on.
func (s *RoomService) ShowLeaderboard(ctx context.Context, token, roomID string) (domain.Room, error) {
	room, _, err := authorizeRoom(ctx, s.store, s.identity, token, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	room.ShowLeaderboard = true
	if err := store.PutJSON(ctx, s.store, store.RoomPath(roomID), room); err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

// HideLeaderboard captures the finished round's statistics, clears the active
// round and advances the question index to prep the next round's context.
func (s *RoomService) HideLeaderboard(ctx context.Context, token, roomID string) (domain.Room, error) {
	room, _, err := authorizeRoom(ctx, s.store, s.identity, token, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if err := captureRoundStatistics(ctx, s.store, roomID, room); err != nil {
		return domain.Room{}, err
	}
	if err := s.store.Delete(ctx, store.ActiveRoundPath(roomID)); err != nil {
		return domain.Room{}, err
	}
	room.ShowLeaderboard = false
	if room.CurrentQuestionIndex < len(room.Questions) {
		room.CurrentQuestionIndex++
	}
	if err := store.PutJSON(ctx, s.store, store.RoomPath(roomID), room); err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

// DeleteRoom removes the room and everything keyed by it: players, active
// round, answers, round statistics and settings. Each delete is independent;
// there is no cross-entity transaction.
func (s *RoomService) DeleteRoom(ctx context.Context, token, roomID string) error {
	caller, err := s.identity.CallerFromToken(ctx, token)
	if err != nil {
		return domain.ErrPermissionDenied
	}
	room, ok, err := store.GetJSON[domain.Room](ctx, s.store, store.RoomPath(roomID))
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrRoomNotFound
	}
	if room.OwnerID != caller.UserID && !caller.IsAdmin() && !caller.Permissions.CanDeleteRooms {
		return domain.ErrPermissionDenied
	}

	if err := s.store.Delete(ctx, store.RoomPath(roomID)); err != nil {
		return err
	}
	players, err := s.store.List(ctx, store.PlayersPath)
	if err != nil {
		return err
	}
	for _, entry := range players {
		var player domain.Player
		if err := json.Unmarshal(entry.Value, &player); err != nil {
			continue
		}
		if player.RoomID == roomID {
			if err := s.store.Delete(ctx, store.PlayerPath(entry.Key)); err != nil {
				return err
			}
		}
	}
	for _, path := range []string{
		store.ActiveRoundPath(roomID),
		store.AnswersPath(roomID),
		store.RoundStatsPath(roomID),
		store.RoundSettingsBranch(roomID),
	} {
		if err := s.store.Delete(ctx, path); err != nil {
			return err
		}
	}
	return nil
}

// Room reads a room by ID.
func (s *RoomService) Room(ctx context.Context, roomID string) (domain.Room, error) {
	room, ok, err := store.GetJSON[domain.Room](ctx, s.store, store.RoomPath(roomID))
	if err != nil {
		return domain.Room{}, err
	}
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return room, nil
}

// RoomByCode resolves a room by its join code with a full scan of all rooms.
func (s *RoomService) RoomByCode(ctx context.Context, code string) (domain.Room, error) {
	return roomByCode(ctx, s.store, code)
}

// WatchRoom streams room snapshots.
func (s *RoomService) WatchRoom(ctx context.Context, roomID string) (<-chan []byte, func(), error) {
	return s.store.Watch(ctx, store.RoomPath(roomID))
}

// uniqueCode draws 6-char codes until one is free among live rooms.
func (s *RoomService) uniqueCode(ctx context.Context) (string, error) {
	for {
		buf := make([]byte, 3)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		code := strings.ToUpper(hex.EncodeToString(buf))

		rooms, err := store.ListJSON[domain.Room](ctx, s.store, store.RoomsPath)
		if err != nil {
			return "", err
		}
		taken := false
		for _, room := range rooms {
			if strings.EqualFold(room.Code, code) && !room.IsCompleted {
				taken = true
				break
			}
		}
		if !taken {
			return code, nil
		}
	}
}

// authorizeRoom re-reads the room and checks the caller owns it or is an
// admin. The ownership check always uses the fresh copy.
func authorizeRoom(ctx context.Context, st store.Store, idp identity.Provider, token, roomID string) (domain.Room, identity.Caller, error) {
	caller, err := idp.CallerFromToken(ctx, token)
	if err != nil {
		return domain.Room{}, identity.Caller{}, domain.ErrPermissionDenied
	}
	room, ok, err := store.GetJSON[domain.Room](ctx, st, store.RoomPath(roomID))
	if err != nil {
		return domain.Room{}, identity.Caller{}, err
	}
	if !ok {
		return domain.Room{}, identity.Caller{}, domain.ErrRoomNotFound
	}
	if room.OwnerID != caller.UserID && !caller.IsAdmin() {
		return domain.Room{}, identity.Caller{}, domain.ErrPermissionDenied
	}
	return room, caller, nil
}

func roomByCode(ctx context.Context, st store.Store, code string) (domain.Room, error) {
	rooms, err := store.ListJSON[domain.Room](ctx, st, store.RoomsPath)
	if err != nil {
		return domain.Room{}, err
	}
	for _, room := range rooms {
		if strings.EqualFold(room.Code, code) {
			return room, nil
		}
	}
	return domain.Room{}, domain.ErrRoomNotFound
}

func validateQuestions(questions []domain.Question) error {
	for _, q := range questions {
		if q.Type != domain.QuestionMultipleChoice {
			continue
		}
		hasOption := false
		correctListed := false
		for _, opt := range q.Options {
			if strings.TrimSpace(opt) == "" {
				continue
			}
			hasOption = true
			if opt == q.CorrectAnswer {
				correctListed = true
			}
		}
		if !hasOption || !correctListed {
			return fmt.Errorf("%w: multiple-choice needs a non-empty option list containing the correct answer", domain.ErrInvalidQuestion)
		}
	}
	return nil
}
