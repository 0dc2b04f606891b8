package app_test

import (
	"context"
	"testing"

	"trivia-room-service/internal/app"
	"trivia-room-service/internal/domain"
	"trivia-room-service/internal/identity"
	"trivia-room-service/internal/infra/memory"
)

const (
	hostToken  = "host-token"
	adminToken = "admin-token"
	aliceToken = "alice-token"
	bobToken   = "bob-token"
	caraToken  = "cara-token"
	daveToken  = "dave-token"
)

type env struct {
	store   *memory.Store
	rooms   *app.RoomService
	players *app.PlayerService
	engine  *app.RoundEngine
	boards  *app.LeaderboardProjector
}

func newEnvIdentity() *identity.StaticProvider {
	join := identity.Permissions{CanJoinRooms: true}
	return identity.NewStaticProvider(map[string]identity.Caller{
		hostToken:  {UserID: "u-host", Permissions: identity.Permissions{CanCreateRooms: true, CanJoinRooms: true}},
		adminToken: {UserID: "u-admin", Permissions: identity.Permissions{CanManageUsers: true}},
		aliceToken: {UserID: "u-alice", Permissions: join},
		bobToken:   {UserID: "u-bob", Permissions: join},
		caraToken:  {UserID: "u-cara", Permissions: join},
		daveToken:  {UserID: "u-dave", Permissions: join},
	})
}

func newEnv() *env {
	st := memory.NewStore()
	idp := newEnvIdentity()
	return &env{
		store:   st,
		rooms:   app.NewRoomService(st, idp, nil),
		players: app.NewPlayerService(st, idp),
		engine:  app.NewRoundEngine(st, idp),
		boards:  app.NewLeaderboardProjector(st),
	}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			Text:          "What is 2 + 2?",
			Type:          domain.QuestionMultipleChoice,
			Options:       []string{"3", "4", "5"},
			CorrectAnswer: "4",
		},
		{
			Text:          "The capital of France is Paris.",
			Type:          domain.QuestionTrueFalse,
			CorrectAnswer: "true",
		},
	}
}

func sampleCreateParams() app.CreateRoomParams {
	return app.CreateRoomParams{
		Name:      "Friday Quiz",
		Questions: sampleQuestions(),
	}
}

// newPublishedRoom creates and publishes a room owned by the host.
func newPublishedRoom(t *testing.T, e *env, maxPlayers int) domain.Room {
	t.Helper()
	room, err := e.rooms.CreateRoom(context.Background(), hostToken, app.CreateRoomParams{
		Name:       "Friday Quiz",
		MaxPlayers: maxPlayers,
		Questions:  sampleQuestions(),
	})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := e.rooms.PublishRoom(context.Background(), hostToken, room.ID); err != nil {
		t.Fatalf("publish room: %v", err)
	}
	return room
}

func join(t *testing.T, e *env, token, code, name string) domain.Player {
	t.Helper()
	player, _, err := e.players.JoinRoom(context.Background(), token, code, name)
	if err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
	return player
}
