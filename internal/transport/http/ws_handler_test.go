package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"trivia-room-service/internal/app"
	"trivia-room-service/internal/domain"
	"trivia-room-service/internal/identity"
	"trivia-room-service/internal/infra/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, domain.Room) {
	t.Helper()
	store := memory.NewStore()
	idp := identity.OpenProvider{}
	rooms := app.NewRoomService(store, idp, nil)
	players := app.NewPlayerService(store, idp)
	engine := app.NewRoundEngine(store, idp)
	boards := app.NewLeaderboardProjector(store)

	room, err := rooms.CreateRoom(context.Background(), "host-1", app.CreateRoomParams{
		Name: "Quiz Night",
		Questions: []domain.Question{
			{
				ID:            "q1",
				Text:          "What is 2 + 2?",
				Type:          domain.QuestionMultipleChoice,
				Options:       []string{"3", "4", "5"},
				CorrectAnswer: "4",
			},
		},
	})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := rooms.PublishRoom(context.Background(), "host-1", room.ID); err != nil {
		t.Fatalf("publish room: %v", err)
	}

	wsHandler := NewWSHandler(rooms, players, engine, boards)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, room
}

func dialWS(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketAnswerFlow(t *testing.T) {
	server, room := newTestServer(t)

	host := dialWS(t, server, "code="+room.Code+"&role=host&token=host-1")
	readUntil(host, t, "joined")

	player := dialWS(t, server, "code="+room.Code+"&name=Alice&token=alice-1")
	joined := readUntil(player, t, "joined")
	if joined["player"] == nil {
		t.Fatalf("expected player record in joined payload, got %v", joined)
	}

	publish := map[string]any{
		"type": "publishQuestion",
		"payload": map[string]any{
			"index":       0,
			"basePoints":  100,
			"scoringMode": "time-based",
			"timeLimit":   30,
		},
	}
	if err := host.WriteJSON(publish); err != nil {
		t.Fatalf("publish question: %v", err)
	}
	question := readUntil(player, t, "question")
	if question["question"] == nil {
		t.Fatalf("expected question in round payload, got %v", question)
	}

	answer := map[string]any{
		"type": "answer",
		"payload": map[string]any{
			"answer":    "4",
			"timeTaken": 2,
		},
	}
	if err := player.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	result := readUntil(player, t, "answerResult")
	if correct, _ := result["correct"].(bool); !correct {
		t.Fatalf("expected a correct answer, got %v", result)
	}
	if awarded, _ := result["awarded"].(float64); awarded != 100 {
		t.Fatalf("expected 100 points awarded, got %v", result)
	}
}

// readUntil reads frames until one of the wanted type carries a non-null
// payload, skipping interleaved watch snapshots from other paths.
func readUntil(conn *websocket.Conn, t *testing.T, expect string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		_ = conn.SetReadDeadline(deadline)
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json waiting for %s: %v", expect, err)
		}
		if msg.Type != expect {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			// Array payloads (leaderboard) come back as nil maps.
			return nil
		}
		if payload == nil {
			continue
		}
		return payload
	}
}

func TestWebSocketRejectsUnknownCode(t *testing.T) {
	server, _ := newTestServer(t)

	conn := dialWS(t, server, "code=ZZZZZZ&name=Alice&token=alice-1")
	readUntil(conn, t, "error")
}

func TestWebSocketHostOnlyMessages(t *testing.T) {
	server, room := newTestServer(t)

	player := dialWS(t, server, "code="+room.Code+"&name=Alice&token=alice-1")
	readUntil(player, t, "joined")

	ready := map[string]any{
		"type":    "ready",
		"payload": map[string]any{"ready": true},
	}
	if err := player.WriteJSON(ready); err != nil {
		t.Fatalf("write ready: %v", err)
	}

	// Host connections cannot answer.
	host := dialWS(t, server, "code="+room.Code+"&role=host&token=host-1")
	readUntil(host, t, "joined")
	answer := map[string]any{
		"type":    "answer",
		"payload": map[string]any{"answer": "4", "timeTaken": 1},
	}
	if err := host.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	readUntil(host, t, "error")
}
