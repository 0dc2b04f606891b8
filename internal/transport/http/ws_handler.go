package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"trivia-room-service/internal/app"
	"trivia-room-service/internal/domain"
)

// WSHandler upgrades HTTP requests to websockets and wires them into the
// room, round and leaderboard use cases. Hosts and players share one
// endpoint; the role query parameter decides which inbound messages are
// accepted.
type WSHandler struct {
	rooms    *app.RoomService
	players  *app.PlayerService
	engine   *app.RoundEngine
	boards   *app.LeaderboardProjector
	upgrader websocket.Upgrader
}

func NewWSHandler(rooms *app.RoomService, players *app.PlayerService, engine *app.RoundEngine, boards *app.LeaderboardProjector) *WSHandler {
	return &WSHandler{
		rooms:   rooms,
		players: players,
		engine:  engine,
		boards:  boards,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Answer    string  `json:"answer"`
	TimeTaken float64 `json:"timeTaken"`
}

type readyPayload struct {
	Ready bool `json:"ready"`
}

type publishQuestionPayload struct {
	Index       int                `json:"index"`
	BasePoints  int                `json:"basePoints"`
	ScoringMode domain.ScoringMode `json:"scoringMode"`
	TimeLimit   int                `json:"timeLimit"`
}

type answerResult struct {
	Correct    bool `json:"correct"`
	Awarded    int  `json:"awarded"`
	TotalScore int  `json:"totalScore"`
}

type joinedPayload struct {
	Player *domain.Player `json:"player,omitempty"`
	Room   domain.Room    `json:"room"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS handles one host or player connection for the room named by the
// code query parameter. Players join on connect and go offline on
// disconnect; hosts attach without a player record.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	name := r.URL.Query().Get("name")
	token := r.URL.Query().Get("token")
	role := r.URL.Query().Get("role")
	if code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}
	if role != "host" && name == "" {
		http.Error(w, "missing name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()

	var player domain.Player
	var room domain.Room
	if role == "host" {
		room, err = h.rooms.RoomByCode(ctx, code)
	} else {
		player, room, err = h.players.JoinRoom(ctx, token, code, name)
	}
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	if role != "host" {
		defer h.players.LeaveRoom(ctx, player.ID)
	}

	roomUpdates, cancelRoom, err := h.rooms.WatchRoom(ctx, room.ID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancelRoom()

	roundUpdates, cancelRound, err := h.engine.WatchActiveRound(ctx, room.ID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancelRound()

	standings, cancelStandings, err := h.boards.WatchStandings(ctx, room.ID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancelStandings()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		forward := func(msg outboundMessage[any]) bool {
			select {
			case send <- msg:
				return true
			case <-closeSignals:
				return false
			}
		}
		for {
			select {
			case raw, ok := <-roomUpdates:
				if !ok {
					return
				}
				if !forward(outboundMessage[any]{Type: "room", Payload: json.RawMessage(raw)}) {
					return
				}
			case raw, ok := <-roundUpdates:
				if !ok {
					return
				}
				if !forward(outboundMessage[any]{Type: "question", Payload: json.RawMessage(raw)}) {
					return
				}
			case ranked, ok := <-standings:
				if !ok {
					return
				}
				if !forward(outboundMessage[any]{Type: "leaderboard", Payload: ranked}) {
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	joined := joinedPayload{Room: room}
	if role != "host" {
		joined.Player = &player
	}
	send <- outboundMessage[any]{Type: "joined", Payload: joined}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		reply := h.dispatch(r, role, token, room.ID, player.ID, inbound)
		for _, msg := range reply {
			send <- msg
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// dispatch runs one inbound message and returns the direct replies. State
// fan-out (room, question, leaderboard events) happens through the watches.
func (h *WSHandler) dispatch(r *http.Request, role, token, roomID, playerID string, inbound inboundMessage) []outboundMessage[any] {
	ctx := r.Context()
	fail := func(err error) []outboundMessage[any] {
		return []outboundMessage[any]{{Type: "error", Payload: errorPayload{Message: err.Error()}}}
	}
	failMsg := func(msg string) []outboundMessage[any] {
		return []outboundMessage[any]{{Type: "error", Payload: errorPayload{Message: msg}}}
	}

	switch inbound.Type {
	case "answer":
		if role == "host" {
			return failMsg("hosts do not answer")
		}
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return failMsg("invalid answer payload")
		}
		answer, err := h.engine.SubmitAnswer(ctx, roomID, playerID, payload.Answer, payload.TimeTaken)
		if err != nil {
			return fail(err)
		}
		self, err := h.players.Player(ctx, playerID)
		if err != nil {
			return fail(err)
		}
		return []outboundMessage[any]{{Type: "answerResult", Payload: answerResult{
			Correct:    answer.IsCorrect,
			Awarded:    answer.PointsEarned,
			TotalScore: self.Score,
		}}}
	case "ready":
		if role == "host" {
			return failMsg("hosts have no ready state")
		}
		var payload readyPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return failMsg("invalid ready payload")
		}
		if _, err := h.players.SetPlayerReady(ctx, playerID, payload.Ready); err != nil {
			return fail(err)
		}
		return nil
	case "publishQuestion":
		var payload publishQuestionPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return failMsg("invalid publishQuestion payload")
		}
		if _, err := h.engine.PublishQuestion(ctx, token, roomID, payload.Index, payload.BasePoints, payload.ScoringMode, payload.TimeLimit); err != nil {
			return fail(err)
		}
		return nil
	case "nextQuestion":
		if _, err := h.engine.NextQuestion(ctx, token, roomID); err != nil {
			return fail(err)
		}
		return nil
	case "startQuiz":
		if _, err := h.rooms.StartQuiz(ctx, token, roomID); err != nil {
			return fail(err)
		}
		return nil
	case "endQuiz":
		if _, err := h.rooms.EndQuiz(ctx, token, roomID); err != nil {
			return fail(err)
		}
		return nil
	case "showLeaderboard":
		if _, err := h.rooms.ShowLeaderboard(ctx, token, roomID); err != nil {
			return fail(err)
		}
		return nil
	case "hideLeaderboard":
		if _, err := h.rooms.HideLeaderboard(ctx, token, roomID); err != nil {
			return fail(err)
		}
		return nil
	default:
		return failMsg("unsupported message type")
	}
}
