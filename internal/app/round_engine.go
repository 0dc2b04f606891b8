package app

import (
	"context"
	"math"
	"strings"
	"time"

	"trivia-room-service/internal/domain"
	"trivia-room-service/internal/identity"
	"trivia-room-service/internal/store"
)

// Default scoring parameters used when a round's settings cannot be recovered
// from either the live round or its persisted settings snapshot.
const (
	defaultBasePoints = 100
	defaultTimeLimit  = 30
)

// RoundEngine runs the lifecycle of one published question: publish, accept
// answers, score them, and capture round statistics exactly once per round.
type RoundEngine struct {
	store    store.Store
	identity identity.Provider
	now      func() time.Time
}

func NewRoundEngine(st store.Store, idp identity.Provider) *RoundEngine {
	return &RoundEngine{store: st, identity: idp, now: time.Now}
}

// NewRoundEngineWithClock is test-only for deterministic timestamps.
func NewRoundEngineWithClock(st store.Store, idp identity.Provider, now func() time.Time) *RoundEngine {
	return &RoundEngine{store: st, identity: idp, now: now}
}

// PublishQuestion starts a round for the question at index. Prior answers are
// cleared and the scoring parameters are persisted separately so statistics
// capture can still recover them after the round record is gone.
func (e *RoundEngine) PublishQuestion(ctx context.Context, token, roomID string, index, basePoints int, mode domain.ScoringMode, timeLimit int) (domain.ActiveRound, error) {
	room, _, err := authorizeRoom(ctx, e.store, e.identity, token, roomID)
	if err != nil {
		return domain.ActiveRound{}, err
	}
	if index < 0 || index >= len(room.Questions) {
		return domain.ActiveRound{}, domain.ErrQuestionNotFound
	}
	if basePoints <= 0 || timeLimit <= 0 {
		return domain.ActiveRound{}, domain.ErrInvalidQuestion
	}
	if mode == "" {
		mode = domain.ScoringTimeBased
	}

	if err := e.store.Delete(ctx, store.AnswersPath(roomID)); err != nil {
		return domain.ActiveRound{}, err
	}

	settings := domain.RoundSettings{
		BasePoints:  basePoints,
		ScoringMode: mode,
		TimeLimit:   timeLimit,
	}
	if err := store.PutJSON(ctx, e.store, store.RoundSettingsPath(roomID, index), settings); err != nil {
		return domain.ActiveRound{}, err
	}

	now := e.now()
	round := domain.ActiveRound{
		Question:    room.Questions[index],
		BasePoints:  basePoints,
		ScoringMode: mode,
		TimeLimit:   timeLimit,
		StartedAt:   now,
		EndsAt:      now.Add(time.Duration(timeLimit) * time.Second),
	}
	if err := store.PutJSON(ctx, e.store, store.ActiveRoundPath(roomID), round); err != nil {
		return domain.ActiveRound{}, err
	}

	room.CurrentQuestionIndex = index
	if err := store.PutJSON(ctx, e.store, store.RoomPath(roomID), room); err != nil {
		return domain.ActiveRound{}, err
	}
	return round, nil
}

// SubmitAnswer records one player's answer for the active round and credits
// the earned points. The duplicate guard is a read-then-write check, not a
// strict lock; the UI disables resubmission after the first success.
func (e *RoundEngine) SubmitAnswer(ctx context.Context, roomID, playerID, rawAnswer string, timeTaken float64) (domain.Answer, error) {
	round, ok, err := store.GetJSON[domain.ActiveRound](ctx, e.store, store.ActiveRoundPath(roomID))
	if err != nil {
		return domain.Answer{}, err
	}
	if !ok {
		return domain.Answer{}, domain.ErrNoActiveRound
	}
	if _, ok, err := store.GetJSON[domain.Room](ctx, e.store, store.RoomPath(roomID)); err != nil {
		return domain.Answer{}, err
	} else if !ok {
		return domain.Answer{}, domain.ErrNoActiveRound
	}

	player, ok, err := store.GetJSON[domain.Player](ctx, e.store, store.PlayerPath(playerID))
	if err != nil {
		return domain.Answer{}, err
	}
	if !ok {
		return domain.Answer{}, domain.ErrPlayerNotFound
	}

	answers, err := store.ListJSON[domain.Answer](ctx, e.store, store.AnswersPath(roomID))
	if err != nil {
		return domain.Answer{}, err
	}
	priorCorrect := 0
	for _, existing := range answers {
		if existing.PlayerID == playerID {
			return domain.Answer{}, domain.ErrAlreadyAnswered
		}
		if existing.IsCorrect {
			priorCorrect++
		}
	}

	correct := answerMatches(round.Question, rawAnswer)
	points := 0
	if correct {
		points = scorePoints(round.ScoringMode, round.BasePoints, round.TimeLimit, timeTaken, priorCorrect)
	}

	answer := domain.Answer{
		PlayerID:     playerID,
		PlayerName:   player.Name,
		Answer:       rawAnswer,
		TimeTaken:    timeTaken,
		IsCorrect:    correct,
		PointsEarned: points,
	}
	if _, err := store.AppendJSON(ctx, e.store, store.AnswersPath(roomID), answer); err != nil {
		return domain.Answer{}, err
	}

	// Read the score fresh and write it back; best-effort, same as the
	// duplicate guard above.
	player, ok, err = store.GetJSON[domain.Player](ctx, e.store, store.PlayerPath(playerID))
	if err != nil {
		return domain.Answer{}, err
	}
	if ok {
		player.Score += points
		if err := store.PutJSON(ctx, e.store, store.PlayerPath(playerID), player); err != nil {
			return domain.Answer{}, err
		}
	}
	return answer, nil
}

// NextQuestion closes the current round: statistics are captured and the
// active round is cleared. The index moves when the host publishes the next
// question (or hides the leaderboard), not here.
func (e *RoundEngine) NextQuestion(ctx context.Context, token, roomID string) (domain.Room, error) {
	room, _, err := authorizeRoom(ctx, e.store, e.identity, token, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if err := captureRoundStatistics(ctx, e.store, roomID, room); err != nil {
		return domain.Room{}, err
	}
	if err := e.store.Delete(ctx, store.ActiveRoundPath(roomID)); err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

// ActiveRound reads the live round, if any.
func (e *RoundEngine) ActiveRound(ctx context.Context, roomID string) (domain.ActiveRound, bool, error) {
	return store.GetJSON[domain.ActiveRound](ctx, e.store, store.ActiveRoundPath(roomID))
}

// WatchActiveRound streams active-round snapshots.
func (e *RoundEngine) WatchActiveRound(ctx context.Context, roomID string) (<-chan []byte, func(), error) {
	return e.store.Watch(ctx, store.ActiveRoundPath(roomID))
}

// WatchAnswers streams the room's answer branch.
func (e *RoundEngine) WatchAnswers(ctx context.Context, roomID string) (<-chan []byte, func(), error) {
	return e.store.Watch(ctx, store.AnswersPath(roomID))
}

// captureRoundStatistics persists the finished round's snapshot at most once.
// It can be reached from NextQuestion, EndQuiz and HideLeaderboard under
// different host interaction sequences, so it scans the existing statistics
// for the question index before writing. The scoring parameters are taken
// from the live round when present, then from the room's question list plus
// the persisted settings snapshot, then from hardcoded defaults.
func captureRoundStatistics(ctx context.Context, st store.Store, roomID string, room domain.Room) error {
	index := room.CurrentQuestionIndex
	if index < 0 {
		return nil
	}
	answers, err := store.ListJSON[domain.Answer](ctx, st, store.AnswersPath(roomID))
	if err != nil {
		return err
	}
	if len(answers) == 0 {
		return nil
	}
	existing, err := store.ListJSON[domain.RoundStatistics](ctx, st, store.RoundStatsPath(roomID))
	if err != nil {
		return err
	}
	for _, stat := range existing {
		if stat.QuestionIndex == index {
			return nil
		}
	}

	stat := domain.RoundStatistics{
		QuestionIndex: index,
		ScoringMode:   domain.ScoringTimeBased,
		BasePoints:    defaultBasePoints,
		TimeLimit:     defaultTimeLimit,
		Answers:       answers,
	}
	if round, ok, err := store.GetJSON[domain.ActiveRound](ctx, st, store.ActiveRoundPath(roomID)); err != nil {
		return err
	} else if ok {
		stat.QuestionText = round.Question.Text
		stat.CorrectAnswer = round.Question.CorrectAnswer
		stat.ScoringMode = round.ScoringMode
		stat.BasePoints = round.BasePoints
		stat.TimeLimit = round.TimeLimit
	} else {
		if index < len(room.Questions) {
			stat.QuestionText = room.Questions[index].Text
			stat.CorrectAnswer = room.Questions[index].CorrectAnswer
		}
		if settings, ok, err := store.GetJSON[domain.RoundSettings](ctx, st, store.RoundSettingsPath(roomID, index)); err != nil {
			return err
		} else if ok {
			stat.ScoringMode = settings.ScoringMode
			stat.BasePoints = settings.BasePoints
			stat.TimeLimit = settings.TimeLimit
		}
	}

	_, err = store.AppendJSON(ctx, st, store.RoundStatsPath(roomID), stat)
	return err
}

// answerMatches compares case-insensitively after trimming whitespace, against
// either the canonical answer or any accepted alternate.
func answerMatches(q domain.Question, raw string) bool {
	got := normalizeAnswer(raw)
	if len(q.AcceptedAnswers) > 0 {
		for _, accepted := range q.AcceptedAnswers {
			if got == normalizeAnswer(accepted) {
				return true
			}
		}
		return false
	}
	return got == normalizeAnswer(q.CorrectAnswer)
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// scorePoints applies the mode's formula to a correct answer. priorCorrect is
// the number of correct answers already recorded this round.
func scorePoints(mode domain.ScoringMode, basePoints, timeLimit int, timeTaken float64, priorCorrect int) int {
	switch mode {
	case domain.ScoringOrderBased:
		switch priorCorrect {
		case 0:
			return basePoints
		case 1:
			return int(math.Floor(0.7 * float64(basePoints)))
		case 2:
			return int(math.Floor(0.4 * float64(basePoints)))
		default:
			return 0
		}
	case domain.ScoringFirstOnly:
		if priorCorrect == 0 {
			return basePoints
		}
		return 0
	default: // time-based
		// The limit is bucketed into 10 equal intervals; each elapsed
		// interval costs a tenth of the base points. An answer exactly on
		// a bucket boundary counts as the cheaper bucket.
		bucket := float64(timeLimit) / 10
		mod := math.Ceil((float64(timeLimit) - timeTaken) / bucket)
		if mod < 0 {
			mod = 0
		}
		points := math.Floor(float64(basePoints) * mod / 10)
		if points < 0 {
			return 0
		}
		return int(points)
	}
}
