package app_test

import (
	"context"
	"errors"
	"testing"

	"trivia-room-service/internal/domain"
	"trivia-room-service/internal/store"
)

func TestTimeBasedRoundWorkedExample(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	room := newPublishedRoom(t, e, 0)
	alice := join(t, e, aliceToken, room.Code, "Alice")
	bob := join(t, e, bobToken, room.Code, "Bob")
	if _, err := e.rooms.StartQuiz(ctx, hostToken, room.ID); err != nil {
		t.Fatalf("start quiz: %v", err)
	}

	if _, err := e.engine.PublishQuestion(ctx, hostToken, room.ID, 0, 20, domain.ScoringTimeBased, 30); err != nil {
		t.Fatalf("publish question: %v", err)
	}

	fast, err := e.engine.SubmitAnswer(ctx, room.ID, alice.ID, "4", 2)
	if err != nil {
		t.Fatalf("submit fast: %v", err)
	}
	if !fast.IsCorrect || fast.PointsEarned != 20 {
		t.Fatalf("fast answer: got correct=%v points=%d, want 20", fast.IsCorrect, fast.PointsEarned)
	}

	slow, err := e.engine.SubmitAnswer(ctx, room.ID, bob.ID, "4", 29)
	if err != nil {
		t.Fatalf("submit slow: %v", err)
	}
	if slow.PointsEarned != 2 {
		t.Fatalf("slow answer: got %d points, want 2", slow.PointsEarned)
	}

	got, err := e.players.Player(ctx, alice.ID)
	if err != nil {
		t.Fatalf("reload alice: %v", err)
	}
	if got.Score != 20 {
		t.Fatalf("alice score %d, want 20", got.Score)
	}
}

func TestOrderBasedRound(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	room := newPublishedRoom(t, e, 0)
	players := []domain.Player{
		join(t, e, aliceToken, room.Code, "Alice"),
		join(t, e, bobToken, room.Code, "Bob"),
		join(t, e, caraToken, room.Code, "Cara"),
		join(t, e, daveToken, room.Code, "Dave"),
	}
	if _, err := e.rooms.StartQuiz(ctx, hostToken, room.ID); err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	if _, err := e.engine.PublishQuestion(ctx, hostToken, room.ID, 0, 100, domain.ScoringOrderBased, 30); err != nil {
		t.Fatalf("publish question: %v", err)
	}

	want := []int{100, 70, 40, 0}
	for i, player := range players {
		answer, err := e.engine.SubmitAnswer(ctx, room.ID, player.ID, "4", float64(i+1))
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if answer.PointsEarned != want[i] {
			t.Fatalf("submission %d earned %d, want %d", i, answer.PointsEarned, want[i])
		}
	}
}

func TestFirstOnlyRound(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	room := newPublishedRoom(t, e, 0)
	alice := join(t, e, aliceToken, room.Code, "Alice")
	bob := join(t, e, bobToken, room.Code, "Bob")
	if _, err := e.rooms.StartQuiz(ctx, hostToken, room.ID); err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	if _, err := e.engine.PublishQuestion(ctx, hostToken, room.ID, 0, 50, domain.ScoringFirstOnly, 30); err != nil {
		t.Fatalf("publish question: %v", err)
	}

	first, err := e.engine.SubmitAnswer(ctx, room.ID, alice.ID, "4", 3)
	if err != nil {
		t.Fatalf("submit first: %v", err)
	}
	if first.PointsEarned != 50 {
		t.Fatalf("first correct earned %d, want 50", first.PointsEarned)
	}
	second, err := e.engine.SubmitAnswer(ctx, room.ID, bob.ID, "4", 4)
	if err != nil {
		t.Fatalf("submit second: %v", err)
	}
	if second.PointsEarned != 0 {
		t.Fatalf("second correct earned %d, want 0", second.PointsEarned)
	}
}

func TestIncorrectAnswerEarnsNothing(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	room := newPublishedRoom(t, e, 0)
	alice := join(t, e, aliceToken, room.Code, "Alice")
	if _, err := e.rooms.StartQuiz(ctx, hostToken, room.ID); err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	if _, err := e.engine.PublishQuestion(ctx, hostToken, room.ID, 0, 100, domain.ScoringTimeBased, 30); err != nil {
		t.Fatalf("publish question: %v", err)
	}

	answer, err := e.engine.SubmitAnswer(ctx, room.ID, alice.ID, "5", 1)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if answer.IsCorrect || answer.PointsEarned != 0 {
		t.Fatalf("wrong answer scored: %+v", answer)
	}
	got, _ := e.players.Player(ctx, alice.ID)
	if got.Score != 0 {
		t.Fatalf("score %d, want 0", got.Score)
	}
}

func TestDuplicateSubmissionRejected(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	room := newPublishedRoom(t, e, 0)
	alice := join(t, e, aliceToken, room.Code, "Alice")
	if _, err := e.rooms.StartQuiz(ctx, hostToken, room.ID); err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	if _, err := e.engine.PublishQuestion(ctx, hostToken, room.ID, 0, 20, domain.ScoringTimeBased, 30); err != nil {
		t.Fatalf("publish question: %v", err)
	}

	if _, err := e.engine.SubmitAnswer(ctx, room.ID, alice.ID, "4", 2); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := e.engine.SubmitAnswer(ctx, room.ID, alice.ID, "4", 3); !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("expected ErrAlreadyAnswered, got %v", err)
	}

	got, _ := e.players.Player(ctx, alice.ID)
	if got.Score != 20 {
		t.Fatalf("expected only the first submission credited, score=%d", got.Score)
	}
}

func TestSubmitWithoutActiveRound(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	room := newPublishedRoom(t, e, 0)
	alice := join(t, e, aliceToken, room.Code, "Alice")

	if _, err := e.engine.SubmitAnswer(ctx, room.ID, alice.ID, "4", 1); !errors.Is(err, domain.ErrNoActiveRound) {
		t.Fatalf("expected ErrNoActiveRound, got %v", err)
	}
}

func TestSubmitUnknownPlayer(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	room := newPublishedRoom(t, e, 0)
	join(t, e, aliceToken, room.Code, "Alice")
	if _, err := e.rooms.StartQuiz(ctx, hostToken, room.ID); err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	if _, err := e.engine.PublishQuestion(ctx, hostToken, room.ID, 0, 20, domain.ScoringTimeBased, 30); err != nil {
		t.Fatalf("publish question: %v", err)
	}

	if _, err := e.engine.SubmitAnswer(ctx, room.ID, "missing", "4", 1); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestLateAnswerAcceptedWithZeroPoints(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	room := newPublishedRoom(t, e, 0)
	alice := join(t, e, aliceToken, room.Code, "Alice")
	if _, err := e.rooms.StartQuiz(ctx, hostToken, room.ID); err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	if _, err := e.engine.PublishQuestion(ctx, hostToken, room.ID, 0, 20, domain.ScoringTimeBased, 30); err != nil {
		t.Fatalf("publish question: %v", err)
	}

	// Time's-up enforcement is advisory; a late submission still lands.
	answer, err := e.engine.SubmitAnswer(ctx, room.ID, alice.ID, "4", 45)
	if err != nil {
		t.Fatalf("late submit: %v", err)
	}
	if !answer.IsCorrect || answer.PointsEarned != 0 {
		t.Fatalf("late answer: got correct=%v points=%d", answer.IsCorrect, answer.PointsEarned)
	}
}

func TestStatisticsCapturedExactlyOnce(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	room := newPublishedRoom(t, e, 0)
	alice := join(t, e, aliceToken, room.Code, "Alice")
	if _, err := e.rooms.StartQuiz(ctx, hostToken, room.ID); err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	if _, err := e.engine.PublishQuestion(ctx, hostToken, room.ID, 0, 100, domain.ScoringTimeBased, 30); err != nil {
		t.Fatalf("publish question: %v", err)
	}
	if _, err := e.engine.SubmitAnswer(ctx, room.ID, alice.ID, "4", 5); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// All three completion triggers fire for the same round.
	if _, err := e.engine.NextQuestion(ctx, hostToken, room.ID); err != nil {
		t.Fatalf("next question: %v", err)
	}
	if _, err := e.rooms.EndQuiz(ctx, hostToken, room.ID); err != nil {
		t.Fatalf("end quiz: %v", err)
	}
	if _, err := e.rooms.HideLeaderboard(ctx, hostToken, room.ID); err != nil {
		t.Fatalf("hide leaderboard: %v", err)
	}

	stats, err := store.ListJSON[domain.RoundStatistics](ctx, e.store, store.RoundStatsPath(room.ID))
	if err != nil {
		t.Fatalf("list stats: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("expected exactly one statistics record, got %d", len(stats))
	}
	stat := stats[0]
	if stat.QuestionIndex != 0 || stat.BasePoints != 100 || stat.TimeLimit != 30 {
		t.Fatalf("unexpected statistics %+v", stat)
	}
	if len(stat.Answers) != 1 || stat.Answers[0].PlayerID != alice.ID {
		t.Fatalf("expected alice's answer in snapshot, got %+v", stat.Answers)
	}
}

func TestStatisticsRecoverSettingsAfterRoundCleared(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	room := newPublishedRoom(t, e, 0)
	alice := join(t, e, aliceToken, room.Code, "Alice")
	if _, err := e.rooms.StartQuiz(ctx, hostToken, room.ID); err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	if _, err := e.engine.PublishQuestion(ctx, hostToken, room.ID, 0, 40, domain.ScoringOrderBased, 25); err != nil {
		t.Fatalf("publish question: %v", err)
	}
	if _, err := e.engine.SubmitAnswer(ctx, room.ID, alice.ID, "4", 5); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Clear the live round before any completion trigger runs; capture must
	// fall back to the settings snapshot persisted at publish time.
	if err := e.store.Delete(ctx, store.ActiveRoundPath(room.ID)); err != nil {
		t.Fatalf("clear round: %v", err)
	}
	if _, err := e.rooms.EndQuiz(ctx, hostToken, room.ID); err != nil {
		t.Fatalf("end quiz: %v", err)
	}

	stats, _ := store.ListJSON[domain.RoundStatistics](ctx, e.store, store.RoundStatsPath(room.ID))
	if len(stats) != 1 {
		t.Fatalf("expected one record, got %d", len(stats))
	}
	if stats[0].BasePoints != 40 || stats[0].ScoringMode != domain.ScoringOrderBased || stats[0].TimeLimit != 25 {
		t.Fatalf("settings not recovered: %+v", stats[0])
	}
	if stats[0].QuestionText != "What is 2 + 2?" {
		t.Fatalf("question text not recovered from room: %+v", stats[0])
	}
}

func TestPublishQuestionValidation(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	room := newPublishedRoom(t, e, 0)

	if _, err := e.engine.PublishQuestion(ctx, hostToken, room.ID, 9, 100, domain.ScoringTimeBased, 30); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
	if _, err := e.engine.PublishQuestion(ctx, aliceToken, room.ID, 0, 100, domain.ScoringTimeBased, 30); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied for non-owner, got %v", err)
	}
}

func TestPublishQuestionClearsPriorAnswers(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	room := newPublishedRoom(t, e, 0)
	alice := join(t, e, aliceToken, room.Code, "Alice")
	if _, err := e.rooms.StartQuiz(ctx, hostToken, room.ID); err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	if _, err := e.engine.PublishQuestion(ctx, hostToken, room.ID, 0, 20, domain.ScoringTimeBased, 30); err != nil {
		t.Fatalf("publish q0: %v", err)
	}
	if _, err := e.engine.SubmitAnswer(ctx, room.ID, alice.ID, "4", 2); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := e.engine.NextQuestion(ctx, hostToken, room.ID); err != nil {
		t.Fatalf("next question: %v", err)
	}
	if _, err := e.engine.PublishQuestion(ctx, hostToken, room.ID, 1, 20, domain.ScoringTimeBased, 30); err != nil {
		t.Fatalf("publish q1: %v", err)
	}

	answers, err := store.ListJSON[domain.Answer](ctx, e.store, store.AnswersPath(room.ID))
	if err != nil {
		t.Fatalf("list answers: %v", err)
	}
	if len(answers) != 0 {
		t.Fatalf("expected a fresh round with no answers, got %d", len(answers))
	}

	// Alice can answer again in the new round.
	if _, err := e.engine.SubmitAnswer(ctx, room.ID, alice.ID, "true", 1); err != nil {
		t.Fatalf("submit in new round: %v", err)
	}
}
