package domain

import "time"

// QuestionType enumerates the supported question formats.
type QuestionType string

const (
	QuestionTrueFalse      QuestionType = "true-false"
	QuestionMultipleChoice QuestionType = "multiple-choice"
	QuestionTextInput      QuestionType = "text-input"
)

// ScoringMode selects the points formula applied to correct answers.
type ScoringMode string

const (
	// ScoringTimeBased buckets the time limit into 10 intervals and awards a
	// proportional fraction of the base points per interval saved.
	ScoringTimeBased ScoringMode = "time-based"
	// ScoringOrderBased pays full, 70%, 40%, then nothing by arrival order of
	// correct answers.
	ScoringOrderBased ScoringMode = "order-based"
	// ScoringFirstOnly pays the first correct answer only.
	ScoringFirstOnly ScoringMode = "first-only"
)

// Question is a single quiz question, embedded by value in its Room.
type Question struct {
	ID       string       `json:"id"`
	Text     string       `json:"text"`
	Type     QuestionType `json:"type"`
	Options  []string     `json:"options,omitempty"` // multiple-choice only
	ImageURL string       `json:"imageUrl,omitempty"`

	// CorrectAnswer holds the canonical answer. AcceptedAnswers lists
	// additional acceptable spellings for text-input questions.
	CorrectAnswer   string   `json:"correctAnswer"`
	AcceptedAnswers []string `json:"acceptedAnswers,omitempty"`
}

// Room is a single hosted quiz instance with its own code, question set, and
// player set.
type Room struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Code                 string     `json:"code"` // 6 chars, unique among live rooms
	OwnerID              string     `json:"ownerId"`
	MaxPlayers           int        `json:"maxPlayers"`
	Questions            []Question `json:"questions"`
	IsPublished          bool       `json:"isPublished"`
	IsStarted            bool       `json:"isStarted"`
	IsCompleted          bool       `json:"isCompleted"`
	CurrentQuestionIndex int        `json:"currentQuestionIndex"` // -1 before the first round
	ShowLeaderboard      bool       `json:"showLeaderboard"`
	CreatedAt            time.Time  `json:"createdAt"`
}

// Player is one participant of a room. The record outlives disconnects: leaving
// only flips IsOnline so a rejoin with the same user keeps the score.
type Player struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	RoomID     string     `json:"roomId"`
	UserID     string     `json:"userId"`
	Score      int        `json:"score"` // only ever increases
	IsReady    bool       `json:"isReady"`
	IsOnline   bool       `json:"isOnline"`
	JoinedAt   time.Time  `json:"joinedAt"`
	RejoinedAt *time.Time `json:"rejoinedAt,omitempty"`
}

// ActiveRound is the live question of a room, at most one at a time. It exists
// from publish until it is explicitly cleared.
type ActiveRound struct {
	Question    Question    `json:"question"`
	BasePoints  int         `json:"basePoints"`
	ScoringMode ScoringMode `json:"scoringMode"`
	TimeLimit   int         `json:"timeLimit"` // seconds
	StartedAt   time.Time   `json:"startedAt"`
	EndsAt      time.Time   `json:"endsAt"`
}

// RoundSettings is the durable copy of a round's scoring parameters, persisted
// at publish time so statistics capture can recover them after the ActiveRound
// record is cleared.
type RoundSettings struct {
	BasePoints  int         `json:"basePoints"`
	ScoringMode ScoringMode `json:"scoringMode"`
	TimeLimit   int         `json:"timeLimit"`
}

// Answer is one player's submission for the current round.
type Answer struct {
	PlayerID     string  `json:"playerId"`
	PlayerName   string  `json:"playerName"`
	Answer       string  `json:"answer"`
	TimeTaken    float64 `json:"timeTaken"` // seconds
	IsCorrect    bool    `json:"isCorrect"`
	PointsEarned int     `json:"pointsEarned"`
}

// RoundStatistics is the once-per-round snapshot written when a round
// completes. At most one record exists per (room, question index).
type RoundStatistics struct {
	QuestionIndex int         `json:"questionIndex"`
	QuestionText  string      `json:"questionText"`
	CorrectAnswer string      `json:"correctAnswer"`
	ScoringMode   ScoringMode `json:"scoringMode"`
	BasePoints    int         `json:"basePoints"`
	TimeLimit     int         `json:"timeLimit"`
	Answers       []Answer    `json:"answers"`
}

// QuestionSet is a reusable bank of questions a host can build a room from.
type QuestionSet struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// Standing is one leaderboard row.
type Standing struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
}
