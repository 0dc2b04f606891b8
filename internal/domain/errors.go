package domain

import "errors"

var (
	// ErrRoomNotFound is returned when no room matches the given ID or code.
	ErrRoomNotFound = errors.New("room not found")
	// ErrPlayerNotFound is returned when a player ID does not resolve.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrQuestionNotFound indicates a question index is out of range.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrQuestionSetNotFound indicates the question bank has no such set.
	ErrQuestionSetNotFound = errors.New("question set not found")
	// ErrPermissionDenied is returned when the caller is neither the room's
	// owner nor an admin.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrRoomUnpublished rejects joins to rooms that are not open yet.
	ErrRoomUnpublished = errors.New("room is not published")
	// ErrRoomFull rejects new joins once the online player count hits the cap.
	ErrRoomFull = errors.New("room full")
	// ErrQuizStarted rejects first-time joins after the quiz has begun;
	// returning players may still rejoin.
	ErrQuizStarted = errors.New("quiz already started, rejoin only")
	// ErrNoQuestions rejects publishing a room with an empty question list.
	ErrNoQuestions = errors.New("room has no questions")
	// ErrInvalidQuestion indicates a malformed question (e.g. a
	// multiple-choice whose correct answer is not among the options).
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrAlreadyAnswered rejects a second submission within one round.
	ErrAlreadyAnswered = errors.New("answer already submitted")
	// ErrNoActiveRound is returned when an answer arrives with no question
	// published.
	ErrNoActiveRound = errors.New("no active question")
)
