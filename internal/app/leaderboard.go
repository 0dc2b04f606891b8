package app

import (
	"context"
	"encoding/json"
	"sort"

	"trivia-room-service/internal/domain"
	"trivia-room-service/internal/store"
)

// LeaderboardProjector derives ranked standings from player and
// round-statistics state. It is read-only: nothing here mutates a score.
type LeaderboardProjector struct {
	store store.Store
}

func NewLeaderboardProjector(st store.Store) *LeaderboardProjector {
	return &LeaderboardProjector{store: st}
}

// Standings ranks the room's players by accumulated score.
func (p *LeaderboardProjector) Standings(ctx context.Context, roomID string) ([]domain.Standing, error) {
	players, err := store.ListJSON[domain.Player](ctx, p.store, store.PlayersPath)
	if err != nil {
		return nil, err
	}
	return rankPlayers(players, roomID, nil), nil
}

// RevealedStandings recomputes a cumulative score per player from the first
// `revealed` rounds' statistics, for the progressive final-results reveal.
// Player.Score is untouched; this is a display-only re-derivation.
func (p *LeaderboardProjector) RevealedStandings(ctx context.Context, roomID string, revealed int) ([]domain.Standing, error) {
	players, err := store.ListJSON[domain.Player](ctx, p.store, store.PlayersPath)
	if err != nil {
		return nil, err
	}
	stats, err := store.ListJSON[domain.RoundStatistics](ctx, p.store, store.RoundStatsPath(roomID))
	if err != nil {
		return nil, err
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].QuestionIndex < stats[j].QuestionIndex })
	if revealed < 0 {
		revealed = 0
	}
	if revealed > len(stats) {
		revealed = len(stats)
	}

	totals := make(map[string]int)
	for _, stat := range stats[:revealed] {
		for _, answer := range stat.Answers {
			totals[answer.PlayerID] += answer.PointsEarned
		}
	}
	return rankPlayers(players, roomID, totals), nil
}

// WatchStandings streams ranked standings whenever any player record changes.
func (p *LeaderboardProjector) WatchStandings(ctx context.Context, roomID string) (<-chan []domain.Standing, func(), error) {
	snapshots, cancel, err := p.store.Watch(ctx, store.PlayersPath)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan []domain.Standing, 8)
	go func() {
		defer close(out)
		for raw := range snapshots {
			var byKey map[string]domain.Player
			if err := json.Unmarshal(raw, &byKey); err != nil {
				continue
			}
			players := make([]domain.Player, 0, len(byKey))
			for _, player := range byKey {
				players = append(players, player)
			}
			standings := rankPlayers(players, roomID, nil)
			select {
			case out <- standings:
			default:
				select {
				case <-out:
				default:
				}
				out <- standings
			}
		}
	}()
	return out, cancel, nil
}

// rankPlayers filters to the room and sorts by score descending, breaking ties
// by who joined earlier, then by name. When totals is non-nil it overrides the
// accumulated scores (progressive reveal).
func rankPlayers(players []domain.Player, roomID string, totals map[string]int) []domain.Standing {
	inRoom := make([]domain.Player, 0, len(players))
	for _, player := range players {
		if player.RoomID == roomID {
			inRoom = append(inRoom, player)
		}
	}

	score := func(p domain.Player) int {
		if totals != nil {
			return totals[p.ID]
		}
		return p.Score
	}
	sort.Slice(inRoom, func(i, j int) bool {
		si, sj := score(inRoom[i]), score(inRoom[j])
		if si != sj {
			return si > sj
		}
		if !inRoom[i].JoinedAt.Equal(inRoom[j].JoinedAt) {
			return inRoom[i].JoinedAt.Before(inRoom[j].JoinedAt)
		}
		return inRoom[i].Name < inRoom[j].Name
	})

	standings := make([]domain.Standing, 0, len(inRoom))
	for _, player := range inRoom {
		standings = append(standings, domain.Standing{
			PlayerID: player.ID,
			Name:     player.Name,
			Score:    score(player),
		})
	}
	return standings
}
