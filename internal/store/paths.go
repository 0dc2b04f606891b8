package store

import "strconv"

// The store namespace, one logical tree:
//
//	rooms/{roomID}                 Room
//	players/{playerID}             Player (RoomID inside the record)
//	activeRounds/{roomID}          ActiveRound
//	answers/{roomID}/{key}         Answer, appended per submission
//	roundStats/{roomID}/{key}      RoundStatistics, appended once per round
//	roundSettings/{roomID}/{idx}   RoundSettings, written at publish time
const (
	RoomsPath   = "rooms"
	PlayersPath = "players"
)

func RoomPath(roomID string) string { return RoomsPath + "/" + roomID }

func PlayerPath(playerID string) string { return PlayersPath + "/" + playerID }

func ActiveRoundPath(roomID string) string { return "activeRounds/" + roomID }

func AnswersPath(roomID string) string { return "answers/" + roomID }

func RoundStatsPath(roomID string) string { return "roundStats/" + roomID }

func RoundSettingsBranch(roomID string) string { return "roundSettings/" + roomID }

func RoundSettingsPath(roomID string, index int) string {
	return RoundSettingsBranch(roomID) + "/" + strconv.Itoa(index)
}
