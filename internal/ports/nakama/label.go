package nakama

import (
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"yahtzee/internal/app"
	"yahtzee/internal/domain"
)

const (
	MatchLabelKey_Game  = "game"
	MatchLabelKey_Open  = "open"
	MatchLabelKey_State = "state"

	labelGame = "yahtzee"
)

// matchLabel is the JSON label used by find_match. A match is open to new
// names only while it is not being played.
func matchLabel(view app.GameView) (string, error) {
	open := 1
	if view.Phase == string(domain.PhasePlaying) {
		open = 0
	}
	label, err := structpb.NewStruct(map[string]any{
		MatchLabelKey_Game:  labelGame,
		MatchLabelKey_Open:  open,
		MatchLabelKey_State: view.Phase,
		"players":           len(view.Players),
	})
	if err != nil {
		return "", err
	}
	data, err := (&protojson.MarshalOptions{EmitUnpopulated: true}).Marshal(label)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
