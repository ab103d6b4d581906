package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"

	"yahtzee/internal/domain"
)

// matchAPI is the part of runtime.NakamaModule the RPCs need.
type matchAPI interface {
	MatchList(ctx context.Context, limit int, authoritative bool, label string, minSize *int, maxSize *int, query string) ([]*api.Match, error)
	MatchCreate(ctx context.Context, module string, params map[string]interface{}) (string, error)
	MatchSignal(ctx context.Context, id string, data string) (string, error)
}

type matchStateRequest struct {
	MatchID string `json:"matchId"`
}

// RegisterRPCs registers every RPC exposed by the module.
func RegisterRPCs(initializer runtime.Initializer) error {
	if err := initializer.RegisterRpc(RpcFindMatch, RpcFindMatchFunc); err != nil {
		return err
	}
	return initializer.RegisterRpc(RpcMatchState, RpcMatchStateFunc)
}

// RpcFindMatchFunc returns the id of the session match. There is one session
// per server, so a participant reconnecting mid-game lands in the same match.
func RpcFindMatchFunc(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return findOrCreateMatch(ctx, logger, nk)
}

// RpcMatchStateFunc returns the display view. Payload: {"matchId": "..."},
// optional.
func RpcMatchStateFunc(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return matchState(ctx, logger, nk, payload)
}

func findOrCreateMatch(ctx context.Context, logger runtime.Logger, nk matchAPI) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)

	query := fmt.Sprintf("+label.%s:%s", MatchLabelKey_Game, labelGame)
	matches, err := nk.MatchList(ctx, 1, true, "", nil, nil, query)
	if err != nil {
		logger.Error("RpcFindMatch [User:%s]: Failed to list matches: %v", userID, err)
		return "", err
	}
	if len(matches) > 0 {
		matchID := matches[0].GetMatchId()
		logger.Info("RpcFindMatch [User:%s]: Found existing match %s", userID, matchID)
		return matchID, nil
	}

	matchID, err := nk.MatchCreate(ctx, MatchName, nil)
	if err != nil {
		logger.Error("RpcFindMatch [User:%s]: Failed to create match: %v", userID, err)
		return "", err
	}
	logger.Info("RpcFindMatch [User:%s]: Created new match %s", userID, matchID)
	return matchID, nil
}

func matchState(ctx context.Context, logger runtime.Logger, nk matchAPI, payload string) (string, error) {
	var req matchStateRequest
	if strings.TrimSpace(payload) != "" {
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			return "", runtime.NewError(fmt.Sprintf("%v: malformed payload", domain.ErrValidation), 3)
		}
	}
	if req.MatchID == "" {
		id, err := findOrCreateMatch(ctx, logger, nk)
		if err != nil {
			return "", err
		}
		req.MatchID = id
	}
	view, err := nk.MatchSignal(ctx, req.MatchID, "")
	if err != nil {
		logger.Warn("RpcMatchState: signal %s failed: %v", req.MatchID, err)
		return "", err
	}
	return view, nil
}
