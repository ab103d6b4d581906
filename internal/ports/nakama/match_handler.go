package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/heroiclabs/nakama-common/runtime"

	"yahtzee/internal/app"
	"yahtzee/internal/config"
	"yahtzee/internal/domain"
)

const tickRate = 5

type joinRequest struct {
	Name string `json:"name"`
}

type keepRequest struct {
	KeepIndices []int `json:"keepIndices"`
}

type scoreRequest struct {
	Category string `json:"category"`
}

// MatchState holds the runtime state for the authoritative session match.
type MatchState struct {
	App       *app.Service                `json:"-"`
	Presences map[string]runtime.Presence `json:"-"` // SessionId -> Presence
	Label     string                      `json:"label"`
	Tick      int64                       `json:"tick"`
}

type matchHandler struct{}

// NewMatch is the factory function registered with Nakama.
func NewMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
	return &matchHandler{}, nil
}

// MatchInit builds the service from the runtime env and restores the last
// persisted session.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	vars, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	cfg, err := config.FromMap(vars)
	if err != nil {
		logger.Warn("MatchInit: invalid config, using defaults: %v", err)
		cfg = config.Default()
	}
	log := newZerolog(logger, cfg.Log.Level)

	svc := app.NewService(
		nil,
		app.WithStore(NewStorageStore(nk)),
		app.WithLogger(log),
	)
	if err := svc.Restore(ctx); err != nil {
		logger.Error("MatchInit: restore failed, starting fresh: %v", err)
	}

	state := &MatchState{
		App:       svc,
		Presences: make(map[string]runtime.Presence),
	}
	label, err := matchLabel(svc.View())
	if err != nil {
		logger.Error("MatchInit: failed to marshal label: %v", err)
		return nil, 0, ""
	}
	state.Label = label
	return state, tickRate, label
}

// MatchJoinAttempt turns away users who are not seated while a game runs.
func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	ms, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}
	view := ms.App.GameStateFor(presence.GetUserId())
	if view.Phase == app.PhaseCannotJoin {
		return ms, false, view.Reason
	}
	return ms, true, ""
}

// MatchJoin tracks presences. Players still have to send OpJoin with a name.
func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	ms, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}
	for _, p := range presences {
		ms.Presences[p.GetSessionId()] = p
		mh.dispatch(ms, dispatcher, logger, []app.Event{
			app.GameStateEvent(p.GetSessionId(), ms.App.GameStateFor(p.GetUserId())),
		})
	}
	return ms
}

func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	ms, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}
	for _, p := range presences {
		delete(ms.Presences, p.GetSessionId())
		mh.dispatch(ms, dispatcher, logger, ms.App.Disconnect(ctx, p.GetSessionId()))
	}
	mh.updateLabel(ms, dispatcher, logger)
	return ms
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	ms, ok := state.(*MatchState)
	if !ok {
		return state
	}
	ms.Tick = tick

	for _, msg := range messages {
		events, err := mh.handle(ctx, ms, msg)
		if err != nil {
			logger.Debug("MatchLoop: op %d from %s rejected: %v", msg.GetOpCode(), msg.GetUserId(), err)
			if msg.GetOpCode() == OpJoin {
				events = []app.Event{app.JoinErrorEvent(msg.GetSessionId(), err)}
			} else {
				events = []app.Event{app.ErrorEvent(msg.GetSessionId(), err)}
			}
		}
		mh.dispatch(ms, dispatcher, logger, events)
	}

	mh.updateLabel(ms, dispatcher, logger)
	return ms
}

func (mh *matchHandler) handle(ctx context.Context, ms *MatchState, msg runtime.MatchData) ([]app.Event, error) {
	connID, key := msg.GetSessionId(), msg.GetUserId()
	switch msg.GetOpCode() {
	case OpJoin:
		var req joinRequest
		if err := decode(msg.GetData(), &req); err != nil {
			return nil, err
		}
		return ms.App.Join(ctx, connID, key, req.Name)
	case OpReady:
		return ms.App.Ready(ctx, connID), nil
	case OpRollDice:
		var req keepRequest
		if err := decode(msg.GetData(), &req); err != nil {
			return nil, err
		}
		return ms.App.RollDice(ctx, connID, req.KeepIndices)
	case OpKeepDice:
		var req keepRequest
		if err := decode(msg.GetData(), &req); err != nil {
			return nil, err
		}
		return ms.App.KeepDice(ctx, connID, req.KeepIndices)
	case OpScoreCategory:
		var req scoreRequest
		if err := decode(msg.GetData(), &req); err != nil {
			return nil, err
		}
		return ms.App.ScoreCategory(ctx, connID, req.Category)
	case OpGetGameState:
		return []app.Event{app.GameStateEvent(connID, ms.App.GameStateFor(key))}, nil
	case OpNewGame:
		return ms.App.NewGame(ctx, connID)
	default:
		return nil, fmt.Errorf("%w: unknown op code %d", domain.ErrValidation, msg.GetOpCode())
	}
}

// dispatch sends events as JSON. Targeted events whose recipients are gone
// are dropped rather than broadcast.
func (mh *matchHandler) dispatch(ms *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, events []app.Event) {
	for _, ev := range events {
		opCode, ok := eventOpCodes[ev.Kind]
		if !ok {
			logger.Warn("Unknown event kind: %v", ev.Kind)
			continue
		}
		data, err := json.Marshal(ev.Payload)
		if err != nil {
			logger.Error("Failed to marshal event %v: %v", ev.Kind, err)
			continue
		}

		var recipients []runtime.Presence
		if !ev.Broadcast() {
			for _, id := range ev.Recipients {
				if p, ok := ms.Presences[id]; ok {
					recipients = append(recipients, p)
				}
			}
			if len(recipients) == 0 {
				continue
			}
		}

		if err := dispatcher.BroadcastMessage(opCode, data, recipients, nil, true); err != nil {
			logger.Error("Failed to send %v: %v", ev.Kind, err)
		}
		if ev.Kind == app.EventSessionReplaced {
			for _, p := range recipients {
				delete(ms.Presences, p.GetSessionId())
			}
			if err := dispatcher.MatchKick(recipients); err != nil {
				logger.Warn("Failed to kick replaced session: %v", err)
			}
		}
	}
}

func (mh *matchHandler) updateLabel(ms *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	label, err := matchLabel(ms.App.View())
	if err != nil {
		logger.Error("UpdateLabel: Failed to marshal: %v", err)
		return
	}
	if label == ms.Label {
		return
	}
	if err := dispatcher.MatchLabelUpdate(label); err != nil {
		logger.Error("UpdateLabel: Failed to update: %v", err)
		return
	}
	ms.Label = label
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, graceSeconds int) interface{} {
	logger.Info("MatchTerminate: shutting down in %d seconds", graceSeconds)
	return state
}

// MatchSignal answers with the display view as JSON.
func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	ms, ok := state.(*MatchState)
	if !ok {
		return state, ""
	}
	view, err := json.Marshal(ms.App.View())
	if err != nil {
		logger.Error("MatchSignal: Failed to marshal view: %v", err)
		return ms, ""
	}
	return ms, string(view)
}

func decode(data []byte, dst any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: malformed payload", domain.ErrValidation)
	}
	return nil
}
