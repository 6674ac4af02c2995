package session

import (
	"context"
	"time"
)

// Stage labels the step of the onboarding/settings dialog a user is in.
// Absence of a session means the user is idle.
type Stage string

const (
	StageAwaitingAPIKey     Stage = "awaiting_api_key"
	StageChoosingWarehouses Stage = "choosing_warehouses"
	StageEditingWarehouses  Stage = "editing_warehouses"
	StageEditingThreshold   Stage = "editing_threshold"
	StageEditingAPIKey      Stage = "editing_api_key"
)

// State is the persisted dialog context for one user. The selected warehouse
// set is not duplicated here: every toggle is written straight to the
// subscriptions table, so only the stage and the open keyboard page need to
// survive a restart.
type State struct {
	Stage Stage `json:"stage"`
	Page  int   `json:"page"`
}

// Store keeps per-user dialog state with a bounded lifetime. Entries expire
// after the configured TTL so abandoned dialogs do not pile up.
type Store interface {
	Get(ctx context.Context, userID int64) (State, bool, error)
	Set(ctx context.Context, userID int64, state State) error
	Clear(ctx context.Context, userID int64) error
}

// DefaultTTL is used when no TTL is configured.
const DefaultTTL = 30 * time.Minute
