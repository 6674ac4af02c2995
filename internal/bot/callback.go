package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// ActionKind enumerates every callback action the bot understands.
type ActionKind int

const (
	ActionSelect ActionKind = iota
	ActionPage
	ActionDone
	ActionSettings
	ActionEditWarehouses
	ActionEditPollingFrequency
	ActionSetPolling
	ActionEditThreshold
	ActionEditAPIKey
)

const (
	tokenSelect               = "select"
	tokenPage                 = "page"
	tokenDone                 = "done"
	tokenSettings             = "settings"
	tokenEditWarehouses       = "edit_warehouses"
	tokenEditPollingFrequency = "edit_polling_frequency"
	tokenSetPolling           = "set_polling"
	tokenEditThreshold        = "edit_threshold"
	tokenEditAPIKey           = "edit_api_key"
)

// allowedFrequencies is the closed set of polling frequencies offered to
// users, in ticks.
var allowedFrequencies = []int{5, 15, 30, 60}

// Action is one parsed callback token. Unused fields are zero.
type Action struct {
	Kind        ActionKind
	WarehouseID int64 // ActionSelect
	Page        int   // ActionSelect, ActionPage
	Frequency   int   // ActionSetPolling
}

// Encode renders the action back into its wire token.
func (a Action) Encode() string {
	switch a.Kind {
	case ActionSelect:
		return fmt.Sprintf("%s:%d:%s:%d", tokenSelect, a.WarehouseID, tokenPage, a.Page)
	case ActionPage:
		return fmt.Sprintf("%s:%d", tokenPage, a.Page)
	case ActionDone:
		return tokenDone
	case ActionSettings:
		return tokenSettings
	case ActionEditWarehouses:
		return tokenEditWarehouses
	case ActionEditPollingFrequency:
		return tokenEditPollingFrequency
	case ActionSetPolling:
		return fmt.Sprintf("%s:%d", tokenSetPolling, a.Frequency)
	case ActionEditThreshold:
		return tokenEditThreshold
	case ActionEditAPIKey:
		return tokenEditAPIKey
	default:
		return ""
	}
}

// ParseAction decodes a callback token. Unrecognized or malformed tokens are
// rejected explicitly instead of falling through.
func ParseAction(token string) (Action, error) {
	switch token {
	case tokenDone:
		return Action{Kind: ActionDone}, nil
	case tokenSettings:
		return Action{Kind: ActionSettings}, nil
	case tokenEditWarehouses:
		return Action{Kind: ActionEditWarehouses}, nil
	case tokenEditPollingFrequency:
		return Action{Kind: ActionEditPollingFrequency}, nil
	case tokenEditThreshold:
		return Action{Kind: ActionEditThreshold}, nil
	case tokenEditAPIKey:
		return Action{Kind: ActionEditAPIKey}, nil
	}

	parts := strings.Split(token, ":")
	switch {
	case len(parts) == 4 && parts[0] == tokenSelect && parts[2] == tokenPage:
		warehouseID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return Action{}, fmt.Errorf("bad warehouse id in %q", token)
		}
		page, err := strconv.Atoi(parts[3])
		if err != nil || page < 0 {
			return Action{}, fmt.Errorf("bad page in %q", token)
		}
		return Action{Kind: ActionSelect, WarehouseID: warehouseID, Page: page}, nil
	case len(parts) == 2 && parts[0] == tokenPage:
		page, err := strconv.Atoi(parts[1])
		if err != nil || page < 0 {
			return Action{}, fmt.Errorf("bad page in %q", token)
		}
		return Action{Kind: ActionPage, Page: page}, nil
	case len(parts) == 2 && parts[0] == tokenSetPolling:
		frequency, err := strconv.Atoi(parts[1])
		if err != nil || !frequencyAllowed(frequency) {
			return Action{}, fmt.Errorf("bad polling frequency in %q", token)
		}
		return Action{Kind: ActionSetPolling, Frequency: frequency}, nil
	}

	return Action{}, fmt.Errorf("unknown callback token %q", token)
}

func frequencyAllowed(frequency int) bool {
	for _, f := range allowedFrequencies {
		if f == frequency {
			return true
		}
	}
	return false
}
