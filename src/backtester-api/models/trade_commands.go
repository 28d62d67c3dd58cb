package models

import (
	"fmt"
	"math"
	"sort"

	"github.com/jiaming2012/trading-gym/src/eventmodels"
)

type TradeID int64

type AgentID string

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func requireFinitePrices(prices map[string]*eventmodels.Price) error {
	for name, p := range prices {
		if p != nil && !finite(float64(*p)) {
			return fmt.Errorf("%s must be finite, got %v: %w", name, *p, ErrInvalidInput)
		}
	}

	return nil
}

type OpenCmd struct {
	TradeID    TradeID              `json:"trade_id"`
	AgentID    AgentID              `json:"agent_id"`
	TradeType  TradeType            `json:"trade_type"`
	Quantity   eventmodels.Quantity `json:"quantity"`
	EntryPrice *eventmodels.Price   `json:"entry_price,omitempty"`
	StopLoss   *eventmodels.Price   `json:"stop_loss,omitempty"`
	TakeProfit *eventmodels.Price   `json:"take_profit,omitempty"`
}

func (c OpenCmd) Validate() error {
	if c.Quantity <= 0 || !finite(float64(c.Quantity)) {
		return fmt.Errorf("OpenCmd: quantity must be positive, got %v: %w", c.Quantity, ErrInvalidInput)
	}

	if err := requireFinitePrices(map[string]*eventmodels.Price{"entry_price": c.EntryPrice, "stop_loss": c.StopLoss, "take_profit": c.TakeProfit}); err != nil {
		return fmt.Errorf("OpenCmd: %w", err)
	}

	if err := c.TradeType.ValidatePriceOrdering(c.StopLoss, c.EntryPrice, c.TakeProfit); err != nil {
		return fmt.Errorf("OpenCmd: %w", err)
	}

	return nil
}

type ModifyCmd struct {
	AgentID       AgentID            `json:"agent_id"`
	TradeID       TradeID            `json:"trade_id"`
	NewEntryPrice *eventmodels.Price `json:"new_entry_price,omitempty"`
	NewStopLoss   *eventmodels.Price `json:"new_stop_loss,omitempty"`
	NewTakeProfit *eventmodels.Price `json:"new_take_profit,omitempty"`
}

func (c ModifyCmd) Validate() error {
	if err := requireFinitePrices(map[string]*eventmodels.Price{"new_entry_price": c.NewEntryPrice, "new_stop_loss": c.NewStopLoss, "new_take_profit": c.NewTakeProfit}); err != nil {
		return fmt.Errorf("ModifyCmd: %w", err)
	}

	if c.NewStopLoss != nil && c.NewTakeProfit != nil && *c.NewStopLoss == *c.NewTakeProfit {
		return fmt.Errorf("ModifyCmd: Stop Loss and Take Profit cannot be equal: %w", ErrInvalidInput)
	}

	return nil
}

type CancelCmd struct {
	AgentID AgentID `json:"agent_id"`
	TradeID TradeID `json:"trade_id"`
}

func (c CancelCmd) Validate() error {
	return nil
}

type MarketCloseCmd struct {
	AgentID  AgentID               `json:"agent_id"`
	TradeID  TradeID               `json:"trade_id"`
	Quantity *eventmodels.Quantity `json:"quantity,omitempty"`
}

func (c MarketCloseCmd) Validate() error {
	if c.Quantity != nil && (*c.Quantity <= 0 || !finite(float64(*c.Quantity))) {
		return fmt.Errorf("MarketCloseCmd: quantity must be positive, got %v: %w", *c.Quantity, ErrInvalidInput)
	}

	return nil
}

type ActionKind string

const (
	ActionOpen        ActionKind = "open"
	ActionModify      ActionKind = "modify"
	ActionCancel      ActionKind = "cancel"
	ActionMarketClose ActionKind = "market_close"
)

// Action is one command addressed to a market. Exactly one of the command
// pointers is set, matching Kind.
type Action struct {
	Kind        ActionKind      `json:"kind"`
	Open        *OpenCmd        `json:"open,omitempty"`
	Modify      *ModifyCmd      `json:"modify,omitempty"`
	Cancel      *CancelCmd      `json:"cancel,omitempty"`
	MarketClose *MarketCloseCmd `json:"market_close,omitempty"`
}

func NewOpenAction(cmd OpenCmd) Action {
	return Action{Kind: ActionOpen, Open: &cmd}
}

func NewModifyAction(cmd ModifyCmd) Action {
	return Action{Kind: ActionModify, Modify: &cmd}
}

func NewCancelAction(cmd CancelCmd) Action {
	return Action{Kind: ActionCancel, Cancel: &cmd}
}

func NewMarketCloseAction(cmd MarketCloseCmd) Action {
	return Action{Kind: ActionMarketClose, MarketClose: &cmd}
}

// Priority orders actions within a market. Lower runs first.
func (a Action) Priority() int {
	switch a.Kind {
	case ActionCancel:
		return 0
	case ActionMarketClose:
		return 1
	case ActionModify:
		return 2
	case ActionOpen:
		return 3
	}

	return 4
}

func (a Action) Validate() error {
	switch a.Kind {
	case ActionOpen:
		if a.Open != nil {
			return a.Open.Validate()
		}
	case ActionModify:
		if a.Modify != nil {
			return a.Modify.Validate()
		}
	case ActionCancel:
		if a.Cancel != nil {
			return a.Cancel.Validate()
		}
	case ActionMarketClose:
		if a.MarketClose != nil {
			return a.MarketClose.Validate()
		}
	default:
		return fmt.Errorf("Action: unknown kind %q: %w", a.Kind, ErrInvalidInput)
	}

	return fmt.Errorf("Action: missing %s command: %w", a.Kind, ErrInvalidInput)
}

func (a Action) TradeID() TradeID {
	switch {
	case a.Open != nil:
		return a.Open.TradeID
	case a.Modify != nil:
		return a.Modify.TradeID
	case a.Cancel != nil:
		return a.Cancel.TradeID
	case a.MarketClose != nil:
		return a.MarketClose.TradeID
	}

	return 0
}

func (a Action) AgentID() AgentID {
	switch {
	case a.Open != nil:
		return a.Open.AgentID
	case a.Modify != nil:
		return a.Modify.AgentID
	case a.Cancel != nil:
		return a.Cancel.AgentID
	case a.MarketClose != nil:
		return a.MarketClose.AgentID
	}

	return ""
}

type MarketActions struct {
	Market  eventmodels.MarketID `json:"market"`
	Actions []Action             `json:"actions"`
}

// Actions is a batch of commands submitted for one step.
type Actions struct {
	byMarket map[eventmodels.MarketID][]Action
}

func NewActions() Actions {
	return Actions{byMarket: map[eventmodels.MarketID][]Action{}}
}

func (a *Actions) Add(market eventmodels.MarketID, action Action) {
	if a.byMarket == nil {
		a.byMarket = map[eventmodels.MarketID][]Action{}
	}

	a.byMarket[market] = append(a.byMarket[market], action)
}

func (a Actions) Len() int {
	n := 0
	for _, actions := range a.byMarket {
		n += len(actions)
	}

	return n
}

// Ordered yields markets in key order and, within each market, actions in a
// stable priority order.
func (a Actions) Ordered() []MarketActions {
	out := make([]MarketActions, 0, len(a.byMarket))
	for market, actions := range a.byMarket {
		sorted := make([]Action, len(actions))
		copy(sorted, actions)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Priority() < sorted[j].Priority()
		})

		out = append(out, MarketActions{Market: market, Actions: sorted})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Market.Key() < out[j].Market.Key()
	})

	return out
}

func ActionsFromList(list []MarketActions) Actions {
	actions := NewActions()
	for _, m := range list {
		for _, a := range m.Actions {
			actions.Add(m.Market, a)
		}
	}

	return actions
}
