package services

import (
	"github.com/jiaming2012/trading-gym/src/backtester-api/models"
)

// Agent decides the actions for each step. Reset is called at the start of
// every episode.
type Agent interface {
	ID() models.AgentID
	Act(obs Observation) (models.Actions, error)
	Reset()
}
