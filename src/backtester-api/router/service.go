package router

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jiaming2012/trading-gym/src/backtester-api/models"
	"github.com/jiaming2012/trading-gym/src/backtester-api/services"
	"github.com/jiaming2012/trading-gym/src/eventmodels"
)

// session serializes every call into one environment.
type session struct {
	mu  sync.Mutex
	id  uuid.UUID
	env *services.Environment
}

type GymService struct {
	datasets  map[string]*services.Dataset
	publisher services.Publisher

	mu       sync.RWMutex
	sessions map[uuid.UUID]*session
}

func NewGymService(datasets map[string]*services.Dataset, publisher services.Publisher) *GymService {
	return &GymService{
		datasets:  datasets,
		publisher: publisher,
		sessions:  map[uuid.UUID]*session{},
	}
}

// toWebError maps the sentinel errors of the trading core onto status codes.
func toWebError(msg string, err error) *eventmodels.WebError {
	var webErr *eventmodels.WebError
	if errors.As(err, &webErr) {
		return webErr
	}

	switch {
	case errors.Is(err, models.ErrKeyNotFound), errors.Is(err, eventmodels.ErrUnknownSymbol):
		return eventmodels.NewWebError(404, msg, err)
	case errors.Is(err, models.ErrAccessDenied):
		return eventmodels.NewWebError(403, msg, err)
	case errors.Is(err, models.ErrEnvNotRunning):
		return eventmodels.NewWebError(409, msg, err)
	case errors.Is(err, models.ErrInvalidInput):
		return eventmodels.NewWebError(400, msg, err)
	}

	return eventmodels.NewWebError(500, msg, err)
}

func (s *GymService) CreateSession(req CreateSessionRequest) (*CreateSessionResponse, error) {
	dataset, found := s.datasets[req.Dataset]
	if !found {
		return nil, eventmodels.NewWebError(404, "createSession: dataset not found", fmt.Errorf("dataset %q: %w", req.Dataset, models.ErrKeyNotFound))
	}

	length, err := models.ParseEpisodeLength(req.EpisodeLength)
	if err != nil {
		return nil, toWebError("createSession: invalid episode length", err)
	}

	bias, err := models.ParseExecutionBias(req.ExecutionBias)
	if err != nil {
		return nil, toWebError("createSession: invalid execution bias", err)
	}

	id := uuid.New()
	env, err := services.NewEnvironment(dataset, services.EnvironmentConfig{
		SessionID:            id.String(),
		EpisodeLength:        length,
		Bias:                 bias,
		InvalidActionPenalty: req.InvalidActionPenalty,
		Publisher:            s.publisher,
	})
	if err != nil {
		return nil, toWebError("createSession: failed to create environment", err)
	}

	s.mu.Lock()
	s.sessions[id] = &session{id: id, env: env}
	s.mu.Unlock()

	return &CreateSessionResponse{
		SessionID:   id.String(),
		Dataset:     dataset.Name,
		Fingerprint: dataset.Data.Fingerprint(),
	}, nil
}

func (s *GymService) session(id uuid.UUID) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, found := s.sessions[id]
	if !found {
		return nil, eventmodels.NewWebError(404, "session not found", fmt.Errorf("session %s: %w", id, models.ErrKeyNotFound))
	}

	return sess, nil
}

func (s *GymService) DeleteSession(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.sessions[id]; !found {
		return eventmodels.NewWebError(404, "session not found", fmt.Errorf("session %s: %w", id, models.ErrKeyNotFound))
	}

	delete(s.sessions, id)
	return nil
}

func (s *GymService) Reset(ctx context.Context, id uuid.UUID) (*StepResponse, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	res, err := sess.env.Reset(ctx)
	if err != nil {
		return nil, toWebError("reset: failed", err)
	}

	resp := newStepResponse(id.String(), sess.env.Status(), res)
	return &resp, nil
}

func (s *GymService) Step(ctx context.Context, id uuid.UUID, req StepRequest) (*StepResponse, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	res, err := sess.env.Step(ctx, models.ActionsFromList(req.Actions))
	if err != nil {
		return nil, toWebError("step: failed", err)
	}

	resp := newStepResponse(id.String(), sess.env.Status(), res)
	return &resp, nil
}

func (s *GymService) Journal(id uuid.UUID, filter services.JournalFilter) ([]models.JournalEntry, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	entries, err := sess.env.Journal()
	if err != nil {
		return nil, toWebError("journal: failed", err)
	}

	return filter.Apply(entries), nil
}
