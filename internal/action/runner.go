// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package action

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Bederf/aimthelaw-sub002/internal/api"
	"github.com/Bederf/aimthelaw-sub002/internal/logging"
	"github.com/Bederf/aimthelaw-sub002/internal/model"
	"github.com/Bederf/aimthelaw-sub002/internal/normalize"
)

// ErrCancelled is returned by Run when the action was cancelled by the user.
var ErrCancelled = errors.New("quick action cancelled")

// State is the runner's position in the action lifecycle.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Backend is the slice of the API client the runner needs.
type Backend interface {
	RunQuickAction(ctx context.Context, action model.QuickAction, req api.ActionRequest) (map[string]any, error)
}

// =============================================================================
// RUNNER
// =============================================================================

// Runner drives quick actions through their lifecycle: claim the session,
// block navigation, call the backend, normalize the result, release. One
// action at a time; a second Run while one is live returns
// ErrActionInProgress.
type Runner struct {
	mu     sync.Mutex
	state  State
	runCtx context.Context
	cancel context.CancelFunc

	clientID string
	backend  Backend
	coord    *Coordinator
	guard    *NavigationGuard
	log      zerolog.Logger
}

// NewRunner creates a runner for a client. The guard may be nil when the
// embedding surface has no navigation to protect.
func NewRunner(clientID string, backend Backend, coord *Coordinator, guard *NavigationGuard) *Runner {
	return &Runner{
		clientID: clientID,
		backend:  backend,
		coord:    coord,
		guard:    guard,
		log:      logging.For("action"),
	}
}

// State returns the runner's current lifecycle state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// InProgress reports whether an action is live, here or in a previous
// session whose marker has not gone stale.
func (r *Runner) InProgress() bool {
	r.mu.Lock()
	live := r.state == StateStarting || r.state == StateRunning
	r.mu.Unlock()
	if live {
		return true
	}
	_, ok := r.coord.Active()
	return ok
}

// Cancel aborts the in-flight action, if any.
func (r *Runner) Cancel() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run executes one quick action over the given documents and returns the
// normalized result. Fails fast before claiming the session when the action
// is unknown or no documents are selected.
func (r *Runner) Run(ctx context.Context, act model.QuickAction, docs []model.DocumentRef) (normalize.Result, error) {
	if !act.IsValid() {
		return normalize.Result{}, fmt.Errorf("unknown quick action %q", act)
	}
	if len(docs) == 0 {
		return normalize.Result{}, api.ErrNoDocuments
	}

	ids := model.DocumentIDs(docs)
	if err := r.claim(ctx, act, ids); err != nil {
		return normalize.Result{}, err
	}

	if r.guard != nil {
		r.guard.Block(act.DisplayName() + " is in progress")
	}
	defer func() {
		if r.guard != nil {
			r.guard.Unblock()
		}
		r.mu.Lock()
		if r.cancel != nil {
			r.cancel()
		}
		r.cancel = nil
		r.runCtx = nil
		r.mu.Unlock()
	}()

	r.setState(StateRunning)
	r.log.Info().Str("action", act.String()).Int("documents", len(ids)).
		Msg("quick action started")

	runCtx := r.runContext()
	payload, err := r.backend.RunQuickAction(runCtx, act, api.ActionRequest{
		ClientID:  r.clientID,
		Documents: ids,
	})
	if err != nil {
		if runCtx.Err() == context.Canceled {
			r.setState(StateCancelled)
			r.coord.Cancel()
			r.log.Info().Str("action", act.String()).Msg("quick action cancelled")
			return normalize.Result{}, ErrCancelled
		}
		r.setState(StateFailed)
		r.coord.Fail()
		r.log.Warn().Err(err).Str("action", act.String()).Msg("quick action failed")
		return normalize.Result{}, err
	}

	docsByID := make(map[string]model.DocumentRef, len(docs))
	for _, doc := range docs {
		docsByID[doc.ID] = doc
	}
	result := normalize.New(docsByID).Normalize(act, payload)

	r.setState(StateCompleted)
	r.coord.Complete()
	r.log.Info().Str("action", act.String()).Bool("fallback", result.IsError).
		Msg("quick action completed")
	return result, nil
}

// claim moves Idle to Starting and takes the session. The runner's own
// single-flight check runs before the coordinator's so a live local action
// rejects without touching storage.
func (r *Runner) claim(ctx context.Context, act model.QuickAction, ids []string) error {
	r.mu.Lock()
	if r.state == StateStarting || r.state == StateRunning {
		r.mu.Unlock()
		return ErrActionInProgress
	}
	r.state = StateStarting
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.runCtx = runCtx
	r.mu.Unlock()

	if err := r.coord.Begin(act, ids); err != nil {
		r.mu.Lock()
		r.state = StateIdle
		r.cancel = nil
		r.runCtx = nil
		r.mu.Unlock()
		cancel()
		return err
	}
	return nil
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Runner) runContext() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runCtx
}
