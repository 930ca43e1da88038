package projects

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionContext is passed into hooks for additional processing.
type TransitionContext struct {
	Actor   ActorRef
	Project *Project
	From    ProjectState
	To      ProjectState
	Meta    TransitionMetadata
}

// TransitionHook is executed before or after a transition.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// TransitionHookPhase identifies whether a hook ran before or after persistence.
type TransitionHookPhase string

const (
	HookPhaseBefore TransitionHookPhase = "before_transition"
	HookPhaseAfter  TransitionHookPhase = "after_transition"
)

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

// ProjectStateMachine guards project lifecycle changes.
type ProjectStateMachine interface {
	CanTransition(from, to ProjectState) error
	Transition(ctx context.Context, tx bun.IDB, actor ActorRef, project *Project, target ProjectState, opts ...TransitionOption) (*Project, error)
}

// HookErrorHandler handles errors surfaced by transition hooks.
type HookErrorHandler func(ctx context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*projectStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *projectStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the ActivitySink used to publish lifecycle events.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *projectStateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineHookErrorHandler overrides how hook failures are propagated.
func WithStateMachineHookErrorHandler(handler HookErrorHandler) StateMachineOption {
	return func(sm *projectStateMachine) {
		if handler != nil {
			sm.hookErrorHandler = handler
		}
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *projectStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// WithBeforeTransitionHook adds a hook executed before the state update.
func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed after the state update succeeds.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

// NewProjectStateMachine returns the default implementation backed by the provided repository.
// Every move between known states is allowed, including reopening a
// finished project.
func NewProjectStateMachine(projects Projects, opts ...StateMachineOption) ProjectStateMachine {
	sm := &projectStateMachine{
		projects: projects,
		transitions: map[ProjectState]map[ProjectState]struct{}{
			ProjectCreated: {
				ProjectInProgress: {},
				ProjectFinished:   {},
			},
			ProjectInProgress: {
				ProjectCreated:  {},
				ProjectFinished: {},
			},
			ProjectFinished: {
				ProjectCreated:    {},
				ProjectInProgress: {},
			},
		},
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		hookErrorHandler: func(_ context.Context, _ TransitionHookPhase, err error, _ TransitionContext) error {
			return err
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type projectStateMachine struct {
	projects         Projects
	transitions      map[ProjectState]map[ProjectState]struct{}
	now              func() time.Time
	activitySink     ActivitySink
	logger           Logger
	hookErrorHandler HookErrorHandler
}

type transitionOptions struct {
	metadata    TransitionMetadata
	beforeHooks []TransitionHook
	afterHooks  []TransitionHook
}

func (o *transitionOptions) cloneMetadata() TransitionMetadata {
	var cloned map[string]any
	if len(o.metadata.Metadata) > 0 {
		cloned = make(map[string]any, len(o.metadata.Metadata))
		for k, v := range o.metadata.Metadata {
			cloned[k] = v
		}
	}

	return TransitionMetadata{
		Reason:   o.metadata.Reason,
		Metadata: cloned,
	}
}

// CanTransition returns nil when from -> to is allowed
func (sm *projectStateMachine) CanTransition(from, to ProjectState) error {
	if !to.IsValid() {
		return withMetadata(ErrInvalidTransition, map[string]any{
			"from":   from,
			"to":     to,
			"reason": "unknown target state",
		})
	}

	if from == to {
		return nil
	}

	if allowed, ok := sm.transitions[from]; ok {
		if _, exists := allowed[to]; exists {
			return nil
		}
	}

	return withMetadata(ErrInvalidTransition, map[string]any{
		"from": from,
		"to":   to,
	})
}

// Transition moves the project to target and persists the whole record
// using tx, so other pending field changes are saved with it
func (sm *projectStateMachine) Transition(ctx context.Context, tx bun.IDB, actor ActorRef, project *Project, target ProjectState, opts ...TransitionOption) (*Project, error) {
	if project == nil {
		return nil, withMetadata(ErrInvalidTransition, map[string]any{
			"target": target,
			"reason": "project is nil",
		})
	}

	from := project.State
	if from == "" {
		from = ProjectCreated
	}

	if err := sm.CanTransition(from, target); err != nil {
		return nil, err
	}

	options := sm.buildTransitionOptions(opts...)

	ctxData := TransitionContext{
		Actor:   actor,
		Project: project,
		From:    from,
		To:      target,
		Meta:    options.cloneMetadata(),
	}

	if err := sm.runHooks(ctx, options.beforeHooks, ctxData, HookPhaseBefore); err != nil {
		return nil, err
	}

	project.State = target

	updated, err := sm.projects.UpdateTx(ctx, tx, project)
	if err != nil {
		project.State = from
		return nil, err
	}

	if updated != nil {
		project = updated
		ctxData.Project = updated
	}

	if err := sm.runHooks(ctx, options.afterHooks, ctxData, HookPhaseAfter); err != nil {
		return nil, err
	}

	if from != target {
		sm.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventProjectTransition,
			Actor:     actor,
			ProjectID: project.ID.String(),
			Metadata:  sm.transitionMetadata(from, target, ctxData.Meta),
		})
	}

	return project, nil
}

func (sm *projectStateMachine) runHooks(ctx context.Context, hooks []TransitionHook, data TransitionContext, phase TransitionHookPhase) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, data); err != nil {
			if sm.hookErrorHandler == nil {
				return err
			}
			return sm.hookErrorHandler(ctx, phase, err, data)
		}
	}
	return nil
}

func (sm *projectStateMachine) buildTransitionOptions(opts ...TransitionOption) *transitionOptions {
	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return options
}

func (sm *projectStateMachine) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = sm.now()
	}

	sink := normalizeActivitySink(sm.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		sm.logger.Warn("state machine activity sink error", "error", err)
	}
}

func (sm *projectStateMachine) transitionMetadata(from, to ProjectState, meta TransitionMetadata) map[string]any {
	result := map[string]any{
		"from": from,
		"to":   to,
	}
	if meta.Reason != "" {
		result["reason"] = meta.Reason
	}
	for k, v := range meta.Metadata {
		result[k] = v
	}
	return result
}
