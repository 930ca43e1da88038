package projects

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProjectsService holds project CRUD
type ProjectsService struct {
	repo           RepositoryManager
	stateMachine   ProjectStateMachine
	transitionOpts []TransitionOption
	logger         Logger
	activitySink   ActivitySink
}

// NewProjectsService creates a service over the repository manager
func NewProjectsService(repo RepositoryManager, opts ...StateMachineOption) *ProjectsService {
	return &ProjectsService{
		repo:         repo,
		stateMachine: NewProjectStateMachine(repo.Projects(), opts...),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *ProjectsService) WithLogger(l Logger) *ProjectsService {
	s.logger = normalizeLogger(l)
	return s
}

func (s *ProjectsService) WithActivitySink(sink ActivitySink) *ProjectsService {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithTransitionOptions applies opts to every state change made by Update
func (s *ProjectsService) WithTransitionOptions(opts ...TransitionOption) *ProjectsService {
	s.transitionOpts = append(s.transitionOpts, opts...)
	return s
}

// StateMachine exposes the lifecycle rules
func (s *ProjectsService) StateMachine() ProjectStateMachine {
	return s.stateMachine
}

// Create stores the project and makes creator its OWNER
func (s *ProjectsService) Create(ctx context.Context, creator Identity, req CreateProjectRequest) (*Project, error) {
	if err := req.Validate(); err != nil {
		return nil, validationError(err, "invalid project payload")
	}

	if creator == nil {
		return nil, ErrMissingToken
	}

	ownerID, err := uuid.Parse(creator.ID())
	if err != nil {
		return nil, withMetadata(ErrInvalidUUID, map[string]any{"field": "creator"})
	}

	project := req.ToProject()
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := s.repo.Projects().CreateTx(ctx, tx, project)
		if err != nil {
			return err
		}

		owner, err := s.repo.Memberships().CreateTx(ctx, tx, &ProjectMember{
			UserID:      ownerID,
			ProjectID:   created.ID,
			AccessLevel: AccessOwner,
		})
		if err != nil {
			return err
		}

		created.Members = []*ProjectMember{owner}
		project = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventProjectCreated,
		Actor:     actorFromIdentity(creator),
		UserID:    ownerID.String(),
		ProjectID: project.ID.String(),
		Metadata:  map[string]any{"name": project.Name},
	})

	return project, nil
}

// List returns every project
func (s *ProjectsService) List(ctx context.Context) ([]*Project, error) {
	return s.repo.Projects().List(ctx)
}

// Get returns a project with its members
func (s *ProjectsService) Get(ctx context.Context, id uuid.UUID) (*Project, error) {
	return s.repo.Projects().GetByID(ctx, id)
}

// Update applies the non nil fields of req; state changes go through
// the state machine
func (s *ProjectsService) Update(ctx context.Context, actor Identity, id uuid.UUID, req UpdateProjectRequest) (*Project, error) {
	if err := req.Validate(); err != nil {
		return nil, validationError(err, "invalid project payload")
	}

	var updated *Project
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		project, err := s.repo.Projects().GetByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}

		changed := make([]string, 0, 3)
		if req.Name != nil {
			project.Name = *req.Name
			changed = append(changed, "name")
		}
		if req.Description != nil {
			project.Description = *req.Description
			changed = append(changed, "description")
		}
		if req.Duration != nil {
			project.Duration = *req.Duration
			changed = append(changed, "duration")
		}

		if req.State != nil && ProjectState(*req.State) != project.State {
			opts := append([]TransitionOption{
				WithBeforeTransitionHook(s.logTransition),
				WithTransitionMetadata(map[string]any{"changed": changed}),
			}, s.transitionOpts...)
			if req.Reason != nil {
				opts = append(opts, WithTransitionReason(*req.Reason))
			}
			updated, err = s.stateMachine.Transition(ctx, tx, actorFromIdentity(actor), project, ProjectState(*req.State), opts...)
			return err
		}

		updated, err = s.repo.Projects().UpdateTx(ctx, tx, project)
		return err
	})
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventProjectUpdated,
		Actor:     actorFromIdentity(actor),
		ProjectID: id.String(),
	})

	return updated, nil
}

// Delete removes the project and its memberships. The deleted event
// lists the users that lost access.
func (s *ProjectsService) Delete(ctx context.Context, actor Identity, id uuid.UUID) error {
	var members []string
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := s.repo.Memberships().ListByProjectTx(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, m := range existing {
			members = append(members, m.UserID.String())
		}

		if err := s.repo.Memberships().DeleteByProjectTx(ctx, tx, id); err != nil {
			return err
		}
		return s.repo.Projects().DeleteTx(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventProjectDeleted,
		Actor:     actorFromIdentity(actor),
		ProjectID: id.String(),
		Metadata:  map[string]any{"members": members},
	})
	return nil
}

func (s *ProjectsService) logTransition(_ context.Context, tc TransitionContext) error {
	s.logger.Debug("project state transition",
		"project_id", tc.Project.ID.String(),
		"from", string(tc.From),
		"to", string(tc.To),
		"actor", tc.Actor.ID,
	)
	return nil
}
