package projects

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Memberships stores the user to project relation
type Memberships interface {
	MembershipFinder
	FindTx(ctx context.Context, tx bun.IDB, userID, projectID uuid.UUID) (*ProjectMember, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *ProjectMember) (*ProjectMember, error)
	ListByProjectTx(ctx context.Context, tx bun.IDB, projectID uuid.UUID) ([]*ProjectMember, error)
	DeleteByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error
	DeleteByProjectTx(ctx context.Context, tx bun.IDB, projectID uuid.UUID) error
}

type memberships struct {
	repository.Repository[*ProjectMember]
	db *bun.DB
}

var _ Memberships = (*memberships)(nil)

func NewMembershipsRepository(db *bun.DB) Memberships {
	repo := repository.NewRepository[*ProjectMember](db, repository.ModelHandlers[*ProjectMember]{
		NewRecord: func() *ProjectMember { return &ProjectMember{} },
		GetID: func(m *ProjectMember) uuid.UUID {
			if m == nil {
				return uuid.Nil
			}
			return m.ID
		},
		SetID: func(m *ProjectMember, id uuid.UUID) {
			if m != nil {
				m.ID = id
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
	})

	return &memberships{
		Repository: repo,
		db:         db,
	}
}

// FindMembership implements MembershipFinder
func (m *memberships) FindMembership(ctx context.Context, userID, projectID uuid.UUID) (*ProjectMember, error) {
	return m.FindTx(ctx, m.db, userID, projectID)
}

func (m *memberships) FindTx(ctx context.Context, tx bun.IDB, userID, projectID uuid.UUID) (*ProjectMember, error) {
	record := &ProjectMember{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.project_id = ?", projectID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, repository.NewRecordNotFound().WithMetadata(map[string]any{
				"user_id":    userID.String(),
				"project_id": projectID.String(),
			})
		}
		return nil, err
	}
	return record, nil
}

func (m *memberships) CreateTx(ctx context.Context, tx bun.IDB, record *ProjectMember) (*ProjectMember, error) {
	prepareMemberDefaults(record)
	created, err := m.Repository.CreateTx(ctx, tx, record)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, withMetadata(ErrMembershipExists, map[string]any{
				"user_id":    record.UserID.String(),
				"project_id": record.ProjectID.String(),
			})
		}
		return nil, err
	}
	return created, nil
}

func (m *memberships) ListByProjectTx(ctx context.Context, tx bun.IDB, projectID uuid.UUID) ([]*ProjectMember, error) {
	records := make([]*ProjectMember, 0)
	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.project_id = ?", projectID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	return records, nil
}

func (m *memberships) DeleteByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*ProjectMember)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	return err
}

func (m *memberships) DeleteByProjectTx(ctx context.Context, tx bun.IDB, projectID uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*ProjectMember)(nil)).
		Where("project_id = ?", projectID).
		Exec(ctx)
	return err
}
