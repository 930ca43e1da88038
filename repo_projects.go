package projects

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Projects interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Project, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Project, error)
	List(ctx context.Context) ([]*Project, error)
	ListTx(ctx context.Context, tx bun.IDB) ([]*Project, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Project) (*Project, error)
	UpdateTx(ctx context.Context, tx bun.IDB, record *Project) (*Project, error)
	DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type projects struct {
	repository.Repository[*Project]
	db *bun.DB
}

var _ Projects = (*projects)(nil)

func NewProjectsRepository(db *bun.DB) Projects {
	repo := repository.NewRepository[*Project](db, repository.ModelHandlers[*Project]{
		NewRecord: func() *Project { return &Project{} },
		GetID: func(p *Project) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Project, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
	})

	return &projects{
		Repository: repo,
		db:         db,
	}
}

func (p *projects) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	return p.GetByIDTx(ctx, p.db, id)
}

func (p *projects) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Project, error) {
	record := &Project{}
	err := tx.NewSelect().
		Model(record).
		Relation("Members").
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, withMetadata(ErrProjectNotFound, map[string]any{"id": id.String()})
		}
		return nil, err
	}
	return record, nil
}

func (p *projects) List(ctx context.Context) ([]*Project, error) {
	return p.ListTx(ctx, p.db)
}

func (p *projects) ListTx(ctx context.Context, tx bun.IDB) ([]*Project, error) {
	records := make([]*Project, 0)
	err := tx.NewSelect().
		Model(&records).
		Order("created_at ASC", "name ASC").
		Scan(ctx)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	return records, nil
}

func (p *projects) CreateTx(ctx context.Context, tx bun.IDB, record *Project) (*Project, error) {
	prepareProjectDefaults(record)
	return p.Repository.CreateTx(ctx, tx, record)
}

func (p *projects) UpdateTx(ctx context.Context, tx bun.IDB, record *Project) (*Project, error) {
	touch(&record.CreatedAt, &record.UpdatedAt)
	members := record.Members
	updated, err := p.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(record.ID.String()))
	if err != nil {
		return nil, err
	}
	if updated != nil && updated.Members == nil {
		updated.Members = members
	}
	return updated, nil
}

func (p *projects) DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewDelete().
		Model((*Project)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return withMetadata(ErrProjectNotFound, map[string]any{"id": id.String()})
	}
	return nil
}
