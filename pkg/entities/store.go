package entities

import "context"

// Store is the persistence interface for entities
type Store interface {
	Create(ctx context.Context, entity *Entity) error
	GetByMrn(ctx context.Context, orgID int64, kind Kind, mrn string) (*Entity, error)
	ListByOrg(ctx context.Context, orgID int64, kind Kind) ([]*Entity, error)
	ListAllByOrg(ctx context.Context, orgID int64) ([]*Entity, error)
	Update(ctx context.Context, entity *Entity) error
	Delete(ctx context.Context, id int64) error
}
