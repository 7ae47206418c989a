package storage

import (
	"context"
	"errors"

	"budgetd/internal/core"
	"budgetd/internal/filter"
)

// ErrNotFound is returned by get/update/delete calls for an unknown identity.
var ErrNotFound = errors.New("record not found")

// Store is the persistence surface for all three budget kinds. Every create,
// update and delete runs as its own implicit transaction; list results are
// ordered by ID. A limit <= 0 means no cap.
type Store interface {
	CreateOperating(ctx context.Context, b core.OperatingBudget) (core.OperatingBudget, error)
	GetOperating(ctx context.Context, id int64) (core.OperatingBudget, error)
	ListOperating(ctx context.Context, skip, limit int) ([]core.OperatingBudget, error)
	SearchOperating(ctx context.Context, c filter.Criteria) ([]core.OperatingBudget, error)
	ListOperatingLatestYear(ctx context.Context) ([]core.OperatingBudget, error)
	UpdateOperating(ctx context.Context, id int64, b core.OperatingBudget) (core.OperatingBudget, error)
	DeleteOperating(ctx context.Context, id int64) (core.OperatingBudget, error)

	CreateSupplier(ctx context.Context, b core.SupplierBudget) (core.SupplierBudget, error)
	GetSupplier(ctx context.Context, id int64) (core.SupplierBudget, error)
	ListSupplier(ctx context.Context, skip, limit int) ([]core.SupplierBudget, error)
	SearchSupplier(ctx context.Context, c filter.Criteria) ([]core.SupplierBudget, error)
	ListSupplierLatestYear(ctx context.Context) ([]core.SupplierBudget, error)
	UpdateSupplier(ctx context.Context, id int64, b core.SupplierBudget) (core.SupplierBudget, error)
	DeleteSupplier(ctx context.Context, id int64) (core.SupplierBudget, error)

	CreateConstruction(ctx context.Context, b core.ConstructionBudget) (core.ConstructionBudget, error)
	GetConstruction(ctx context.Context, id int64) (core.ConstructionBudget, error)
	ListConstruction(ctx context.Context, skip, limit int) ([]core.ConstructionBudget, error)
	SearchConstruction(ctx context.Context, c filter.Criteria) ([]core.ConstructionBudget, error)
	UpdateConstruction(ctx context.Context, id int64, b core.ConstructionBudget) (core.ConstructionBudget, error)
	DeleteConstruction(ctx context.Context, id int64) (core.ConstructionBudget, error)

	Close() error
}
