package models

import "time"

// Record is an entity the repositories persist.
type Record interface {
	ID() string
	CreatedAt() time.Time
	UpdatedAt() time.Time
	Validate() error
}

// Criteria filters List results. Supported keys are documented per repository.
type Criteria = map[string]any

// Store is the CRUD surface of a repository over records of type T. Delete is a soft delete where the table
// supports it.
type Store[T Record] interface {
	Create(record T) error
	Get(id string) (T, error)
	Update(record T) error
	Delete(id string) error
	List(criteria Criteria) ([]T, error)
}

var _ Record = (*ImportRun)(nil)
