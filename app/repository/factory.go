package repository

import (
	"context"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetUnitOfWork returns a unit of work over the factory's connection
func (f *Factory) GetUnitOfWork() UnitOfWork {
	return NewUnitOfWork(f.db)
}

// Global factory instance
var globalFactory *Factory
var factoryOnce sync.Once

// InitializeFactory initializes the global repository factory
func InitializeFactory(db *gorm.DB) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db)
	})
}

// GetGlobalFactory returns the global repository factory instance
func GetGlobalFactory() *Factory {
	if globalFactory == nil {
		panic("Repository factory not initialized. Call InitializeFactory first.")
	}
	return globalFactory
}

// GetGlobalRepositories returns the global repositories instance
func GetGlobalRepositories() *Repositories {
	return GetGlobalFactory().GetRepositories()
}

type gormUnitOfWork struct {
	db *gorm.DB
}

// NewUnitOfWork wraps db in a UnitOfWork
func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &gormUnitOfWork{db: db}
}

func (u *gormUnitOfWork) Transaction(ctx context.Context, fn func(repos *Repositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// forUpdate adds SELECT ... FOR UPDATE to the query
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
