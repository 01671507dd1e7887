// Package project provides the domain model for a registered workspace.
package project

import (
	"context"
	"errors"
	"time"
)

// Project is never deleted implicitly and owns tasks by foreign key.
type Project struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// Touch bumps LastActivity to now.
func (p *Project) Touch(now time.Time) {
	p.LastActivity = now
}

var (
	ErrNotFound      = errors.New("project not found")
	ErrAlreadyExists = errors.New("project already exists")
)

// Store persists project registrations.
type Store interface {
	Upsert(ctx context.Context, p *Project) error
	Get(ctx context.Context, id string) (*Project, error)
	List(ctx context.Context) ([]*Project, error)
}
