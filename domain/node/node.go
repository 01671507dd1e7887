// Package node provides the domain model for an agent registration.
package node

import (
	"context"
	"errors"
	"time"
)

// onlineWindow is the interval within which a node's LastSeen must fall
// for IsOnline to report true (§3 "Node").
const onlineWindow = 5 * time.Minute

// Type distinguishes the kind of process registering as a node.
type Type string

const (
	TypeAgent Type = "agent"
	TypeOther Type = "other"
)

// Node represents an agent registration.
type Node struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"projectId"`
	Type         Type      `json:"nodeType"`
	DisplayName  string    `json:"displayName,omitempty"`
	Capabilities []string  `json:"capabilities,omitempty"`
	LastSeen     time.Time `json:"lastSeen"`
}

// IsOnline derives liveness from LastSeen relative to now, per §3.
func (n *Node) IsOnline(now time.Time) bool {
	return now.Sub(n.LastSeen) <= onlineWindow
}

var ErrNotFound = errors.New("node not found")

// Store persists node registrations.
type Store interface {
	Upsert(ctx context.Context, n *Node) error
	Heartbeat(ctx context.Context, id string, now time.Time) error
	Get(ctx context.Context, id string) (*Node, error)
	ListByProject(ctx context.Context, projectID string) ([]*Node, error)
}
