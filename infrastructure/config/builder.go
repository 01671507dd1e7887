package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	domainconfig "github.com/relaysync/conductor/domain/config"
	"github.com/relaysync/conductor/domain/criteria"
	"github.com/relaysync/conductor/domain/task"
	"github.com/relaysync/conductor/infrastructure/distributed/broadcast"
	"github.com/relaysync/conductor/infrastructure/distributed/lock"
	"github.com/relaysync/conductor/infrastructure/storage/memory"
	"github.com/relaysync/conductor/infrastructure/storage/sqlite"
)

// CoordinatorBuilder builds runtime components from a CoordinatorConfig.
type CoordinatorBuilder struct {
	config *domainconfig.CoordinatorConfig
}

// NewCoordinatorBuilder creates a new builder for cfg.
func NewCoordinatorBuilder(cfg *domainconfig.CoordinatorConfig) *CoordinatorBuilder {
	return &CoordinatorBuilder{config: cfg}
}

// CoordinatorComponents holds the runtime objects assembled from a
// CoordinatorConfig, ready to be wired into the sync protocol handler.
type CoordinatorComponents struct {
	TaskStore      task.Store
	Locker         lock.Locker
	Broadcast      *broadcast.Bus
	HTTPAddr       string
	CORSOrigin     string
	OutboxMaxTries int
}

// Build assembles every component named by the config.
func (b *CoordinatorBuilder) Build() (*CoordinatorComponents, error) {
	store, err := b.buildTaskStore()
	if err != nil {
		return nil, fmt.Errorf("%w: building task store: %v", domainconfig.ErrBuildFailed, err)
	}

	locker, err := b.buildLocker()
	if err != nil {
		return nil, fmt.Errorf("%w: building locker: %v", domainconfig.ErrBuildFailed, err)
	}

	host := b.config.HTTP.Host
	if host == "" {
		host = "0.0.0.0"
	}
	port := b.config.HTTP.Port
	if port == 0 {
		port = 3344
	}

	maxAttempts := b.config.Outbox.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}

	return &CoordinatorComponents{
		TaskStore:      store,
		Locker:         locker,
		Broadcast:      broadcast.New(),
		HTTPAddr:       fmt.Sprintf("%s:%d", host, port),
		CORSOrigin:     b.config.HTTP.CORSOrigin,
		OutboxMaxTries: maxAttempts,
	}, nil
}

func (b *CoordinatorBuilder) buildTaskStore() (task.Store, error) {
	switch b.config.Storage.Backend {
	case "", "memory":
		return memory.NewTaskStore(), nil
	case "sqlite":
		return sqlite.NewTaskStore(sqlite.Config{DSN: b.config.Storage.Path, AutoMigrate: true})
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", b.config.Storage.Backend)
	}
}

func (b *CoordinatorBuilder) buildLocker() (lock.Locker, error) {
	switch b.config.Lock.Backend {
	case "", "memory":
		return lock.NewMemoryLock(), nil
	case "redis":
		if b.config.Lock.RedisAddr == "" {
			return nil, fmt.Errorf("lock.redis_addr is required for the redis backend")
		}
		client := goredis.NewClient(&goredis.Options{Addr: b.config.Lock.RedisAddr})
		return lock.NewRedisLock(client, randomID("coordinator"), "conductor:"), nil
	default:
		return nil, fmt.Errorf("unknown lock backend: %s", b.config.Lock.Backend)
	}
}

func randomID(prefix string) string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return prefix + "-" + hex.EncodeToString(buf)
}

// TaskBuilder builds the per-task runtime configuration (criteria
// evaluation mode, iteration budget, stuck strategies) from a
// TaskDefinition (§4.6 step 1's embedded config).
type TaskBuilder struct {
	def *domainconfig.TaskDefinition
}

// NewTaskBuilder creates a new builder for def.
func NewTaskBuilder(def *domainconfig.TaskDefinition) *TaskBuilder {
	return &TaskBuilder{def: def}
}

// TaskComponents holds the runtime objects assembled from a TaskDefinition.
// MaxDuration/MaxTokens are carried as plain limits rather than a
// pre-built policy.Budget: the driver enforces them itself each tick
// (agentloop.Driver's step 6) against the cumulative metrics it already
// persists, so a Budget built here would just be discarded unread.
type TaskComponents struct {
	Criteria        []criteria.Criterion
	CriteriaMode    criteria.Mode
	MaxIterations   int
	MaxDuration     time.Duration
	MaxTokens       int
	Dependencies    []string
	CheckpointEvery int
	StuckStrategies map[string]string
}

// Build assembles the task's runtime configuration.
func (b *TaskBuilder) Build() *TaskComponents {
	mode := criteria.Mode(b.def.CriteriaMode)
	if mode == "" {
		mode = criteria.ModeAll
	}

	return &TaskComponents{
		Criteria:        b.def.Criteria,
		CriteriaMode:    mode,
		MaxIterations:   b.def.MaxIterations,
		MaxDuration:     time.Duration(b.def.MaxDuration),
		MaxTokens:       b.def.MaxTokens,
		Dependencies:    b.def.Dependencies,
		CheckpointEvery: b.def.CheckpointInterval,
		StuckStrategies: b.def.StuckStrategies,
	}
}
