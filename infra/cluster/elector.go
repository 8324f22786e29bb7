// Package cluster implements the primary/secondary role heuristic at the
// catalog-service boundary: among live instances, the lowest node id
// claims the primary role when none holds it. The heuristic has no fencing
// guarantee; two nodes can briefly both believe they are primary. Keeping
// it at the boundary leaves room to swap in a lease-based primitive.
package cluster

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Instance is one engine process as seen by the membership roster.
type Instance struct {
	InstanceID string
	NodeID     int
	Primary    bool
	LastSeen   time.Time
}

// Membership is the external roster the heuristic runs against.
type Membership interface {
	Register(inst Instance) error
	Instances() ([]Instance, error)
	SetPrimary(instanceID string, primary bool) error
}

// Elector periodically checks the roster and claims the primary role when
// it is vacant and this node has the lowest id.
type Elector struct {
	membership Membership
	self       Instance
	interval   time.Duration
	primary    atomic.Bool
	log        zerolog.Logger
}

func NewElector(m Membership, nodeID int, interval time.Duration, log zerolog.Logger) (*Elector, error) {
	self := Instance{
		InstanceID: uuid.NewString(),
		NodeID:     nodeID,
		LastSeen:   time.Now(),
	}
	if err := m.Register(self); err != nil {
		return nil, err
	}
	return &Elector{membership: m, self: self, interval: interval, log: log}, nil
}

func (e *Elector) IsPrimary() bool { return e.primary.Load() }

func (e *Elector) InstanceID() string { return e.self.InstanceID }

func (e *Elector) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.check()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.check()
		}
	}
}

func (e *Elector) check() {
	instances, err := e.membership.Instances()
	if err != nil {
		e.log.Warn().Err(err).Msg("membership roster unavailable")
		return
	}
	if len(instances) == 0 {
		return
	}

	sort.Slice(instances, func(i, j int) bool {
		return instances[i].NodeID < instances[j].NodeID
	})

	for _, inst := range instances {
		if inst.Primary {
			if inst.InstanceID != e.self.InstanceID {
				e.demote()
			}
			return
		}
	}

	// No primary: lowest node id claims the role.
	if instances[0].InstanceID == e.self.InstanceID {
		if err := e.membership.SetPrimary(e.self.InstanceID, true); err != nil {
			e.log.Warn().Err(err).Msg("failed to claim primary role")
			return
		}
		if e.primary.CompareAndSwap(false, true) {
			e.log.Info().Int("node_id", e.self.NodeID).Msg("claimed primary role")
		}
	}
}

func (e *Elector) demote() {
	if e.primary.CompareAndSwap(true, false) {
		e.log.Info().Int("node_id", e.self.NodeID).Msg("yielded primary role")
	}
}

// MemoryMembership is an in-process roster, used for single-node runs and
// tests. The production roster lives in the external catalog service.
type MemoryMembership struct {
	mu        sync.Mutex
	instances map[string]Instance
}

func NewMemoryMembership() *MemoryMembership {
	return &MemoryMembership{instances: make(map[string]Instance)}
}

func (m *MemoryMembership) Register(inst Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances[inst.InstanceID] = inst
	return nil
}

func (m *MemoryMembership) Instances() ([]Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		out = append(out, inst)
	}
	return out, nil
}

func (m *MemoryMembership) SetPrimary(instanceID string, primary bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[instanceID]
	if !ok {
		return nil
	}
	inst.Primary = primary
	m.instances[instanceID] = inst
	return nil
}
