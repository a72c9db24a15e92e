package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tsyne-dev/tsyne-host/internal/executor"
	"github.com/tsyne-dev/tsyne-host/internal/monitoring"
	"github.com/tsyne-dev/tsyne-host/internal/sandbox"
	"github.com/tsyne-dev/tsyne-host/internal/shared/types"
	"github.com/tsyne-dev/tsyne-host/internal/shared/utils"
)

// Publisher receives lifecycle and console events for stream fan-out
type Publisher interface {
	Publish(types.Event)
}

// Manager orchestrates instance lifecycle
type Manager struct {
	mu         sync.RWMutex
	instances  map[string]*types.Instance // Protected by mu
	tokens     *sandbox.Registry
	pool       *executor.Pool
	resolver   executor.ModuleResolver
	maxTimeout time.Duration
	publisher  Publisher
	metrics    *monitoring.Metrics
}

// LaunchSpec describes one instance launch
type LaunchSpec struct {
	Source    string
	Label     string
	PackageID *string
	Modules   []string
	Timeout   time.Duration
	Metadata  map[string]interface{}
}

// NewManager creates a new instance manager
func NewManager(tokens *sandbox.Registry, pool *executor.Pool, resolver executor.ModuleResolver) *Manager {
	return &Manager{
		instances: make(map[string]*types.Instance),
		tokens:    tokens,
		pool:      pool,
		resolver:  resolver,
	}
}

// WithMetrics adds metrics tracking to the manager
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// WithPublisher adds lifecycle event publishing to the manager
func (m *Manager) WithPublisher(publisher Publisher) *Manager {
	m.publisher = publisher
	return m
}

// WithTimeoutCeiling caps per-launch execution budgets
func (m *Manager) WithTimeoutCeiling(ceiling time.Duration) *Manager {
	m.maxTimeout = ceiling
	return m
}

// Launch builds, registers, and executes one instance. Execution
// failures are recorded as instance outcomes, not returned as errors;
// the error return covers validation, build, and registration only.
func (m *Manager) Launch(ctx context.Context, spec LaunchSpec) (*types.Instance, error) {
	if err := utils.ValidateLabel(spec.Label); err != nil {
		return nil, err
	}
	if err := utils.ValidateSource(spec.Source); err != nil {
		return nil, err
	}
	if err := utils.ValidateWhitelist(spec.Modules); err != nil {
		return nil, err
	}

	art, err := sandbox.Build(spec.Source, spec.Label, sandbox.ModuleWhitelist(spec.Modules))
	if err != nil {
		var te *sandbox.TransformError
		if m.metrics != nil && errors.As(err, &te) {
			m.metrics.RecordTransformFailure()
		}
		return nil, err
	}
	if m.metrics != nil {
		m.metrics.RecordBuild()
		m.metrics.RecordTokenIssued()
	}

	if _, err := m.tokens.Create(art); err != nil {
		return nil, err
	}

	inst := &types.Instance{
		ID:        uuid.New().String(),
		Token:     art.Token,
		Label:     art.Label,
		PackageID: spec.PackageID,
		State:     types.StateRunning,
		Metadata:  spec.Metadata,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.instances[inst.ID] = inst
	running := m.countRunningLocked()
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.IncInstancesTotal()
		m.metrics.SetInstancesActive(running)
	}
	m.publish(types.Event{
		Type:       "launched",
		InstanceID: inst.ID,
		Label:      inst.Label,
		State:      types.StateRunning,
	})

	res, execErr := m.pool.Execute(ctx, art, executor.Options{
		Modules: m.resolver,
		Timeout: m.clampTimeout(spec.Timeout),
	})

	settled := m.settle(inst, res, execErr)
	return &settled, nil
}

// settle records the execution outcome on the instance and emits the
// terminal event. The returned snapshot is safe to hand out even if the
// instance was closed while running.
func (m *Manager) settle(inst *types.Instance, res *executor.Result, execErr error) types.Instance {
	state, failure := outcome(execErr)

	m.mu.Lock()
	inst.State = state
	inst.Failure = failure
	if res != nil {
		inst.Exports = res.Exports
		inst.Console = consoleLines(res.Console)
		inst.Duration = res.Duration
	}
	snapshot := *inst
	running := m.countRunningLocked()
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SetInstancesActive(running)
		m.metrics.RecordExecution(string(state), snapshot.Duration)
		switch state {
		case types.StatePolicyViolation:
			if failure != nil {
				m.metrics.RecordPolicyViolation(failure.Capability)
			}
		case types.StateTimeout:
			m.metrics.RecordTimeout()
		}
	}

	for _, line := range snapshot.Console {
		m.publish(types.Event{
			Type:       "console",
			InstanceID: snapshot.ID,
			Label:      snapshot.Label,
			Detail:     line,
		})
	}
	m.publish(types.Event{
		Type:       string(state),
		InstanceID: snapshot.ID,
		Label:      snapshot.Label,
		State:      state,
		Detail:     failure,
	})

	return snapshot
}

// Get retrieves an instance by ID
func (m *Manager) Get(id string) (*types.Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inst, ok := m.instances[id]
	if !ok {
		return nil, false
	}

	// Return a copy to prevent external modifications
	instCopy := *inst
	return &instCopy, true
}

// List returns all instances, optionally filtered by state
func (m *Manager) List(state *types.State) []*types.Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()

	instances := make([]*types.Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		if state == nil || inst.State == *state {
			instCopy := *inst
			instances = append(instances, &instCopy)
		}
	}
	return instances
}

// FindByToken finds an instance by its sandbox token
func (m *Manager) FindByToken(token sandbox.Token) (*types.Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, inst := range m.instances {
		if inst.Token == token {
			instCopy := *inst
			return &instCopy, true
		}
	}
	return nil, false
}

// Close drops an instance and destroys its token registration
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	inst, ok := m.instances[id]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.instances, id)
	token := inst.Token
	label := inst.Label
	running := m.countRunningLocked()
	m.mu.Unlock()

	// The registration may already be gone if the token was destroyed
	// directly through the tooling surface.
	_ = m.tokens.Destroy(token)

	if m.metrics != nil {
		m.metrics.SetInstancesActive(running)
	}
	m.publish(types.Event{
		Type:       "closed",
		InstanceID: id,
		Label:      label,
	})

	return true
}

// Stats returns manager statistics
func (m *Manager) Stats() types.Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := types.Stats{TotalInstances: len(m.instances)}
	for _, inst := range m.instances {
		switch inst.State {
		case types.StateRunning:
			stats.Running++
		case types.StateCompleted:
			stats.Completed++
		case types.StatePolicyViolation:
			stats.PolicyViolations++
		case types.StateTimeout:
			stats.Timeouts++
		case types.StateFailed:
			stats.Failed++
		}
	}
	return stats
}

// countRunningLocked counts running instances. Caller must hold mu.
func (m *Manager) countRunningLocked() int {
	var n int
	for _, inst := range m.instances {
		if inst.State == types.StateRunning {
			n++
		}
	}
	return n
}

func (m *Manager) clampTimeout(t time.Duration) time.Duration {
	if t <= 0 {
		return 0 // executor default
	}
	if m.maxTimeout > 0 && t > m.maxTimeout {
		return m.maxTimeout
	}
	return t
}

func (m *Manager) publish(ev types.Event) {
	if m.publisher == nil {
		return
	}
	ev.Timestamp = time.Now().Unix()
	m.publisher.Publish(ev)
}

// outcome maps an execution error to a terminal state
func outcome(err error) (types.State, *types.Failure) {
	if err == nil {
		return types.StateCompleted, nil
	}

	var pe *sandbox.PolicyError
	if errors.As(err, &pe) {
		return types.StatePolicyViolation, &types.Failure{
			Kind:       "policy_violation",
			Message:    pe.Message,
			Capability: pe.Capability,
		}
	}

	var te *sandbox.TimeoutError
	if errors.As(err, &te) {
		return types.StateTimeout, &types.Failure{
			Kind:    "timeout",
			Message: te.Error(),
		}
	}

	var se *executor.ScriptError
	if errors.As(err, &se) {
		return types.StateFailed, &types.Failure{
			Kind:    "script_error",
			Message: se.Message,
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return types.StateFailed, &types.Failure{
			Kind:    "cancelled",
			Message: err.Error(),
		}
	}

	return types.StateFailed, &types.Failure{
		Kind:    "host",
		Message: err.Error(),
	}
}

func consoleLines(entries []executor.LogEntry) []types.ConsoleLine {
	if len(entries) == 0 {
		return nil
	}
	lines := make([]types.ConsoleLine, len(entries))
	for i, e := range entries {
		lines[i] = types.ConsoleLine{Level: e.Level, Message: e.Message, Time: e.Time}
	}
	return lines
}
