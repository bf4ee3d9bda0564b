// Package crewmesh provides a high-level façade over the orchestration engine
// and its collaborators (stores, execution context cache, oracle, transport &
// logging) enabling rapid construction of crew-driven task systems. Most
// applications interact with this package by:
//  1. Creating a CrewMesh via New() (optionally overriding default in-memory stores)
//  2. Registering agents and assembling them into crews
//  3. Submitting tasks (SubmitTask) and executing them (ExecuteTask)
//
// The façade delegates task runs to orchestrator.Orchestrator while keeping
// setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply the SQLite
// store, a real oracle and transport, and a structured logger.
package crewmesh

import (
	"context"

	"github.com/hupe1980/crewmesh/capability"
	"github.com/hupe1980/crewmesh/core"
	"github.com/hupe1980/crewmesh/execution"
	"github.com/hupe1980/crewmesh/logging"
	"github.com/hupe1980/crewmesh/orchestrator"
	"github.com/hupe1980/crewmesh/store/memory"
)

// Options configures the CrewMesh instance.
type Options struct {
	// Stores (default to a shared in-memory implementation if not provided).
	AgentStore      core.AgentStore
	CrewStore       core.CrewStore
	TaskStore       core.TaskStore
	TelemetryWriter core.TelemetryWriter

	// Oracle plans each task run. Required for ExecuteTask.
	Oracle core.Oracle
	// Transport carries capability invocations to remote agents. Required
	// for ExecuteTask.
	Transport core.Transport

	// MaxIterations bounds planning steps per run.
	MaxIterations int
	// Tolerant switches invocation failure handling from terminating the run
	// to recording the failure and replanning.
	Tolerant bool
	// RetryPolicy bounds transport retries inside each capability.
	RetryPolicy capability.RetryPolicy
	// Instruction overrides the planner system prompt.
	Instruction string
	// AnnounceCapabilities appends a system message listing the bound
	// capabilities before the first planning step.
	AnnounceCapabilities bool

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// CrewMesh is the high-level façade aggregating stores, the execution context
// cache, and the orchestrator.
type CrewMesh struct {
	opts         Options
	agents       core.AgentStore
	crews        core.CrewStore
	tasks        core.TaskStore
	cache        *execution.Cache
	orchestrator *orchestrator.Orchestrator
	logger       logging.Logger
}

// New creates a new CrewMesh instance with optional overrides. Any unset
// store is initialized with a shared in-memory implementation.
func New(optFns ...func(o *Options)) *CrewMesh {
	opts := Options{
		MaxIterations:        15,
		RetryPolicy:          capability.DefaultRetryPolicy(),
		AnnounceCapabilities: true,
		Logger:               logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.AgentStore == nil || opts.CrewStore == nil || opts.TaskStore == nil || opts.TelemetryWriter == nil {
		mem := memory.NewStore()
		if opts.AgentStore == nil {
			opts.AgentStore = mem
		}
		if opts.CrewStore == nil {
			opts.CrewStore = mem
		}
		if opts.TaskStore == nil {
			opts.TaskStore = mem
		}
		if opts.TelemetryWriter == nil {
			opts.TelemetryWriter = mem
		}
	}

	mode := orchestrator.FailStrict
	if opts.Tolerant {
		mode = orchestrator.FailTolerant
	}

	orch := orchestrator.New(opts.Oracle, opts.Transport, opts.TaskStore, opts.TelemetryWriter, func(o *orchestrator.Options) {
		o.MaxIterations = opts.MaxIterations
		o.FailureMode = mode
		o.RetryPolicy = opts.RetryPolicy
		if opts.Instruction != "" {
			o.Instruction = opts.Instruction
		}
		o.AnnounceCapabilities = opts.AnnounceCapabilities
		o.Logger = opts.Logger
	})

	return &CrewMesh{
		opts:         opts,
		agents:       opts.AgentStore,
		crews:        opts.CrewStore,
		tasks:        opts.TaskStore,
		cache:        execution.NewCache(opts.CrewStore, opts.Logger),
		orchestrator: orch,
		logger:       opts.Logger,
	}
}

// RegisterAgent stores or replaces an agent definition.
func (m *CrewMesh) RegisterAgent(ctx context.Context, a core.Agent) error {
	return m.agents.PutAgent(ctx, a)
}

// GetAgent returns a stored agent by id.
func (m *CrewMesh) GetAgent(ctx context.Context, id string) (core.Agent, error) {
	return m.agents.GetAgent(ctx, id)
}

// ListAgents returns all stored agents.
func (m *CrewMesh) ListAgents(ctx context.Context) ([]core.Agent, error) {
	return m.agents.ListAgents(ctx)
}

// CreateCrew stores a crew and its membership.
func (m *CrewMesh) CreateCrew(ctx context.Context, c core.Crew) error {
	return m.crews.PutCrew(ctx, c)
}

// GetCrew returns a crew with members resolved.
func (m *CrewMesh) GetCrew(ctx context.Context, id string) (*core.Crew, error) {
	return m.crews.GetCrew(ctx, id)
}

// AddMember adds an agent to a crew and evicts the crew's cached execution
// context so the next run observes the new membership.
func (m *CrewMesh) AddMember(ctx context.Context, crewID string, member core.CrewMember) error {
	if err := m.crews.AddMember(ctx, crewID, member); err != nil {
		return err
	}
	m.cache.Invalidate(crewID)
	return nil
}

// RemoveMember removes an agent from a crew and evicts the crew's cached
// execution context.
func (m *CrewMesh) RemoveMember(ctx context.Context, crewID, agentID string) error {
	if err := m.crews.RemoveMember(ctx, crewID, agentID); err != nil {
		return err
	}
	m.cache.Invalidate(crewID)
	return nil
}

// InvalidateCrew evicts the cached execution context for a crew. Staleness is
// also detected lazily via the membership version, so this is an optimization
// rather than a correctness requirement.
func (m *CrewMesh) InvalidateCrew(crewID string) {
	m.cache.Invalidate(crewID)
}

// SubmitTask creates a pending task assigned to a crew.
func (m *CrewMesh) SubmitTask(ctx context.Context, crewID, title, description string) (*core.Task, error) {
	if _, err := m.crews.CrewVersion(ctx, crewID); err != nil {
		return nil, err
	}
	task := core.NewTask(crewID, title, description)
	if err := m.tasks.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	m.logger.Info("task submitted", "task_id", task.ID, "crew_id", crewID, "title", title)
	return task, nil
}

// GetTask returns a task by id.
func (m *CrewMesh) GetTask(ctx context.Context, id string) (*core.Task, error) {
	return m.tasks.GetTask(ctx, id)
}

// Messages returns a task's transcript ordered by creation.
func (m *CrewMesh) Messages(ctx context.Context, taskID string) ([]core.TaskMessage, error) {
	return m.tasks.Messages(ctx, taskID)
}

// ExecuteTask runs the plan/call/observe loop for a task until it reaches a
// terminal status. The crew's execution context is resolved through the cache
// and rebuilt when membership has changed since the last run.
func (m *CrewMesh) ExecuteTask(ctx context.Context, taskID string) (*orchestrator.Result, error) {
	task, err := m.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	execCtx, err := m.cache.Get(ctx, task.CrewID)
	if err != nil {
		return nil, err
	}

	return m.orchestrator.Run(ctx, task, execCtx)
}

// RunTask submits a task and executes it in one call.
func (m *CrewMesh) RunTask(ctx context.Context, crewID, title, description string) (*orchestrator.Result, error) {
	task, err := m.SubmitTask(ctx, crewID, title, description)
	if err != nil {
		return nil, err
	}
	return m.ExecuteTask(ctx, task.ID)
}
