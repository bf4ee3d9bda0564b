// Package orchestrator drives the plan/call/observe loop for one task run: a
// planning oracle selects capabilities, the orchestrator dispatches exactly
// one call per invoking step, appends results to the transcript, and brackets
// every oracle and agent call with telemetry.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/crewmesh/capability"
	"github.com/hupe1980/crewmesh/core"
	"github.com/hupe1980/crewmesh/execution"
	"github.com/hupe1980/crewmesh/logging"
	"github.com/hupe1980/crewmesh/telemetry"
)

// defaultInstruction is the system prompt installed for the planning oracle.
const defaultInstruction = `You are an AI task orchestrator responsible for solving complex tasks by using specialized AI agents.

Your job is to solve the task by using the available agent functions. Each agent has specific capabilities.
You can ask agents questions, give them subtasks, and use their responses to build a comprehensive solution.

Think step by step:
1. Break down the task into logical steps
2. For each step, decide which agent would be best suited to handle it
3. Call the appropriate agent function with a clear, specific request
4. Use the agent's response to move forward with your solution
5. If needed, ask follow-up questions to the same or different agents

When you have everything you need, provide a comprehensive final answer that fully addresses the original task.`

// FailureMode selects how a failed capability invocation affects the run.
type FailureMode int

const (
	// FailStrict terminates the run when an invocation fails.
	FailStrict FailureMode = iota
	// FailTolerant appends the failure to the transcript as an observation
	// and lets the oracle replan around it.
	FailTolerant
)

// Options configures an Orchestrator.
type Options struct {
	// MaxIterations bounds planning steps per run, guarding against a
	// runaway plan/call cycle.
	MaxIterations int
	// FailureMode selects strict or tolerant handling of invocation failures.
	FailureMode FailureMode
	// RetryPolicy bounds transport retries inside each capability.
	RetryPolicy capability.RetryPolicy
	// Instruction overrides the planner system prompt.
	Instruction string
	// AnnounceCapabilities appends a system message listing the bound
	// capabilities before the first planning step.
	AnnounceCapabilities bool
	// Logger receives structured run logs.
	Logger logging.Logger
}

// Orchestrator executes task runs. Public methods are safe for concurrent
// use; each run keeps all mutable state local.
type Orchestrator struct {
	oracle    core.Oracle
	transport core.Transport
	tasks     core.TaskStore
	telemetry core.TelemetryWriter

	maxIterations int
	failureMode   FailureMode
	retryPolicy   capability.RetryPolicy
	instruction   string
	announce      bool
	logger        logging.Logger
}

// New constructs an Orchestrator with optional overrides.
func New(
	oracle core.Oracle,
	transport core.Transport,
	tasks core.TaskStore,
	telemetryWriter core.TelemetryWriter,
	optFns ...func(o *Options),
) *Orchestrator {
	opts := Options{
		MaxIterations:        15,
		FailureMode:          FailStrict,
		RetryPolicy:          capability.DefaultRetryPolicy(),
		Instruction:          defaultInstruction,
		AnnounceCapabilities: true,
		Logger:               logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxIterations < 1 {
		opts.MaxIterations = 1
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Orchestrator{
		oracle:        oracle,
		transport:     transport,
		tasks:         tasks,
		telemetry:     telemetryWriter,
		maxIterations: opts.MaxIterations,
		failureMode:   opts.FailureMode,
		retryPolicy:   opts.RetryPolicy,
		instruction:   opts.Instruction,
		announce:      opts.AnnounceCapabilities,
		logger:        opts.Logger,
	}
}

// Result summarizes one finished task run.
type Result struct {
	Status      core.TaskStatus
	FinalAnswer string
	// Cause holds the terminal error description for failed runs.
	Cause      string
	PlanSteps  int
	AgentCalls int
	Events     []core.TelemetryEvent
}

// run carries the per-run mutable state so Orchestrator itself stays
// stateless across concurrent runs.
type run struct {
	o          *Orchestrator
	task       *core.Task
	execCtx    *execution.Context
	caps       *capability.Set
	recorder   *telemetry.Recorder
	transcript []core.TaskMessage
	state      runState
	planSteps  int
	agentCalls int
	started    time.Time
}

// Run executes the plan/call/observe loop for one task against the crew's
// execution context.
//
// Re-running a terminal task returns core.ErrTaskAlreadyTerminal without
// touching transcript or status. Run errors out only on collaborator
// (persistence) failures or caller misuse; every in-loop failure is absorbed
// into a failed task with a terminal cause, so the caller observes a final
// status rather than a raw fault.
func (o *Orchestrator) Run(ctx context.Context, task *core.Task, execCtx *execution.Context) (*Result, error) {
	if task.Status.Terminal() {
		return nil, core.ErrTaskAlreadyTerminal
	}

	r := &run{
		o:        o,
		task:     task,
		execCtx:  execCtx,
		caps:     execCtx.NewSet(o.transport, o.retryPolicy, o.logger),
		recorder: telemetry.NewRecorder(task.ID),
		state:    stateIdle,
		started:  time.Now(),
	}

	if err := o.tasks.SetTaskStatus(ctx, task.ID, core.TaskInProgress, ""); err != nil {
		return nil, fmt.Errorf("mark task in progress: %w", err)
	}
	task.Status = core.TaskInProgress

	if err := r.append(ctx, core.AuthorSystem, "", "Task started: "+task.Title); err != nil {
		return nil, err
	}

	if o.announce {
		if err := r.append(ctx, core.AuthorSystem, "", r.announcement()); err != nil {
			return nil, err
		}
	}

	result, err := r.loop(ctx)
	if err != nil {
		return nil, err
	}

	o.logger.Debug("task run finished",
		"task_id", task.ID,
		"status", string(result.Status),
		"plan_steps", result.PlanSteps,
		"agent_calls", result.AgentCalls,
		"duration_ms", time.Since(r.started).Milliseconds(),
	)
	return result, nil
}

func (r *run) loop(ctx context.Context) (*Result, error) {
	for r.planSteps < r.o.maxIterations {
		// Cancellation takes effect at step boundaries only, never mid-call.
		if err := ctx.Err(); err != nil {
			return r.fail(ctx, fmt.Errorf("task run cancelled: %w", err))
		}

		r.state = statePlanning
		action, err := r.plan(ctx)
		if err != nil {
			return r.fail(ctx, fmt.Errorf("planning step %d failed: %w", r.planSteps, err))
		}

		switch action.Kind {
		case core.ActionConclude:
			r.state = stateConcluding
			return r.conclude(ctx, action.FinalAnswer)

		case core.ActionInvoke:
			r.state = stateInvoking
			if action.Rationale != "" {
				if err := r.append(ctx, core.AuthorSystem, "", action.Rationale); err != nil {
					return nil, err
				}
			}
			done, res, err := r.invoke(ctx, action)
			if done || err != nil {
				return res, err
			}

		default:
			return r.fail(ctx, fmt.Errorf("oracle returned unknown action kind %q", action.Kind))
		}
	}

	return r.fail(ctx, fmt.Errorf("%w after %d steps", core.ErrPlanLimitExceeded, r.planSteps))
}

// plan runs one oracle step bracketed by an oracle_call telemetry event.
func (r *run) plan(ctx context.Context) (core.Action, error) {
	r.planSteps++
	end := r.recorder.Begin(core.TelemetryOracleCall, r.o.oracle.Name())

	action, usage, err := r.o.oracle.Plan(ctx, core.PlanRequest{
		Instruction:  r.o.instruction,
		TaskTitle:    r.task.Title,
		TaskText:     r.task.Description,
		CrewName:     r.execCtx.CrewName(),
		Transcript:   r.transcript,
		Capabilities: r.caps.Infos(),
	})
	end(usage, err)

	return action, err
}

// invoke dispatches exactly one capability call and applies the configured
// failure mode. done reports whether the run terminated.
func (r *run) invoke(ctx context.Context, action core.Action) (done bool, result *Result, err error) {
	target, ok := r.caps.Get(action.Capability)
	if !ok {
		return r.invokeFailed(ctx, fmt.Errorf("oracle selected unknown capability %q", action.Capability))
	}

	r.agentCalls++
	end := r.recorder.Begin(core.TelemetryAgentCall, target.Name())
	reply, callErr := target.Invoke(ctx, action.Message)
	end(core.TokenUsage{}, callErr)

	if callErr != nil {
		// Context cancellation is not an agent failure; surface it at the
		// next step boundary instead of recording it against the agent.
		if errors.Is(callErr, context.Canceled) || errors.Is(callErr, context.DeadlineExceeded) {
			res, err := r.fail(ctx, fmt.Errorf("task run cancelled: %w", callErr))
			return true, res, err
		}
		return r.invokeFailed(ctx, callErr)
	}

	if err := r.append(ctx, core.AuthorAgent, target.Descriptor().AgentName, reply); err != nil {
		return true, nil, err
	}
	return false, nil, nil
}

// invokeFailed routes an invocation failure per the failure mode: tolerant
// runs record an observation and keep planning, strict runs terminate.
func (r *run) invokeFailed(ctx context.Context, cause error) (bool, *Result, error) {
	if r.o.failureMode == FailTolerant {
		observation := "Agent call failed: " + cause.Error()
		if err := r.append(ctx, core.AuthorSystem, "", observation); err != nil {
			return true, nil, err
		}
		r.o.logger.Warn("invocation failed, replanning",
			"task_id", r.task.ID,
			"error", cause.Error(),
		)
		return false, nil, nil
	}
	res, err := r.fail(ctx, cause)
	return true, res, err
}

// conclude finishes a successful run: final answer as a system message, task
// completed, telemetry flushed.
func (r *run) conclude(ctx context.Context, finalAnswer string) (*Result, error) {
	if err := r.append(ctx, core.AuthorSystem, "", finalAnswer); err != nil {
		return nil, err
	}
	if err := r.o.tasks.SetTaskStatus(ctx, r.task.ID, core.TaskCompleted, ""); err != nil {
		return nil, fmt.Errorf("mark task completed: %w", err)
	}
	r.task.Status = core.TaskCompleted
	r.state = stateDone

	if err := r.flush(ctx); err != nil {
		return nil, err
	}
	return &Result{
		Status:      core.TaskCompleted,
		FinalAnswer: finalAnswer,
		PlanSteps:   r.planSteps,
		AgentCalls:  r.agentCalls,
		Events:      r.recorder.Events(),
	}, nil
}

// fail terminates the run, preserving the transcript up to the failure and
// recording the cause as the task's terminal message.
func (r *run) fail(ctx context.Context, cause error) (*Result, error) {
	// Persistence must proceed even when the run context is cancelled.
	ctx = context.WithoutCancel(ctx)

	if err := r.append(ctx, core.AuthorSystem, "", "Task failed: "+cause.Error()); err != nil {
		return nil, err
	}
	if err := r.o.tasks.SetTaskStatus(ctx, r.task.ID, core.TaskFailed, cause.Error()); err != nil {
		return nil, fmt.Errorf("mark task failed: %w", err)
	}
	r.task.Status = core.TaskFailed
	r.state = stateFailed

	if err := r.flush(ctx); err != nil {
		return nil, err
	}
	r.o.logger.Warn("task run failed",
		"task_id", r.task.ID,
		"cause", cause.Error(),
		"plan_steps", r.planSteps,
	)
	return &Result{
		Status:     core.TaskFailed,
		Cause:      cause.Error(),
		PlanSteps:  r.planSteps,
		AgentCalls: r.agentCalls,
		Events:     r.recorder.Events(),
	}, nil
}

// append writes a transcript message to the store and mirrors it locally so
// the next planning step observes the full conversation.
func (r *run) append(ctx context.Context, author core.MessageAuthor, agentName, content string) error {
	msg := core.NewTaskMessage(r.task.ID, author, agentName, content)
	if err := r.o.tasks.AppendMessage(context.WithoutCancel(ctx), msg); err != nil {
		return fmt.Errorf("append task message: %w", err)
	}
	r.transcript = append(r.transcript, msg)
	return nil
}

// flush hands the run's telemetry stream to the external writer.
func (r *run) flush(ctx context.Context) error {
	if r.o.telemetry == nil {
		return nil
	}
	if err := r.o.telemetry.WriteTelemetry(context.WithoutCancel(ctx), r.recorder.Events()); err != nil {
		return fmt.Errorf("write telemetry: %w", err)
	}
	return nil
}

// announcement renders the capability listing appended before planning.
func (r *run) announcement() string {
	var b strings.Builder
	b.WriteString("Available agent capabilities:")
	for _, c := range r.caps.All() {
		d := c.Descriptor()
		fmt.Fprintf(&b, "\n- %s: %s", d.FuncName, d.Description)
	}
	return b.String()
}
