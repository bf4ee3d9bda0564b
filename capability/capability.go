// Package capability turns crew membership into an invocable capability set.
//
// A Capability wraps one remote agent as a named, described function with
// session continuity: the first successful call captures the transport's
// continuation token and later calls within the same execution context send
// it back, so the remote agent sees one continuous conversation. Transport
// failures are retried with bounded backoff; application-level agent errors
// surface immediately.
package capability

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/crewmesh/core"
	"github.com/hupe1980/crewmesh/logging"
)

// Descriptor is the immutable identity of one bound capability. Descriptors
// are shared between execution context clones; only the session holder inside
// Capability is per-clone mutable state.
type Descriptor struct {
	AgentID     string
	AgentName   string
	FuncName    string
	Description string
	Endpoint    string
	Role        string
}

// Info returns the planner-facing view of the descriptor.
func (d Descriptor) Info() core.CapabilityInfo {
	return core.CapabilityInfo{Name: d.FuncName, Description: d.Description}
}

// RetryPolicy bounds transport retries for one invocation.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries including the first.
	MaxAttempts int
	// Backoff is the wait after the first failure; it doubles per attempt.
	Backoff time.Duration
}

// DefaultRetryPolicy retries twice after the initial attempt with a short
// doubling backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: 250 * time.Millisecond}
}

func (p RetryPolicy) normalize() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	return p
}

// Capability is one invocable agent function. A Capability instance is
// private to one execution context clone and must not be shared between
// concurrent task runs: its session token is mutable state. Callers must not
// retain Capability references across context rebuilds.
type Capability struct {
	desc      Descriptor
	transport core.Transport
	retry     RetryPolicy
	logger    logging.Logger

	sessionToken string
}

// New constructs a capability bound to a transport.
func New(desc Descriptor, transport core.Transport, retry RetryPolicy, logger logging.Logger) *Capability {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Capability{desc: desc, transport: transport, retry: retry.normalize(), logger: logger}
}

// Descriptor returns the capability's immutable identity.
func (c *Capability) Descriptor() Descriptor { return c.desc }

// Name returns the derived function name, unique within its set.
func (c *Capability) Name() string { return c.desc.FuncName }

// SessionToken exposes the current continuation token. Empty until the first
// successful call.
func (c *Capability) SessionToken() string { return c.sessionToken }

// Invoke sends a message to the remote agent and returns its reply.
//
// Transport failures are retried per the policy; exhaustion surfaces as
// *core.AgentUnavailableError. Application-level failures surface as
// *core.AgentCallError without retry. On success the continuation token is
// stored so the next Invoke continues the same remote conversation.
func (c *Capability) Invoke(ctx context.Context, message string) (string, error) {
	var lastErr error

	backoff := c.retry.Backoff
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		reply, token, err := c.transport.Send(ctx, c.desc.Endpoint, message, c.sessionToken)
		if err == nil {
			if token != "" {
				c.sessionToken = token
			}
			return reply, nil
		}

		var transportErr *core.TransportError
		if !errors.As(err, &transportErr) {
			var callErr *core.AgentCallError
			if errors.As(err, &callErr) {
				if callErr.AgentName == "" {
					callErr.AgentName = c.desc.AgentName
				}
				return "", callErr
			}
			return "", &core.AgentCallError{AgentName: c.desc.AgentName, Message: err.Error()}
		}

		lastErr = err
		c.logger.Warn("transport attempt failed",
			"capability", c.desc.FuncName,
			"attempt", attempt,
			"error", err.Error(),
		)

		if attempt == c.retry.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return "", &core.AgentUnavailableError{
		AgentName: c.desc.AgentName,
		Attempts:  c.retry.MaxAttempts,
		Last:      lastErr,
	}
}
