package core

import "context"

// Transport abstracts the wire protocol used to reach a remote agent as a
// single send-and-reply capability with session continuation.
//
// sessionToken is the continuation token captured from a previous call, or
// empty for the first call of a conversation. Implementations return the
// (possibly new) token alongside the reply; callers must thread it back in to
// keep the remote agent's view of the conversation continuous.
//
// Error contract: transport-level failures (unreachable endpoint, timeout,
// missing reply) are reported as *TransportError so the capability layer can
// retry them; application-level failures reported by the agent are
// *AgentCallError and are surfaced immediately.
type Transport interface {
	Send(ctx context.Context, endpoint, message, sessionToken string) (reply, newToken string, err error)
}
