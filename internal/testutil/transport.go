package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/crewmesh/core"
)

// Call records one transport send as observed by a FakeTransport.
type Call struct {
	Endpoint     string
	Message      string
	SessionToken string
}

// FakeTransport simulates the remote agent transport. Replies are scripted
// per endpoint; unscripted endpoints echo the message. Each conversation
// started with an empty session token receives a fresh token, and follow-up
// sends must present it, mirroring real conversation continuity.
type FakeTransport struct {
	mu      sync.Mutex
	replies map[string][]string
	errs    map[string]error
	calls   []Call
	nextID  int
}

// NewFakeTransport creates an empty fake transport.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		replies: make(map[string][]string),
		errs:    make(map[string]error),
	}
}

// Reply queues replies for an endpoint, consumed in order. The last reply is
// repeated once the queue is drained.
func (f *FakeTransport) Reply(endpoint string, replies ...string) *FakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[endpoint] = append(f.replies[endpoint], replies...)
	return f
}

// Fail makes every send to an endpoint return the given error.
func (f *FakeTransport) Fail(endpoint string, err error) *FakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[endpoint] = err
	return f
}

// FailOnce makes the next send to an endpoint return the given error, then
// clears the failure.
func (f *FakeTransport) FailOnce(endpoint string, err error) *FakeTransport {
	return f.Fail(endpoint, &oneShot{err: err})
}

type oneShot struct {
	mu   sync.Mutex
	err  error
	done bool
}

func (o *oneShot) take() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return nil
	}
	o.done = true
	return o.err
}

func (o *oneShot) Error() string { return o.err.Error() }

// Send implements core.Transport.
func (f *FakeTransport) Send(ctx context.Context, endpoint, message, sessionToken string) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Endpoint: endpoint, Message: message, SessionToken: sessionToken})

	if scripted, ok := f.errs[endpoint]; ok {
		if once, isOnce := scripted.(*oneShot); isOnce {
			if err := once.take(); err != nil {
				return "", "", err
			}
		} else {
			return "", "", scripted
		}
	}

	token := sessionToken
	if token == "" {
		f.nextID++
		token = fmt.Sprintf("conv-%d", f.nextID)
	}

	queue := f.replies[endpoint]
	var reply string
	switch len(queue) {
	case 0:
		reply = "echo: " + message
	case 1:
		reply = queue[0]
	default:
		reply = queue[0]
		f.replies[endpoint] = queue[1:]
	}
	return reply, token, nil
}

// Calls returns a copy of all recorded sends.
func (f *FakeTransport) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsTo returns the recorded sends against one endpoint.
func (f *FakeTransport) CallsTo(endpoint string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.calls {
		if c.Endpoint == endpoint {
			out = append(out, c)
		}
	}
	return out
}

var _ core.Transport = (*FakeTransport)(nil)
