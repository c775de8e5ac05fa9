package issuer

import (
	"context"

	"github.com/looplab/fsm"

	fsmutil "github.com/solar-synergy/dockrelay/internal/pkg/util/fsm"
)

// Connectivity is the client's belief about whether the relay is reachable.
type Connectivity string

const (
	Unknown Connectivity = "UNKNOWN"
	Online  Connectivity = "ONLINE"
	Offline Connectivity = "OFFLINE"
)

const (
	EventReachable   = "event_reachable"
	EventUnreachable = "event_unreachable"
)

// TransitionFunc is told about every connectivity change.
type TransitionFunc func(from, to Connectivity)

// connectivityMachine follows poll results one by one: a single failed poll
// is enough to go OFFLINE, a single success to go ONLINE.
type connectivityMachine struct {
	*fsm.FSM
	onTransition TransitionFunc
}

func newConnectivityMachine(onTransition TransitionFunc) *connectivityMachine {
	m := &connectivityMachine{onTransition: onTransition}

	all := []string{string(Unknown), string(Online), string(Offline)}
	events := fsm.Events{
		{Name: EventReachable, Src: all, Dst: string(Online)},
		{Name: EventUnreachable, Src: all, Dst: string(Offline)},
	}
	callbacks := fsm.Callbacks{
		"enter_state": fsmutil.WrapEvent(m.actionEnterState),
	}

	m.FSM = fsm.NewFSM(string(Unknown), events, callbacks)
	return m
}

func (m *connectivityMachine) actionEnterState(_ context.Context, e *fsm.Event) error {
	if m.onTransition != nil {
		m.onTransition(Connectivity(e.Src), Connectivity(e.Dst))
	}
	return nil
}

// observe feeds one poll result and returns the resulting state.
func (m *connectivityMachine) observe(ctx context.Context, reachable bool) (Connectivity, error) {
	event := EventUnreachable
	if reachable {
		event = EventReachable
	}
	if err := fsmutil.IgnoreNoTransition(m.Event(ctx, event)); err != nil {
		return Connectivity(m.Current()), err
	}
	return Connectivity(m.Current()), nil
}

func (m *connectivityMachine) current() Connectivity {
	return Connectivity(m.Current())
}
