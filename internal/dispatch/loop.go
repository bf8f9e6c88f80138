package dispatch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/elena-voice/elena/internal/appointment"
	"github.com/elena-voice/elena/internal/observability"
	"github.com/elena-voice/elena/internal/oracle"
	"github.com/elena-voice/elena/internal/privacy"
	"github.com/elena-voice/elena/internal/session"
)

// Dispatcher drives one full pass per caller utterance: oracle decision,
// handler execution, optional context re-injection and chained decisions,
// ending in exactly one spoken reply. It never lets an internal error escape
// to the transport layer; the caller is never left in silence.
type Dispatcher struct {
	sessions      *session.Store
	oracle        oracle.Client
	registry      *Registry
	metrics       *observability.Metrics
	bus           *EventBus
	locks         *keyedLocks
	maxChainHops  int
	oracleTimeout time.Duration
	loc           *time.Location
}

type Config struct {
	Sessions      *session.Store
	Oracle        oracle.Client
	Appointments  *appointment.Service
	Metrics       *observability.Metrics
	Bus           *EventBus
	MaxChainHops  int
	OracleTimeout time.Duration
	Location      *time.Location
}

func New(cfg Config) *Dispatcher {
	if cfg.MaxChainHops <= 0 {
		cfg.MaxChainHops = 5
	}
	if cfg.OracleTimeout <= 0 {
		cfg.OracleTimeout = 30 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Bus == nil {
		cfg.Bus = NewEventBus()
	}
	return &Dispatcher{
		sessions:      cfg.Sessions,
		oracle:        cfg.Oracle,
		registry:      newHandlerRegistry(cfg.Appointments, cfg.Location),
		metrics:       cfg.Metrics,
		bus:           cfg.Bus,
		locks:         newKeyedLocks(),
		maxChainHops:  cfg.MaxChainHops,
		oracleTimeout: cfg.OracleTimeout,
		loc:           cfg.Location,
	}
}

// Bus exposes the call-event feed for the monitor endpoint.
func (d *Dispatcher) Bus() *EventBus {
	return d.bus
}

// StartCall creates the session for a new call and produces the greeting.
// The first spoken line is the output of one full dispatch pass, not a
// hardcoded string.
func (d *Dispatcher) StartCall(ctx context.Context, callID, callerPhone string) Reply {
	unlock := d.locks.lock(callID)
	defer unlock()

	d.sessions.GetOrCreate(callID, callerPhone)
	d.count("started")
	d.publish(EventCallStarted, callID, callerPhone)

	started := fmt.Sprintf("CALL_STARTED caller=%s local_time=%s. Saluda al cliente.",
		callerPhone, time.Now().In(d.loc).Format("2006-01-02 15:04"))
	if err := d.sessions.AppendContext(callID, started); err != nil {
		log.Printf("(%s) start context append failed: %v", callID, err)
		return Reply{Text: apologyText}
	}

	return d.run(ctx, Call{ID: callID, CallerPhone: callerPhone})
}

// HandleUtterance processes one caller utterance and returns the reply.
// Concurrent utterances for the same call are serialized in arrival order;
// different calls never contend.
func (d *Dispatcher) HandleUtterance(ctx context.Context, callID, callerPhone, text string) Reply {
	unlock := d.locks.lock(callID)
	defer unlock()

	// Sessions are normally created by StartCall; auto-create here keeps a
	// live call alive if the answer webhook was lost.
	d.sessions.GetOrCreate(callID, callerPhone)

	if err := d.sessions.AppendUser(callID, text); err != nil {
		log.Printf("(%s) utterance append failed: %v", callID, err)
		return Reply{Text: apologyText}
	}
	d.publish(EventUtterance, callID, text)

	return d.run(ctx, Call{ID: callID, CallerPhone: callerPhone})
}

// EndCall tears the session down after a hangup.
func (d *Dispatcher) EndCall(callID string) {
	d.sessions.Remove(callID)
	d.count("ended")
	d.publish(EventCallEnded, callID, "")
}

// run is the dispatch state machine: Deciding -> Executing -> either
// Replying (terminal outcome) or context injection and another Deciding
// hop. The chain is bounded; exhausting it fails closed into an apology.
func (d *Dispatcher) run(ctx context.Context, call Call) Reply {
	for hop := 1; hop <= d.maxChainHops; hop++ {
		act, err := d.decide(ctx, call.ID)
		if err != nil {
			log.Printf("(%s) oracle decision failed: %v", call.ID, err)
			d.countAction("unknown", "oracle_error")
			return Reply{Text: apologyText}
		}
		d.publish(EventAction, call.ID, string(act.Name))

		handler := d.registry.Lookup(act.Name)
		if handler == nil {
			// DecodeAction already rejects unknown names; a nil handler
			// means a kind was left out of the registry.
			log.Printf("(%s) no handler registered for action %s", call.ID, act.Name)
			d.countAction(string(act.Name), "unregistered")
			return Reply{Text: apologyText}
		}

		out := handler(ctx, call, act.Data)
		if out.Reply != nil {
			d.countAction(string(act.Name), "reply")
			d.observeChainDepth(hop)
			d.publish(EventReply, call.ID, out.Reply.Text)
			return *out.Reply
		}

		d.countAction(string(act.Name), "context")
		if err := d.sessions.AppendContext(call.ID, out.Context); err != nil {
			log.Printf("(%s) context append failed: %v", call.ID, err)
			return Reply{Text: apologyText}
		}
		d.publish(EventContext, call.ID, out.Context)
	}

	log.Printf("(%s) chain budget of %d hops exhausted", call.ID, d.maxChainHops)
	d.countAction("unknown", "chain_exhausted")
	d.observeChainDepth(d.maxChainHops)
	return Reply{Text: apologyText}
}

// decide asks the oracle for the next action. The raw reply is appended to
// the session before decoding so history stays consistent even when the
// decode fails; on transport errors nothing is appended at all.
func (d *Dispatcher) decide(ctx context.Context, callID string) (Action, error) {
	history, err := d.sessions.History(callID)
	if err != nil {
		return Action{}, err
	}

	octx, cancel := context.WithTimeout(ctx, d.oracleTimeout)
	defer cancel()

	started := time.Now()
	raw, err := d.oracle.Complete(octx, history)
	if d.metrics != nil {
		d.metrics.ObserveOracleLatency(time.Since(started))
	}
	if err != nil {
		return Action{}, err
	}

	if err := d.sessions.AppendModel(callID, raw); err != nil {
		return Action{}, err
	}
	return DecodeAction(raw)
}

// publish pushes one event to the monitor feed. Spoken text is redacted;
// the feed never carries raw caller PII.
func (d *Dispatcher) publish(t EventType, callID, detail string) {
	switch t {
	case EventUtterance, EventReply, EventContext:
		detail, _ = privacy.Redact(detail)
	}
	d.bus.Publish(CallEvent{Type: t, CallID: callID, Detail: detail})
}

func (d *Dispatcher) count(event string) {
	if d.metrics == nil {
		return
	}
	d.metrics.CallEvents.WithLabelValues(event).Inc()
	d.metrics.ActiveCalls.Set(float64(d.sessions.ActiveCount()))
}

func (d *Dispatcher) countAction(action, outcome string) {
	if d.metrics != nil {
		d.metrics.Actions.WithLabelValues(action, outcome).Inc()
	}
}

func (d *Dispatcher) observeChainDepth(depth int) {
	if d.metrics != nil {
		d.metrics.ChainDepth.Observe(float64(depth))
	}
}
