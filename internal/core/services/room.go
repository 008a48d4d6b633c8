package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"supportdesk/internal/core/contracts"
	"supportdesk/internal/core/domain"
	"supportdesk/internal/core/routing"
	"supportdesk/pkg/logging"
)

var tracer = otel.Tracer("room")

const (
	msgAgentLeft    = "Your agent has disconnected. We will try to find another agent for you."
	msgCustomerLeft = "The customer has disconnected."
)

// RoomStats is a point-in-time view of a room's routing state.
type RoomStats struct {
	RoomID      string
	Connections int
	Available   []domain.AgentIdentity
	Waiting     []domain.CustomerIdentity
	Assignments []domain.Assignment
	Messages    int
}

type (
	connectEvent struct {
		ctx      context.Context
		client   contracts.Client
		role     domain.UserType
		identity string
		reply    chan error
	}
	disconnectEvent struct {
		ctx    context.Context
		connID string
	}
	messageEvent struct {
		ctx    context.Context
		connID string
		raw    []byte
	}
	statsEvent struct {
		reply chan RoomStats
	}
)

// Room is one independent routing engine: its connections, availability
// pool, waiting queue, conversation map and message log. All state is owned
// by the goroutine started in Start; callers talk to it through the inbox,
// so events for a room are handled one at a time in arrival order.
type Room struct {
	id       string
	registry contracts.Registry
	store    *MessageStore
	pool     *routing.AvailabilityPool
	queue    *routing.WaitingQueue
	convs    *routing.ConversationMap
	events   contracts.EventEmitter
	inbox    chan any
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	err      error
	now      func() time.Time
	log      *slog.Logger
}

func NewRoom(
	log *slog.Logger,
	id string,
	registry contracts.Registry,
	repo domain.MessageRepository,
	events contracts.EventEmitter,
	inboxSize int,
) *Room {
	if inboxSize <= 0 {
		inboxSize = 256
	}
	if events == nil {
		events = discardEvents{}
	}
	log = log.With("room_id", id)
	return &Room{
		id:       id,
		registry: registry,
		store:    NewMessageStore(log, id, repo),
		pool:     routing.NewAvailabilityPool(),
		queue:    routing.NewWaitingQueue(),
		convs:    routing.NewConversationMap(),
		events:   events,
		inbox:    make(chan any, inboxSize),
		done:     make(chan struct{}),
		now:      time.Now,
		log:      log,
	}
}

func (r *Room) ID() string { return r.id }

// Start rehydrates the message log and then begins handling events. Events
// submitted before the log is loaded wait in the inbox.
func (r *Room) Start(parent context.Context) {
	r.ctx, r.cancel = context.WithCancel(context.WithoutCancel(parent))
	go r.run()
}

// Stop ends the event loop, closing every connection, and waits for it.
func (r *Room) Stop() {
	r.cancel()
	<-r.done
}

// Done is closed once the room stops handling events.
func (r *Room) Done() <-chan struct{} { return r.done }

// Err reports why the room stopped, if it failed to start.
func (r *Room) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

func (r *Room) run() {
	defer close(r.done)
	defer r.registry.CloseAll(domain.CloseGoingAway, domain.ReasonShutdown)
	if err := r.store.Load(r.ctx); err != nil {
		r.err = err
		r.log.Error("room - start - load messages failed", "err", err)
		return
	}
	r.log.Info("room - start - accepting connections", "len_messages", r.store.Len())
	for {
		select {
		case <-r.ctx.Done():
			r.log.Info("room - run - stopped")
			return
		case ev := <-r.inbox:
			r.dispatch(ev)
		}
	}
}

func (r *Room) dispatch(ev any) {
	switch e := ev.(type) {
	case connectEvent:
		e.reply <- r.handleConnect(e.ctx, e.client, e.role, e.identity)
	case disconnectEvent:
		r.handleDisconnect(e.ctx, e.connID)
	case messageEvent:
		r.handleMessage(e.ctx, e.connID, e.raw)
	case statsEvent:
		e.reply <- r.stats()
	default:
		r.log.Error("room - dispatch - unknown event", "event", ev)
	}
}

func (r *Room) submit(ctx context.Context, ev any) error {
	select {
	case r.inbox <- ev:
		return nil
	case <-r.done:
		if r.err != nil {
			return errors.Join(domain.ErrRoomClosed, r.err)
		}
		return domain.ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect admits an already-authenticated connection. For agents identity
// is the validated AgentIdentity; for customers it is the connection id.
// It returns once the room has processed the connection.
func (r *Room) Connect(ctx context.Context, client contracts.Client, role domain.UserType, identity string) error {
	reply := make(chan error, 1)
	ev := connectEvent{ctx: context.WithoutCancel(ctx), client: client, role: role, identity: identity, reply: reply}
	if err := r.submit(ctx, ev); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-r.done:
		return domain.ErrRoomClosed
	}
}

// Disconnect reports that a connection closed. Unknown ids are ignored.
func (r *Room) Disconnect(ctx context.Context, connID string) error {
	return r.submit(ctx, disconnectEvent{ctx: context.WithoutCancel(ctx), connID: connID})
}

// Deliver hands an inbound frame from connID to the room.
func (r *Room) Deliver(ctx context.Context, connID string, raw []byte) error {
	return r.submit(ctx, messageEvent{ctx: context.WithoutCancel(ctx), connID: connID, raw: raw})
}

// Stats returns the room's routing state as seen between two events.
func (r *Room) Stats(ctx context.Context) (RoomStats, error) {
	reply := make(chan RoomStats, 1)
	if err := r.submit(ctx, statsEvent{reply: reply}); err != nil {
		return RoomStats{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-r.done:
		return RoomStats{}, domain.ErrRoomClosed
	case <-ctx.Done():
		return RoomStats{}, ctx.Err()
	}
}

func (r *Room) stats() RoomStats {
	return RoomStats{
		RoomID:      r.id,
		Connections: r.registry.Len(),
		Available:   r.pool.Snapshot(),
		Waiting:     r.queue.Snapshot(),
		Assignments: r.convs.Assignments(),
		Messages:    r.store.Len(),
	}
}

// Connection lifecycle

func (r *Room) handleConnect(ctx context.Context, client contracts.Client, role domain.UserType, identity string) error {
	ctx, span := tracer.Start(ctx, "Room.Connect", trace.WithAttributes(
		attribute.String("room.id", r.id),
		attribute.String("conn.id", client.ConnID()),
		attribute.String("conn.role", string(role)),
	))
	defer span.End()

	switch role {
	case domain.UserTypeAgent:
		agent := domain.AgentIdentity(identity)
		if prev, ok := r.registry.Lookup(identity); ok && prev != client.ConnID() {
			r.evict(ctx, prev, agent)
		}
		r.registry.Register(client, role, identity)
		r.sendSnapshot(ctx, identity)
		r.log.InfoContext(ctx, "room - connect - agent admitted", "conn_id", client.ConnID(), "agent_id", identity)
		r.makeAgentAvailable(ctx, agent)
	case domain.UserTypeCustomer:
		customer := domain.CustomerIdentity(identity)
		r.registry.Register(client, role, identity)
		r.sendSnapshot(ctx, identity)
		r.log.InfoContext(ctx, "room - connect - customer admitted", "conn_id", client.ConnID(), "customer_id", identity, "available_agents", r.pool.Len())
		if r.queue.Len() == 0 {
			if agent, ok := r.pool.PopOldest(); ok && r.assign(ctx, customer, agent) {
				return nil
			}
		}
		r.send(ctx, identity, domain.NoAgentsAvailableFrame{})
		r.enqueueCustomer(ctx, customer)
		r.tryAssign(ctx)
	default:
		err := errors.New("unknown connection role " + string(role))
		span.RecordError(err)
		span.SetStatus(codes.Error, "connect rejected")
		return err
	}
	span.SetStatus(codes.Ok, "connected")
	return nil
}

// evict replaces an agent's older connection with the one being admitted.
func (r *Room) evict(ctx context.Context, connID string, agent domain.AgentIdentity) {
	old, _, _, ok := r.registry.Client(connID)
	if !ok {
		return
	}
	r.log.WarnContext(ctx, "room - connect - superseding agent connection", logging.Agent(string(agent)), "conn_id", connID)
	r.registry.Unregister(connID)
	r.agentGone(ctx, agent)
	old.CloseWith(domain.CloseNormal, domain.ReasonSuperseded)
}

func (r *Room) handleDisconnect(ctx context.Context, connID string) {
	_, role, identity, ok := r.registry.Client(connID)
	if !ok {
		r.log.DebugContext(ctx, "room - disconnect - unknown connection", "conn_id", connID)
		return
	}
	ctx, span := tracer.Start(ctx, "Room.Disconnect", trace.WithAttributes(
		attribute.String("room.id", r.id),
		attribute.String("conn.id", connID),
		attribute.String("conn.role", string(role)),
	))
	defer span.End()
	r.registry.Unregister(connID)
	r.log.InfoContext(ctx, "room - disconnect - connection closed", "conn_id", connID, "role", role, "identity", identity)
	if role == domain.UserTypeAgent {
		r.agentGone(ctx, domain.AgentIdentity(identity))
		return
	}
	r.customerGone(ctx, domain.CustomerIdentity(identity))
}

func (r *Room) agentGone(ctx context.Context, agent domain.AgentIdentity) {
	if r.pool.Remove(agent) {
		r.emit(domain.EventAgentUnavailable, "", agent, 0)
	}
	customer, ok := r.convs.EndForAgent(agent)
	if !ok {
		return
	}
	r.log.InfoContext(ctx, "room - agent gone - conversation dissolved", logging.Agent(string(agent)), logging.Customer(string(customer)))
	r.emit(domain.EventConversationEnded, customer, agent, 0)
	r.sendSystem(ctx, string(customer), msgAgentLeft)
	r.enqueueCustomer(ctx, customer)
	r.tryAssign(ctx)
}

func (r *Room) customerGone(ctx context.Context, customer domain.CustomerIdentity) {
	if pos := r.queue.Remove(customer); pos > 0 {
		r.emit(domain.EventCustomerDisconnected, customer, "", pos)
		r.announcePositions(ctx, pos)
	}
	agent, ok := r.convs.EndForCustomer(customer)
	if !ok {
		return
	}
	r.log.InfoContext(ctx, "room - customer gone - conversation dissolved", logging.Agent(string(agent)), logging.Customer(string(customer)))
	r.emit(domain.EventConversationEnded, customer, agent, 0)
	r.sendSystem(ctx, string(agent), msgCustomerLeft)
	r.makeAgentAvailable(ctx, agent)
}

// Matching

func (r *Room) makeAgentAvailable(ctx context.Context, agent domain.AgentIdentity) {
	if _, busy := r.convs.CustomerOf(agent); busy {
		return
	}
	if !r.pool.Add(agent) {
		r.log.DebugContext(ctx, "room - make available - already available", logging.Agent(string(agent)))
		return
	}
	r.emit(domain.EventAgentAvailable, "", agent, 0)
	exclude, _ := r.registry.Lookup(string(agent))
	r.registry.Broadcast(ctx, domain.AgentNowAvailableFrame{AgentID: agent}, exclude)
	r.tryAssign(ctx)
}

func (r *Room) enqueueCustomer(ctx context.Context, customer domain.CustomerIdentity) {
	pos, added := r.queue.Enqueue(customer)
	if !added {
		return
	}
	r.log.InfoContext(ctx, "room - enqueue - customer waiting", logging.Customer(string(customer)), logging.Position(pos))
	r.emit(domain.EventCustomerQueued, customer, "", pos)
	r.send(ctx, string(customer), domain.CustomerQueuedFrame{CustomerID: customer, Position: pos})
}

// tryAssign pairs the oldest waiting customer with the oldest available
// agent. A party whose connection is gone is dropped and the next pair is
// tried; a refused pairing puts the customer at the back of the queue and
// waits for the next trigger.
func (r *Room) tryAssign(ctx context.Context) {
	for r.queue.Len() > 0 && r.pool.Len() > 0 {
		customer, _ := r.queue.Dequeue()
		r.announcePositions(ctx, 1)
		agent, _ := r.pool.PopOldest()
		if r.assign(ctx, customer, agent) {
			return
		}
		customerLive := r.live(string(customer))
		if customerLive {
			r.enqueueCustomer(ctx, customer)
		}
		if customerLive && r.live(string(agent)) {
			return
		}
	}
}

// assign pairs customer with agent, both already taken out of their
// collections. On failure the agent is returned to the pool if it is still
// connected; the caller decides where the customer goes.
func (r *Room) assign(ctx context.Context, customer domain.CustomerIdentity, agent domain.AgentIdentity) bool {
	customerLive, agentLive := r.live(string(customer)), r.live(string(agent))
	if !customerLive || !agentLive {
		r.log.WarnContext(ctx, "room - assign - counterpart missing, rolling back", logging.Customer(string(customer)), logging.Agent(string(agent)),
			"customer_live", customerLive, "agent_live", agentLive)
		if agentLive {
			r.pool.Add(agent)
		} else {
			r.emit(domain.EventAgentUnavailable, "", agent, 0)
		}
		return false
	}
	if !r.convs.Pair(customer, agent) {
		r.log.ErrorContext(ctx, "room - assign - pairing refused, rolling back", logging.Customer(string(customer)), logging.Agent(string(agent)))
		r.pool.Add(agent)
		return false
	}
	r.log.InfoContext(ctx, "room - assign - agent assigned", logging.Customer(string(customer)), logging.Agent(string(agent)),
		"available_agents", r.pool.Len(), "waiting_customers", r.queue.Len())
	r.emit(domain.EventAgentAssigned, customer, agent, 0)
	frame := domain.AgentAssignedFrame{CustomerID: customer, AgentID: agent}
	r.send(ctx, string(customer), frame)
	r.send(ctx, string(agent), frame)
	return true
}

func (r *Room) live(identity string) bool {
	_, ok := r.registry.Lookup(identity)
	return ok
}

// announcePositions re-sends positions to every queued customer at or
// behind from.
func (r *Room) announcePositions(ctx context.Context, from int) {
	for i, c := range r.queue.Snapshot() {
		if i+1 < from {
			continue
		}
		r.send(ctx, string(c), domain.CustomerQueuedFrame{CustomerID: c, Position: i + 1})
	}
}

// Messages

func (r *Room) handleMessage(ctx context.Context, connID string, raw []byte) {
	_, role, identity, ok := r.registry.Client(connID)
	if !ok {
		r.log.WarnContext(ctx, "room - message - unknown connection", "conn_id", connID)
		return
	}
	ctx, span := tracer.Start(ctx, "Room.Message", trace.WithAttributes(
		attribute.String("room.id", r.id),
		attribute.String("conn.id", connID),
		attribute.Int("payload_size", len(raw)),
	))
	defer span.End()

	frame, err := domain.DecodeInbound(raw)
	if err != nil {
		span.RecordError(err)
		r.log.WarnContext(ctx, "room - message - malformed frame discarded", "conn_id", connID, "err", err)
		r.send(ctx, identity, domain.ErrorFrame{Code: domain.CodeMalformedMessage, Message: err.Error()})
		return
	}
	var m domain.Message
	switch f := frame.(type) {
	case domain.AddFrame:
		m = f.Message()
	case domain.UpdateFrame:
		m = f.Message()
	}
	if m.UserType == "" {
		m.UserType = role
	}

	isNew, err := r.store.Append(ctx, m)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		r.log.ErrorContext(ctx, "room - message - persist failed", "conn_id", connID, logging.Message(m.ID), "err", err)
		r.send(ctx, identity, domain.ErrorFrame{Code: domain.CodePersistenceFailed, Message: "message " + m.ID + " was not saved"})
		return
	}
	stored, _ := r.store.Get(m.ID)
	var out domain.Frame = domain.ChatFrame(stored)
	if !isNew {
		out = domain.UpdateFrame{ID: stored.ID, Content: stored.Content, User: stored.User, Role: stored.Role, UserType: stored.UserType}
	}

	if peer, ok := r.counterpart(role, identity); ok {
		r.log.DebugContext(ctx, "room - message - relaying to counterpart", logging.Message(m.ID), "from", identity, "to", peer)
		r.send(ctx, peer, out)
		return
	}
	r.log.DebugContext(ctx, "room - message - no conversation, broadcasting", logging.Message(m.ID), "from", identity)
	r.registry.Broadcast(ctx, out, connID)
}

func (r *Room) counterpart(role domain.UserType, identity string) (string, bool) {
	if role == domain.UserTypeAgent {
		c, ok := r.convs.CustomerOf(domain.AgentIdentity(identity))
		return string(c), ok
	}
	a, ok := r.convs.AgentOf(domain.CustomerIdentity(identity))
	return string(a), ok
}

// Delivery

func (r *Room) sendSnapshot(ctx context.Context, identity string) {
	r.send(ctx, identity, domain.AllFrame{Messages: r.store.Snapshot()})
}

// sendSystem delivers an engine-authored chat line; it is not persisted.
func (r *Room) sendSystem(ctx context.Context, identity, content string) {
	r.send(ctx, identity, domain.AddFrame{
		ID:       uuid.NewString(),
		Content:  content,
		User:     domain.SystemAuthor,
		Role:     domain.RoleAssistant,
		UserType: domain.UserTypeAgent,
	})
}

// send is fire-and-forget: the registry logs stale recipients and full buffers.
func (r *Room) send(ctx context.Context, identity string, frame domain.Frame) {
	_ = r.registry.SendTo(ctx, identity, frame)
}

func (r *Room) emit(kind domain.EventKind, customer domain.CustomerIdentity, agent domain.AgentIdentity, position int) {
	r.events.Emit(domain.RoomEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		RoomID:     r.id,
		CustomerID: customer,
		AgentID:    agent,
		Position:   position,
		At:         r.now().UTC(),
	})
}

type discardEvents struct{}

func (discardEvents) Emit(domain.RoomEvent) {}
