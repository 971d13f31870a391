package escrow

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultNotificationTimeout bounds outbound notification delivery.
	DefaultNotificationTimeout = 5 * time.Second
	// DefaultAuditTimeout bounds the status log append after a commit.
	DefaultAuditTimeout = 5 * time.Second
)

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// SideEffect is the outcome of a best-effort step run after the status
// change committed. Err never reverts the transition.
type SideEffect struct {
	Attempted bool
	Err       error
}

// Failed reports whether the step ran and returned an error.
func (s SideEffect) Failed() bool {
	return s.Attempted && s.Err != nil
}

// TransitionResult separates the committed transition from the outcome of
// the audit append and the notification that followed it.
type TransitionResult struct {
	Escrow       *Escrow
	From         EscrowStatus
	To           EscrowStatus
	Action       Action
	Audit        SideEffect
	Notification SideEffect
}

// OK reports whether every side effect that ran succeeded.
func (r *TransitionResult) OK() bool {
	return r != nil && !r.Audit.Failed() && !r.Notification.Failed()
}

// EscrowStateMachine is the only writer of Escrow.Status. Every operation
// re-reads the escrow, checks the caller, validates the move against the
// transition graph and persists with a conditional update.
type EscrowStateMachine interface {
	Apply(ctx context.Context, actor Actor, escrowID uuid.UUID, action Action, opts ...TransitionOption) (*TransitionResult, error)
	SetStatus(ctx context.Context, actor Actor, escrowID uuid.UUID, target EscrowStatus, opts ...TransitionOption) (*TransitionResult, error)
	ForceComplete(ctx context.Context, actor Actor, escrowID uuid.UUID, opts ...TransitionOption) (*TransitionResult, error)
	Join(ctx context.Context, actor Actor, joinCode string, opts ...TransitionOption) (*TransitionResult, error)
}

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*escrowStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *escrowStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the ActivitySink used to publish transition events.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *escrowStateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineLogger overrides the logger used for side-effect failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *escrowStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithStateMachineNotifier sets the notifier called after each transition.
// A nil notifier, typed or not, keeps the no-op default.
func WithStateMachineNotifier(notifier Notifier) StateMachineOption {
	return func(sm *escrowStateMachine) {
		if fn, ok := notifier.(NotifierFunc); ok && fn == nil {
			return
		}
		if notifier != nil {
			sm.notifier = notifier
		}
	}
}

// WithStateMachineGraph replaces the default transition graph.
func WithStateMachineGraph(graph TransitionGraph) StateMachineOption {
	return func(sm *escrowStateMachine) {
		if graph != nil {
			sm.graph = graph
		}
	}
}

// WithNotificationTimeout bounds each Notify call. Non positive values keep
// the default.
func WithNotificationTimeout(d time.Duration) StateMachineOption {
	return func(sm *escrowStateMachine) {
		if d > 0 {
			sm.notifyTimeout = d
		}
	}
}

// WithAuditTimeout bounds each status log append. Non positive values keep
// the default.
func WithAuditTimeout(d time.Duration) StateMachineOption {
	return func(sm *escrowStateMachine) {
		if d > 0 {
			sm.auditTimeout = d
		}
	}
}

// WithJoinLimiter throttles join attempts per actor.
func WithJoinLimiter(limiter JoinLimiter) StateMachineOption {
	return func(sm *escrowStateMachine) {
		if limiter != nil {
			sm.joinLimiter = limiter
		}
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// WithPaymentProof stores a reference to the buyer's payment proof. Only
// submit_payment persists it.
func WithPaymentProof(ref string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.paymentProof = ref
	}
}

// NewEscrowStateMachine returns the default implementation backed by the provided repositories.
func NewEscrowStateMachine(repo RepositoryManager, opts ...StateMachineOption) EscrowStateMachine {
	sm := &escrowStateMachine{
		escrows:       repo.Escrows(),
		logs:          repo.StatusLogs(),
		graph:         defaultGraph,
		now:           time.Now,
		notifier:      noopNotifier{},
		notifyTimeout: DefaultNotificationTimeout,
		auditTimeout:  DefaultAuditTimeout,
		activitySink:  noopActivitySink{},
		logger:        defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type escrowStateMachine struct {
	escrows       Escrows
	logs          StatusLogs
	graph         TransitionGraph
	now           func() time.Time
	notifier      Notifier
	notifyTimeout time.Duration
	auditTimeout  time.Duration
	activitySink  ActivitySink
	joinLimiter   JoinLimiter
	logger        Logger
	locks         keyedLock
}

type transitionOptions struct {
	metadata     TransitionMetadata
	paymentProof string
}

func (o *transitionOptions) cloneMetadata() TransitionMetadata {
	var cloned map[string]any
	if len(o.metadata.Metadata) > 0 {
		cloned = make(map[string]any, len(o.metadata.Metadata))
		for k, v := range o.metadata.Metadata {
			cloned[k] = v
		}
	}

	return TransitionMetadata{
		Reason:   o.metadata.Reason,
		Metadata: cloned,
	}
}

// transitionPlan is what a single operation asks of run.
type transitionPlan struct {
	action    Action
	target    EscrowStatus
	eventType ActivityEventType
	authorize func(actor Actor, esc *Escrow) bool
	allowed   func(from, to EscrowStatus) bool
	updates   func(actor Actor, opts *transitionOptions) []StatusUpdateOption
}

func (sm *escrowStateMachine) Apply(ctx context.Context, actor Actor, escrowID uuid.UUID, action Action, opts ...TransitionOption) (*TransitionResult, error) {
	rule, ok := actionRules[action]
	if !ok {
		return nil, withMeta(ErrInvalidAction, map[string]any{
			"action": action,
		})
	}

	return sm.run(ctx, actor, escrowID, transitionPlan{
		action:    action,
		target:    rule.target,
		eventType: ActivityEventStatusChanged,
		authorize: rule.authorize,
		allowed:   sm.graph.CanTransition,
		updates:   actionUpdates(action),
	}, opts...)
}

func (sm *escrowStateMachine) SetStatus(ctx context.Context, actor Actor, escrowID uuid.UUID, target EscrowStatus, opts ...TransitionOption) (*TransitionResult, error) {
	if !target.Valid() {
		return nil, withMeta(ErrInvalidStatus, map[string]any{
			"status": target,
		})
	}

	return sm.run(ctx, actor, escrowID, transitionPlan{
		action:    ActionSetStatus,
		target:    target,
		eventType: ActivityEventStatusChanged,
		authorize: adminOnly,
		allowed:   sm.graph.CanTransition,
	}, opts...)
}

func (sm *escrowStateMachine) ForceComplete(ctx context.Context, actor Actor, escrowID uuid.UUID, opts ...TransitionOption) (*TransitionResult, error) {
	return sm.run(ctx, actor, escrowID, transitionPlan{
		action:    ActionForceComplete,
		target:    StatusCompleted,
		eventType: ActivityEventForceCompleted,
		authorize: adminOnly,
		allowed: func(from, _ EscrowStatus) bool {
			return CanForceComplete(from)
		},
	}, opts...)
}

func (sm *escrowStateMachine) Join(ctx context.Context, actor Actor, joinCode string, opts ...TransitionOption) (*TransitionResult, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthorized
	}

	if sm.joinLimiter != nil && !sm.joinLimiter.Allow(actor.ID) {
		return nil, withMeta(ErrJoinRateLimited, map[string]any{
			"actor_id": actor.ID,
		})
	}

	esc, err := sm.escrows.GetByJoinCode(ctx, joinCode)
	if err != nil {
		return nil, err
	}

	return sm.Apply(ctx, actor, esc.ID, ActionJoin, opts...)
}

func (sm *escrowStateMachine) run(ctx context.Context, actor Actor, escrowID uuid.UUID, plan transitionPlan, opts ...TransitionOption) (*TransitionResult, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthorized
	}

	options := sm.buildTransitionOptions(opts...)

	updated, from, err := sm.commit(ctx, actor, escrowID, plan, options)
	if err != nil {
		return nil, err
	}

	result := &TransitionResult{
		Escrow: updated,
		From:   from,
		To:     plan.target,
		Action: plan.action,
	}

	// side effects run after the escrow lock is released
	result.Audit = sm.appendLog(ctx, actor, updated)
	result.Notification = sm.notify(ctx, actor, updated, from)

	meta := options.cloneMetadata()
	sm.recordActivity(ctx, ActivityEvent{
		EventType:    plan.eventType,
		Actor:        actor,
		EscrowID:     escrowID.String(),
		Action:       plan.action,
		FromStatus:   from,
		ToStatus:     plan.target,
		AuditFailed:  result.Audit.Failed(),
		NotifyFailed: result.Notification.Failed(),
		Metadata:     sm.transitionMetadata(meta),
	})

	return result, nil
}

// commit holds the escrow lock for the read, the checks and the conditional
// update only.
func (sm *escrowStateMachine) commit(ctx context.Context, actor Actor, escrowID uuid.UUID, plan transitionPlan, options *transitionOptions) (*Escrow, EscrowStatus, error) {
	unlock := sm.locks.Lock(escrowID)
	defer unlock()

	esc, err := sm.escrows.GetByID(ctx, escrowID)
	if err != nil {
		return nil, "", err
	}

	if plan.authorize != nil && !plan.authorize(actor, esc) {
		return nil, "", withMeta(ErrForbidden, map[string]any{
			"escrow_id": escrowID.String(),
			"action":    plan.action,
			"role":      actor.Role,
		})
	}

	from := esc.Status
	if !plan.allowed(from, plan.target) {
		return nil, "", withMeta(ErrIllegalTransition, map[string]any{
			"escrow_id": escrowID.String(),
			"action":    plan.action,
			"from":      from,
			"to":        plan.target,
		})
	}

	var statusOpts []StatusUpdateOption
	if plan.updates != nil {
		statusOpts = plan.updates(actor, options)
	}

	updated, err := sm.escrows.UpdateStatusIf(ctx, escrowID, from, plan.target, statusOpts...)
	if err != nil {
		return nil, "", err
	}
	return updated, from, nil
}

func (sm *escrowStateMachine) appendLog(ctx context.Context, actor Actor, esc *Escrow) SideEffect {
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sm.auditTimeout)
	defer cancel()

	_, err := sm.logs.Append(lctx, &StatusLog{
		EscrowID:  esc.ID,
		Status:    esc.Status,
		ChangedBy: actor.ID,
		CreatedAt: sm.now().UTC(),
	})
	if err != nil {
		sm.logger.Error("status log append failed",
			"escrow_id", esc.ID.String(),
			"status", esc.Status,
			"error", err,
		)
	}
	return SideEffect{Attempted: true, Err: err}
}

func (sm *escrowStateMachine) notify(ctx context.Context, actor Actor, esc *Escrow, from EscrowStatus) SideEffect {
	if _, ok := sm.notifier.(noopNotifier); ok {
		return SideEffect{}
	}

	recipients := make([]string, 0, 2)
	for _, id := range esc.Parties() {
		if id != actor.ID {
			recipients = append(recipients, id)
		}
	}

	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sm.notifyTimeout)
	defer cancel()

	err := sm.notifier.Notify(nctx, Notification{
		EscrowID:   esc.ID.String(),
		Title:      esc.Title,
		From:       from,
		To:         esc.Status,
		ActorID:    actor.ID,
		Recipients: recipients,
	})
	if err != nil {
		sm.logger.Warn("escrow notification failed",
			"escrow_id", esc.ID.String(),
			"to", esc.Status,
			"error", err,
		)
	}
	return SideEffect{Attempted: true, Err: err}
}

func (sm *escrowStateMachine) buildTransitionOptions(opts ...TransitionOption) *transitionOptions {
	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return options
}

func actionUpdates(action Action) func(Actor, *transitionOptions) []StatusUpdateOption {
	switch action {
	case ActionJoin:
		return func(actor Actor, _ *transitionOptions) []StatusUpdateOption {
			buyer, err := uuid.Parse(actor.ID)
			if err != nil {
				return nil
			}
			return []StatusUpdateOption{WithBuyer(buyer)}
		}
	case ActionSubmitPayment:
		return func(_ Actor, opts *transitionOptions) []StatusUpdateOption {
			if opts.paymentProof == "" {
				return nil
			}
			return []StatusUpdateOption{WithPaymentProofRef(opts.paymentProof)}
		}
	}
	return nil
}

func (sm *escrowStateMachine) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = sm.now()
	}

	sink := normalizeActivitySink(sm.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		sm.logger.Warn("state machine activity sink error", "error", err)
	}
}

func (sm *escrowStateMachine) transitionMetadata(meta TransitionMetadata) map[string]any {
	if meta.Reason == "" && len(meta.Metadata) == 0 {
		return nil
	}

	result := map[string]any{}
	if meta.Reason != "" {
		result["reason"] = meta.Reason
	}
	for k, v := range meta.Metadata {
		result[k] = v
	}
	return result
}
