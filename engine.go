package permit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oarkflow/permit/logger"
)

// ============================================================================
// DECISIONS
// ============================================================================

// Outcome is the kind of a check decision. Denied means evaluation
// completed and found no grant; Error means evaluation could not
// complete. Callers must not conflate the two.
type Outcome int

const (
	OutcomeGranted Outcome = iota
	OutcomeDenied
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeGranted:
		return "granted"
	case OutcomeDenied:
		return "denied"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "granted":
		*o = OutcomeGranted
	case "denied":
		*o = OutcomeDenied
	case "error":
		*o = OutcomeError
	default:
		return fmt.Errorf("unknown outcome %q", s)
	}
	return nil
}

// Stable reason labels carried on denied and error decisions.
const (
	ReasonUserNotFound           = "UserNotFound"
	ReasonUserInactive           = "UserInactive"
	ReasonSessionInvalid         = "SessionInvalid"
	ReasonInsufficientPermission = "InsufficientPermission"
	ReasonSystemNotReady         = "SystemNotReady"
	ReasonUnexpected             = "Unexpected"
)

// Decision is the result of one permission check.
type Decision struct {
	Outcome   Outcome   `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	Err       error     `json:"-"`
	CheckedAt time.Time `json:"checked_at"`
}

// Granted reports whether access was granted.
func (d Decision) Granted() bool { return d.Outcome == OutcomeGranted }

// Denied reports whether evaluation completed with no grant.
func (d Decision) Denied() bool { return d.Outcome == OutcomeDenied }

// Failed reports whether evaluation could not complete.
func (d Decision) Failed() bool { return d.Outcome == OutcomeError }

func grantedAt(now time.Time) Decision {
	return Decision{Outcome: OutcomeGranted, CheckedAt: now}
}

// deniedAt carries the matching taxonomy sentinel on Err so callers
// can branch with errors.Is instead of string-comparing reasons.
func deniedAt(reason string, now time.Time) Decision {
	var err error
	switch reason {
	case ReasonUserInactive:
		err = ErrInactive
	case ReasonSessionInvalid:
		err = ErrSessionInvalid
	}
	return Decision{Outcome: OutcomeDenied, Reason: reason, Err: err, CheckedAt: now}
}

func failedAt(reason string, err error, now time.Time) Decision {
	return Decision{Outcome: OutcomeError, Reason: reason, Err: err, CheckedAt: now}
}

// CheckRequest is one entry of a batch check.
type CheckRequest struct {
	Resource string          `json:"resource"`
	Action   string          `json:"action"`
	Context  *RequestContext `json:"context,omitempty"`
}

// PolicyEvaluation explains one check: which permissions matched, how
// many were considered, and how long evaluation took. It is produced
// by EvaluatePolicy, which bypasses the decision cache so the
// explanation always reflects the live directory.
type PolicyEvaluation struct {
	UserID               string        `json:"user_id"`
	Resource             string        `json:"resource"`
	Action               string        `json:"action"`
	Decision             Decision      `json:"decision"`
	MatchedPermissions   []string      `json:"matched_permissions,omitempty"`
	EvaluatedPermissions int           `json:"evaluated_permissions"`
	Elapsed              time.Duration `json:"elapsed_ns"`
}

// ============================================================================
// ENGINE STATE
// ============================================================================

// EngineState tracks the engine lifecycle. Checks are served only in
// StateReady; StateError is terminal and means seeding failed.
type EngineState int32

const (
	StateInitializing EngineState = iota
	StateReady
	StateError
	StateStopped
)

func (s EngineState) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ============================================================================
// ENGINE
// ============================================================================

// Engine orchestrates permission checks: it owns the entity
// directory, the policy evaluator, the decision cache, the audit log
// and the statistics collector, and runs the periodic maintenance
// loop. All of its state lives behind this struct; nothing is ever
// handed out by reference.
type Engine struct {
	cfg   *Config
	state atomic.Int32

	mu       sync.RWMutex // guards settings
	settings engineSettings

	directory   *Directory
	evaluator   *Evaluator
	cache       *DecisionCache
	audit       AuditLog
	archive     AuditArchive
	sessions    SessionValidator
	sessionMemo *CachedSessionValidator
	stats       *statsCollector
	clock       Clock
	log         logger.Logger
	traceID     logger.TraceIDFunc

	auditSeq atomic.Int64

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

type EngineOption func(*Engine)

// WithLogger routes engine logging to l.
func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock substitutes the time source used for TTLs, condition
// windows and timestamps.
func WithClock(c Clock) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithSessionValidator installs the session collaborator consulted on
// every cache-missing check.
func WithSessionValidator(v SessionValidator) EngineOption {
	return func(e *Engine) { e.sessions = v }
}

// WithAuditLog replaces the default in-memory audit log.
func WithAuditLog(l AuditLog) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.audit = l
		}
	}
}

// WithAuditArchive installs a sink for entries evicted by retention
// pruning.
func WithAuditArchive(a AuditArchive) EngineOption {
	return func(e *Engine) { e.archive = a }
}

// WithTraceIDFunc sets the generator for per-check trace ids.
func WithTraceIDFunc(fn logger.TraceIDFunc) EngineOption {
	return func(e *Engine) { e.traceID = fn }
}

// NewEngine builds an engine from cfg. The engine starts in
// StateInitializing; call Start to seed the directory and begin
// serving checks. The config is owned by the engine afterwards.
func NewEngine(cfg *Config, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	settings := cfg.Engine.settings()

	e := &Engine{
		cfg:      cfg,
		settings: settings,
		clock:    SystemClock{},
		log:      logger.NewPhusluLogger(),
		stats:    newStatsCollector(),
		stopCh:   make(chan struct{}),
	}
	e.state.Store(int32(StateInitializing))
	for _, opt := range opts {
		opt(e)
	}

	e.directory = NewDirectory()
	e.evaluator = NewEvaluator(e.clock)
	e.cache = NewDecisionCache(settings.maxCacheSize)
	if e.audit == nil {
		e.audit = NewMemoryAuditLog()
	}
	if e.sessions != nil && settings.sessionCheckTTL > 0 {
		if _, ok := e.sessions.(*CachedSessionValidator); !ok {
			memo, err := NewCachedSessionValidator(e.sessions, settings.sessionCheckTTL, settings.sessionCache)
			if err != nil {
				return nil, fmt.Errorf("session cache: %w", err)
			}
			e.sessionMemo = memo
			e.sessions = memo
		}
	}
	return e, nil
}

// State returns the current lifecycle state.
func (e *Engine) State() EngineState {
	return EngineState(e.state.Load())
}

func (e *Engine) currentSettings() engineSettings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings
}

func (e *Engine) updateSettings(s engineSettings) {
	e.mu.Lock()
	e.settings = s
	e.mu.Unlock()
	e.cache.SetMaxSize(s.maxCacheSize)
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// Start seeds the directory from the config and begins serving
// checks. Seeding failure is terminal: the engine moves to StateError
// and every subsequent check fails with SystemNotReady. On success
// the maintenance loop starts; it stops when ctx is canceled or Stop
// is called.
func (e *Engine) Start(ctx context.Context) error {
	e.lifecycleMu.Lock()
	if e.started {
		e.lifecycleMu.Unlock()
		return nil
	}
	e.started = true
	e.lifecycleMu.Unlock()

	if err := e.applySeed(ctx, e.cfg.Seed); err != nil {
		e.state.Store(int32(StateError))
		e.log.Error("engine seed failed", "error", err.Error())
		return fmt.Errorf("seed: %w", err)
	}
	e.state.Store(int32(StateReady))

	interval := e.currentSettings().maintenanceInterval
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-e.stopCh:
				return
			case <-ticker.C:
				if err := e.CleanupExpiredData(ctx); err != nil {
					e.log.Warn("maintenance run failed", "error", err.Error())
				}
				if cur := e.currentSettings().maintenanceInterval; cur > 0 && cur != interval {
					interval = cur
					ticker.Reset(cur)
				}
			}
		}
	}()

	sizes := e.directory.Sizes()
	e.log.Info("engine started",
		"users", sizes.Users,
		"roles", sizes.Roles,
		"permissions", sizes.Permissions,
	)
	return nil
}

// Stop halts the maintenance loop and retires the engine. Waiting is
// bounded by ctx. Checks after Stop fail with SystemNotReady.
func (e *Engine) Stop(ctx context.Context) error {
	e.lifecycleMu.Lock()
	if !e.started || e.stopped {
		e.lifecycleMu.Unlock()
		return nil
	}
	e.stopped = true
	e.lifecycleMu.Unlock()

	close(e.stopCh)
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	if e.state.Load() != int32(StateError) {
		e.state.Store(int32(StateStopped))
	}
	if e.sessionMemo != nil {
		e.sessionMemo.Close()
	}
	e.log.Info("engine stopped")
	return nil
}

// ============================================================================
// PERMISSION CHECKS
// ============================================================================

// CheckPermission decides whether userID may perform action on
// resource under the request context. Every call appends exactly one
// audit entry, cache hits included.
func (e *Engine) CheckPermission(ctx context.Context, userID, resource, action string, rc *RequestContext) Decision {
	start := time.Now()
	dec, fromCache := e.check(ctx, userID, resource, action, rc)
	e.recordCheck(ctx, userID, resource, action, dec, rc, fromCache, time.Since(start))
	return dec
}

// BatchCheckPermissions evaluates each request independently through
// the same path as CheckPermission. One request failing never aborts
// the rest; its slot carries an error decision instead. A canceled
// context fills the remaining slots with error decisions, so callers
// always get one result per request.
func (e *Engine) BatchCheckPermissions(ctx context.Context, userID string, requests []CheckRequest) []Decision {
	results := make([]Decision, len(requests))
	for i, req := range requests {
		if err := ctx.Err(); err != nil {
			results[i] = failedAt(ReasonUnexpected, unexpected(err), e.clock.Now())
			continue
		}
		results[i] = e.CheckPermission(ctx, userID, req.Resource, req.Action, req.Context)
	}
	return results
}

func (e *Engine) check(ctx context.Context, userID, resource, action string, rc *RequestContext) (dec Decision, fromCache bool) {
	defer func() {
		if r := recover(); r != nil {
			dec = failedAt(ReasonUnexpected, unexpected(fmt.Errorf("panic: %v", r)), e.clock.Now())
			fromCache = false
		}
	}()

	if e.State() != StateReady {
		return failedAt(ReasonSystemNotReady, ErrSystemNotReady, e.clock.Now()), false
	}

	now := e.clock.Now()
	settings := e.currentSettings()

	if settings.cacheEnabled {
		if cached, ok := e.cache.Get(userID, resource, action, now); ok {
			return cached, true
		}
	}

	user, err := e.directory.GetUser(userID)
	if err != nil {
		return failedAt(ReasonUserNotFound, err, now), false
	}
	if !user.Active {
		return deniedAt(ReasonUserInactive, now), false
	}

	if e.sessions != nil {
		valid, err := e.sessions.IsSessionValid(ctx, userID)
		if err != nil {
			return failedAt(ReasonUnexpected, unexpected(err), now), false
		}
		if !valid {
			return deniedAt(ReasonSessionInvalid, now), false
		}
	}

	perms, err := e.directory.ResolvePermissions(userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return failedAt(ReasonUserNotFound, err, now), false
		}
		return failedAt(ReasonUnexpected, unexpected(err), now), false
	}

	granted, err := e.evaluator.HasGrant(ctx, perms, resource, action, rc)
	if err != nil {
		return failedAt(ReasonUnexpected, unexpected(err), now), false
	}

	if granted {
		dec = grantedAt(now)
	} else {
		dec = deniedAt(ReasonInsufficientPermission, now)
	}
	if settings.cacheEnabled {
		e.cache.Put(userID, resource, action, dec, now, settings.cacheTTL)
	}
	return dec, false
}

func (e *Engine) recordCheck(ctx context.Context, userID, resource, action string, dec Decision, rc *RequestContext, fromCache bool, elapsed time.Duration) {
	if dec.Reason != ReasonSystemNotReady {
		e.stats.observeCheck(dec.Outcome, elapsed, fromCache)
	}

	trace := ""
	if e.traceID != nil {
		trace = e.traceID()
	}

	if e.currentSettings().auditEnabled {
		entry := &AuditEntry{
			ID:        e.nextAuditID(),
			Timestamp: e.clock.Now(),
			UserID:    userID,
			Resource:  resource,
			Action:    action,
			Result:    dec.Outcome.String(),
			Reason:    dec.Reason,
			TraceID:   trace,
			Details:   auditDetails(rc, dec, fromCache),
		}
		if err := e.audit.Record(ctx, entry); err != nil {
			e.log.Error("audit record failed", "error", err.Error())
		}
	}

	e.log.Debug("permission check",
		"user", userID,
		"resource", resource,
		"action", action,
		"result", dec.Outcome.String(),
		"reason", dec.Reason,
		"cache_hit", fromCache,
		"trace", trace,
	)
}

func (e *Engine) nextAuditID() string {
	return fmt.Sprintf("%d-%d", e.clock.Now().UnixNano(), e.auditSeq.Add(1))
}

func auditDetails(rc *RequestContext, dec Decision, fromCache bool) map[string]any {
	details := make(map[string]any)
	if rc != nil {
		if rc.ClientIP != "" {
			details["client_ip"] = rc.ClientIP
		}
		if rc.UserAgent != "" {
			details["user_agent"] = rc.UserAgent
		}
		if len(rc.Attributes) > 0 {
			details["attributes"] = cloneMap(rc.Attributes)
		}
	}
	if fromCache {
		details["cache_hit"] = true
	}
	if dec.Failed() && dec.Err != nil {
		details["error"] = dec.Err.Error()
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

// ============================================================================
// DIAGNOSTICS
// ============================================================================

// EvaluatePolicy runs a full evaluation for explanation purposes. It
// neither consults nor populates the decision cache, records no audit
// entry and moves no counters, so probing a decision never perturbs
// what it observes.
func (e *Engine) EvaluatePolicy(ctx context.Context, userID, resource, action string, rc *RequestContext) *PolicyEvaluation {
	start := time.Now()
	ev := &PolicyEvaluation{
		UserID:   userID,
		Resource: resource,
		Action:   action,
	}
	defer func() { ev.Elapsed = time.Since(start) }()

	if e.State() != StateReady {
		ev.Decision = failedAt(ReasonSystemNotReady, ErrSystemNotReady, e.clock.Now())
		return ev
	}
	now := e.clock.Now()

	user, err := e.directory.GetUser(userID)
	if err != nil {
		ev.Decision = failedAt(ReasonUserNotFound, err, now)
		return ev
	}
	if !user.Active {
		ev.Decision = deniedAt(ReasonUserInactive, now)
		return ev
	}
	if e.sessions != nil {
		valid, err := e.sessions.IsSessionValid(ctx, userID)
		if err != nil {
			ev.Decision = failedAt(ReasonUnexpected, unexpected(err), now)
			return ev
		}
		if !valid {
			ev.Decision = deniedAt(ReasonSessionInvalid, now)
			return ev
		}
	}

	perms, err := e.directory.ResolvePermissions(userID)
	if err != nil {
		ev.Decision = failedAt(ReasonUserNotFound, err, now)
		return ev
	}
	ev.EvaluatedPermissions = len(perms)

	matched, err := e.evaluator.MatchingPermissions(ctx, perms, resource, action, rc)
	if err != nil {
		ev.Decision = failedAt(ReasonUnexpected, unexpected(err), now)
		return ev
	}
	ev.MatchedPermissions = matched
	if len(matched) > 0 {
		ev.Decision = grantedAt(now)
	} else {
		ev.Decision = deniedAt(ReasonInsufficientPermission, now)
	}
	return ev
}

// ============================================================================
// ENTITY ADMINISTRATION
// ============================================================================

// CreateUser registers a user. A zero CreatedAt is stamped with the
// engine clock.
func (e *Engine) CreateUser(ctx context.Context, u *User) error {
	if u != nil && u.CreatedAt.IsZero() {
		u.CreatedAt = e.clock.Now()
	}
	if err := e.directory.CreateUser(u); err != nil {
		return err
	}
	e.log.Info("user created", "user", u.ID)
	return nil
}

func (e *Engine) CreateRole(ctx context.Context, r *Role) error {
	if err := e.directory.CreateRole(r); err != nil {
		return err
	}
	e.log.Info("role created", "role", r.ID)
	return nil
}

func (e *Engine) CreatePermission(ctx context.Context, p *Permission) error {
	if err := e.directory.CreatePermission(p); err != nil {
		return err
	}
	e.log.Info("permission created", "permission", p.ID)
	return nil
}

func (e *Engine) GetUser(ctx context.Context, id string) (*User, error) {
	return e.directory.GetUser(id)
}

func (e *Engine) GetRole(ctx context.Context, id string) (*Role, error) {
	return e.directory.GetRole(id)
}

func (e *Engine) GetPermission(ctx context.Context, id string) (*Permission, error) {
	return e.directory.GetPermission(id)
}

// AssignRole grants roleID to userID and invalidates the user's
// cached decisions, so the wider grant is visible immediately.
func (e *Engine) AssignRole(ctx context.Context, userID, roleID string) error {
	if err := e.directory.AssignRole(userID, roleID); err != nil {
		return err
	}
	e.stats.roleAssigned()
	invalidated := e.cache.InvalidateUser(userID)
	e.log.Info("role assigned", "user", userID, "role", roleID, "invalidated", invalidated)
	return nil
}

// RevokeRole removes roleID from userID and invalidates the user's
// cached decisions: a grant backed only by the revoked role must not
// survive in the cache for any part of its TTL.
func (e *Engine) RevokeRole(ctx context.Context, userID, roleID string) error {
	if err := e.directory.RevokeRole(userID, roleID); err != nil {
		return err
	}
	e.stats.roleRevoked()
	invalidated := e.cache.InvalidateUser(userID)
	e.log.Info("role revoked", "user", userID, "role", roleID, "invalidated", invalidated)
	return nil
}

// SetUserActive toggles a user and drops their cached decisions.
func (e *Engine) SetUserActive(ctx context.Context, userID string, active bool) error {
	if err := e.directory.SetUserActive(userID, active); err != nil {
		return err
	}
	e.cache.InvalidateUser(userID)
	e.log.Info("user active flag set", "user", userID, "active", active)
	return nil
}

// SetRoleActive toggles a role and drops cached decisions for every
// user who reaches the role directly or by inheritance.
func (e *Engine) SetRoleActive(ctx context.Context, roleID string, active bool) error {
	if err := e.directory.SetRoleActive(roleID, active); err != nil {
		return err
	}
	for _, userID := range e.directory.UsersWithRole(roleID) {
		e.cache.InvalidateUser(userID)
	}
	e.log.Info("role active flag set", "role", roleID, "active", active)
	return nil
}

// SetPermissionActive toggles a permission and drops cached decisions
// for every user who holds it directly or through roles.
func (e *Engine) SetPermissionActive(ctx context.Context, permID string, active bool) error {
	if err := e.directory.SetPermissionActive(permID, active); err != nil {
		return err
	}
	for _, userID := range e.directory.UsersWithPermission(permID) {
		e.cache.InvalidateUser(userID)
	}
	e.log.Info("permission active flag set", "permission", permID, "active", active)
	return nil
}

func (e *Engine) DeleteUser(ctx context.Context, userID string) error {
	if err := e.directory.DeleteUser(userID); err != nil {
		return err
	}
	e.cache.InvalidateUser(userID)
	e.log.Info("user deleted", "user", userID)
	return nil
}

// DeleteRole removes a role. Affected users are computed before the
// delete so their cached decisions can still be found and dropped.
func (e *Engine) DeleteRole(ctx context.Context, roleID string) error {
	affected := e.directory.UsersWithRole(roleID)
	if err := e.directory.DeleteRole(roleID); err != nil {
		return err
	}
	for _, userID := range affected {
		e.cache.InvalidateUser(userID)
	}
	e.log.Info("role deleted", "role", roleID)
	return nil
}

// DeletePermission removes a permission. Like DeleteRole, the blast
// radius is computed before the delete.
func (e *Engine) DeletePermission(ctx context.Context, permID string) error {
	affected := e.directory.UsersWithPermission(permID)
	if err := e.directory.DeletePermission(permID); err != nil {
		return err
	}
	for _, userID := range affected {
		e.cache.InvalidateUser(userID)
	}
	e.log.Info("permission deleted", "permission", permID)
	return nil
}

// RecordLogin stamps the user's last login with the engine clock.
func (e *Engine) RecordLogin(ctx context.Context, userID string) error {
	return e.directory.SetLastLogin(userID, e.clock.Now())
}

// RegisterCustomCondition installs the handler backing custom
// conditions named name. Passing nil removes it; unhandled custom
// conditions evaluate false.
func (e *Engine) RegisterCustomCondition(name string, fn CustomConditionFunc) {
	e.evaluator.RegisterHandler(name, fn)
	e.log.Info("custom condition handler registered", "name", name, "removed", fn == nil)
}

// InvalidateDecisionCache empties the decision cache and reports how
// many entries were dropped.
func (e *Engine) InvalidateDecisionCache() int {
	return e.cache.InvalidateAll()
}

// ============================================================================
// QUERIES & STATISTICS
// ============================================================================

// GetUserPermissions resolves every permission the user holds
// directly or through active roles, inherited roles included.
func (e *Engine) GetUserPermissions(ctx context.Context, userID string) ([]*Permission, error) {
	return e.directory.ResolvePermissions(userID)
}

// GetAuditLogs returns audit entries matching the filter, most
// recent first.
func (e *Engine) GetAuditLogs(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error) {
	return e.audit.Query(ctx, filter)
}

// Statistics snapshots the counters and reads component sizes live,
// so sizes always reflect this instant rather than tracked deltas.
func (e *Engine) Statistics() Statistics {
	snap := e.stats.snapshot()
	snap.Directory = e.directory.Sizes()
	snap.CacheSize = e.cache.Size()
	snap.AuditSize = e.audit.Size()
	snap.GeneratedAt = e.clock.Now()
	return snap
}

// ============================================================================
// MAINTENANCE
// ============================================================================

// CleanupExpiredData runs one maintenance pass: expired session
// cleanup, a decision cache sweep, and audit retention pruning with
// optional archiving. Steps run independently; a failing step is
// reported but never blocks the others. The maintenance loop invokes
// this on its interval, and callers may trigger it manually.
func (e *Engine) CleanupExpiredData(ctx context.Context) error {
	settings := e.currentSettings()
	now := e.clock.Now()
	var errs []error

	sessionsRemoved := 0
	if e.sessions != nil {
		n, err := e.sessions.CleanupExpiredSessions(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("session cleanup: %w", err))
		}
		sessionsRemoved = n
	}

	swept := e.cache.Sweep(now)

	archived := 0
	prunedCount := 0
	cutoff := now.Add(-settings.auditRetention)
	pruned, err := e.audit.PruneOlderThan(ctx, cutoff)
	if err != nil {
		errs = append(errs, fmt.Errorf("audit prune: %w", err))
	}
	prunedCount = len(pruned)
	if len(pruned) > 0 && e.archive != nil {
		if err := e.archive.Archive(ctx, pruned); err != nil {
			// Retention wins over archival: the entries are already
			// out of the live log and are dropped.
			errs = append(errs, fmt.Errorf("audit archive: %w", err))
		} else {
			archived = len(pruned)
		}
	}

	e.stats.cleanupRan()
	e.log.Debug("maintenance pass",
		"sessions_removed", sessionsRemoved,
		"cache_swept", swept,
		"audit_pruned", prunedCount,
		"audit_archived", archived,
	)
	return errors.Join(errs...)
}
