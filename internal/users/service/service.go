package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"usermgmt/internal/users/metrics"
	"usermgmt/internal/users/models"
	"usermgmt/internal/users/policy"
	id "usermgmt/pkg/domain"
	dErrors "usermgmt/pkg/domain-errors"
	"usermgmt/pkg/platform/audit"
	"usermgmt/pkg/platform/sentinel"
	"usermgmt/pkg/requestcontext"
)

const (
	WelcomeSubject = "Welcome to Our System"

	defaultNotifyTimeout = 10 * time.Second
	tracerName           = "usermgmt/internal/users/service"
)

// AccountStore persists accounts. Lookups return sentinel.ErrNotFound when
// absent; Create returns sentinel.ErrAlreadyUsed on a uniqueness violation.
type AccountStore interface {
	FindByID(ctx context.Context, userID id.UserID) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByPhone(ctx context.Context, phone string) (*models.Account, error)
	FindByUsername(ctx context.Context, username string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) error
	// Execute loads the account, runs validate and then mutate on it atomically,
	// and persists the result. A validate error aborts without writing.
	Execute(ctx context.Context, userID id.UserID, validate func(*models.Account) error, mutate func(*models.Account)) (*models.Account, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Account, int64, error)
}

type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) (bool, error)
}

type Notifier interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Reserver claims registration identifiers across instances for the duration
// of a registration.
type Reserver interface {
	Reserve(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates the user directory: registration, profile and
// credential changes, lifecycle and role administration, and search.
type Service struct {
	accounts       AccountStore
	hasher         Hasher
	notifier       Notifier
	reserver       Reserver
	registration   *policy.RegistrationPolicy
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	notifyTimeout  time.Duration

	inflight sync.WaitGroup
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithReserver(r Reserver) Option {
	return func(s *Service) {
		s.reserver = r
	}
}

func WithRegistrationPolicy(p *policy.RegistrationPolicy) Option {
	return func(s *Service) {
		s.registration = p
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithNotifyTimeout bounds each detached welcome notification.
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

func New(accounts AccountStore, hasher Hasher, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		accounts:      accounts,
		hasher:        hasher,
		notifier:      notifier,
		registration:  policy.NewRegistrationPolicy(),
		logger:        slog.Default(),
		tracer:        otel.Tracer(tracerName),
		notifyTimeout: defaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register validates and stores a new account, then queues a welcome
// notification without waiting for it. The returned view is masked.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.UserView, error) {
	ctx, span, done := s.start(ctx, "Register")
	var err error
	defer func() { done(err) }()

	now := requestcontext.Now(ctx)
	if err = s.registration.Validate(req, now); err != nil {
		return nil, err
	}

	email := models.NormalizeEmail(req.Email)
	phone := strings.TrimSpace(req.Phone)
	username := strings.TrimSpace(req.Username)

	if err = s.checkUnique(ctx, email, phone, username); err != nil {
		return nil, err
	}

	release, err := s.reserve(ctx, email, phone, username)
	if err != nil {
		return nil, err
	}
	defer release()

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		err = hashError(err)
		return nil, err
	}

	account, err := models.NewAccount(models.NewAccountParams{
		ID:                 id.NewUserID(),
		FullName:           req.FullName,
		Email:              email,
		Phone:              phone,
		Username:           username,
		PasswordHash:       hash,
		DateOfBirth:        req.DateOfBirth,
		TermsVersion:       req.TermsVersion,
		PrivacyVersion:     req.PrivacyVersion,
		MarketingConsent:   req.MarketingConsent,
		RegistrationIP:     req.IPAddress,
		RegistrationDevice: req.DeviceInfo,
	}, now)
	if err != nil {
		return nil, err
	}

	if err = s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			s.incrementConflict(metrics.ConflictUniqueness)
			err = dErrors.New(dErrors.CodeConflict, "email, phone or username is already registered")
			return nil, err
		}
		err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to create account")
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", account.ID().String()))

	s.logAudit(ctx, audit.EventUserRegistered, account.ID(), "")
	s.incrementRegistrations()
	s.sendWelcome(ctx, account)

	view := policy.View(account, false)
	return &view, nil
}

// checkUnique runs email, phone then username lookups; the first match wins.
func (s *Service) checkUnique(ctx context.Context, email, phone, username string) error {
	checks := []struct {
		value string
		find  func(context.Context, string) (*models.Account, error)
		msg   string
	}{
		{email, s.accounts.FindByEmail, "email is already registered"},
		{phone, s.accounts.FindByPhone, "phone number is already registered"},
		{username, s.accounts.FindByUsername, "username is already taken"},
	}
	for _, c := range checks {
		if c.value == "" {
			continue
		}
		_, err := c.find(ctx, c.value)
		if err == nil {
			s.incrementConflict(metrics.ConflictUniqueness)
			return dErrors.New(dErrors.CodeConflict, c.msg)
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check uniqueness")
		}
	}
	return nil
}

// reserve claims every identifier or none. Reservation outages are logged and
// the unique indexes in storage remain the backstop.
func (s *Service) reserve(ctx context.Context, email, phone, username string) (func(), error) {
	noop := func() {}
	if s.reserver == nil {
		return noop, nil
	}

	keys := []string{"email:" + email, "phone:" + phone}
	if username != "" {
		keys = append(keys, "username:"+strings.ToLower(username))
	}

	var held []string
	releaseAll := func() {
		rctx := context.WithoutCancel(ctx)
		for _, key := range held {
			if err := s.reserver.Release(rctx, key); err != nil {
				s.logger.WarnContext(ctx, "failed to release registration reservation", "key", key, "error", err)
			}
		}
	}

	for _, key := range keys {
		ok, err := s.reserver.Reserve(ctx, key)
		if err != nil {
			s.logger.WarnContext(ctx, "registration reservation unavailable", "error", err)
			releaseAll()
			return noop, nil
		}
		if !ok {
			releaseAll()
			s.incrementConflict(metrics.ConflictUniqueness)
			return nil, dErrors.New(dErrors.CodeConflict, "a registration for these details is already in progress")
		}
		held = append(held, key)
	}
	return releaseAll, nil
}

// sendWelcome runs detached from the request. Its outcome is only logged.
func (s *Service) sendWelcome(ctx context.Context, account *models.Account) {
	if s.notifier == nil {
		return
	}
	to := account.Email()
	body := "<h1>Welcome " + account.FullName() + "!</h1><p>Your account has been successfully created.</p>"
	userID := account.ID()
	detached := context.WithoutCancel(ctx)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.ErrorContext(detached, "welcome notification panicked", "user_id", userID.String(), "panic", r)
				s.incrementNotification(metrics.OutcomeFailed)
			}
		}()

		sendCtx, cancel := context.WithTimeout(detached, s.notifyTimeout)
		defer cancel()

		if err := s.notifier.Send(sendCtx, to, WelcomeSubject, body); err != nil {
			s.logger.ErrorContext(detached, "failed to send welcome notification", "user_id", userID.String(), "error", err)
			s.incrementNotification(metrics.OutcomeFailed)
			s.logAudit(detached, audit.EventWelcomeFailed, userID, "")
			return
		}
		s.incrementNotification(metrics.OutcomeSent)
		s.logAudit(detached, audit.EventWelcomeQueued, userID, "")
	}()
}

// Drain waits for in-flight welcome notifications or until ctx is done.
func (s *Service) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetProfile returns the account rendered for the actor. Only admins see raw
// contact details, including on their own profile.
func (s *Service) GetProfile(ctx context.Context, userID id.UserID, actor models.Actor) (*models.UserView, error) {
	ctx, _, done := s.start(ctx, "GetProfile")
	var err error
	defer func() { done(err) }()

	account, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err = s.authorize(ctx, actor, policy.OpReadProfile, account); err != nil {
		return nil, err
	}
	view := policy.View(account, actor.IsAdmin())
	return &view, nil
}

func (s *Service) UpdateProfile(ctx context.Context, req models.UpdateProfileRequest, actor models.Actor) (*models.UserView, error) {
	ctx, _, done := s.start(ctx, "UpdateProfile")
	var err error
	defer func() { done(err) }()

	account, err := s.load(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if err = s.authorize(ctx, actor, policy.OpUpdateProfile, account); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	updated, err := s.accounts.Execute(ctx, req.UserID,
		func(a *models.Account) error { return a.CanUpdateProfile(req.FullName, req.Version) },
		func(a *models.Account) { a.ApplyProfileUpdate(req.FullName, now) },
	)
	if err != nil {
		err = s.translate(err, "failed to update profile")
		return nil, err
	}

	s.logAudit(ctx, audit.EventProfileUpdated, updated.ID(), actorID(actor))
	view := policy.View(updated, actor.IsAdmin())
	return &view, nil
}

// ChangePassword is owner-only. The current password is verified against the
// stored hash before the new one is hashed.
func (s *Service) ChangePassword(ctx context.Context, req models.ChangePasswordRequest, actor models.Actor) error {
	ctx, _, done := s.start(ctx, "ChangePassword")
	var err error
	defer func() { done(err) }()

	account, err := s.load(ctx, req.UserID)
	if err != nil {
		return err
	}
	if err = s.authorize(ctx, actor, policy.OpChangePassword, account); err != nil {
		return err
	}

	ok, err := s.hasher.Verify(req.CurrentPassword, account.PasswordHash())
	if err != nil {
		err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify password")
		return err
	}
	if !ok {
		err = dErrors.New(dErrors.CodeUnauthorized, "current password is incorrect")
		return err
	}
	if err = account.CanChangePassword(); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		err = hashError(err)
		return err
	}

	now := requestcontext.Now(ctx)
	verifiedHash := account.PasswordHash()
	_, err = s.accounts.Execute(ctx, req.UserID,
		func(a *models.Account) error {
			if a.PasswordHash() != verifiedHash {
				return dErrors.New(dErrors.CodeConcurrencyConflict, "the password has been changed by another request")
			}
			return a.CanChangePassword()
		},
		func(a *models.Account) { a.ApplyPasswordChange(hash, now) },
	)
	if err != nil {
		err = s.translate(err, "failed to change password")
		return err
	}

	s.logAudit(ctx, audit.EventPasswordChanged, req.UserID, actorID(actor))
	return nil
}

// UpdateStatus activates or deactivates an account. Admin only, and an admin
// cannot deactivate themselves.
func (s *Service) UpdateStatus(ctx context.Context, req models.UpdateStatusRequest, actor models.Actor) error {
	ctx, _, done := s.start(ctx, "UpdateStatus")
	var err error
	defer func() { done(err) }()

	if err = s.authorize(ctx, actor, policy.OpUpdateStatus, nil); err != nil {
		return err
	}
	account, err := s.load(ctx, req.UserID)
	if err != nil {
		return err
	}
	if err = policy.AuthorizeStatusChange(actor, account, req.IsActive); err != nil {
		s.logAudit(ctx, audit.EventAccessDenied, req.UserID, actorID(actor))
		return err
	}

	now := requestcontext.Now(ctx)
	event := audit.EventUserActivated
	validate := func(*models.Account) error { return nil }
	mutate := func(a *models.Account) { a.Activate(now) }
	if !req.IsActive {
		event = audit.EventUserDeactivated
		validate = func(a *models.Account) error { return a.CanDeactivate(req.Reason) }
		mutate = func(a *models.Account) { a.ApplyDeactivation(req.Reason, now) }
	}

	if _, err = s.accounts.Execute(ctx, req.UserID, validate, mutate); err != nil {
		err = s.translate(err, "failed to update status")
		return err
	}
	s.logAudit(ctx, event, req.UserID, actorID(actor))
	return nil
}

// AssignRole changes an account's role. The actor's effective role must
// outrank the new role unless the actor is SuperAdmin.
func (s *Service) AssignRole(ctx context.Context, req models.AssignRoleRequest, actor models.Actor) error {
	ctx, _, done := s.start(ctx, "AssignRole")
	var err error
	defer func() { done(err) }()

	if err = s.authorize(ctx, actor, policy.OpAssignRole, nil); err != nil {
		return err
	}
	if _, err = s.load(ctx, req.UserID); err != nil {
		return err
	}
	newRole, err := models.ParseRole(req.NewRole)
	if err != nil {
		return err
	}

	actorRole := actor.EffectiveRole()
	now := requestcontext.Now(ctx)
	_, err = s.accounts.Execute(ctx, req.UserID,
		func(a *models.Account) error { return a.CanChangeRole(newRole, actorRole) },
		func(a *models.Account) { a.ApplyRoleChange(newRole, now) },
	)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeForbidden) {
			s.logAudit(ctx, audit.EventAccessDenied, req.UserID, actorID(actor))
		}
		err = s.translate(err, "failed to assign role")
		return err
	}
	s.logAudit(ctx, audit.EventRoleAssigned, req.UserID, actorID(actor))
	return nil
}

// VerifyEmail activates a pending account. Verifying an already verified or
// deactivated account is a no-op.
func (s *Service) VerifyEmail(ctx context.Context, userID id.UserID, actor models.Actor) error {
	ctx, _, done := s.start(ctx, "VerifyEmail")
	var err error
	defer func() { done(err) }()

	account, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if err = s.authorize(ctx, actor, policy.OpVerifyEmail, account); err != nil {
		return err
	}
	if account.Status() != models.StatusPendingVerification {
		return nil
	}

	now := requestcontext.Now(ctx)
	changed := false
	_, err = s.accounts.Execute(ctx, userID,
		func(*models.Account) error { return nil },
		func(a *models.Account) { changed = a.VerifyEmail(now) },
	)
	if err != nil {
		err = s.translate(err, "failed to verify email")
		return err
	}
	if changed {
		s.logAudit(ctx, audit.EventEmailVerified, userID, actorID(actor))
	}
	return nil
}

// Search pages through the directory. Admin only; results are never masked.
func (s *Service) Search(ctx context.Context, req models.SearchRequest, actor models.Actor) (*models.PagedResult, error) {
	ctx, _, done := s.start(ctx, "Search")
	var err error
	defer func() { done(err) }()

	if err = s.authorize(ctx, actor, policy.OpSearch, nil); err != nil {
		return nil, err
	}

	req = req.Clamped()
	accounts, total, err := s.accounts.List(ctx, models.ListFilter{
		Page:       req.Page,
		PageSize:   req.PageSize,
		SearchTerm: strings.TrimSpace(req.SearchTerm),
		Role:       strings.TrimSpace(req.Role),
		Status:     strings.TrimSpace(req.Status),
	})
	if err != nil {
		err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to search users")
		return nil, err
	}

	items := make([]models.UserView, 0, len(accounts))
	for _, a := range accounts {
		items = append(items, policy.View(a, true))
	}
	return &models.PagedResult{
		Items:    items,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}, nil
}

func (s *Service) load(ctx context.Context, userID id.UserID) (*models.Account, error) {
	account, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return account, nil
}

func (s *Service) authorize(ctx context.Context, actor models.Actor, op policy.Operation, target *models.Account) error {
	err := policy.Authorize(actor, op, target)
	if err == nil {
		return nil
	}
	var userID id.UserID
	if target != nil {
		userID = target.ID()
	}
	s.logger.WarnContext(ctx, "access denied",
		"operation", string(op),
		"actor_id", actorID(actor),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.logAudit(ctx, audit.EventAccessDenied, userID, actorID(actor))
	return err
}

// translate maps store facts to domain errors. Domain errors raised inside an
// Execute validate callback pass through unchanged.
func (s *Service) translate(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	case errors.Is(err, sentinel.ErrConflict):
		s.incrementConflict(metrics.ConflictVersion)
		return dErrors.New(dErrors.CodeConcurrencyConflict, "the profile has been updated by another process")
	case dErrors.HasCode(err, dErrors.CodeConcurrencyConflict):
		s.incrementConflict(metrics.ConflictVersion)
		return err
	case isDomainError(err):
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

func isDomainError(err error) bool {
	var de *dErrors.Error
	return errors.As(err, &de)
}

// start opens a span and returns a completion func that records the error
// and the operation duration.
func (s *Service) start(ctx context.Context, operation string) (context.Context, trace.Span, func(error)) {
	begin := time.Now()
	ctx, span := s.tracer.Start(ctx, "users."+operation)
	return ctx, span, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		}
		span.End()
		if s.metrics != nil {
			s.metrics.ObserveOperation(operation, begin)
		}
	}
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, userID id.UserID, actor string) {
	requestID := requestcontext.RequestID(ctx)
	args := []any{
		"event", string(event),
		"log_type", "audit",
		"user_id", userID.String(),
	}
	if actor != "" {
		args = append(args, "actor_id", actor)
	}
	if requestID != "" {
		args = append(args, "request_id", requestID)
	}
	s.logger.InfoContext(ctx, string(event), args...)

	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		UserID:    userID,
		Subject:   userID.String(),
		Action:    string(event),
		RequestID: requestID,
		ActorID:   actor,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}

// hashError keeps the hasher's validation errors (e.g. password too long) and
// hides everything else behind an internal error.
func hashError(err error) error {
	if dErrors.HasCode(err, dErrors.CodeValidation) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
}

func actorID(actor models.Actor) string {
	if !actor.IsAuthenticated() {
		return ""
	}
	return actor.ID.String()
}

func (s *Service) incrementRegistrations() {
	if s.metrics != nil {
		s.metrics.IncrementRegistrations()
	}
}

func (s *Service) incrementNotification(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementNotification(outcome)
	}
}

func (s *Service) incrementConflict(kind string) {
	if s.metrics != nil {
		s.metrics.IncrementConflict(kind)
	}
}
