package payment

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/example/vitrine/internal/gateway"
)

// Recorder persists charge history. Failures are logged and never affect the session.
type Recorder interface {
	ChargeCreated(ctx context.Context, charge Charge) error
	StatusChecked(ctx context.Context, chargeID string, status gateway.Status) error
}

// Options tunes timing and collaborators of a Session.
type Options struct {
	// Name prefixes log lines, e.g. "packages/5b2c...".
	Name string
	// GatewayTimeout bounds every gateway call.
	GatewayTimeout time.Duration
	// PaidResetDelay is how long the paid state is shown before completion fires.
	PaidResetDelay time.Duration
	// MinVerifyInterval is the minimum spacing between two manual status
	// checks. The poller also skips a tick when a manual check ran within it.
	MinVerifyInterval time.Duration
	NoticeTTL         time.Duration
	CopyNoticeTTL     time.Duration
	// PollInterval enables background status checks when positive.
	PollInterval    time.Duration
	PollMaxAttempts int
	Recorder        Recorder
	Now             func() time.Time
}

// DefaultOptions mirrors the storefront's original timings.
func DefaultOptions() Options {
	return Options{
		GatewayTimeout:    15 * time.Second,
		PaidResetDelay:    2 * time.Second,
		MinVerifyInterval: 2 * time.Second,
		NoticeTTL:         8 * time.Second,
		CopyNoticeTTL:     3 * time.Second,
		PollMaxAttempts:   60,
	}
}

// Snapshot is the read-only view handed to the presentation layer.
type Snapshot struct {
	State      State          `json:"state"`
	Charge     *Charge        `json:"charge,omitempty"`
	Expired    bool           `json:"expired"`
	Display    DisplayMode    `json:"display"`
	LastStatus gateway.Status `json:"last_status,omitempty"`
	Notice     *Notice        `json:"notice,omitempty"`
}

// Session drives a single Pix purchase at a time through
// idle -> creating -> awaiting_payment <-> verifying -> paid -> idle.
//
// Actions never block each other: an action issued while another one is in
// flight is rejected instead of queued. The mutex is never held across a
// gateway call; each call is tagged with the attempt generation and its
// result is dropped if the session moved on in the meantime.
type Session struct {
	gw         gateway.Gateway
	opts       Options
	onComplete func(Completion)

	mu         sync.Mutex
	state      State
	intent     PurchaseIntent
	charge     *Charge
	expired    bool
	display    DisplayMode
	lastStatus gateway.Status
	notice     Notice
	lastErr    error
	lastManual time.Time
	autoCheck  bool
	gen        uint64
	inflight   context.CancelFunc
	paidTimer  *time.Timer
	stopPoll   chan struct{}
}

// NewSession returns an idle session. onComplete is called once per paid
// charge, after PaidResetDelay, from a goroutine owned by the session.
func NewSession(gw gateway.Gateway, onComplete func(Completion), opts Options) *Session {
	defaults := DefaultOptions()
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = defaults.GatewayTimeout
	}
	if opts.PaidResetDelay < 0 {
		opts.PaidResetDelay = 0
	}
	if opts.NoticeTTL <= 0 {
		opts.NoticeTTL = defaults.NoticeTTL
	}
	if opts.CopyNoticeTTL <= 0 {
		opts.CopyNoticeTTL = defaults.CopyNoticeTTL
	}
	if opts.PollInterval > 0 && opts.PollInterval < opts.MinVerifyInterval {
		opts.PollInterval = opts.MinVerifyInterval
	}
	if opts.PollInterval > 0 && opts.PollMaxAttempts <= 0 {
		opts.PollMaxAttempts = defaults.PollMaxAttempts
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		gw:         gw,
		opts:       opts,
		onComplete: onComplete,
		state:      StateIdle,
		display:    DisplayCode,
	}
}

// Start issues a new charge for intent, discarding any charge still on display.
// It returns false when rejected because a gateway call is already in flight.
func (s *Session) Start(ctx context.Context, intent PurchaseIntent) bool {
	s.mu.Lock()
	if s.state == StateCreating || s.state == StateVerifying {
		s.mu.Unlock()
		s.rejected("start")
		return false
	}

	var pending *Completion
	if s.state == StatePaid {
		pending = s.takeCompletionLocked()
	}

	s.resetLocked()
	s.state = StateCreating
	s.intent = PurchaseIntent{
		Price:       intent.Price,
		Description: intent.Description,
		Metadata:    copyMetadata(intent.Metadata),
	}
	gen := s.gen
	ctx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	s.inflight = cancel
	s.mu.Unlock()

	if pending != nil {
		s.complete(*pending)
	}

	issued, err := s.gw.CreateCharge(ctx, intent.Price)
	cancel()

	// The charge exists at the provider even if the session moved on, so it
	// is recorded before the generation check.
	var charge Charge
	if err == nil {
		charge = Charge{
			ID:           issued.ID,
			Code:         issued.Code,
			EncodedImage: issued.EncodedImage,
			Amount:       intent.Price,
			Description:  intent.Description,
			Metadata:     copyMetadata(intent.Metadata),
			CreatedAt:    s.opts.Now(),
		}
		s.record(func(ctx context.Context, r Recorder) error { return r.ChargeCreated(ctx, charge) })
	}

	s.mu.Lock()
	if s.gen != gen || s.state != StateCreating {
		s.mu.Unlock()
		s.logf("discarding create result of a superseded attempt")
		return true
	}
	s.inflight = nil

	if err != nil {
		s.state = StateFailed
		s.lastErr = &CreationError{Err: err}
		s.notice = Notice{Kind: NoticeError, Text: payerMessage(err, msgCreationFailed)}
		s.mu.Unlock()
		s.logf("create charge failed: %v", err)
		return true
	}

	s.charge = &charge
	s.state = StateAwaitingPayment
	s.notice = Notice{}
	s.lastErr = nil
	s.startPollLocked(gen)
	s.mu.Unlock()

	s.logf("charge %s created (%s, R$ %s)", charge.ID, charge.Description, charge.Amount.StringFixed(2))
	return true
}

// ToggleDisplayMode flips between the copyable code and the QR image.
func (s *Session) ToggleDisplayMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.charge == nil || (s.state != StateAwaitingPayment && s.state != StateVerifying) {
		return false
	}
	if s.display == DisplayQR {
		s.display = DisplayCode
	} else {
		s.display = DisplayQR
	}
	return true
}

// CopyCode returns the Pix code for the payer's clipboard. It reports false
// when there is no charge or the provider did not send a code.
func (s *Session) CopyCode() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.charge == nil {
		return "", false
	}
	now := s.opts.Now()
	if !s.charge.HasCode() {
		s.notice = Notice{Kind: NoticeWarning, Text: msgCodeUnavailable, ExpiresAt: now.Add(s.opts.CopyNoticeTTL)}
		return "", false
	}
	s.notice = Notice{Kind: NoticeSuccess, Text: msgCopied, ExpiresAt: now.Add(s.opts.CopyNoticeTTL)}
	return s.charge.Code, true
}

// Verify asks the gateway whether the active charge was paid.
// It returns false when rejected: no charge awaiting payment, a manual check
// already in flight, or the previous manual check started less than
// MinVerifyInterval ago. A background check in flight answers the call, so
// Verify accepts it without a second request.
func (s *Session) Verify(ctx context.Context) bool {
	return s.verify(ctx, false)
}

func (s *Session) verify(ctx context.Context, auto bool) bool {
	s.mu.Lock()
	if !auto && s.state == StateVerifying && s.autoCheck {
		s.mu.Unlock()
		s.logf("verify joined the background check in flight")
		return true
	}
	if s.state != StateAwaitingPayment || s.charge == nil {
		s.mu.Unlock()
		if !auto {
			s.rejected("verify")
		}
		return false
	}
	now := s.opts.Now()
	if !s.lastManual.IsZero() && now.Sub(s.lastManual) < s.opts.MinVerifyInterval {
		if auto {
			s.mu.Unlock()
			return false
		}
		s.notice = Notice{Kind: NoticeInfo, Text: msgTooSoon, ExpiresAt: now.Add(s.opts.CopyNoticeTTL)}
		s.mu.Unlock()
		s.rejected("verify (too soon)")
		return false
	}

	if !auto {
		s.lastManual = now
	}
	s.autoCheck = auto
	s.state = StateVerifying
	s.notice = Notice{}
	gen, chargeID := s.gen, s.charge.ID
	ctx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	s.inflight = cancel
	s.mu.Unlock()

	status, err := s.gw.GetChargeStatus(ctx, chargeID)
	cancel()

	s.mu.Lock()
	if s.gen != gen || s.state != StateVerifying || s.charge == nil || s.charge.ID != chargeID {
		s.mu.Unlock()
		s.logf("discarding status of superseded charge %s", chargeID)
		return true
	}
	s.inflight = nil
	s.autoCheck = false
	now = s.opts.Now()

	if err != nil {
		s.state = StateAwaitingPayment
		s.lastErr = &VerificationError{ChargeID: chargeID, Err: err}
		s.notice = Notice{Kind: NoticeError, Text: payerMessage(err, msgVerifyFailed), ExpiresAt: now.Add(s.opts.NoticeTTL)}
		s.mu.Unlock()
		s.logf("verify charge %s failed: %v", chargeID, err)
		return true
	}

	s.lastStatus = status
	s.lastErr = nil
	switch status {
	case gateway.StatusPaid:
		s.state = StatePaid
		s.notice = Notice{Kind: NoticeSuccess, Text: msgPaid}
		s.stopPollLocked()
		s.paidTimer = time.AfterFunc(s.opts.PaidResetDelay, func() { s.finish(gen) })
	case gateway.StatusExpired:
		s.state = StateAwaitingPayment
		s.expired = true
		s.notice = Notice{Kind: NoticeWarning, Text: msgExpired, ExpiresAt: now.Add(s.opts.NoticeTTL)}
		s.stopPollLocked()
	case gateway.StatusCreated, gateway.StatusPending:
		s.state = StateAwaitingPayment
		s.notice = Notice{Kind: NoticeInfo, Text: msgPending, ExpiresAt: now.Add(s.opts.NoticeTTL)}
	default:
		s.state = StateAwaitingPayment
		s.notice = Notice{Kind: NoticeInfo, Text: msgStatus(string(status)), ExpiresAt: now.Add(s.opts.NoticeTTL)}
	}
	s.mu.Unlock()

	s.logf("charge %s status: %s", chargeID, status)
	s.record(func(ctx context.Context, r Recorder) error { return r.StatusChecked(ctx, chargeID, status) })
	return true
}

// Cancel abandons the current attempt and returns to idle. A paid session
// cannot be cancelled; its completion is already on its way.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateIdle || s.state == StatePaid {
		return false
	}
	if s.charge != nil {
		s.logf("charge %s cancelled in state %s", s.charge.ID, s.state)
	}
	s.resetLocked()
	return true
}

// Close resets the session for good. A pending completion is delivered first.
func (s *Session) Close() {
	s.mu.Lock()
	var pending *Completion
	if s.state == StatePaid {
		pending = s.takeCompletionLocked()
	}
	s.resetLocked()
	s.mu.Unlock()

	if pending != nil {
		s.complete(*pending)
	}
}

// Snapshot returns the current observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:      s.state,
		Expired:    s.expired,
		Display:    s.display,
		LastStatus: s.lastStatus,
	}
	if s.charge != nil {
		c := *s.charge
		c.Metadata = copyMetadata(s.charge.Metadata)
		snap.Charge = &c
	}
	if s.notice.activeAt(s.opts.Now()) {
		n := s.notice
		snap.Notice = &n
	}
	return snap
}

// ActiveCharge returns the charge on display, if any.
func (s *Session) ActiveCharge() (Charge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.charge == nil {
		return Charge{}, false
	}
	c := *s.charge
	c.Metadata = copyMetadata(s.charge.Metadata)
	return c, true
}

// Err returns the error behind the last failed gateway call, for diagnostics.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) finish(gen uint64) {
	s.mu.Lock()
	if s.gen != gen || s.state != StatePaid {
		s.mu.Unlock()
		return
	}
	c := s.takeCompletionLocked()
	s.resetLocked()
	s.mu.Unlock()

	s.complete(*c)
}

// takeCompletionLocked moves the paid charge out of the session. The caller
// must follow up with resetLocked, which bumps the generation so the paid
// timer can no longer deliver it a second time.
func (s *Session) takeCompletionLocked() *Completion {
	if s.charge == nil {
		return nil
	}
	if s.paidTimer != nil {
		s.paidTimer.Stop()
		s.paidTimer = nil
	}
	c := &Completion{
		Intent: PurchaseIntent{
			Price:       s.intent.Price,
			Description: s.intent.Description,
			Metadata:    copyMetadata(s.intent.Metadata),
		},
		Charge: *s.charge,
	}
	s.charge = nil
	return c
}

// resetLocked drops the charge and every in-flight operation tied to it.
func (s *Session) resetLocked() {
	if s.inflight != nil {
		s.inflight()
		s.inflight = nil
	}
	if s.paidTimer != nil {
		s.paidTimer.Stop()
		s.paidTimer = nil
	}
	s.stopPollLocked()
	s.gen++
	s.state = StateIdle
	s.intent = PurchaseIntent{}
	s.charge = nil
	s.expired = false
	s.display = DisplayCode
	s.lastStatus = ""
	s.notice = Notice{}
	s.lastErr = nil
	s.lastManual = time.Time{}
	s.autoCheck = false
}

func (s *Session) complete(c Completion) {
	s.logf("charge %s completed (%s)", c.Charge.ID, c.Intent.Description)
	if s.onComplete != nil {
		s.onComplete(c)
	}
}

func (s *Session) startPollLocked(gen uint64) {
	if s.opts.PollInterval <= 0 {
		return
	}
	stop := make(chan struct{})
	s.stopPoll = stop
	go s.poll(gen, stop)
}

func (s *Session) stopPollLocked() {
	if s.stopPoll != nil {
		close(s.stopPoll)
		s.stopPoll = nil
	}
}

func (s *Session) poll(gen uint64, stop <-chan struct{}) {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for attempts := 0; attempts < s.opts.PollMaxAttempts; {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		current := s.gen == gen && s.charge != nil && !s.expired
		s.mu.Unlock()
		if !current {
			return
		}
		if s.verify(context.Background(), true) {
			attempts++
		}
	}
	s.logf("auto verification gave up after %d attempts", s.opts.PollMaxAttempts)
}

func (s *Session) record(fn func(ctx context.Context, r Recorder) error) {
	if s.opts.Recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx, s.opts.Recorder); err != nil {
		s.logf("recorder: %v", err)
	}
}

func (s *Session) rejected(action string) {
	s.logf("%s ignored in state %s", action, s.Snapshot().State)
}

func (s *Session) logf(format string, args ...any) {
	prefix := "[Pix] "
	if s.opts.Name != "" {
		prefix = "[Pix] " + s.opts.Name + ": "
	}
	log.Printf(prefix+format, args...)
}
