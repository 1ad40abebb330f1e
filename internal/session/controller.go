package session

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/safeplate/safescan/internal/barcode"
	"github.com/safeplate/safescan/internal/model"
	"github.com/safeplate/safescan/internal/scan"
)

var (
	// ErrUnsupported means the device cannot scan; terminal, no retry.
	ErrUnsupported = eris.New("session: device not supported")
	// ErrPermissionDenied means the user refused camera access. The
	// controller does not retry on its own; call Start again.
	ErrPermissionDenied = eris.New("session: camera permission denied")
)

// PermissionStatus is the capability layer's view of camera permission.
type PermissionStatus struct {
	Granted     bool
	CanAskAgain bool
}

// DeviceSupport reports whether the device can scan at all.
type DeviceSupport struct {
	Supported bool
	Reason    string
}

// Capability abstracts the device: permissions and the camera resource.
type Capability interface {
	DeviceSupport() DeviceSupport
	CheckPermission(ctx context.Context) (PermissionStatus, error)
	RequestPermission(ctx context.Context) (bool, error)
	AcquireCamera(ctx context.Context) error
	ReleaseCamera()
}

// Processor runs an accepted reading through the scan pipeline.
type Processor interface {
	Process(ctx context.Context, subjectID, symbol string, sym model.Symbology) (*scan.Outcome, error)
}

// Config holds the session timing knobs.
type Config struct {
	// Debounce collapses rapid repeated decodes of one label into a
	// single lookup.
	Debounce time.Duration
	// Cooldown is both the ignore-everything window after a bad symbol
	// and the duplicate-suppression window after a verdict.
	Cooldown time.Duration
	// LookupTimeout bounds one product lookup; on expiry the session
	// returns to Active with an error rather than hanging in Processing.
	LookupTimeout time.Duration
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		Debounce:      500 * time.Millisecond,
		Cooldown:      2 * time.Second,
		LookupTimeout: 8 * time.Second,
	}
}

// Controller is the scan session state machine. One controller serves one
// scan screen; at most one lookup is outstanding at a time, enforced by
// the Processing state rather than external locking.
type Controller struct {
	cfg        Config
	capability Capability
	processor  Processor
	subjectID  string

	mu            sync.Mutex
	state         State
	lastScan      *model.BarcodeReading
	errMsg        string
	lastCanonical string
	suppressUntil time.Time
	blockAllUntil time.Time
	debounce      *time.Timer
	generation    uint64
	cameraHeld    bool
	resumeLocked  bool

	onState  func(State)
	onResult func(*scan.Outcome)

	nowFunc func() time.Time
}

// New creates a Controller in Idle. Zero Config fields fall back to
// DefaultConfig values.
func New(capability Capability, processor Processor, subjectID string, cfg Config) *Controller {
	def := DefaultConfig()
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = def.LookupTimeout
	}
	return &Controller{
		cfg:        cfg,
		capability: capability,
		processor:  processor,
		subjectID:  subjectID,
		state:      StateIdle,
		nowFunc:    time.Now,
	}
}

// OnStateChange registers a state observer. Set before Start.
func (c *Controller) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = fn
}

// OnResult registers a verdict observer. Set before Start.
func (c *Controller) OnResult(fn func(*scan.Outcome)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onResult = fn
}

// Config returns the effective timing configuration after defaulting.
func (c *Controller) Config() Config {
	return c.cfg
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the last surfaced error message, empty after any successful
// transition into Active.
func (c *Controller) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// LastScan returns a copy of the most recent accepted reading, or nil.
func (c *Controller) LastScan() *model.BarcodeReading {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastScan == nil {
		return nil
	}
	r := *c.lastScan
	return &r
}

// Start runs the permission flow and activates scanning. Valid from Idle
// and from PermissionDenied, where it re-issues the permission prompt.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateIdle, StatePermissionDenied:
	default:
		s := c.state
		c.mu.Unlock()
		return eris.Errorf("session: cannot start from %s", s)
	}

	if sup := c.capability.DeviceSupport(); !sup.Supported {
		c.errMsg = sup.Reason
		notify := c.setStateLocked(StateUnsupported)
		c.mu.Unlock()
		notify()
		return eris.Wrap(ErrUnsupported, sup.Reason)
	}

	gen := c.generation
	notify := c.setStateLocked(StateRequestingPermission)
	c.mu.Unlock()
	notify()

	status, err := c.capability.CheckPermission(ctx)
	if err != nil {
		return c.fail(eris.Wrap(err, "session: check permission"))
	}
	granted := status.Granted
	if !granted {
		granted, err = c.capability.RequestPermission(ctx)
		if err != nil {
			return c.fail(eris.Wrap(err, "session: request permission"))
		}
	}
	if !granted {
		c.mu.Lock()
		c.errMsg = "camera permission denied"
		notify := c.setStateLocked(StatePermissionDenied)
		c.mu.Unlock()
		notify()
		return ErrPermissionDenied
	}

	if err := c.capability.AcquireCamera(ctx); err != nil {
		return c.fail(eris.Wrap(err, "session: acquire camera"))
	}

	c.mu.Lock()
	if c.generation != gen || c.state != StateRequestingPermission {
		// Stopped while the permission flow was in flight.
		c.mu.Unlock()
		c.capability.ReleaseCamera()
		return eris.New("session: start aborted")
	}
	c.cameraHeld = true
	c.errMsg = ""
	notify = c.setStateLocked(StateActive)
	c.mu.Unlock()
	notify()
	return nil
}

// HandleDecode feeds one raw decode event. It reports whether the reading
// was accepted into Processing; rejected readings (wrong state, cooldown,
// duplicate, invalid format) are absorbed silently per the session
// contract, with format errors surfaced via Err.
func (c *Controller) HandleDecode(symbol string, sym model.Symbology) bool {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return false
	}
	now := c.nowFunc()
	if now.Before(c.blockAllUntil) {
		c.mu.Unlock()
		return false
	}

	canonical, err := barcode.Normalize(symbol, sym)
	if err != nil {
		// Stay Active but ignore all readings for one cooldown, so a
		// garbled label does not produce an error storm.
		c.errMsg = err.Error()
		c.blockAllUntil = now.Add(c.cfg.Cooldown)
		c.mu.Unlock()
		return false
	}

	if canonical == c.lastCanonical && now.Before(c.suppressUntil) {
		c.mu.Unlock()
		return false
	}

	reading := model.BarcodeReading{
		Symbol:     symbol,
		Canonical:  canonical,
		Symbology:  sym,
		CapturedAt: now.UTC(),
	}
	c.lastScan = &reading
	c.lastCanonical = canonical
	gen := c.generation
	c.stopDebounceLocked()
	c.debounce = time.AfterFunc(c.cfg.Debounce, func() { c.lookup(gen, reading) })
	notify := c.setStateLocked(StateProcessing)
	c.mu.Unlock()
	notify()
	return true
}

// lookup runs after the debounce window. It is a no-op if the session
// moved on (stop, pause, reset) while the timer was pending.
func (c *Controller) lookup(gen uint64, reading model.BarcodeReading) {
	c.mu.Lock()
	if c.generation != gen || c.state != StateProcessing {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.LookupTimeout)
	defer cancel()
	outcome, err := c.processor.Process(ctx, c.subjectID, reading.Symbol, reading.Symbology)

	c.mu.Lock()
	if c.generation != gen || c.state != StateProcessing {
		// Torn down mid-lookup; the late result must not touch state.
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.errMsg = err.Error()
		notify := c.setStateLocked(StateActive)
		c.mu.Unlock()
		notify()
		zap.L().Warn("session: lookup failed",
			zap.String("barcode", reading.Canonical),
			zap.Error(err),
		)
		return
	}

	c.errMsg = ""
	c.suppressUntil = c.nowFunc().Add(c.cfg.Cooldown)
	var notify func()
	if outcome.Assessment.Blocking() {
		notify = c.setStateLocked(StateAlertLocked)
	} else {
		notify = c.setStateLocked(StateActive)
	}
	onResult := c.onResult
	c.mu.Unlock()
	notify()
	if onResult != nil {
		onResult(outcome)
	}
}

// Acknowledge dismisses a blocking verdict and resumes scanning. This is
// the only way out of AlertLocked; a new decode never is.
func (c *Controller) Acknowledge() bool {
	c.mu.Lock()
	if c.state != StateAlertLocked {
		c.mu.Unlock()
		return false
	}
	c.errMsg = ""
	c.suppressUntil = c.nowFunc().Add(c.cfg.Cooldown)
	notify := c.setStateLocked(StateActive)
	c.mu.Unlock()
	notify()
	return true
}

// Pause reacts to app backgrounding: the camera is released, pending
// timers are cancelled, and any in-flight lookup result is discarded. An
// unacknowledged alert survives the pause.
func (c *Controller) Pause() {
	c.mu.Lock()
	switch c.state {
	case StateActive, StateProcessing, StateAlertLocked:
	default:
		c.mu.Unlock()
		return
	}
	c.resumeLocked = c.state == StateAlertLocked
	c.generation++
	c.stopDebounceLocked()
	c.releaseCameraLocked()
	notify := c.setStateLocked(StatePaused)
	c.mu.Unlock()
	notify()
}

// Resume returns from Paused. Permission is re-validated, never assumed:
// the user may have revoked it in system settings while backgrounded.
func (c *Controller) Resume(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StatePaused {
		s := c.state
		c.mu.Unlock()
		return eris.Errorf("session: cannot resume from %s", s)
	}
	c.mu.Unlock()

	status, err := c.capability.CheckPermission(ctx)
	if err != nil {
		return c.fail(eris.Wrap(err, "session: check permission"))
	}
	if !status.Granted {
		c.mu.Lock()
		c.errMsg = "camera permission denied"
		c.resumeLocked = false
		notify := c.setStateLocked(StatePermissionDenied)
		c.mu.Unlock()
		notify()
		return ErrPermissionDenied
	}

	if err := c.capability.AcquireCamera(ctx); err != nil {
		return c.fail(eris.Wrap(err, "session: acquire camera"))
	}

	c.mu.Lock()
	if c.state != StatePaused {
		c.mu.Unlock()
		c.capability.ReleaseCamera()
		return eris.New("session: resume aborted")
	}
	c.cameraHeld = true
	target := StateActive
	if c.resumeLocked {
		target = StateAlertLocked
	} else {
		c.errMsg = ""
	}
	c.resumeLocked = false
	notify := c.setStateLocked(target)
	c.mu.Unlock()
	notify()
	return nil
}

// Stop tears the session down from any state: timers cancelled, camera
// released, any in-flight lookup discarded.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.generation++
	c.stopDebounceLocked()
	c.releaseCameraLocked()
	c.errMsg = ""
	c.lastScan = nil
	c.lastCanonical = ""
	c.suppressUntil = time.Time{}
	c.blockAllUntil = time.Time{}
	c.resumeLocked = false
	notify := c.setStateLocked(StateIdle)
	c.mu.Unlock()
	notify()
}

// Reset recovers from a terminal Error (or any other state) by tearing
// down and re-entering the permission flow.
func (c *Controller) Reset(ctx context.Context) error {
	c.Stop()
	return c.Start(ctx)
}

// fail moves to the terminal Error state with the camera released.
func (c *Controller) fail(err error) error {
	c.mu.Lock()
	c.errMsg = err.Error()
	c.stopDebounceLocked()
	c.releaseCameraLocked()
	notify := c.setStateLocked(StateError)
	c.mu.Unlock()
	notify()
	return err
}

// setStateLocked changes state and returns the observer notification to
// run after the mutex is released, so observers can call back into the
// controller without deadlocking.
func (c *Controller) setStateLocked(s State) func() {
	if c.state == s {
		return func() {}
	}
	from := c.state
	c.state = s
	zap.L().Debug("session: state change",
		zap.String("from", from.String()),
		zap.String("to", s.String()),
	)
	fn := c.onState
	if fn == nil {
		return func() {}
	}
	return func() { fn(s) }
}

func (c *Controller) stopDebounceLocked() {
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
}

func (c *Controller) releaseCameraLocked() {
	if c.cameraHeld {
		c.capability.ReleaseCamera()
		c.cameraHeld = false
	}
}
