package contact

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

var (
	// ErrInvalid is returned when the form fails validation. No dispatch happens.
	ErrInvalid = errors.New("contact form is invalid")
	// ErrInFlight is returned when a submission is already being dispatched.
	ErrInFlight = errors.New("a submission is already in flight")
	// ErrTimeout is the failure reason when the relay does not answer in time.
	ErrTimeout = errors.New("email relay timed out")
)

// DefaultTimeout bounds a single dispatch.
const DefaultTimeout = 15 * time.Second

// State is the submission state of a contact form.
type State int

const (
	StateIdle       State = iota // Ready to accept a submission
	StateSubmitting              // Dispatch in progress
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	default:
		return "unknown"
	}
}

// Dispatcher delivers a contact form to an email relay.
type Dispatcher interface {
	Dispatch(ctx context.Context, f Fields) error
}

// DispatcherFunc adapts a function to a Dispatcher.
type DispatcherFunc func(ctx context.Context, f Fields) error

// Dispatch implements Dispatcher.
func (fn DispatcherFunc) Dispatch(ctx context.Context, f Fields) error {
	return fn(ctx, f)
}

// Severity of a user-facing notification.
type Severity string

const (
	SeverityDefault     Severity = "default"
	SeverityDestructive Severity = "destructive"
)

// Notification is a transient message shown to the visitor.
type Notification struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// Notifier presents notifications. Notify must not block.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to a Notifier.
type NotifierFunc func(n Notification)

// Notify implements Notifier.
func (fn NotifierFunc) Notify(n Notification) { fn(n) }

// Outcome of a settled submission.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Result describes how a dispatched submission settled.
type Result struct {
	Outcome      Outcome
	Reason       error
	Notification Notification
	Elapsed      time.Duration
}

// OK reports whether the submission was delivered.
func (r Result) OK() bool {
	return r.Outcome == OutcomeSuccess
}

// Option configures a Controller.
type Option func(*Controller)

// WithTimeout bounds each dispatch. Zero or negative disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithFallbackEmail sets the direct address offered when delivery fails.
func WithFallbackEmail(addr string) Option {
	return func(c *Controller) { c.fallbackEmail = addr }
}

// WithNotifier sets the notification presenter.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// Controller owns one contact form: its values and its submission state.
// At most one dispatch is in flight at any time.
type Controller struct {
	dispatcher    Dispatcher
	notifier      Notifier
	timeout       time.Duration
	fallbackEmail string

	mu     sync.Mutex
	state  State
	fields Fields
	subs   map[int]func(State)
	nextID int
}

// NewController creates an idle controller that dispatches through d.
func NewController(d Dispatcher, opts ...Option) *Controller {
	c := &Controller{
		dispatcher: d,
		timeout:    DefaultTimeout,
		subs:       make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current submission state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Fields returns the current form values.
func (c *Controller) Fields() Fields {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fields
}

// Subscribe registers fn to be called on every state transition.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Submit records f as the form values and dispatches them.
//
// It returns ErrInFlight without dispatching while another submission is
// in progress, and an error matching ErrInvalid when f fails validation.
// Otherwise the dispatch outcome is reported in the Result; delivery
// failures are never returned as errors.
func (c *Controller) Submit(ctx context.Context, f Fields) (Result, error) {
	c.mu.Lock()
	if c.state == StateSubmitting {
		c.mu.Unlock()
		return Result{}, ErrInFlight
	}
	c.fields = f
	if err := f.Validate(); err != nil {
		c.mu.Unlock()
		return Result{}, err
	}
	c.setStateLocked(StateSubmitting)

	var res Result
	defer func() {
		c.mu.Lock()
		if res.OK() {
			c.fields = Fields{}
		}
		c.setStateLocked(StateIdle)
	}()

	start := time.Now()
	err := c.dispatch(ctx, f)
	res.Elapsed = time.Since(start)

	if err != nil {
		res.Outcome = OutcomeFailure
		res.Reason = err
		res.Notification = c.failureNotification()
	} else {
		res.Outcome = OutcomeSuccess
		res.Notification = successNotification()
	}

	if c.notifier != nil {
		c.notifier.Notify(res.Notification)
	}
	return res, nil
}

// setStateLocked changes the state and notifies subscribers.
// It is called with c.mu held and releases it.
func (c *Controller) setStateLocked(s State) {
	c.state = s
	subs := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}

// dispatch runs the relay call in its own goroutine so a relay that ignores
// ctx cannot hold the form in StateSubmitting past the timeout.
func (c *Controller) dispatch(ctx context.Context, f Fields) error {
	if c.dispatcher == nil {
		return errors.New("no email relay configured")
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- errors.Newf("email relay panicked: %v", r)
			}
		}()
		done <- c.dispatcher.Dispatch(ctx, f)
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return timeoutError(err)
		}
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return timeoutError(ctx.Err())
		}
		return errors.Wrap(ctx.Err(), "dispatch contact form")
	}
}

// timeoutError keeps ErrTimeout in the unwrap chain so both errors.Is
// implementations match it; cause is attached as detail.
func timeoutError(cause error) error {
	return errors.WithSecondaryError(errors.Wrap(ErrTimeout, "dispatch contact form"), cause)
}

func successNotification() Notification {
	return Notification{
		Title:       "Message sent!",
		Description: "Thank you for reaching out. I'll get back to you soon.",
		Severity:    SeverityDefault,
	}
}

func (c *Controller) failureNotification() Notification {
	desc := "Something went wrong. Please try again later."
	if c.fallbackEmail != "" {
		desc = fmt.Sprintf("Please try again or email me directly at %s.", c.fallbackEmail)
	}
	return Notification{
		Title:       "Failed to send message",
		Description: desc,
		Severity:    SeverityDestructive,
	}
}
