package contact

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFields() Fields {
	return Fields{
		Name:    "Jane Doe",
		Email:   "jane@example.com",
		Subject: "Project inquiry",
		Message: "Hi, I'd like to talk about a web project.",
	}
}

type countingDispatcher struct {
	calls atomic.Int32
	err   error
	got   []Fields
	mu    sync.Mutex
}

func (d *countingDispatcher) Dispatch(_ context.Context, f Fields) error {
	d.calls.Add(1)
	d.mu.Lock()
	d.got = append(d.got, f)
	d.mu.Unlock()
	return d.err
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []Notification
}

func (n *recordingNotifier) Notify(note Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
}

func (n *recordingNotifier) all() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.notes...)
}

func TestSubmit_Success(t *testing.T) {
	d := &countingDispatcher{}
	n := &recordingNotifier{}
	c := NewController(d, WithNotifier(n))

	res, err := c.Submit(context.Background(), validFields())
	require.NoError(t, err)

	assert.True(t, res.OK())
	assert.NoError(t, res.Reason)
	assert.Equal(t, StateIdle, c.State())
	assert.True(t, c.Fields().IsZero(), "fields should be cleared after success")
	assert.Equal(t, int32(1), d.calls.Load())
	assert.Equal(t, []Fields{validFields()}, d.got)

	notes := n.all()
	require.Len(t, notes, 1)
	assert.Equal(t, SeverityDefault, notes[0].Severity)
	assert.Contains(t, notes[0].Description, "get back to you soon")
}

func TestSubmit_FailurePreservesFields(t *testing.T) {
	d := &countingDispatcher{err: errors.New("relay said no")}
	n := &recordingNotifier{}
	c := NewController(d, WithNotifier(n), WithFallbackEmail("me@example.com"))

	res, err := c.Submit(context.Background(), validFields())
	require.NoError(t, err)

	assert.False(t, res.OK())
	assert.Equal(t, OutcomeFailure, res.Outcome)
	assert.EqualError(t, res.Reason, "relay said no")
	assert.Equal(t, StateIdle, c.State())
	if diff := cmp.Diff(validFields(), c.Fields()); diff != "" {
		t.Errorf("fields not preserved after failure (-want +got):\n%s", diff)
	}

	notes := n.all()
	require.Len(t, notes, 1)
	assert.Equal(t, SeverityDestructive, notes[0].Severity)
	assert.Contains(t, notes[0].Description, "me@example.com")
}

func TestSubmit_InvalidNeverDispatches(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Fields)
		field  string
	}{
		{name: "missing name", mutate: func(f *Fields) { f.Name = "" }, field: "name"},
		{name: "missing email", mutate: func(f *Fields) { f.Email = "" }, field: "email"},
		{name: "malformed email", mutate: func(f *Fields) { f.Email = "not-an-email" }, field: "email"},
		{name: "missing subject", mutate: func(f *Fields) { f.Subject = "" }, field: "subject"},
		{name: "missing message", mutate: func(f *Fields) { f.Message = "" }, field: "message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &countingDispatcher{}
			n := &recordingNotifier{}
			c := NewController(d, WithNotifier(n))

			f := validFields()
			tt.mutate(&f)

			_, err := c.Submit(context.Background(), f)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tt.field)

			assert.Zero(t, d.calls.Load())
			assert.Empty(t, n.all())
			assert.Equal(t, StateIdle, c.State())
			assert.Equal(t, f, c.Fields(), "input is kept for correction")
		})
	}
}

func TestSubmit_RejectsWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var calls atomic.Int32
	d := DispatcherFunc(func(ctx context.Context, f Fields) error {
		calls.Add(1)
		close(entered)
		<-release
		return nil
	})
	c := NewController(d)

	done := make(chan Result, 1)
	go func() {
		res, err := c.Submit(context.Background(), validFields())
		assert.NoError(t, err)
		done <- res
	}()

	<-entered
	assert.Equal(t, StateSubmitting, c.State())

	for i := 0; i < 3; i++ {
		_, err := c.Submit(context.Background(), validFields())
		assert.ErrorIs(t, err, ErrInFlight)
	}

	close(release)
	res := <-done
	assert.True(t, res.OK())
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, StateIdle, c.State())
}

func TestSubmit_TimeoutReturnsToIdle(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	d := DispatcherFunc(func(ctx context.Context, f Fields) error {
		// ignores ctx on purpose
		<-block
		return nil
	})
	c := NewController(d, WithTimeout(20*time.Millisecond))

	res, err := c.Submit(context.Background(), validFields())
	require.NoError(t, err)

	assert.False(t, res.OK())
	assert.ErrorIs(t, res.Reason, ErrTimeout)
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, validFields(), c.Fields())
}

func TestSubmit_ContextAwareDispatcherTimeout(t *testing.T) {
	d := DispatcherFunc(func(ctx context.Context, f Fields) error {
		<-ctx.Done()
		return ctx.Err()
	})
	c := NewController(d, WithTimeout(10*time.Millisecond))

	res, err := c.Submit(context.Background(), validFields())
	require.NoError(t, err)
	assert.ErrorIs(t, res.Reason, ErrTimeout)
}

func TestSubmit_TimeoutReasonUnwrapsToErrTimeout(t *testing.T) {
	d := DispatcherFunc(func(ctx context.Context, f Fields) error {
		<-ctx.Done()
		return ctx.Err()
	})
	c := NewController(d, WithTimeout(10*time.Millisecond))

	res, err := c.Submit(context.Background(), validFields())
	require.NoError(t, err)
	assert.True(t, stderrors.Is(res.Reason, ErrTimeout))
	assert.True(t, errors.Is(res.Reason, ErrTimeout))
	assert.Contains(t, res.Reason.Error(), ErrTimeout.Error())
}

func TestSubmit_PanicBecomesFailure(t *testing.T) {
	d := DispatcherFunc(func(ctx context.Context, f Fields) error {
		panic("boom")
	})
	n := &recordingNotifier{}
	c := NewController(d, WithNotifier(n))

	res, err := c.Submit(context.Background(), validFields())
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Contains(t, res.Reason.Error(), "boom")
	assert.Equal(t, StateIdle, c.State())
	assert.Len(t, n.all(), 1)
}

func TestSubmit_NoDispatcher(t *testing.T) {
	c := NewController(nil)

	res, err := c.Submit(context.Background(), validFields())
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Equal(t, StateIdle, c.State())
}

func TestSubmit_RepeatedCyclesAreIndependent(t *testing.T) {
	d := &countingDispatcher{}
	c := NewController(d)

	first := validFields()
	second := Fields{
		Name:    "John Roe",
		Email:   "john@example.org",
		Subject: "Freelance",
		Message: "Are you available next month?",
	}

	for _, f := range []Fields{first, second} {
		res, err := c.Submit(context.Background(), f)
		require.NoError(t, err)
		assert.True(t, res.OK())
		assert.True(t, c.Fields().IsZero())
		assert.Equal(t, StateIdle, c.State())
	}

	assert.Equal(t, int32(2), d.calls.Load())
	assert.Equal(t, []Fields{first, second}, d.got)
}

func TestSubscribe_SeesBothTransitions(t *testing.T) {
	c := NewController(&countingDispatcher{})

	var states []State
	unsubscribe := c.Subscribe(func(s State) { states = append(states, s) })

	_, err := c.Submit(context.Background(), validFields())
	require.NoError(t, err)
	assert.Equal(t, []State{StateSubmitting, StateIdle}, states)

	unsubscribe()
	_, err = c.Submit(context.Background(), validFields())
	require.NoError(t, err)
	assert.Len(t, states, 2)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "submitting", StateSubmitting.String())
	assert.Equal(t, "unknown", State(9).String())
}
