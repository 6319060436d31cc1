package output

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialStatus(t *testing.T) {
	assert.Equal(t, StatusDisabled, NewNativeClient(nil, NativeOptions{}).Status())
	assert.Equal(t, StatusDisconnected, NewNativeClient(&fakeNative{}, NativeOptions{}).Status())
	assert.Equal(t, StatusDisabled, NewRelayClient(nil, 0, "").Status())
	assert.Equal(t, StatusDisconnected, NewRelayClient(&fakeRelay{}, 0, "").Status())
}

func TestSubscribeStatus_ReplaysCurrent(t *testing.T) {
	c := NewRelayClient(&fakeRelay{}, 0, "")
	var rec statusRecorder
	unsubscribe := c.SubscribeStatus(rec.record)
	defer unsubscribe()

	assert.Equal(t, []Status{StatusDisconnected}, rec.all())
}

func TestConnect_Transitions(t *testing.T) {
	c := NewRelayClient(&fakeRelay{}, 0, "")
	var rec statusRecorder
	c.SubscribeStatus(rec.record)

	c.Connect(context.Background())
	assert.Equal(t, StatusConnected, c.Status())
	assert.Equal(t, []Status{StatusDisconnected, StatusConnecting, StatusConnected}, rec.all())
}

func TestConnect_Failure(t *testing.T) {
	c := NewRelayClient(&fakeRelay{connectErr: errors.New("refused")}, 0, "")
	var rec statusRecorder
	c.SubscribeStatus(rec.record)

	c.Connect(context.Background())
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.Equal(t, []Status{StatusDisconnected, StatusConnecting, StatusDisconnected}, rec.all())
}

func TestConnect_DisabledIsNoop(t *testing.T) {
	c := NewRelayClient(nil, 0, "")
	var rec statusRecorder
	c.SubscribeStatus(rec.record)

	c.Connect(context.Background())
	c.SendChannel(1, 0.5)
	c.Wait()
	assert.Equal(t, []Status{StatusDisabled}, rec.all())
}

func TestSend_StatusFollowsOutcome(t *testing.T) {
	tr := &fakeRelay{}
	c := NewRelayClient(tr, 0, "")
	var rec statusRecorder
	c.SubscribeStatus(rec.record)

	c.SendOscMessage("/a", 1.0)
	c.Wait()
	assert.Equal(t, StatusConnected, c.Status())

	// idempotent: a second success does not notify again
	c.SendOscMessage("/a", 2.0)
	c.Wait()

	tr.mu.Lock()
	tr.sendErr = errors.New("broken pipe")
	tr.mu.Unlock()
	c.SendOscMessage("/a", 3.0)
	c.Wait()
	assert.Equal(t, StatusDisconnected, c.Status())

	assert.Equal(t, []Status{StatusDisconnected, StatusConnected, StatusDisconnected}, rec.all())
}

func TestSend_PanicBecomesDisconnected(t *testing.T) {
	c := NewRelayClient(&fakeRelay{panicOn: "/bad"}, 0, "")
	c.SendOscMessage("/ok")
	c.Wait()
	require.Equal(t, StatusConnected, c.Status())

	c.SendOscMessage("/bad")
	c.Wait()
	assert.Equal(t, StatusDisconnected, c.Status())
}

func TestUnsubscribe(t *testing.T) {
	c := NewRelayClient(&fakeRelay{}, 0, "")
	var rec statusRecorder
	unsubscribe := c.SubscribeStatus(rec.record)
	unsubscribe()
	unsubscribe()

	c.Connect(context.Background())
	assert.Equal(t, []Status{StatusDisconnected}, rec.all())
}

func TestSubscribeStatus_NilListener(t *testing.T) {
	c := NewRelayClient(&fakeRelay{}, 0, "")
	assert.NotPanics(t, func() {
		c.SubscribeStatus(nil)()
		c.Connect(context.Background())
	})
}

func TestClose_TerminalAndIdempotent(t *testing.T) {
	tr := &fakeRelay{}
	c := NewRelayClient(tr, 0, "")
	c.Connect(context.Background())
	var rec statusRecorder
	c.SubscribeStatus(rec.record)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, StatusDisconnected, c.Status())

	c.Connect(context.Background())
	c.SendChannel(1, 0.5)
	c.SendOscMessage("/x", 1.0)
	c.Wait()

	assert.Equal(t, StatusDisconnected, c.Status())
	assert.Empty(t, tr.messages())
	assert.Equal(t, []Status{StatusConnected, StatusDisconnected}, rec.all())
}

func TestClose_LateCompletionDoesNotResurrect(t *testing.T) {
	g := newGate()
	tr := &fakeNative{sendGate: g}
	c := NewNativeClient(tr, NativeOptions{})
	var rec statusRecorder
	c.SubscribeStatus(rec.record)

	c.SendOscMessage("/held", 1.0)
	<-g.entered

	closed := make(chan struct{})
	go func() {
		c.Close()
		close(closed)
	}()
	require.Eventually(t, c.Closed, time.Second, time.Millisecond)

	// the held send now succeeds after shutdown
	close(g.release)
	<-closed

	assert.Equal(t, StatusDisconnected, c.Status())
	assert.Len(t, tr.messages(), 1)
	assert.Equal(t, []Status{StatusDisconnected}, rec.all())
}

func TestSend_DropsWhenSaturated(t *testing.T) {
	g := newGate()
	c := NewNativeClient(&fakeNative{sendGate: g}, NativeOptions{})
	for i := 0; i < maxInFlight+5; i++ {
		c.SendOscMessage("/x", 1.0)
	}
	assert.Equal(t, uint64(5), c.Dropped())
	close(g.release)
	c.Wait()
	assert.Equal(t, StatusConnected, c.Status())
}

// closeOn returns a listener that closes c the first time it sees want and
// signals done once Close has returned.
func closeOn(c interface{ Close() error }, want Status, done chan<- struct{}) func(Status) {
	var once bool
	return func(s Status) {
		if s != want || once {
			return
		}
		once = true
		c.Close()
		close(done)
	}
}

func waitClosed(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close from a status listener did not return")
	}
}

func TestClose_FromListenerAfterSend(t *testing.T) {
	tr := &fakeNative{}
	c := NewNativeClient(tr, NativeOptions{})
	done := make(chan struct{})
	c.SubscribeStatus(closeOn(c, StatusConnected, done))

	c.SendOscMessage("/a", 1.0)
	waitClosed(t, done)
	c.Wait()

	assert.True(t, c.Closed())
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.Len(t, tr.messages(), 1)
}

func TestClose_FromListenerAfterFailedSend(t *testing.T) {
	tr := &fakeRelay{}
	c := NewRelayClient(tr, 0, "")
	c.SendOscMessage("/a", 1.0)
	c.Wait()
	require.Equal(t, StatusConnected, c.Status())

	tr.mu.Lock()
	tr.sendErr = errors.New("broken pipe")
	tr.mu.Unlock()
	done := make(chan struct{})
	c.SubscribeStatus(closeOn(c, StatusDisconnected, done))

	c.SendOscMessage("/a", 2.0)
	waitClosed(t, done)
	c.Wait()
	assert.True(t, c.Closed())
}

func TestClose_FromListenerDuringConnect(t *testing.T) {
	for _, want := range []Status{StatusConnecting, StatusConnected} {
		t.Run(string(want), func(t *testing.T) {
			c := NewRelayClient(&fakeRelay{}, 0, "")
			done := make(chan struct{})
			c.SubscribeStatus(closeOn(c, want, done))

			returned := make(chan struct{})
			go func() {
				c.Connect(context.Background())
				close(returned)
			}()
			waitClosed(t, done)
			waitClosed(t, returned)

			assert.True(t, c.Closed())
			assert.Equal(t, StatusDisconnected, c.Status())
		})
	}
}

func TestClose_FromListenerOnShutdown(t *testing.T) {
	c := NewRelayClient(&fakeRelay{}, 0, "")
	c.Connect(context.Background())
	done := make(chan struct{})
	c.SubscribeStatus(closeOn(c, StatusDisconnected, done))

	returned := make(chan struct{})
	go func() {
		assert.NoError(t, c.Close())
		close(returned)
	}()
	waitClosed(t, done)
	waitClosed(t, returned)
	assert.Equal(t, StatusDisconnected, c.Status())
}
