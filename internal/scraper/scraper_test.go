package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	page   string
	err    error
	panics bool
	closed int
}

func (f *fakeSession) Render(context.Context) (string, error) {
	if f.panics {
		panic("renderer crashed")
	}
	return f.page, f.err
}

func (f *fakeSession) Close() error {
	f.closed++
	return nil
}

type fakeOpener struct {
	sess *fakeSession
	err  error
}

func (f *fakeOpener) Open(context.Context) (Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sess, nil
}

func TestExtract(t *testing.T) {
	sess := &fakeSession{page: loadFixture(t)}
	e := New(&fakeOpener{sess: sess}, slog.Default())

	records, err := e.Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, 1, sess.closed, "session must be closed after extraction")
	require.Zero(t, e.OpenSessions())
}

func TestExtractFailures(t *testing.T) {
	tests := []struct {
		name    string
		opener  *fakeOpener
		wantErr error
	}{
		{
			name:    "timeout",
			opener:  &fakeOpener{sess: &fakeSession{err: fmt.Errorf("%w after 20s", ErrExtractionTimeout)}},
			wantErr: ErrExtractionTimeout,
		},
		{
			name:    "view all missing",
			opener:  &fakeOpener{sess: &fakeSession{err: fmt.Errorf("%w: no node", ErrShowAllMissing)}},
			wantErr: ErrShowAllMissing,
		},
		{
			name:    "launch failure",
			opener:  &fakeOpener{err: errors.New("chrome not found")},
			wantErr: ErrSession,
		},
		{
			name:    "panic in session",
			opener:  &fakeOpener{sess: &fakeSession{panics: true}},
			wantErr: ErrSession,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(tt.opener, slog.Default())

			records, err := e.Extract(context.Background())
			require.ErrorIs(t, err, tt.wantErr)
			require.Nil(t, records)

			if tt.opener.sess != nil {
				require.Equal(t, 1, tt.opener.sess.closed)
			}
			require.Zero(t, e.OpenSessions())

			// Collect never surfaces the fault.
			require.NotPanics(t, func() {
				got := e.Collect(context.Background())
				require.NotNil(t, got)
				require.Empty(t, got)
			})
		})
	}
}

type blockingSession struct {
	rendering chan struct{}
	release   chan struct{}
	closed    chan struct{}
}

func (b *blockingSession) Render(ctx context.Context) (string, error) {
	close(b.rendering)
	<-b.release
	return "", context.Canceled
}

func (b *blockingSession) Close() error {
	close(b.closed)
	return nil
}

type staticOpener struct{ s Session }

func (o staticOpener) Open(context.Context) (Session, error) { return o.s, nil }

func TestShutdownClosesHeldSession(t *testing.T) {
	sess := &blockingSession{
		rendering: make(chan struct{}),
		release:   make(chan struct{}),
		closed:    make(chan struct{}),
	}
	e := New(staticOpener{sess}, slog.Default())

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Collect(context.Background())
	}()

	<-sess.rendering
	require.Equal(t, 1, e.OpenSessions())

	e.Shutdown()
	<-sess.closed
	require.Zero(t, e.OpenSessions())

	// The extraction's own deferred release must not close a second time.
	close(sess.release)
	<-done
}
