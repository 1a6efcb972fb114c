package manager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	mklimiter "github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/limiter/mocks"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/stream"
)

type fakeStream struct {
	mu          sync.Mutex
	id          string
	state       stream.State
	connectedAt time.Time
	connectErr  error
	block       chan struct{}
	connects    int
	reconnects  int
	disconnects int
}

func newFakeStream(id string) *fakeStream {
	return &fakeStream{id: id, state: stream.Disconnected}
}

func (f *fakeStream) ID() string { return f.id }

func (f *fakeStream) Connect(ctx context.Context) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.state = stream.Connected
	f.connectedAt = time.Now()
	return nil
}

func (f *fakeStream) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.state = stream.Closed
	return nil
}

func (f *fakeStream) Reconnect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects++
	f.state = stream.Connected
	f.connectedAt = time.Now()
	return nil
}

func (f *fakeStream) IsConnected() bool {
	return f.State() == stream.Connected
}

func (f *fakeStream) State() stream.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeStream) ConnectionDuration() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != stream.Connected {
		return 0
	}
	return time.Since(f.connectedAt)
}

func (f *fakeStream) counts() (int, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, f.reconnects, f.disconnects
}

type ManagerTestSuite struct {
	suite.Suite
}

func TestManagerTestSuite(t *testing.T) {
	suite.Run(t, new(ManagerTestSuite))
}

func (s *ManagerTestSuite) TestAddAndClose() {
	m := NewManager(WithCheckReConn(false))
	defer m.Shutdown()

	fs := newFakeStream("a")
	id, err := m.AddStream(context.Background(), fs)
	s.Require().NoError(err)
	s.Equal("a", id)
	s.True(m.IsConnected("a"))
	s.Same(fs, m.GetStream("a"))
	s.Len(m.GetStreams(), 1)

	_, err = m.AddStream(context.Background(), fs)
	s.ErrorIs(err, ErrWSExists)

	s.NoError(m.CloseStream("a"))
	s.ErrorIs(m.CloseStream("a"), ErrWSNotFound)
	s.False(m.IsConnected("a"))
	_, _, disconnects := fs.counts()
	s.Equal(1, disconnects)
}

func (s *ManagerTestSuite) TestMaxConn() {
	m := NewManager(WithCheckReConn(false), WithMaxConn(1))
	defer m.Shutdown()

	_, err := m.AddStream(context.Background(), newFakeStream("a"))
	s.Require().NoError(err)
	_, err = m.AddStream(context.Background(), newFakeStream("b"))
	s.ErrorIs(err, ErrMaxConnReached)
}

func (s *ManagerTestSuite) TestConnLimiter() {
	ctrl := gomock.NewController(s.T())
	l := mklimiter.NewMockLimiter(ctrl)
	gomock.InOrder(
		l.EXPECT().TryAcquire().Return(true),
		l.EXPECT().TryAcquire().Return(false),
	)

	m := NewManager(WithCheckReConn(false), WithConnLimiter(l))
	defer m.Shutdown()

	_, err := m.AddStream(context.Background(), newFakeStream("a"))
	s.Require().NoError(err)

	b := newFakeStream("b")
	_, err = m.AddStream(context.Background(), b)
	s.ErrorIs(err, ErrLimitExceed)
	connects, _, _ := b.counts()
	s.Equal(0, connects)
}

func (s *ManagerTestSuite) TestConnectError() {
	m := NewManager(WithCheckReConn(false))
	defer m.Shutdown()

	fs := newFakeStream("a")
	fs.connectErr = errors.New("refused")
	_, err := m.AddStream(context.Background(), fs)
	s.Error(err)
	s.Nil(m.GetStream("a"))
}

func (s *ManagerTestSuite) TestReconnect() {
	m := NewManager(WithCheckReConn(false))
	defer m.Shutdown()

	s.ErrorIs(m.Reconnect(context.Background(), "missing"), ErrWSNotFound)

	fs := newFakeStream("a")
	_, err := m.AddStream(context.Background(), fs)
	s.Require().NoError(err)
	s.NoError(m.Reconnect(context.Background(), "a"))
	_, reconnects, _ := fs.counts()
	s.Equal(1, reconnects)
}

func (s *ManagerTestSuite) TestRecycleAfterMaxDuration() {
	m := NewManager(
		WithMaxConnDuration(20*time.Millisecond),
		WithCheckInterval(10*time.Millisecond),
	)
	defer m.Shutdown()

	fs := newFakeStream("a")
	_, err := m.AddStream(context.Background(), fs)
	s.Require().NoError(err)

	s.Eventually(func() bool {
		_, reconnects, _ := fs.counts()
		return reconnects >= 1
	}, time.Second, 5*time.Millisecond)
	s.True(fs.IsConnected())
}

func (s *ManagerTestSuite) TestShutdown() {
	m := NewManager(WithCheckInterval(10 * time.Millisecond))

	a, b := newFakeStream("a"), newFakeStream("b")
	_, err := m.AddStream(context.Background(), a)
	s.Require().NoError(err)
	_, err = m.AddStream(context.Background(), b)
	s.Require().NoError(err)

	s.NoError(m.Shutdown())
	s.NoError(m.Shutdown())
	s.Empty(m.GetStreams())
	s.Equal(stream.Closed, a.State())
	s.Equal(stream.Closed, b.State())

	_, err = m.AddStream(context.Background(), newFakeStream("c"))
	s.ErrorIs(err, ErrShutdown)
}

func (s *ManagerTestSuite) TestAddStreamDoesNotHoldLockWhileConnecting() {
	m := NewManager(WithCheckReConn(false), WithMaxConn(2))
	defer m.Shutdown()

	existing := newFakeStream("a")
	_, err := m.AddStream(context.Background(), existing)
	s.Require().NoError(err)

	slow := newFakeStream("b")
	slow.block = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := m.AddStream(context.Background(), slow)
		done <- err
	}()
	s.Eventually(func() bool {
		m.mux.Lock()
		defer m.mux.Unlock()
		_, ok := m.dialing["b"]
		return ok
	}, time.Second, time.Millisecond)

	start := time.Now()
	s.True(m.IsConnected("a"))
	s.Nil(m.GetStream("b"))
	s.Len(m.GetStreams(), 1)
	s.Less(time.Since(start), 50*time.Millisecond)

	// 建连中的连接占用 ID 和连接数
	_, err = m.AddStream(context.Background(), newFakeStream("b"))
	s.ErrorIs(err, ErrWSExists)
	_, err = m.AddStream(context.Background(), newFakeStream("c"))
	s.ErrorIs(err, ErrMaxConnReached)

	close(slow.block)
	s.NoError(<-done)
	s.NotNil(m.GetStream("b"))
}

func (s *ManagerTestSuite) TestAddStreamReleasesSlotOnFailure() {
	m := NewManager(WithCheckReConn(false), WithMaxConn(1))
	defer m.Shutdown()

	bad := newFakeStream("a")
	bad.connectErr = errors.New("refused")
	_, err := m.AddStream(context.Background(), bad)
	s.Error(err)

	_, err = m.AddStream(context.Background(), newFakeStream("a"))
	s.NoError(err)
}

func (s *ManagerTestSuite) TestShutdownWhileConnecting() {
	m := NewManager(WithCheckReConn(false))

	slow := newFakeStream("a")
	slow.block = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := m.AddStream(context.Background(), slow)
		done <- err
	}()
	s.Eventually(func() bool {
		m.mux.Lock()
		defer m.mux.Unlock()
		return len(m.dialing) == 1
	}, time.Second, time.Millisecond)

	s.NoError(m.Shutdown())
	close(slow.block)
	s.ErrorIs(<-done, ErrShutdown)
	_, _, disconnects := slow.counts()
	s.Equal(1, disconnects)
}
