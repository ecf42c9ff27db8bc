package payment

import (
	"context"
	"errors"
	"sync"
	"time"

	"zazoom-be/internal/logger"
	"zazoom-be/internal/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultTimeout       = 30 * time.Minute
	DefaultRefreshPeriod = time.Minute
)

// OrderPayer records a confirmed payment. It reports false when the order
// had already left pending.
type OrderPayer interface {
	MarkPaid(ctx context.Context, orderID, txHash string) (bool, error)
}

type DriverNotifier interface {
	NotifyDriver(ctx context.Context, orderID string) error
}

type Config struct {
	Wallet        string
	Timeout       time.Duration
	RefreshPeriod time.Duration
}

// Monitor owns every active payment session. One order has at most one
// session at a time.
type Monitor struct {
	cfg      Config
	feed     Feed
	prices   PriceFeed
	orders   OrderPayer
	notifier DriverNotifier
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

func NewMonitor(cfg Config, feed Feed, prices PriceFeed, orders OrderPayer, notifier DriverNotifier) (*Monitor, error) {
	if cfg.Wallet == "" {
		return nil, ErrInvalidConfig
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RefreshPeriod <= 0 {
		cfg.RefreshPeriod = DefaultRefreshPeriod
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		cfg:      cfg,
		feed:     feed,
		prices:   prices,
		orders:   orders,
		notifier: notifier,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}, nil
}

// Quote prices fiat in BTC at the current rate.
func (m *Monitor) Quote(ctx context.Context, fiat decimal.Decimal) (Quote, error) {
	if !fiat.IsPositive() {
		return Quote{}, ErrInvalidAmount
	}
	rate, err := m.prices.BTCPrice(ctx)
	if err != nil {
		return Quote{}, err
	}
	return NewQuote(m.cfg.Wallet, fiat, rate, m.now())
}

// Watch starts monitoring the feed for a payment of fiat on orderID. The
// session outlives ctx; it ends on match, timeout, feed failure, Stop or
// Close.
func (m *Monitor) Watch(ctx context.Context, orderID string, fiat decimal.Decimal) (*Session, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "payment"),
		zap.String("method", "Watch"),
		zap.String("order_id", orderID),
	)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrMonitorClosed
	}
	if existing, ok := m.sessions[orderID]; ok && !existing.ended() {
		m.mu.Unlock()
		return existing, ErrAlreadyWatching
	}
	m.prune()
	sctx, cancel := context.WithCancel(m.ctx)
	s := newSession(orderID, fiat, cancel, m.now())
	m.sessions[orderID] = s
	m.wg.Add(1)
	m.mu.Unlock()

	quote, err := m.Quote(ctx, fiat)
	if err != nil {
		log.Error("failed to quote payment", zap.Error(err))
		m.abort(s, err)
		return nil, err
	}
	s.setQuote(quote)

	sub, err := m.feed.Subscribe(logger.WithRequestID(sctx, logger.RequestIDFrom(ctx)), m.cfg.Wallet)
	if err != nil {
		log.Error("failed to subscribe to transaction feed", zap.Error(err))
		m.abort(s, err)
		return nil, err
	}

	s.setState(StateProcessing)
	metrics.ActivePaymentSessions.Inc()
	log.Info("monitoring payment",
		zap.Int64("satoshis", quote.Satoshis),
		zap.String("btc", quote.BTC),
	)

	go m.run(sctx, s, sub)
	return s, nil
}

// Session returns the active or most recently ended session of orderID.
func (m *Monitor) Session(orderID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[orderID]
	return s, ok
}

// Stop ends the session of orderID with ErrStopped.
func (m *Monitor) Stop(orderID string) error {
	s, ok := m.Session(orderID)
	if !ok {
		return ErrSessionNotFound
	}
	s.cancel()
	<-s.Done()
	return nil
}

// Close stops every session and waits for them to release their feeds.
func (m *Monitor) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
}

func (m *Monitor) run(ctx context.Context, s *Session, sub Subscription) {
	defer m.wg.Done()
	defer metrics.ActivePaymentSessions.Dec()

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "payment"),
		zap.String("order_id", s.orderID),
	)

	timeout := time.NewTimer(m.cfg.Timeout)
	defer timeout.Stop()
	refresh := time.NewTicker(m.cfg.RefreshPeriod)
	defer refresh.Stop()

	end := func(err error) {
		sub.Close()
		m.finish(s, "", err)
	}

	for {
		select {
		case <-ctx.Done():
			end(ErrStopped)
			return

		case <-timeout.C:
			log.Warn("payment monitoring timed out")
			end(ErrTimeout)
			return

		case <-sub.Done():
			err := sub.Err()
			if ctx.Err() != nil {
				err = ErrStopped
			} else if err == nil {
				err = ErrSubscriptionEnded
			}
			log.Error("transaction feed ended", zap.Error(err))
			end(err)
			return

		case <-refresh.C:
			m.refreshQuote(ctx, s)

		case tx := <-sub.Transactions():
			received := tx.PaidTo(m.cfg.Wallet)
			expected := s.Status().Quote.Satoshis
			if received == 0 || received != expected {
				log.Debug("transaction does not match",
					zap.String("tx_hash", tx.Hash),
					zap.Int64("received", received),
					zap.Int64("expected", expected),
				)
				continue
			}

			sub.Close()
			m.settle(ctx, s, tx)
			return
		}
	}
}

// settle records the payment and then notifies the driver. Notification
// failures never fail the payment.
func (m *Monitor) settle(ctx context.Context, s *Session, tx Transaction) {
	ctx = context.WithoutCancel(ctx)
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "payment"),
		zap.String("method", "settle"),
		zap.String("order_id", s.orderID),
		zap.String("tx_hash", tx.Hash),
	)
	log.Info("payment received")

	transitioned, err := m.orders.MarkPaid(ctx, s.orderID, tx.Hash)
	if err != nil {
		log.Error("failed to update order status", zap.Error(err))
		m.finish(s, "", err)
		return
	}

	if !transitioned {
		log.Info("order already paid, driver not re-notified")
	} else if m.notifier != nil {
		if err := m.notifier.NotifyDriver(ctx, s.orderID); err != nil {
			log.Error("failed to notify driver", zap.Error(err))
		} else {
			log.Info("driver notified")
		}
	}

	m.finish(s, tx.Hash, nil)
}

func (m *Monitor) refreshQuote(ctx context.Context, s *Session) {
	quote, err := m.Quote(ctx, s.fiat)
	if err != nil {
		logger.FromCtx(ctx).Warn("price refresh failed, keeping previous quote",
			zap.String("order_id", s.orderID),
			zap.Error(err),
		)
		s.setPriceError(err)
		return
	}
	s.setQuote(quote)
}

func (m *Monitor) finish(s *Session, txHash string, err error) {
	s.complete(txHash, err)
	result := string(StateCompleted)
	if err != nil {
		result = string(StateFailed)
		if errors.Is(err, ErrTimeout) {
			result = "timeout"
		}
	}
	metrics.PaymentSessions.WithLabelValues(result).Inc()
}

func (m *Monitor) abort(s *Session, err error) {
	s.complete("", err)
	m.wg.Done()
}

// prune forgets sessions that ended more than one timeout window ago.
// Callers hold m.mu.
func (m *Monitor) prune() {
	cutoff := time.Now().Add(-m.cfg.Timeout)
	for id, s := range m.sessions {
		if s.endedBefore(cutoff) {
			delete(m.sessions, id)
		}
	}
}

// Session is one order's payment watch.
type Session struct {
	orderID   string
	fiat      decimal.Decimal
	cancel    context.CancelFunc
	startedAt time.Time
	done      chan struct{}

	mu       sync.Mutex
	state    State
	quote    Quote
	txHash   string
	err      error
	priceErr error
	over     bool
	endedAt  time.Time
}

func newSession(orderID string, fiat decimal.Decimal, cancel context.CancelFunc, at time.Time) *Session {
	return &Session{
		orderID:   orderID,
		fiat:      fiat,
		cancel:    cancel,
		startedAt: at,
		done:      make(chan struct{}),
		state:     StatePending,
	}
}

func (s *Session) OrderID() string       { return s.orderID }
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session ends and returns the matched transaction
// hash or the reason it failed.
func (s *Session) Wait(ctx context.Context) (string, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txHash, s.err
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		OrderID:   s.orderID,
		State:     s.state,
		Quote:     s.quote,
		TxHash:    s.txHash,
		StartedAt: s.startedAt,
	}
	if s.err != nil {
		st.Error = s.err.Error()
	}
	if s.priceErr != nil {
		st.PriceError = s.priceErr.Error()
	}
	return st
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.over {
		s.state = st
	}
}

func (s *Session) setQuote(q Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quote = q
	s.priceErr = nil
}

func (s *Session) setPriceError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.priceErr = err
}

func (s *Session) complete(txHash string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.over {
		return
	}
	s.over = true
	s.endedAt = time.Now()
	s.txHash = txHash
	s.err = err
	if err != nil {
		s.state = StateFailed
	} else {
		s.state = StateCompleted
	}
	s.cancel()
	close(s.done)
}

func (s *Session) ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.over
}

func (s *Session) endedBefore(t time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.over && s.endedAt.Before(t)
}
