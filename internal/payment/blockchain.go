package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"zazoom-be/internal/logger"
	"zazoom-be/internal/retry"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const DefaultFeedURL = "wss://ws.blockchain.info/inv"

type feedRequest struct {
	Op   string `json:"op"`
	Addr string `json:"addr,omitempty"`
}

type feedMessage struct {
	Op string       `json:"op"`
	X  *Transaction `json:"x"`
}

// BlockchainFeed subscribes to blockchain.info's unconfirmed transaction
// websocket. Dropped connections are redialled under policy; when the
// attempts run out the subscription ends with ErrConnectionFailed.
type BlockchainFeed struct {
	url    string
	dialer *websocket.Dialer
	policy retry.Policy
}

func NewBlockchainFeed(url string, policy retry.Policy) *BlockchainFeed {
	if url == "" {
		url = DefaultFeedURL
	}
	return &BlockchainFeed{
		url: url,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		policy: policy,
	}
}

func (f *BlockchainFeed) Subscribe(ctx context.Context, address string) (Subscription, error) {
	if address == "" {
		return nil, ErrInvalidConfig
	}

	ctx, cancel := context.WithCancel(ctx)
	conn, err := f.connect(ctx, address)
	if err != nil {
		cancel()
		return nil, err
	}

	sub := &wsSubscription{
		txs:    make(chan Transaction, 16),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go f.run(ctx, sub, address, conn)
	return sub, nil
}

func (f *BlockchainFeed) connect(ctx context.Context, address string) (*websocket.Conn, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "payment"),
		zap.String("method", "connect"),
		zap.String("url", f.url),
	)

	var conn *websocket.Conn
	attempt := 0
	err := f.policy.Do(ctx, func(ctx context.Context) error {
		attempt++
		c, _, err := f.dialer.DialContext(ctx, f.url, nil)
		if err != nil {
			log.Warn("feed dial failed", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		if err := c.WriteJSON(feedRequest{Op: "addr_sub", Addr: address}); err != nil {
			_ = c.Close()
			log.Warn("feed subscribe failed", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		conn = c
		return nil
	}, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Error("max retry attempts reached", zap.Int("attempts", attempt))
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	log.Info("feed connected")
	return conn, nil
}

func (f *BlockchainFeed) run(ctx context.Context, sub *wsSubscription, address string, conn *websocket.Conn) {
	log := logger.FromCtx(ctx).With(zap.String("layer", "payment"), zap.String("method", "run"))

	for {
		err := f.read(ctx, conn, sub)
		_ = conn.Close()

		if ctx.Err() != nil {
			sub.finish(nil)
			return
		}
		log.Warn("feed connection dropped, reconnecting", zap.Error(err))

		conn, err = f.connect(ctx, address)
		if err != nil {
			if ctx.Err() != nil {
				err = nil
			}
			sub.finish(err)
			return
		}
	}
}

func (f *BlockchainFeed) read(ctx context.Context, conn *websocket.Conn, sub *wsSubscription) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg feedMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.FromCtx(ctx).Debug("ignoring unreadable feed message", zap.Error(err))
			continue
		}
		if msg.Op != "utx" || msg.X == nil {
			continue
		}

		select {
		case sub.txs <- *msg.X:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

type wsSubscription struct {
	txs    chan Transaction
	done   chan struct{}
	cancel context.CancelFunc

	once sync.Once
	mu   sync.Mutex
	err  error
}

func (s *wsSubscription) Transactions() <-chan Transaction { return s.txs }
func (s *wsSubscription) Done() <-chan struct{}            { return s.done }

func (s *wsSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the feed and waits for its reader to exit.
func (s *wsSubscription) Close() {
	s.cancel()
	<-s.done
}

func (s *wsSubscription) finish(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		s.cancel()
		close(s.done)
	})
}
