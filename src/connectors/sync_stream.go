package connectors

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"

	"tradeassistant/src/model"
)

const (
	reconnectBaseDelay = 2 * time.Second
	reconnectMaxDelay  = 60 * time.Second
	readDeadline       = 90 * time.Second
)

// SyncBatch is one push message from the remote ledger sync stream.
// Delivery is at-least-once and possibly out of order; every element
// carries a stable upstream id so the ledger can dedup.
type SyncBatch struct {
	Trades  []model.Trade           `json:"trades,omitempty"`
	Orders  []model.ConfirmedOrder  `json:"orders,omitempty"`
	Actions []model.CorporateAction `json:"actions,omitempty"`
}

// SyncStream subscribes to the remote ledger sync service over a
// websocket and forwards decoded batches to a channel.
type SyncStream struct {
	url    string
	log    *logger.Entry
	dialer *websocket.Dialer
}

func NewSyncStream(url string) *SyncStream {
	return &SyncStream{
		url: url,
		log: logger.WithField("connector", "SyncStream"),
		dialer: &websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
		},
	}
}

// Run connects and keeps reading until ctx is canceled, reconnecting with
// backoff on any transport error. Undecodable messages are logged and
// skipped, never fatal.
func (s *SyncStream) Run(ctx context.Context, out chan<- SyncBatch) error {
	delay := reconnectBaseDelay

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
		if err != nil {
			s.log.WithError(err).WithField("url", s.url).Warn("sync stream dial failed, will retry")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			if delay *= 2; delay > reconnectMaxDelay {
				delay = reconnectMaxDelay
			}
			continue
		}

		s.log.WithField("url", s.url).Info("sync stream connected")
		delay = reconnectBaseDelay

		if err := s.consume(ctx, conn, out); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.WithError(err).Warn("sync stream disconnected, will reconnect")
		}
	}
}

func (s *SyncStream) consume(ctx context.Context, conn *websocket.Conn, out chan<- SyncBatch) error {
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
			return err
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var batch SyncBatch
		if err := json.Unmarshal(msg, &batch); err != nil {
			s.log.WithError(err).Warn("undecodable sync message skipped")
			continue
		}

		if len(batch.Trades) == 0 && len(batch.Orders) == 0 && len(batch.Actions) == 0 {
			continue
		}

		select {
		case out <- batch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
