package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/siohaza/weaponsim/internal/network"
)

var ErrDisconnected = errors.New("server disconnected")

type Transport interface {
	Sender
	Service(timeout time.Duration) (*network.Event, error)
}

// Run ticks the session at the configured rate and pumps transport events
// between ticks until ctx is done or the server goes away.
func (s *Session) Run(ctx context.Context, transport Transport) error {
	interval := s.config.TickInterval()
	dt := interval.Seconds()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session context cancelled, exiting run loop")
			return ctx.Err()

		case <-ticker.C:
			s.Update(dt)
		}

		if err := s.handleNetworkEvents(transport); err != nil {
			return err
		}
	}
}

func (s *Session) handleNetworkEvents(transport Transport) error {
	for i := 0; i < 100; i++ {
		event, err := transport.Service(0)
		if err != nil {
			return fmt.Errorf("failed to service network: %w", err)
		}

		switch event.Type {
		case network.EventTypeNone:
			return nil

		case network.EventTypeDisconnect:
			s.HandleDisconnect()
			return ErrDisconnected

		case network.EventTypeReceive:
			if err := s.HandlePacket(event.Data); err != nil {
				s.logger.Warn("failed to handle packet", "error", err)
			}
		}
	}
	return nil
}
