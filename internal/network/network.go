package network

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codecat/go-enet"
)

var ErrNotConnected = errors.New("not connected")

// Client is a single-peer ENet host that talks to one game server.
type Client struct {
	host      enet.Host
	peer      enet.Peer
	connected bool
	logger    *slog.Logger
}

type Event struct {
	Type      EventType
	Data      []byte
	ChannelID uint8
}

type EventType int

const (
	EventTypeNone EventType = iota
	EventTypeConnect
	EventTypeDisconnect
	EventTypeReceive
)

func NewClient(logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	host, err := enet.NewHost(nil, 1, 1, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create ENet host: %w", err)
	}

	if err := host.CompressWithRangeCoder(); err != nil {
		host.Destroy()
		return nil, fmt.Errorf("failed to setup range coder compression: %w", err)
	}

	return &Client{
		host:   host,
		logger: logger,
	}, nil
}

// Connect starts the handshake and waits up to timeout for the server to
// accept it.
func (c *Client) Connect(hostname string, port int, version uint32, timeout time.Duration) error {
	if c.peer != nil {
		return fmt.Errorf("already connected")
	}

	address := enet.NewAddress(hostname, uint16(port))
	peer, err := c.host.Connect(address, 1, version)
	if err != nil {
		return fmt.Errorf("failed to connect to %s:%d: %w", hostname, port, err)
	}
	c.peer = peer

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		event, err := c.Service(50 * time.Millisecond)
		if err != nil {
			return err
		}
		switch event.Type {
		case EventTypeConnect:
			c.logger.Info("connected", "host", hostname, "port", port)
			return nil
		case EventTypeDisconnect:
			return fmt.Errorf("server %s:%d refused connection", hostname, port)
		}
	}

	c.peer.DisconnectNow(0)
	c.peer = nil
	return fmt.Errorf("timed out connecting to %s:%d", hostname, port)
}

func (c *Client) Service(timeout time.Duration) (*Event, error) {
	if c.host == nil {
		return nil, fmt.Errorf("client closed")
	}

	timeoutMs := uint32(timeout.Milliseconds())
	enetEvent := c.host.Service(timeoutMs)

	if enetEvent == nil {
		return &Event{Type: EventTypeNone}, nil
	}

	event := &Event{}

	switch enetEvent.GetType() {
	case enet.EventConnect:
		event.Type = EventTypeConnect
		c.connected = true

	case enet.EventDisconnect:
		event.Type = EventTypeDisconnect
		c.connected = false
		c.peer = nil
		c.logger.Debug("server disconnected")

	case enet.EventReceive:
		event.Type = EventTypeReceive
		packet := enetEvent.GetPacket()
		if packet != nil {
			event.Data = packet.GetData()
			event.ChannelID = enetEvent.GetChannelID()
			packet.Destroy()
		}

	default:
		event.Type = EventTypeNone
	}

	return event, nil
}

func (c *Client) SendPacket(data []byte, reliable bool) error {
	if c.peer == nil || !c.connected {
		return ErrNotConnected
	}

	flags := enet.PacketFlagUnsequenced
	if reliable {
		flags = enet.PacketFlagReliable
	}

	packet, err := enet.NewPacket(data, flags)
	if err != nil {
		return fmt.Errorf("failed to create packet: %w", err)
	}

	if err := c.peer.SendPacket(packet, 0); err != nil {
		return fmt.Errorf("failed to send packet: %w", err)
	}

	return nil
}

func (c *Client) Disconnect() {
	if c.peer == nil {
		return
	}

	if c.connected {
		c.peer.Disconnect(0)
		// give the disconnect a chance to reach the server
		c.host.Service(100)
	} else {
		c.peer.DisconnectNow(0)
	}
	c.peer = nil
	c.connected = false
}

func (c *Client) Close() {
	c.Disconnect()
	if c.host != nil {
		c.host.Destroy()
		c.host = nil
	}
}
