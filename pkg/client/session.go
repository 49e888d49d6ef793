package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"strconv"
	"time"

	"github.com/Wa4h1h/go-tftp-loader/pkg/metrics"
	"github.com/Wa4h1h/go-tftp-loader/pkg/types"
	"github.com/Wa4h1h/go-tftp-loader/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/net/ipv4"
)

// Session owns one UDP socket and runs request/reply cycles against a
// single TFTP server. It is not safe for concurrent use.
type Session struct {
	conn     *net.UDPConn
	l        *zap.SugaredLogger
	metrics  *metrics.Collector
	server   netip.AddrPort
	binding  Binding
	lastRecv netip.AddrPort
	lastSent types.Packet
	buf      []byte
	timeout  time.Duration
	retries  int
	closed   bool
}

func NewSession(l *zap.SugaredLogger, cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("error while resolving %s: %w", addr, err)
	}

	server := unmap(raddr.AddrPort())

	network := "udp6"
	if server.Addr().Is4() {
		network = "udp4"
	}

	conn, err := net.ListenUDP(network, nil)
	if err != nil {
		return nil, fmt.Errorf("error while opening %s socket: %w", network, err)
	}

	if cfg.TOS != 0 && server.Addr().Is4() {
		if err := ipv4.NewConn(conn).SetTOS(cfg.TOS); err != nil {
			_ = conn.Close()

			return nil, fmt.Errorf("error while setting tos %#x: %w", cfg.TOS, err)
		}
	}

	m := cfg.Metrics
	if m == nil {
		m = metrics.NewCollector("")
	}

	s := &Session{
		conn:    conn,
		l:       l,
		metrics: m,
		server:  server,
		buf:     make([]byte, types.MaxDatagramSize),
		timeout: cfg.Timeout,
		retries: cfg.Retries,
	}

	l.Debugf("session %s -> %s", conn.LocalAddr(), server)

	return s, nil
}

func (s *Session) SetTimeout(timeout time.Duration) {
	s.timeout = timeout
}

func (s *Session) Timeout() time.Duration {
	return s.timeout
}

func (s *Session) ServerAddr() netip.AddrPort {
	return s.server
}

func (s *Session) LocalAddr() netip.AddrPort {
	return unmap(s.conn.LocalAddr().(*net.UDPAddr).AddrPort())
}

func (s *Session) Binding() Binding {
	return s.binding
}

// LastSent is the packet most recently put on the wire.
func (s *Session) LastSent() types.Packet {
	return s.lastSent
}

// Cycle sends p and blocks until a reply from an acceptable source has
// been decoded. On a receive timeout the same bytes are resent, at most
// Retries times. A peer ERROR packet comes back as a *types.Error.
func (s *Session) Cycle(ctx context.Context, p types.Packet) (types.Packet, error) {
	if s.closed {
		return nil, utils.ErrSessionClosed
	}

	b, err := p.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrPacketMarshall, err)
	}

	target := s.target()

	for try := 0; try <= s.retries; try++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if try > 0 {
			s.metrics.Retransmitted()
			s.l.Debugf("resending %s to %s, try %d/%d", p.Op(), target, try, s.retries)
		}

		if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
			return nil, fmt.Errorf("%w: %w", utils.ErrCanNotSetWriteTimeout, err)
		}

		if _, err := s.conn.WriteToUDPAddrPort(b, target); err != nil {
			return nil, fmt.Errorf("%w: %s to %s: %w", utils.ErrPacketCanNotBeSent, p.Op(), target, err)
		}

		s.lastSent = p
		s.metrics.PacketSent(p.Op().String())

		datagram, from, err := s.receive(ctx)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				s.l.Debugf("no reply to %s from %s within %s", p.Op(), target, s.timeout)

				continue
			}

			return nil, fmt.Errorf("error while waiting reply to %s: %w", p.Op(), err)
		}

		s.lastRecv = from

		reply, err := types.Parse(datagram)
		if err != nil {
			return nil, err
		}

		s.metrics.PacketReceived(reply.Op().String())

		return reply, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return nil, fmt.Errorf("%w: %s to %s unanswered after %d tries", utils.ErrMaxRetries, p.Op(), target, s.retries+1)
}

// Send puts p on the wire once without waiting for a reply.
func (s *Session) Send(p types.Packet) error {
	if s.closed {
		return utils.ErrSessionClosed
	}

	b, err := p.MarshalBinary()
	if err != nil {
		return fmt.Errorf("%w: %w", utils.ErrPacketMarshall, err)
	}

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
		return fmt.Errorf("%w: %w", utils.ErrCanNotSetWriteTimeout, err)
	}

	if _, err := s.conn.WriteToUDPAddrPort(b, s.target()); err != nil {
		return fmt.Errorf("%w: %s to %s: %w", utils.ErrPacketCanNotBeSent, p.Op(), s.target(), err)
	}

	s.lastSent = p
	s.metrics.PacketSent(p.Op().String())

	return nil
}

// Connect pins the session to the source of the last reply, or to the
// server address when nothing has been received yet.
func (s *Session) Connect() {
	peer := s.lastRecv
	if !peer.IsValid() {
		peer = s.server
	}

	s.binding = boundTo(peer)
	s.l.Debugf("session %s", s.binding)
}

func (s *Session) Disconnect() {
	s.binding = Binding{}
	s.lastRecv = netip.AddrPort{}
}

func (s *Session) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("error while closing session socket: %w", err)
	}

	return nil
}

func (s *Session) target() netip.AddrPort {
	if peer, ok := s.binding.Peer(); ok {
		return peer
	}

	return s.server
}

// accepts reports whether a datagram from src belongs to this exchange.
// Once bound the full address must match; before that only the IP, since
// the server answers from a fresh port.
func (s *Session) accepts(src netip.AddrPort) bool {
	if peer, ok := s.binding.Peer(); ok {
		return src == peer
	}

	return src.Addr() == s.server.Addr()
}

func (s *Session) receive(ctx context.Context) ([]byte, netip.AddrPort, error) {
	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return nil, netip.AddrPort{}, fmt.Errorf("%w: %w", utils.ErrCanNotSetReadTimeout, err)
	}

	for {
		n, src, err := s.conn.ReadFromUDPAddrPort(s.buf)
		if err != nil {
			return nil, netip.AddrPort{}, err
		}

		src = unmap(src)

		if !s.accepts(src) {
			s.metrics.Ignored()
			s.l.Debugf("ignoring %d bytes from %s, %s", n, src, s.binding)

			continue
		}

		datagram := make([]byte, n)
		copy(datagram, s.buf[:n])

		return datagram, src, nil
	}
}

func unmap(ap netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}
