// Package tftptest runs a scripted, write-only TFTP server on loopback so
// upload clients can be exercised against lost packets, peer errors and
// stray datagrams.
package tftptest

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/Wa4h1h/go-tftp-loader/pkg/types"
	"go.uber.org/zap"
)

// Behavior scripts how the server answers. The zero value is a well
// behaved server that echoes the requested blksize in an OACK.
type Behavior struct {
	// Reject answers the WRQ with this error.
	Reject *types.Error

	// IgnoreOptions answers the WRQ with ACK 0 even when options were sent.
	IgnoreOptions bool

	// BlockSize replaces the blksize value echoed in the OACK.
	BlockSize int

	// OmitBlockSize sends an OACK without the blksize option.
	OmitBlockSize bool

	// UnsolicitedOAck answers a WRQ without options with an OACK.
	UnsolicitedOAck bool

	// DropRequests is the number of WRQs ignored before one is served.
	DropRequests int

	// Drop holds, per block number, how many copies of that DATA block are
	// swallowed without an ACK.
	Drop map[uint16]int

	// AckAs acknowledges a DATA block with another block number.
	AckAs map[uint16]uint16

	// FailAt answers a DATA block with an error instead of an ACK.
	FailAt map[uint16]*types.Error

	// Stray sends a bogus ACK from the well known port before every DATA
	// acknowledgement.
	Stray bool
}

type Block struct {
	Num  uint16
	Size int
}

// Upload is what the server saw of one WRQ.
type Upload struct {
	Filename     string
	Mode         types.Mode
	Options      types.Options
	Client       netip.AddrPort
	TransferAddr netip.AddrPort
	BlockSize    int
	Blocks       []Block
	Data         []byte
	Complete     bool
	Aborted      *types.Error
}

type Server struct {
	l        *zap.SugaredLogger
	conn     *net.UDPConn
	behavior Behavior
	timeout  time.Duration
	numTries int

	mu       sync.Mutex
	uploads  []*Upload
	conns    map[*net.UDPConn]struct{}
	requests int
	closed   bool
	wg       sync.WaitGroup
}

func NewServer(l *zap.SugaredLogger, behavior Behavior) (*Server, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		return nil, fmt.Errorf("error while starting the udp server: %w", err)
	}

	return &Server{
		l:        l,
		conn:     conn,
		behavior: behavior,
		timeout:  time.Second,
		numTries: 5,
		conns:    make(map[*net.UDPConn]struct{}),
	}, nil
}

func (s *Server) Addr() netip.AddrPort {
	return localAddr(s.conn)
}

func (s *Server) Host() string {
	return s.Addr().Addr().String()
}

func (s *Server) Port() int {
	return int(s.Addr().Port())
}

// Requests counts WRQs received on the well known port, dropped ones included.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.requests
}

// Uploads returns copies of the uploads seen so far.
func (s *Server) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Upload, 0, len(s.uploads))
	for _, up := range s.uploads {
		cp := *up
		cp.Blocks = append([]Block(nil), up.Blocks...)
		cp.Data = append([]byte(nil), up.Data...)
		out = append(out, cp)
	}

	return out
}

func (s *Server) ListenAndServe() error {
	datagram := make([]byte, types.MaxDatagramSize)

	for {
		n, addr, err := s.conn.ReadFromUDPAddrPort(datagram)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}

			return err
		}

		s.mu.Lock()
		s.requests++
		drop := s.requests <= s.behavior.DropRequests
		s.mu.Unlock()

		if drop {
			s.l.Debugf("dropping request from %s", addr)

			continue
		}

		req := make([]byte, n)
		copy(req, datagram[:n])

		s.wg.Add(1)

		go s.handlePacket(addr, req)
	}
}

func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	err := s.conn.Close()
	s.wg.Wait()

	if err != nil {
		return fmt.Errorf("error while closing connection: %w", err)
	}

	return nil
}

func (s *Server) handlePacket(client netip.AddrPort, datagram []byte) {
	defer s.wg.Done()

	p, err := types.Parse(datagram)
	req, ok := p.(*types.Request)

	if err != nil || !ok || req.Opcode != types.OpCodeWRQ {
		s.l.Errorf("error while reading request from %s: %v", client, err)
		s.send(s.conn, client, types.NewError(types.ErrIllegalTftpOp, ""))

		return
	}

	conn, err := s.transferConn()
	if err != nil {
		s.l.Errorf("error while opening transfer socket: %s", err.Error())

		return
	}

	defer s.release(conn)

	up := &Upload{
		Filename:     req.Filename,
		Mode:         req.Mode,
		Options:      req.Options,
		Client:       client,
		TransferAddr: localAddr(conn),
		BlockSize:    types.DefaultBlockSize,
	}

	s.mu.Lock()
	s.uploads = append(s.uploads, up)
	s.mu.Unlock()

	if s.behavior.Reject != nil {
		s.send(conn, client, s.behavior.Reject)

		return
	}

	first := s.acknowledgeWrq(up, req)
	s.send(conn, client, first)

	if err := s.receive(conn, up, first); err != nil {
		s.l.Debugf("upload of %s ended: %s", up.Filename, err.Error())
	}
}

// acknowledgeWrq picks the first reply: OACK when blksize was proposed and
// options are honoured, ACK 0 otherwise.
func (s *Server) acknowledgeWrq(up *Upload, req *types.Request) types.Packet {
	if len(req.Options) == 0 && s.behavior.UnsolicitedOAck {
		return types.NewOAck(types.Options{types.NewOption(types.OptBlockSize, types.DefaultBlockSize)})
	}

	size, ok, err := req.Options.Int(types.OptBlockSize)
	if !ok || err != nil || s.behavior.IgnoreOptions {
		return types.NewAck(0)
	}

	if s.behavior.OmitBlockSize {
		return types.NewOAck(types.Options{})
	}

	if s.behavior.BlockSize != 0 {
		size = s.behavior.BlockSize
	}

	s.mu.Lock()
	up.BlockSize = size
	s.mu.Unlock()

	return types.NewOAck(types.Options{types.NewOption(types.OptBlockSize, size)})
}

// receive collects DATA blocks until a short one, resending the last
// reply when the client goes quiet.
func (s *Server) receive(conn *net.UDPConn, up *Upload, lastReply types.Packet) error {
	datagram := make([]byte, types.MaxDatagramSize)
	expected := uint16(1)

	for tries := s.numTries; tries > 0; {
		if err := conn.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
			return fmt.Errorf("error while setting read timeout: %w", err)
		}

		n, src, err := conn.ReadFromUDPAddrPort(datagram)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				tries--
				s.send(conn, up.Client, lastReply)

				continue
			}

			return err
		}

		if src != up.Client {
			s.send(conn, src, types.NewError(types.ErrUnknownTransferId, ""))

			continue
		}

		p, err := types.Parse(datagram[:n])
		if err != nil {
			var tftpErr *types.Error
			if errors.As(err, &tftpErr) {
				s.mu.Lock()
				up.Aborted = tftpErr
				s.mu.Unlock()

				return tftpErr
			}

			continue
		}

		data, ok := p.(*types.Data)
		if !ok {
			continue
		}

		if data.BlockNum == expected-1 {
			s.send(conn, up.Client, lastReply)

			continue
		}

		if data.BlockNum != expected || s.swallow(expected) {
			continue
		}

		s.mu.Lock()
		up.Blocks = append(up.Blocks, Block{Num: data.BlockNum, Size: len(data.Payload)})
		up.Data = append(up.Data, data.Payload...)
		last := len(data.Payload) < up.BlockSize
		up.Complete = last
		s.mu.Unlock()

		if e, ok := s.behavior.FailAt[expected]; ok {
			s.send(conn, up.Client, e)

			return e
		}

		ackNum := expected
		if v, ok := s.behavior.AckAs[expected]; ok {
			ackNum = v
		}

		if s.behavior.Stray {
			s.send(s.conn, up.Client, types.NewAck(ackNum+100))
		}

		lastReply = types.NewAck(ackNum)
		s.send(conn, up.Client, lastReply)

		if last {
			return nil
		}

		expected++
		tries = s.numTries
	}

	return errors.New("client went quiet")
}

func (s *Server) swallow(blockNum uint16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.behavior.Drop[blockNum] > 0 {
		s.behavior.Drop[blockNum]--

		return true
	}

	return false
}

func (s *Server) transferConn() (*net.UDPConn, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		_ = conn.Close()

		return nil, net.ErrClosed
	}

	s.conns[conn] = struct{}{}

	return conn, nil
}

func (s *Server) release(conn *net.UDPConn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()

	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.l.Errorf("error while closing transfer socket: %s", err.Error())
	}
}

func localAddr(conn *net.UDPConn) netip.AddrPort {
	ap := conn.LocalAddr().(*net.UDPAddr).AddrPort()

	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}

func (s *Server) send(conn *net.UDPConn, to netip.AddrPort, p types.Packet) {
	b, err := p.MarshalBinary()
	if err != nil {
		s.l.Errorf("error while marshalling %s: %s", p.Op(), err.Error())

		return
	}

	if _, err := conn.WriteToUDPAddrPort(b, to); err != nil {
		s.l.Debugf("error while writing %s to %s: %s", p.Op(), to, err.Error())
	}
}
