package log

import (
	"net"
	"sync"
	"time"

	"github.com/panjf2000/gnet/v2"
)

// maxDatagramPayload is the UDP payload ceiling; a formatted line longer
// than this is truncated rather than fragmented or rejected, per §4.7
// and §6.
const maxDatagramPayload = 65535

// gnetClient is a process-wide gnet.Client shared by every datagram
// sink. gnet's event-loop-driven Conn.AsyncWrite gives the sink exactly
// the "issues an asynchronous send-to" semantics §4.7 asks for, without
// each sink needing its own OS thread blocked in a send syscall.
var (
	gnetClientOnce sync.Once
	gnetClient     *gnet.Client
	gnetClientErr  error
)

// datagramEventHandler satisfies gnet's EventHandler with the defaults;
// this sink only ever writes, so OnTraffic et al. are not meaningful.
type datagramEventHandler struct {
	gnet.BuiltinEventEngine
}

func sharedGnetClient() (*gnet.Client, error) {
	gnetClientOnce.Do(func() {
		cli, err := gnet.NewClient(&datagramEventHandler{})
		if err != nil {
			gnetClientErr = err
			return
		}
		if err := cli.Start(); err != nil {
			gnetClientErr = err
			return
		}
		gnetClient = cli
	})
	return gnetClient, gnetClientErr
}

// DatagramSink is the UDP datagram socket sink (§4.7). It holds one
// endpoint, resolved lazily and re-resolved on demand via
// CheckConnection.
type DatagramSink struct {
	filters *FilterChain
	format  *FormatProgram
	diag    *diagnostics

	network string // "udp4" or "udp6"
	address string

	mu   sync.Mutex
	conn gnet.Conn

	timeout time.Duration
}

// NewDatagramSink registers a UDP destination. v6 selects an IPv6
// socket; otherwise the socket is IPv4. The socket is not opened until
// the first Handle call or an explicit CheckConnection.
func NewDatagramSink(host, port string, v6 bool, diag *diagnostics, format *FormatProgram) *DatagramSink {
	network := "udp4"
	if v6 {
		network = "udp6"
	}
	return &DatagramSink{
		filters: NewFilterChain(),
		format:  format,
		diag:    diag,
		network: network,
		address: net.JoinHostPort(host, port),
	}
}

func (s *DatagramSink) Filters() *FilterChain { return s.filters }

// SetTimeout stores d as the sink's send timeout. Handle does not apply
// it: each AsyncWrite is issued without a deadline.
func (s *DatagramSink) SetTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeout = d
}

// ConnectionIsOpen reports whether the socket is bound and open. For a
// datagram sink this means a live gnet.Conn exists, per §4.7.
func (s *DatagramSink) ConnectionIsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// CheckConnection re-resolves and re-opens the socket if it is not
// already open. Resolve/open failures are reported and leave the sink
// unopened; records are dropped until a later call succeeds.
func (s *DatagramSink) CheckConnection() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureOpenLocked()
}

func (s *DatagramSink) ensureOpenLocked() error {
	if s.conn != nil {
		return nil
	}
	cli, err := sharedGnetClient()
	if err != nil {
		s.diag.Report("datagram client start %s: %v", s.address, err)
		return err
	}
	conn, err := cli.Dial(s.network, s.address)
	if err != nil {
		s.diag.Report("datagram dial %s: %v", s.address, err)
		return fmtErrorf("dial %s: %w", s.address, err)
	}
	s.conn = conn
	return nil
}

// Handle implements Sink: for each accepted record, render into a
// scratch buffer, truncate to maxDatagramPayload, and issue an
// asynchronous send. Send failures are reported and dropped, never
// propagated, per §7.
func (s *DatagramSink) Handle(batch []Record) {
	s.filters.Lock()
	defer s.filters.Unlock()

	s.mu.Lock()
	if err := s.ensureOpenLocked(); err != nil {
		s.mu.Unlock()
		return
	}
	conn := s.conn
	s.mu.Unlock()

	var scratch []byte
	for i := range batch {
		rec := &batch[i]
		if !s.filters.Accepts(rec) {
			continue
		}
		scratch = s.format.Render(scratch[:0], rec)
		payload := scratch
		if len(payload) > maxDatagramPayload {
			payload = payload[:maxDatagramPayload]
		}
		sendCopy := append([]byte(nil), payload...)

		if err := conn.AsyncWrite(sendCopy, func(c gnet.Conn, err error) error {
			if err != nil {
				s.diag.Report("datagram send %s: %v", s.address, err)
			}
			return nil
		}); err != nil {
			s.diag.Report("datagram send %s: %v", s.address, err)
		}
	}
}

// Close releases the sink's connection. Safe to call more than once;
// the shared gnet.Client itself outlives any one sink.
func (s *DatagramSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}
