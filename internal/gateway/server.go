package gateway

import (
	"context"
	"errors"
	"log"
	"net"
	"time"

	"titancore/internal/protocol"
)

// outboxCapacity bounds each connection's write queue. A connection that
// can't drain its queue this deep is treated as stalled by broadcast sends.
const outboxCapacity = 32

const readBufferSize = 1500

// ErrCloseConnection is returned by a Handler to request that the gateway
// tear the connection down after any reply it already queued has been
// sent — e.g. after too many failed logon proof attempts. It is the one
// handler-originated error the read loop treats as fatal; every other
// handler error is logged and the connection stays open.
var ErrCloseConnection = errors.New("handler requested connection close")

// Handler processes one decoded frame for a connection and replies (if
// any) through ctx. Implemented by the auth handler state machine.
type Handler interface {
	Handle(ctx *Context, frame protocol.Frame) error
}

// ConnectionCloser is an optional Handler extension: if implemented, it is
// notified once a connection has fully torn down so any per-connection
// state the handler keeps (e.g. logon session state) can be released.
type ConnectionCloser interface {
	Closed(id ConnectionID)
}

// Server accepts TCP connections, decodes opcode-framed packets off each
// one, and dispatches them to a Handler. Every connection gets its own
// read task (this goroutine) and write task, joined only by a bounded
// outbound channel.
type Server struct {
	handler  Handler
	registry *ConnectionRegistry
	limiter  *acceptLimiter
}

// NewServer builds a Server around handler. connRate/connBurst configure
// the per-IP accept-rate limit (new connections per second / burst).
func NewServer(handler Handler, connRate float64, connBurst int) *Server {
	return &Server{
		handler:  handler,
		registry: NewConnectionRegistry(),
		limiter:  newAcceptLimiter(connRate, connBurst),
	}
}

// Registry exposes the server's connection registry, e.g. for admin
// reporting endpoints.
func (s *Server) Registry() *ConnectionRegistry {
	return s.registry
}

// Run listens on addr and serves connections until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	log.Printf("auth gateway listening on %s", addr)

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				log.Printf("accept error: %v", err)
				continue
			}
		}

		if !s.limiter.Allow(conn.RemoteAddr()) {
			conn.Close()
			continue
		}

		go s.handleConnection(ctx, conn)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	id := NextConnectionID()
	addr := conn.RemoteAddr()
	outbox := make(chan []byte, outboxCapacity)

	s.registry.Register(id, addr, outbox)

	connCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		s.writeLoop(connCtx, conn, outbox)
		close(done)
	}()

	s.readLoop(ctx, conn, id, addr, outbox)

	s.registry.Unregister(id)
	cancel()
	<-done
	conn.Close()

	if closer, ok := s.handler.(ConnectionCloser); ok {
		closer.Closed(id)
	}
}

func (s *Server) readLoop(ctx context.Context, conn net.Conn, id ConnectionID, addr net.Addr, outbox chan []byte) {
	buf := make([]byte, readBufferSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}

		frame, err := protocol.DecodeFrame(buf[:n])
		if err != nil {
			log.Printf("connection %d: decode error: %v", id, err)
			continue
		}

		connCtx := NewContext(id, addr, outbox, s.registry)
		if err := s.handler.Handle(connCtx, frame); err != nil {
			if errors.Is(err, ErrCloseConnection) {
				log.Printf("connection %d: closing: %v", id, err)
				return
			}
			log.Printf("connection %d: handler error: %v", id, err)
		}
	}
}

func (s *Server) writeLoop(ctx context.Context, conn net.Conn, outbox <-chan []byte) {
	write := func(bytes []byte) bool {
		conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
		_, err := conn.Write(bytes)
		return err == nil
	}

	for {
		// Drain whatever is already queued before honoring cancellation,
		// so a reply queued just before the handler asked to close the
		// connection still goes out.
		select {
		case bytes := <-outbox:
			if !write(bytes) {
				return
			}
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return
		case bytes := <-outbox:
			if !write(bytes) {
				return
			}
		}
	}
}
