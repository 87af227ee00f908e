package linectl

import (
	"bufio"
	"errors"
	"io"
	"log"
	"net"
	"strings"
	"sync"

	"github.com/CodedInternet/rescuebot/comms"
	"github.com/google/uuid"
)

var ErrServerClosed = errors.New("linectl: server closed")

// Server handles the persistent line protocol used by remote controllers.
// Each line carries one command and is acknowledged with OK.
type Server struct {
	Addr string
	// MaxLineLength bounds one command line; longer lines are acknowledged
	// and discarded.
	MaxLineLength int
	conductor     *comms.Conductor

	listener          net.Listener
	activeConnections map[string]net.Conn
	connectionsMutex  sync.Mutex
	stopChan          chan struct{}
	wg                sync.WaitGroup
}

func NewServer(addr string, conductor *comms.Conductor) *Server {
	return &Server{
		Addr:              addr,
		MaxLineLength:     256,
		conductor:         conductor,
		activeConnections: make(map[string]net.Conn),
		stopChan:          make(chan struct{}),
	}
}

func (s *Server) ListenAndServe() error {
	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve accepts connections on listener until Close is called.
func (s *Server) Serve(listener net.Listener) error {
	s.connectionsMutex.Lock()
	select {
	case <-s.stopChan:
		s.connectionsMutex.Unlock()
		listener.Close()
		return ErrServerClosed
	default:
	}
	s.listener = listener
	s.connectionsMutex.Unlock()

	log.Printf("Line protocol listening on %s", listener.Addr())

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.stopChan:
				return ErrServerClosed
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				log.Printf("Failed to accept connection: %v", err)
				continue
			}
			return err
		}

		session := uuid.NewString()
		if !s.track(session, conn) {
			conn.Close()
			return ErrServerClosed
		}

		s.wg.Add(1)
		go s.handleConnection(session, conn)
	}
}

// Close stops accepting, disconnects every client and waits for their
// handlers to return.
func (s *Server) Close() error {
	s.connectionsMutex.Lock()
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for _, conn := range s.activeConnections {
		conn.Close()
	}
	s.connectionsMutex.Unlock()

	s.wg.Wait()
	return err
}

// Connections reports the number of connected clients.
func (s *Server) Connections() int {
	s.connectionsMutex.Lock()
	defer s.connectionsMutex.Unlock()
	return len(s.activeConnections)
}

func (s *Server) track(session string, conn net.Conn) bool {
	s.connectionsMutex.Lock()
	defer s.connectionsMutex.Unlock()

	select {
	case <-s.stopChan:
		return false
	default:
	}
	s.activeConnections[session] = conn
	return true
}

func (s *Server) untrack(session string) {
	s.connectionsMutex.Lock()
	delete(s.activeConnections, session)
	s.connectionsMutex.Unlock()
}

func (s *Server) handleConnection(session string, conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(session)
	defer conn.Close()

	peer := conn.RemoteAddr().String()
	log.Printf("TCP client connected: %s (session %s)", peer, session)
	defer log.Printf("TCP client disconnected: %s (session %s)", peer, session)

	origin := comms.Origin{Source: "tcp", Session: session}
	reader := bufio.NewReaderSize(conn, s.MaxLineLength)
	overflow := false

	for {
		chunk, err := reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			overflow = true
			continue
		}
		if overflow {
			overflow = false
			s.rejectLine(conn, origin)
		} else if len(chunk) > 0 {
			s.processLine(conn, origin, string(chunk))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Printf("TCP %s: read failed: %v", peer, err)
			}
			return
		}
	}
}

func (s *Server) processLine(conn net.Conn, origin comms.Origin, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	log.Printf("TCP recv (%s): %s", origin.Session, line)

	// rejected commands are still acknowledged
	s.conductor.ProcessLine(origin, line)

	if _, err := io.WriteString(conn, "OK\n"); err != nil {
		log.Printf("TCP %s: unable to write ack: %v", conn.RemoteAddr(), err)
	}
}

func (s *Server) rejectLine(conn net.Conn, origin comms.Origin) {
	log.Printf("TCP recv (%s): discarding line longer than %d bytes", origin.Session, s.MaxLineLength)
	if _, err := io.WriteString(conn, "OK\n"); err != nil {
		log.Printf("TCP %s: unable to write ack: %v", conn.RemoteAddr(), err)
	}
}
