package webctl

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/CodedInternet/rescuebot/comms"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
)

const responseHeader = "HTTP/1.1 200 OK\r\n" +
	"Content-Type: text/html\r\n" +
	"Connection: close\r\n\r\n"

var ErrServerClosed = errors.New("webctl: server closed")

// Server is the one-shot HTTP control surface. Requests are read straight
// off the connection so a missing Host header is accepted, and every
// response is a 200 whatever the command outcome.
type Server struct {
	Addr        string
	ReadTimeout time.Duration

	router   chi.Router
	listener net.Listener

	lock        sync.Mutex
	connections map[net.Conn]struct{}
	closing     bool
	wg          sync.WaitGroup
}

func NewServer(addr string, conductor *comms.Conductor) *Server {
	return &Server{
		Addr:        addr,
		ReadTimeout: 10 * time.Second,
		router:      NewControlRouter(conductor),
		connections: make(map[net.Conn]struct{}),
	}
}

// NewControlRouter builds the command routes. Commands dispatch whatever the
// method; unknown paths are answered with an empty body.
func NewControlRouter(conductor *comms.Conductor) chi.Router {
	r := chi.NewRouter()

	// A good base middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer) // make sure this is last

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ControlPage))
	})

	for _, k := range comms.Kinds {
		if k == comms.SetSpeed {
			continue
		}
		name := k.String()
		r.HandleFunc("/"+name, func(w http.ResponseWriter, r *http.Request) {
			conductor.ProcessCommand(origin(r), name, "", false)
		})
	}

	r.HandleFunc("/set_speed", func(w http.ResponseWriter, r *http.Request) {
		values, ok := r.URL.Query()["value"]
		var value string
		if ok && len(values) > 0 {
			value = values[0]
		}
		conductor.ProcessCommand(origin(r), comms.SetSpeed.String(), value, ok)
	})

	empty := func(w http.ResponseWriter, r *http.Request) {}
	r.NotFound(empty)
	r.MethodNotAllowed(empty)

	return r
}

func origin(r *http.Request) comms.Origin {
	return comms.Origin{Source: "http", Session: middleware.GetReqID(r.Context())}
}

func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve accepts connections on l until Close is called.
func (s *Server) Serve(l net.Listener) error {
	s.lock.Lock()
	if s.closing {
		s.lock.Unlock()
		l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.lock.Unlock()

	log.Printf("HTTP control listening on %s", l.Addr())

	for {
		conn, err := l.Accept()
		if err != nil {
			s.lock.Lock()
			closing := s.closing
			s.lock.Unlock()
			if closing {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				log.Printf("HTTP accept: %v", err)
				time.Sleep(5 * time.Millisecond)
				continue
			}
			return err
		}

		if !s.track(conn) {
			conn.Close()
			return ErrServerClosed
		}
		s.wg.Add(1)
		go s.handle(conn)
	}
}

// Close stops the listener, drops open connections and waits for their
// handlers.
func (s *Server) Close() error {
	s.lock.Lock()
	s.closing = true
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for conn := range s.connections {
		conn.Close()
	}
	s.lock.Unlock()

	s.wg.Wait()
	return err
}

func (s *Server) track(conn net.Conn) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closing {
		return false
	}
	s.connections[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.lock.Lock()
	delete(s.connections, conn)
	s.lock.Unlock()
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	if s.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(s.ReadTimeout))
	}

	req, err := readRequest(bufio.NewReader(conn))
	if err != nil {
		log.Printf("HTTP %s: dropping malformed request: %v", conn.RemoteAddr(), err)
		return
	}
	req.RemoteAddr = conn.RemoteAddr().String()

	w := newBufferedResponse()
	s.router.ServeHTTP(w, req)

	if _, err := conn.Write(append([]byte(responseHeader), w.body.Bytes()...)); err != nil {
		log.Printf("HTTP %s: write failed: %v", conn.RemoteAddr(), err)
	}
}

// readRequest parses one request. A request line without a protocol version
// is read as HTTP/1.0.
func readRequest(br *bufio.Reader) (*http.Request, error) {
	line, err := br.ReadSlice('\n')
	if err != nil {
		return nil, err
	}

	if fields := strings.Fields(string(line)); len(fields) == 2 {
		line = []byte(fields[0] + " " + fields[1] + " HTTP/1.0\r\n")
	} else {
		line = append([]byte(nil), line...)
	}

	return http.ReadRequest(bufio.NewReader(io.MultiReader(bytes.NewReader(line), br)))
}

// bufferedResponse collects the handler output. Status and headers set by
// handlers are discarded.
type bufferedResponse struct {
	header http.Header
	body   bytes.Buffer
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header)}
}

func (b *bufferedResponse) Header() http.Header {
	return b.header
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	return b.body.Write(p)
}

func (b *bufferedResponse) WriteHeader(int) {}
