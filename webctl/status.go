package webctl

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/CodedInternet/rescuebot/comms"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"
)

const defaultHistoryLimit = 50

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

var ErrNoJournal = errors.New("command journal disabled")

// Status serves read-only views of the rover for operators.
type Status struct {
	Conductor *comms.Conductor
	// Interval between state samples on /ws/state.
	Interval time.Duration
}

func NewStatusRouter(conductor *comms.Conductor, interval time.Duration) chi.Router {
	s := &Status{Conductor: conductor, Interval: interval}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.State)
		r.Get("/commands", s.Commands)
		r.Get("/history", s.History)
	})

	r.Route("/ws", func(r chi.Router) {
		r.Get("/state", s.StateStream)
	})

	return r
}

func (s *Status) State(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, comms.NewStatePayload(s.Conductor.Device, 0))
}

func (s *Status) Commands(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.Conductor.Commands())
}

func (s *Status) History(w http.ResponseWriter, r *http.Request) {
	if s.Conductor.Journal == nil {
		render.Render(w, r, ErrNotFound(ErrNoJournal))
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			render.Render(w, r, ErrInvalidRequest(errors.New("limit must be a positive integer")))
			return
		}
		limit = n
	}

	entries, err := s.Conductor.Journal.Recent(limit)
	if err != nil {
		render.Render(w, r, ErrRender(err))
		return
	}
	if entries == nil {
		entries = []comms.Entry{}
	}
	render.JSON(w, r, entries)
}

// StateStream pushes a snapshot on connect and then whenever the state
// changes.
func (s *Status) StateStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Print("upgrade:", err)
		return
	}
	defer conn.Close()

	// the read side only watches for the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	interval := s.Interval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last []byte
	var seq uint64
	for {
		state := s.Conductor.Device.State()
		encoded, err := json.Marshal(state)
		if err != nil {
			log.Println("state:", err)
			return
		}

		if !bytes.Equal(encoded, last) {
			seq++
			payload := comms.StatePayload{ActuatorState: state, Seq: seq, At: time.Now()}
			if err := conn.WriteJSON(payload); err != nil {
				log.Println("write:", err)
				return
			}
			last = encoded
		}

		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
