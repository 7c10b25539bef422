// Package kujo serves the simulation over HTTP: commands, snapshots, and SSE streams.
package kujo

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/r3labs/sse/v2"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"nyiyui.ca/hato/senro/notify"
	"nyiyui.ca/hato/senro/tal"
	"nyiyui.ca/hato/senro/tal/layout"
)

const (
	streamSnapshot = "snapshot"
	streamEvents   = "events"
)

// Controller is what the server drives. *sim.Simulation implements it.
type Controller interface {
	Snapshot() tal.GuideSnapshot
	Snapshots() *notify.Multiplexer[tal.GuideSnapshot]
	Events() *notify.Multiplexer[tal.Event]
	Train(id string) (tal.TrainSnapshot, error)
	History(id string) (tal.History, error)
	ToggleSwitch(id string) (layout.Route, error)
	ToggleSignal(id string) (tal.Aspect, error)
	Start(id string) (tal.TrainSnapshot, error)
	Stop(id string) (tal.TrainSnapshot, error)
	Reset(id string) (tal.TrainSnapshot, error)
	SetSpeedMultiplier(id string, v float64) (tal.TrainSnapshot, error)
}

type Server struct {
	c    Controller
	s    *sse.Server
	r    chi.Router
	h    http.Handler
	done chan struct{}
}

// NewServer serves c. Browsers may call it from allowedOrigins, or from anywhere if there are none.
func NewServer(c Controller, allowedOrigins []string) *Server {
	s := &Server{
		c:    c,
		s:    sse.New(),
		done: make(chan struct{}),
	}
	// snapshots arrive every frame; replaying them to late subscribers would grow without bound
	s.s.AutoReplay = false
	s.s.CreateStream(streamSnapshot)
	s.s.CreateStream(streamEvents)
	s.r = s.routes()
	ch := cors.AllowAll()
	if len(allowedOrigins) > 0 {
		ch = cors.New(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		})
	}
	s.h = ch.Handler(s.r)
	snapshots := make(chan tal.GuideSnapshot, 4)
	c.Snapshots().Subscribe("kujo", snapshots)
	events := make(chan tal.Event, 16)
	c.Events().Subscribe("kujo", events)
	go s.forwardSnapshots(snapshots)
	go s.forwardEvents(events)
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/snapshot", s.getSnapshot)
	r.Get("/events", s.s.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/switches/{id}/toggle", s.toggleSwitch)
	r.Post("/signals/{id}/toggle", s.toggleSignal)
	r.Route("/trains/{id}", func(r chi.Router) {
		r.Get("/", s.getTrain)
		r.Get("/history", s.getHistory)
		r.Post("/start", s.trainCommand(s.c.Start))
		r.Post("/stop", s.trainCommand(s.c.Stop))
		r.Post("/reset", s.trainCommand(s.c.Reset))
		r.Put("/speed", s.setSpeed)
	})
	return r
}

func (s *Server) forwardSnapshots(ch chan tal.GuideSnapshot) {
	defer s.c.Snapshots().Unsubscribe(ch)
	for {
		select {
		case <-s.done:
			return
		case gs := <-ch:
			data, err := json.Marshal(gs)
			if err != nil {
				zap.S().Errorw("marshal snapshot", "err", err)
				continue
			}
			s.s.TryPublish(streamSnapshot, &sse.Event{
				Data: data,
			})
		}
	}
}

func (s *Server) forwardEvents(ch chan tal.Event) {
	defer s.c.Events().Unsubscribe(ch)
	for {
		select {
		case <-s.done:
			return
		case ev := <-ch:
			data, err := json.Marshal(ev)
			if err != nil {
				zap.S().Errorw("marshal event", "kind", ev.Kind(), "err", err)
				continue
			}
			s.s.TryPublish(streamEvents, &sse.Event{
				Event: []byte(ev.Kind()),
				Data:  data,
			})
		}
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.h.ServeHTTP(w, r)
}

// Close stops forwarding and disconnects stream subscribers.
func (s *Server) Close() {
	close(s.done)
	s.s.Close()
}
