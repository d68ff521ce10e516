package api

import (
	"context"
	"net/http"

	"github.com/mpapenbr/rally-manager-go/log"
	"github.com/mpapenbr/rally-manager-go/pkg/config"
	"github.com/mpapenbr/rally-manager-go/pkg/notify"
	"github.com/mpapenbr/rally-manager-go/pkg/service/race"
	"github.com/mpapenbr/rally-manager-go/pkg/service/registry"
)

type (
	RaceRunner interface {
		Run(ctx context.Context, raceID int) (*race.Settlement, error)
	}
	Pinger interface {
		Ping(ctx context.Context) error
	}
	// EventSource provides the settled race notifications for the event stream
	EventSource interface {
		Subscribe() <-chan *notify.RaceSettled
		CancelSubscription(ch <-chan *notify.RaceSettled)
	}

	Server struct {
		registry *registry.Service
		runner   RaceRunner
		pinger   Pinger
		events   EventSource
		cfg      config.Config
		log      *log.Logger
	}
	Option func(*Server)
)

func NewServer(reg *registry.Service, runner RaceRunner, opts ...Option) *Server {
	ret := &Server{
		registry: reg,
		runner:   runner,
		log:      log.Default().Named("api"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func WithPinger(p Pinger) Option {
	return func(s *Server) {
		s.pinger = p
	}
}

func WithEventSource(e EventSource) Option {
	return func(s *Server) {
		s.events = e
	}
}

func WithConfig(cfg config.Config) Option {
	return func(s *Server) {
		s.cfg = cfg
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// Handler returns the routes wrapped with the request middleware
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	for _, r := range s.routes() {
		mux.HandleFunc(r.pattern, r.handler)
	}
	return s.withRequestContext(mux)
}
