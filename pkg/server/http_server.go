package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/docflow/pkg/configuration"
)

// Controller registers a set of routes on the shared router.
type Controller interface {
	Key() string
	Register(r *mux.Router)
}

type HTTPServer struct {
	log    *logrus.Logger
	router *mux.Router
	srv    *http.Server
}

func New(conf *configuration.Configuration, log *logrus.Logger, middlewares ...mux.MiddlewareFunc) *HTTPServer {
	router := mux.NewRouter()
	router.Use(middlewares...)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	return &HTTPServer{
		log:    log,
		router: router,
		srv: &http.Server{
			Addr:         conf.ServerAddress,
			Handler:      router,
			ReadTimeout:  conf.ReadTimeout,
			WriteTimeout: conf.WriteTimeout,
		},
	}
}

func (s *HTTPServer) RegisterControllers(controllers ...Controller) {
	for _, c := range controllers {
		c.Register(s.router)
		s.log.WithField("controller", c.Key()).Info("registered controller")
	}
}

func (s *HTTPServer) Start() error {
	s.log.WithField("address", s.srv.Addr).Info("starting http server")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
