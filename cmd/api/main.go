package main

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/finwise/obligations/pkg/config"
	"github.com/finwise/obligations/pkg/ledger"
	"github.com/finwise/obligations/pkg/processor"
	"github.com/finwise/obligations/pkg/store"
)

// Server wires the ledger service and the recurring obligations processor to
// the HTTP layer.
type Server struct {
	ledger    *ledger.Ledger
	processor *processor.Processor
	storage   store.Storage
	log       *logrus.Logger
}

func NewServer(s store.Storage, log *logrus.Logger) *Server {
	return &Server{
		ledger:    ledger.NewLedger(s),
		processor: processor.New(s, log),
		storage:   s,
		log:       log,
	}
}

func (s *Server) router() *mux.Router {
	router := mux.NewRouter()
	router.Use(metricsMiddleware)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.HandleFunc("/loans", s.listLoansHandler).Methods("GET")
	router.HandleFunc("/loans", s.createLoanHandler).Methods("POST")
	router.HandleFunc("/loans/{id}", s.getLoanHandler).Methods("GET")
	router.HandleFunc("/loans/{id}", s.updateLoanHandler).Methods("PUT")
	router.HandleFunc("/loans/{id}", s.deleteLoanHandler).Methods("DELETE")
	router.HandleFunc("/loans/{id}/schedule", s.loanScheduleHandler).Methods("GET")
	router.HandleFunc("/loans/{id}/payments", s.recordPaymentHandler).Methods("POST")
	router.HandleFunc("/loans/{id}/payments", s.listPaymentsHandler).Methods("GET")

	router.HandleFunc("/subscriptions", s.listSubscriptionsHandler).Methods("GET")
	router.HandleFunc("/subscriptions", s.createSubscriptionHandler).Methods("POST")
	router.HandleFunc("/subscriptions/{id}", s.getSubscriptionHandler).Methods("GET")
	router.HandleFunc("/subscriptions/{id}", s.updateSubscriptionHandler).Methods("PUT")
	router.HandleFunc("/subscriptions/{id}", s.deleteSubscriptionHandler).Methods("DELETE")

	router.HandleFunc("/templates", s.listTemplatesHandler).Methods("GET")
	router.HandleFunc("/templates", s.createTemplateHandler).Methods("POST")
	router.HandleFunc("/templates/{id}", s.getTemplateHandler).Methods("GET")
	router.HandleFunc("/templates/{id}", s.updateTemplateHandler).Methods("PUT")
	router.HandleFunc("/templates/{id}", s.deleteTemplateHandler).Methods("DELETE")

	router.HandleFunc("/expenses", s.listExpensesHandler).Methods("GET")
	router.HandleFunc("/expenses", s.addExpenseHandler).Methods("POST")

	router.HandleFunc("/process", s.processHandler).Methods("POST")

	return router
}

// runScheduler invokes the processor periodically with the current UTC date.
// A failed run is logged and retried on the next tick; already-advanced
// entities are simply no longer due.
func (s *Server) runScheduler(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		if _, err := s.processor.Run(time.Now()); err != nil {
			s.log.WithError(err).Error("scheduled processing run failed")
		}
	}
}

func main() {
	log := config.GetLogger()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	var storage store.Storage
	if cfg.Storage == "memory" {
		storage = store.NewMemoryStore()
	} else {
		storage, err = store.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			log.WithError(err).Fatal("failed to initialize sqlite store")
		}
	}
	defer storage.Close()

	server := NewServer(storage, log)
	go server.runScheduler(cfg.ProcessInterval)

	log.WithField("addr", cfg.ListenAddr).Info("server starting")
	log.Fatal(http.ListenAndServe(cfg.ListenAddr, server.router()))
}
