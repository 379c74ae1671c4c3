package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"

	config "github.com/avvvet/ict-services/configs"
	mongodb "github.com/avvvet/ict-services/internal/db"
	nats "github.com/avvvet/ict-services/internal/nats"
	"github.com/avvvet/ict-services/internal/panelsvc/broker"
	"github.com/avvvet/ict-services/internal/panelsvc/catalog"
	panelconfig "github.com/avvvet/ict-services/internal/panelsvc/config"
	"github.com/avvvet/ict-services/internal/panelsvc/db"
	"github.com/avvvet/ict-services/internal/panelsvc/handlers"
	"github.com/avvvet/ict-services/internal/panelsvc/service"
	"github.com/avvvet/ict-services/internal/panelsvc/store"
	"github.com/avvvet/ict-services/internal/panelsvc/ws"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "panel"

var instanceId string

func init() {
	config.Logging(SERVICE_NAME + "_service")
	config.LoadEnv(SERVICE_NAME)
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
}

func main() {
	cfg, err := panelconfig.Load()
	if err != nil {
		log.Fatalf("ER: %v", err)
	}

	// products must load cleanly before any scan is accepted
	products, err := catalog.LoadFile(cfg.ProductsFile)
	if err != nil {
		log.Fatalf("Failed to load products: %v", err)
	}

	// pg connection
	dbpool, err := db.Connect(cfg.DBUrl)
	if err != nil {
		log.Fatalf("ER: Connection to DB failed: %v", err)
	}
	defer db.ClosePool()
	log.Printf("pg connection established successfully")

	historyStore := store.NewHistoryStore(dbpool)
	panelService := service.NewPanelService(products, historyStore, service.NewAggregator(), service.Options{
		InstanceID:    instanceId,
		LookupTimeout: cfg.LookupTimeout,
		SiblingLimit:  cfg.SiblingLimit,
		JournalTTL:    cfg.JournalTTL,
	})

	// optional scan journal
	if cfg.MongoURI != "" {
		mdb, err := mongodb.ConnectToDB(cfg.MongoURI)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer mongodb.Disconnect(mdb)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := mongodb.CreateTTLIndexForCollection(ctx, mdb, store.JournalCollection); err != nil {
			log.Warnf("unable to create TTL index on %s: %v", store.JournalCollection, err)
		}
		cancel()

		panelService.SetJournal(store.NewJournalStore(mdb))
		log.Printf("scan journal enabled")
	}

	// Connect to NATS
	n, err := nats.Connect(cfg.NatsURL, cfg.NatsToken, SERVICE_NAME+" service "+instanceId)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(0)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	b := broker.NewBroker(n.Conn)
	s := ws.NewWs()
	panelService.AddNotifier(s)
	panelService.AddNotifier(b)

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(panelService, b, s, instanceId)
	h.InitAuth(cfg.JWTSecret)
	h.SetRoutes(r)

	// websocket connections stay open, so no write timeout here
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 60 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	panelService.Wait()
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
