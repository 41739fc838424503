// README: Entry point; loads config, wires services, starts HTTP server and the
// expiration sweeper.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"ridepool/internal/clock"
	"ridepool/internal/config"
	httptransport "ridepool/internal/http"
	"ridepool/internal/infra"
	"ridepool/internal/maps"
	"ridepool/internal/modules/booking"
	"ridepool/internal/modules/sanction"
	"ridepool/internal/modules/sweeper"
	"ridepool/internal/modules/trip"
	"ridepool/internal/notify"
	"ridepool/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		log.Fatal("RIDEPOOL_FIREBASE_PROJECT_ID is required")
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.Fatalf("firebase init: %v", err)
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	if err := migrations.Apply(ctx, dbPool); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	rmqConn, rmqCh, err := infra.ConnectRMQ(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
	if err != nil {
		log.Fatalf("rabbitmq init: %v", err)
	}
	defer rmqConn.Close()
	publisher := notify.NewPublisher(rmqCh, cfg.RabbitMQ.Exchange)

	// Redial the broker and swap the publisher channel when the connection
	// drops mid-flight. A nil close error means a clean shutdown.
	go func() {
		conn := rmqConn
		for {
			closed := conn.NotifyClose(make(chan *amqp091.Error, 1))
			select {
			case <-ctx.Done():
				return
			case amqpErr := <-closed:
				if amqpErr == nil {
					return
				}
				log.Printf("rabbitmq connection lost: %v", amqpErr)
				newConn, newCh, err := infra.ConnectRMQ(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
				if err != nil {
					log.Printf("rabbitmq reconnect failed: %v", err)
					return
				}
				conn = newConn
				publisher.SwapChannel(newCh)
			}
		}
	}()

	var routes trip.Routes
	if cfg.Maps.APIKey != "" {
		routeSvc, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			log.Fatalf("maps init: %v", err)
		}
		routes = routeSvc
	}

	clk := clock.NewSystem()

	tripStore := trip.NewStore(dbPool)
	tripSvc := trip.NewService(tripStore, routes)

	sanctionStore := sanction.NewStore(dbPool)
	sanctionSvc := sanction.NewService(sanctionStore, clk, sanction.Policy{
		WindowDays:         cfg.Sanction.WindowDays,
		Threshold:          cfg.Sanction.Threshold,
		CountSystemExpired: cfg.Sanction.CountSystemExpired,
	}, redisClient, cfg.Sanction.CacheTTL, publisher)

	bookingStore := booking.NewStore(dbPool)
	bookingSvc := booking.NewService(bookingStore, tripSvc, sanctionSvc, sanctionSvc, publisher, clk)

	sweepSvc := sweeper.NewService(bookingStore, bookingSvc, publisher, clk, sweeper.Config{
		Interval:   cfg.Sweep.Interval,
		StaleAfter: cfg.Sweep.StaleAfter,
		BatchSize:  cfg.Sweep.BatchSize,
	})

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Trip:     tripSvc,
		Booking:  bookingSvc,
		Sanction: sanctionSvc,
		Sweeper:  sweepSvc,
		Verifier: verifier,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}

	go sweepSvc.RunTicker(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("listening on %s", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
