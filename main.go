package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/sirupsen/logrus"

	"github.com/anayv/crease/internal/auth"
	"github.com/anayv/crease/internal/config"
	"github.com/anayv/crease/internal/handlers"
	"github.com/anayv/crease/internal/players"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg := config.Load()

	if err := auth.Init(); err != nil {
		log.Fatalf("failed to init session keys: %v", err)
	}

	// Redis backs the player-pool cache only; the service runs without it.
	rdb, err := players.Connect(cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		log.Warnf("redis unavailable, serving built-in player pool: %v", err)
	}
	pool := players.NewPool(rdb, log)

	srv := handlers.NewServer(cfg, log, pool)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go srv.Rooms.Run(sweepCtx)

	mux := http.NewServeMux()
	mux.HandleFunc("/", handlers.PingHandler)
	mux.HandleFunc("/session", srv.SessionHandler)
	mux.HandleFunc("/rooms", srv.ListRoomsHandler)
	mux.HandleFunc("/ws", srv.WSHandler)

	server := &http.Server{
		Handler:      mux,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
	}

	l, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.Port))
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	log.Infof("listening on %s", l.Addr())

	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(l)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	select {
	case err := <-errc:
		log.Errorf("failed to serve: %v", err)
	case sig := <-sigs:
		log.Infof("terminating: %v", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)
}
