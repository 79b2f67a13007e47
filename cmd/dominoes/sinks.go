package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"dominoes.run/internal/persistence/boarddb"
	persistlog "dominoes.run/internal/persistence/log"
	"dominoes.run/internal/sim/world"
	"dominoes.run/internal/transport/observer"
)

// boardDBPath is the board library inside the data directory.
func boardDBPath(dataDir string) string {
	return filepath.Join(dataDir, "boards.sqlite")
}

// loggedTickLogger reports a sink's write errors on the host logger. The
// tick loop itself never sees them.
type loggedTickLogger struct {
	name   string
	next   world.TickLogger
	logger *log.Logger
}

func (l loggedTickLogger) WriteTick(rep world.TickReport) error {
	if err := l.next.WriteTick(rep); err != nil {
		l.logger.Printf("%s: tick %d: %v", l.name, rep.Tick, err)
	}
	return nil
}

// attachSinks wires the tick log, the board index and the observer stream
// to the runtime's world. The returned func releases them.
func attachSinks(ctx context.Context, rt *runtime, dataDir, observeAddr string, logger *log.Logger) (func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if rt.tune.TickLog {
		tickLog := persistlog.NewTickLogger(dataDir)
		rt.world.AddTickLogger(loggedTickLogger{name: "tick log", next: tickLog, logger: logger})
		closers = append(closers, func() { _ = tickLog.Close() })
	}

	db, err := boarddb.OpenSQLite(boardDBPath(dataDir))
	if err != nil {
		closeAll()
		return nil, err
	}
	if err := db.UpsertCatalog(rt.cats); err != nil {
		logger.Printf("board index: upsert catalog: %v", err)
	}
	rt.world.AddTickLogger(loggedTickLogger{name: "board index", next: db, logger: logger})
	closers = append(closers, func() {
		if err := db.Close(); err != nil {
			logger.Printf("board index: close: %v", err)
		}
	})

	if observeAddr != "" {
		srv := startObserver(ctx, rt, observeAddr, logger)
		closers = append(closers, func() {
			ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx2)
		})
	}
	return closeAll, nil
}

func startObserver(ctx context.Context, rt *runtime, addr string, logger *log.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	observer.NewServer(rt.world, logger).Routes(mux)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}
	go func() {
		logger.Printf("observer listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("observer: %v", err)
		}
	}()
	return srv
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(ch)
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
