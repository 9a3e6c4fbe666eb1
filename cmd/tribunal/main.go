// Command tribunal runs a court node: it keeps the term clock moving, stores
// the event journal and serves the court over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/eigerco/tribunal/internal/clock"
	"github.com/eigerco/tribunal/internal/common"
	"github.com/eigerco/tribunal/internal/config"
	"github.com/eigerco/tribunal/internal/court"
	"github.com/eigerco/tribunal/internal/crypto"
	"github.com/eigerco/tribunal/internal/events"
	"github.com/eigerco/tribunal/internal/governance"
	"github.com/eigerco/tribunal/internal/store"
	"github.com/eigerco/tribunal/pkg/api"
	"github.com/eigerco/tribunal/pkg/db/pebble"
	"github.com/eigerco/tribunal/pkg/log"
)

// operator holds every governor role of the node's own court
var operator = governance.Caller{
	Address: "operator",
	Roles:   governance.RoleConfigGovernor | governance.RoleFundsGovernor | governance.RoleModulesGovernor,
}

func main() {
	configPath := flag.String("config", "", "path to the node config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	node, err := config.Load(configPath)
	if err != nil {
		return err
	}
	level, err := log.ParseLogLevel(node.Log.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	loggerType, err := log.ParseLoggerType(node.Log.Type)
	if err != nil {
		return err
	}
	log.Init(log.Options{LogLevel: level, Type: loggerType})

	kv, err := pebble.NewKVStore(node.DataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			log.Root.Error().Err(err).Msg("close store")
		}
	}()
	journal, err := store.NewJournal(kv)
	if err != nil {
		return err
	}
	defer journal.Close()

	start := time.Now().Add(node.TermDuration)
	if node.StartUnix != 0 {
		start = time.Unix(node.StartUnix, 0)
	}
	beacon := clock.NewHashChainBeacon(crypto.HashData([]byte(node.BeaconSeed)))
	c, err := court.New(court.Options{
		FirstTermStart: start,
		TermDuration:   node.TermDuration,
		Config:         node.Court,
		Beacon:         beacon,
		Sinks:          []events.Sink{journal},
		Snapshots:      store.NewDisputes(kv),
	})
	if err != nil {
		return err
	}
	for _, sub := range node.Subjects {
		if err := registerSubject(c, sub); err != nil {
			return fmt.Errorf("subject %s: %w", sub.Address, err)
		}
	}

	r := mux.NewRouter()
	api.RegisterRoutes(r, api.NewHandler(c, journal))
	srv := &http.Server{
		Addr:              node.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Root.Info().Str("addr", node.HTTPAddr).Time("firstTermStart", start).Msg("tribunal node started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Root.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	keepTerms(ctx, c, beacon, node.HeartbeatInterval)

	log.Root.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func registerSubject(c *court.Court, sub config.Subject) error {
	addr := common.Address(sub.Address)
	if err := c.RegisterSubject(operator, court.NewRecordingSubject(addr)); err != nil {
		return err
	}
	if sub.PaidUntil > 0 {
		if err := c.PaySubscription(operator, addr, common.TermID(sub.PaidUntil)); err != nil {
			return err
		}
	}
	if sub.Fees > 0 {
		if err := c.FundFees(operator, addr, sub.Fees); err != nil {
			return err
		}
	}
	return nil
}

// keepTerms advances the local beacon and performs pending term transitions
// on every tick until ctx is done.
func keepTerms(ctx context.Context, c *court.Court, beacon *clock.HashChainBeacon, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			beacon.Advance(1)
			needed := c.NeededTransitions()
			if needed == 0 {
				continue
			}
			if _, err := c.Heartbeat(needed); err != nil {
				log.Root.Warn().Err(err).Msg("heartbeat failed")
			}
		}
	}
}
