package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/DevJihwan/kimcady-refactored/internal/cache"
	"github.com/DevJihwan/kimcady-refactored/internal/client"
	"github.com/DevJihwan/kimcady-refactored/internal/clock"
	cons "github.com/DevJihwan/kimcady-refactored/internal/consumer"
	"github.com/DevJihwan/kimcady-refactored/internal/correlator"
	"github.com/DevJihwan/kimcady-refactored/internal/dedup"
	"github.com/DevJihwan/kimcady-refactored/internal/engine"
	"github.com/DevJihwan/kimcady-refactored/internal/ingest"
	"github.com/DevJihwan/kimcady-refactored/internal/ledger"
	"github.com/DevJihwan/kimcady-refactored/internal/pending"
	"github.com/DevJihwan/kimcady-refactored/pkg/config"
	"github.com/DevJihwan/kimcady-refactored/pkg/mq"
	"github.com/DevJihwan/kimcady-refactored/pkg/obs"
)

func must[T any](v T, err error) T {
	if err != nil {
		log.Fatal(err)
	}
	return v
}

func main() {
	_ = godotenv.Load()
	cfg := must(config.Load())

	shutdownTracer := obs.InitTracer("reconciler")

	clk := clock.New()

	// Dedup: bolt-backed when a path is configured, process-lifetime
	// memory set otherwise.
	var ded dedup.Store
	if cfg.DedupPath != "" {
		ded = must(dedup.NewBolt(cfg.DedupPath, cfg.DedupThreshold))
	} else {
		ded = dedup.NewMemory(cfg.DedupThreshold)
	}
	defer ded.Close()

	ids := ledger.NewIdentity()
	pay := ledger.NewPayments()
	snap := cache.NewSnapshot(clk)
	pend := pending.NewStore(clk, cfg.PendingValidity)
	customers := correlator.NewStore()

	down := client.NewDownstream(cfg.DownstreamBaseURL)
	listing := client.NewListingClient(cfg.ListingBaseURL, cfg.StoreID)

	pub := must(mq.NewPublisher(cfg.RabbitURL, cfg.OutcomeExchange))
	defer pub.Close()

	eng := engine.New(clk, ids, pay, snap, ded, pend, customers, down, listing, pub, engine.Config{
		SnapshotTTL:         cfg.SnapshotTTL,
		CustomerMatchWindow: cfg.CustomerMatchWindow,
	})
	corr := correlator.New(clk, customers, eng, correlator.Config{
		Freshness: cfg.CustomerFreshness,
		Delay:     cfg.CorrelationDelay,
		Cooldown:  cfg.CustomerCooldown,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	captureCons := must(mq.NewConsumer(cfg.RabbitURL, cfg.CaptureExchange, cfg.CaptureQueue, "reconciler", cons.Keys))
	defer captureCons.Close()
	must(0, cons.New(eng, corr, captureCons).Run(ctx))
	log.Println("[reconciler] consumer started")

	srv := &http.Server{
		Addr:    cfg.IngestHTTPAddr,
		Handler: ingest.NewServer(eng, corr).Router(),
	}
	go func() {
		log.Println("[reconciler] ingest HTTP listening on", cfg.IngestHTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	cancel()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	_ = shutdownTracer(shutCtx)
	log.Println("[reconciler] stopped")
}
