package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type App struct {
	// RabbitMQ
	RabbitURL       string `envconfig:"RABBIT_URL" required:"true"`
	CaptureExchange string `envconfig:"CAPTURE_EXCHANGE" default:"capture.exchange"`
	CaptureQueue    string `envconfig:"RECONCILER_QUEUE" default:"reconciler.capture.q"`
	OutcomeExchange string `envconfig:"OUTCOME_EXCHANGE" default:"reconcile.exchange"`

	// External systems
	DownstreamBaseURL string `envconfig:"DOWNSTREAM_BASE_URL" required:"true"`
	ListingBaseURL    string `envconfig:"LISTING_BASE_URL" required:"true"`
	StoreID           string `envconfig:"STORE_ID"`

	// HTTP ingest
	IngestHTTPAddr string `envconfig:"INGEST_HTTP_ADDR" default:":8080"`

	// Dedup store; when DEDUP_PATH is set the bolt-backed store is used,
	// otherwise forwarded ids live only for the process lifetime.
	DedupPath      string `envconfig:"DEDUP_PATH"`
	DedupThreshold int    `envconfig:"DEDUP_THRESHOLD" default:"1000"`

	// Reconciliation windows
	SnapshotTTL         time.Duration `envconfig:"SNAPSHOT_TTL" default:"60s"`
	CustomerMatchWindow time.Duration `envconfig:"CUSTOMER_MATCH_WINDOW" default:"60s"`
	CustomerFreshness   time.Duration `envconfig:"CUSTOMER_FRESHNESS" default:"30s"`
	PendingValidity     time.Duration `envconfig:"PENDING_VALIDITY" default:"10s"`
	CorrelationDelay    time.Duration `envconfig:"CORRELATION_DELAY" default:"10s"`
	CustomerCooldown    time.Duration `envconfig:"CUSTOMER_COOLDOWN" default:"60s"`
}

func Load() (App, error) {
	var c App
	err := envconfig.Process("", &c)
	return c, err
}
