package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

// maxCommitCeiling is the document store's hard per-commit write limit.
const maxCommitCeiling = 500

// Settings holds the knobs of the ingestion jobs. Connection details for MySQL, Redis and
// Pub/Sub stay with their connect functions, the way they always have.
type Settings struct {
	Port    string `env:"PORT" envDefault:"8080"`
	GoEnv   string `env:"GO_ENV"`
	Backend string `env:"DOCSTORE_BACKEND" envDefault:"firestore"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	InvoiceCollection    string `env:"INVOICE_COLLECTION" envDefault:"invoices"`
	BalanceCollection    string `env:"BALANCE_COLLECTION" envDefault:"customerBalances"`
	BottleTypeCollection string `env:"BOTTLE_TYPE_COLLECTION" envDefault:"bottleTypes"`

	SalesUploadPrefix   string `env:"SALES_UPLOAD_PREFIX" envDefault:"sales-uploads"`
	BalanceUploadPrefix string `env:"BALANCE_UPLOAD_PREFIX" envDefault:"balance-uploads"`
	MaxUploadBytes      int64  `env:"MAX_UPLOAD_BYTES" envDefault:"52428800"`

	CommitCeiling     int           `env:"COMMIT_CEILING" envDefault:"400"`
	JobLocks          bool          `env:"JOB_LOCKS" envDefault:"true"`
	JobLockTTL        time.Duration `env:"JOB_LOCK_TTL" envDefault:"10m"`
	ImportCheckpoints bool          `env:"IMPORT_CHECKPOINTS" envDefault:"true"`
	CheckpointTTL     time.Duration `env:"IMPORT_CHECKPOINT_TTL" envDefault:"72h"`

	UploadTopic             string `env:"UPLOAD_TOPIC" envDefault:"storage-uploads"`
	UploadSubscription      string `env:"UPLOAD_SUBSCRIPTION" envDefault:"storage-uploads-worker"`
	PubSubVerificationToken string `env:"PUBSUB_VERIFICATION_TOKEN"`
	SearchIndexTopic        string `env:"SEARCH_INDEX_TOPIC"`
	SearchIndexBatch        int    `env:"SEARCH_INDEX_BATCH" envDefault:"500"`

	BottleMarkers []string `env:"NOTE_BOTTLE_MARKERS" envSeparator:","`
	WineMarkers   []string `env:"NOTE_WINE_MARKERS" envSeparator:","`
}

func init() {
	// Load env from .env
	godotenv.Load()
}

// LoadSettings reads Settings from the environment.
func LoadSettings() (*Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	if s.CommitCeiling <= 0 || s.CommitCeiling > maxCommitCeiling {
		return nil, fmt.Errorf("COMMIT_CEILING must be within 1..%d, got %d", maxCommitCeiling, s.CommitCeiling)
	}
	if s.SearchIndexBatch <= 0 {
		s.SearchIndexBatch = 500
	}
	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
	s.CORSAllowedOrigins = trimNonEmpty(s.CORSAllowedOrigins)
	s.BottleMarkers = trimNonEmpty(s.BottleMarkers)
	s.WineMarkers = trimNonEmpty(s.WineMarkers)
	return &s, nil
}

func (s *Settings) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(s.GoEnv), "production")
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
