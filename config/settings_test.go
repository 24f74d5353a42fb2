package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsDefaults(t *testing.T) {
	t.Setenv("DOCSTORE_BACKEND", " Memory ")
	t.Setenv("NOTE_BOTTLE_MARKERS", "BTL, ,Φιάλη ")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://ops.example, ,https://admin.example")

	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "memory", s.Backend)
	assert.Equal(t, 400, s.CommitCeiling)
	assert.Equal(t, "sales-uploads", s.SalesUploadPrefix)
	assert.Equal(t, 10*time.Minute, s.JobLockTTL)
	assert.Equal(t, []string{"BTL", "Φιάλη"}, s.BottleMarkers)
	assert.Equal(t, []string{"https://ops.example", "https://admin.example"}, s.CORSAllowedOrigins)
	assert.False(t, s.IsProduction())
}

func TestLoadSettingsRejectsCeilingAboveStoreLimit(t *testing.T) {
	t.Setenv("COMMIT_CEILING", "501")
	_, err := LoadSettings()
	assert.Error(t, err)

	t.Setenv("COMMIT_CEILING", "500")
	_, err = LoadSettings()
	assert.NoError(t, err)
}
