package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// baseViper holds defaults plus the settings that have none.
func baseViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.Set("postgres.dsn", "postgres://localhost/pixelhost")
	v.Set("security.jwtaccesssecret", "test-secret")
	return v
}

func TestDefaults(t *testing.T) {
	v := baseViper()

	cfg, err := decode(v)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, "i.pxl.blue", cfg.Upload.DefaultHost)
	assert.Equal(t, 8, cfg.Upload.ShortIDLength)
	assert.Equal(t, 24, cfg.Upload.SecretBytes)
	assert.Equal(t, int64(50<<20), cfg.Upload.MaxBytes)
	assert.Equal(t, "images:purge", cfg.Purge.Stream)
	assert.Equal(t, 16, cfg.Purge.Concurrency)
	assert.Equal(t, 15*time.Minute, cfg.Purge.JobTimeout)
	assert.True(t, cfg.Reconcile.Enabled)
}

func TestOverridesAndSlices(t *testing.T) {
	v := baseViper()
	v.Set("allowcorsorigins", "https://a.example,https://b.example")
	v.Set("purge.claiminterval", "45s")

	cfg, err := decode(v)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowCORSOrigins)
	assert.Equal(t, 45*time.Second, cfg.Purge.ClaimInterval)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{name: "short id too short", key: "upload.shortidlength", val: 2},
		{name: "weak secrets", key: "upload.secretbytes", val: 8},
		{name: "no id attempts", key: "upload.maxidattempts", val: 0},
		{name: "no workers", key: "purge.workers", val: 0},
		{name: "no fan-out", key: "purge.concurrency", val: 0},
		{name: "no dsn", key: "postgres.dsn", val: ""},
		{name: "no jwt secret", key: "security.jwtaccesssecret", val: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := baseViper()
			v.Set(tt.key, tt.val)

			_, err := decode(v)
			assert.Error(t, err)
		})
	}
}

func TestLoadReadsSettingsWithoutDefaultsFromEnv(t *testing.T) {
	t.Setenv("PIXELHOST_POSTGRES_DSN", "postgres://db/pixelhost")
	t.Setenv("PIXELHOST_SECURITY_JWTACCESSSECRET", "from-env")
	t.Setenv("PIXELHOST_STORAGE_ENDPOINT", "minio:9000")
	t.Setenv("PIXELHOST_STORAGE_ACCESSKEY", "access")
	t.Setenv("PIXELHOST_STORAGE_SECRETKEY", "secret")
	t.Setenv("PIXELHOST_REDIS_PASSWORD", "hunter2")
	t.Setenv("PIXELHOST_ALLOWCORSORIGINS", "https://pxl.blue")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://db/pixelhost", cfg.Postgres.DSN)
	assert.Equal(t, "from-env", cfg.Security.JWTAccessSecret)
	assert.Equal(t, "minio:9000", cfg.Storage.Endpoint)
	assert.Equal(t, "access", cfg.Storage.AccessKey)
	assert.Equal(t, "secret", cfg.Storage.SecretKey)
	assert.Equal(t, "hunter2", cfg.Redis.Password)
	assert.Equal(t, []string{"https://pxl.blue"}, cfg.AllowCORSOrigins)
}

func TestLoadRejectsMissingJWTSecret(t *testing.T) {
	t.Setenv("PIXELHOST_POSTGRES_DSN", "postgres://db/pixelhost")
	t.Setenv("PIXELHOST_SECURITY_JWTACCESSSECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "jwtaccesssecret")
}
