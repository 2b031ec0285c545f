package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("VENDOR_API_URL", "")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "", cfg.Delivery.VendorURL)
	assert.Equal(t, "http://localhost:9090/api/v1/delivery-receipt", cfg.Delivery.CallbackURL)
	assert.Equal(t, 5*time.Second, cfg.Delivery.VendorTimeout)
	assert.Equal(t, 0, cfg.Delivery.MaxRetries)
	assert.Equal(t, "campaign_delivery", cfg.RabbitMQ.Queue)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("VENDOR_TIMEOUT", "2s")
	t.Setenv("VENDOR_MAX_RETRIES", "3")
	t.Setenv("DELIVERY_WORKERS", "not-a-number")

	cfg := Load()

	assert.Equal(t, 2*time.Second, cfg.Delivery.VendorTimeout)
	assert.Equal(t, 3, cfg.Delivery.MaxRetries)
	assert.Equal(t, 8, cfg.Delivery.Workers)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Host: "db", Port: "5432", User: "crm", Password: "secret", Name: "crm"},
		Delivery: DeliveryConfig{Workers: 4},
	}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "host=db port=5432 user=crm password=secret dbname=crm sslmode=", cfg.Database.DSN())

	cfg.Database.Password = ""
	assert.Error(t, cfg.Validate())
}
