package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/referral-bot/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host: "db", Port: 5433, User: "bot", Password: "pw", Name: "referral_bot", SSLMode: "require",
	})
	assert.Equal(t, "host=db port=5433 user=bot password=pw dbname=referral_bot sslmode=require", dsn)
}
