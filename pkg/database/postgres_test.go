package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"transfer-core/pkg/config"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.DBConfig{
		Host: "db", Port: "5433", User: "u", Password: "p", Name: "transfers",
	})
	assert.Equal(t, "host=db user=u password=p dbname=transfers port=5433 sslmode=disable", dsn)
}
