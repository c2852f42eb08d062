package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User:     "buildx",
		Password: "secret",
		Name:     "buildx",
	})
	require.NoError(t, err)
	require.Equal(t, "host=localhost port=5432 user=buildx dbname=buildx password=secret sslmode=disable", dsn)

	dsn, err = buildPostgresDSN(Config{
		Host: "db.internal",
		Port: 5433,
		User: "svc",
		Name: "app",
		Options: map[string]string{
			"sslmode": "require",
		},
	})
	require.NoError(t, err)
	require.Equal(t, "host=db.internal port=5433 user=svc dbname=app sslmode=require", dsn)

	_, err = buildPostgresDSN(Config{User: "only-user"})
	require.Error(t, err)

	dsn, err = buildPostgresDSN(Config{DSN: "postgres://custom"})
	require.NoError(t, err)
	require.Equal(t, "postgres://custom", dsn)
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User:     "buildx",
		Password: "secret",
		Name:     "buildx",
	})
	require.NoError(t, err)
	require.Equal(t, "buildx:secret@tcp(127.0.0.1:3306)/buildx?charset=utf8mb4&loc=Local&parseTime=True", dsn)

	_, err = buildMySQLDSN(Config{Name: "missing-user"})
	require.Error(t, err)

	dsn, err = buildMySQLDSN(Config{DSN: "user@tcp(host)/db"})
	require.NoError(t, err)
	require.Equal(t, "user@tcp(host)/db", dsn)
}
