package db

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrateDSN(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{"short scheme", "postgres://u:p@localhost:5432/db", "pgx5://u:p@localhost:5432/db"},
		{"long scheme", "postgresql://u:p@localhost:5432/db?sslmode=disable", "pgx5://u:p@localhost:5432/db?sslmode=disable"},
		{"already pgx5", "pgx5://u:p@localhost/db", "pgx5://u:p@localhost/db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, migrateDSN(tt.dsn))
		})
	}
}

func TestMigrations_Embedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)

	// every up migration must have a down pair
	require.NotEmpty(t, entries)
	require.Zero(t, len(entries)%2, "migrations must go in up/down pairs")
}
