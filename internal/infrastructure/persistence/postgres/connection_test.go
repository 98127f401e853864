package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsConfigError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"bad password", &pgconn.PgError{Code: "28P01"}, true},
		{"no such role", fmt.Errorf("ping: %w", &pgconn.PgError{Code: "28000"}), true},
		{"unknown database", &pgconn.PgError{Code: "3D000"}, true},
		{"starting up", &pgconn.PgError{Code: "57P03"}, false},
		{"too many clients", &pgconn.PgError{Code: "53300"}, false},
		{"dial", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isConfigError(tt.err))
		})
	}
}
