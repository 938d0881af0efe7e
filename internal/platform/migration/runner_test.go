// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToPgx5DSN(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"postgres_scheme", "postgres://u:p@db:5432/app", "pgx5://u:p@db:5432/app"},
		{"postgresql_scheme", "postgresql://db/app?sslmode=disable", "pgx5://db/app?sslmode=disable"},
		{"already_pgx5", "pgx5://db/app", "pgx5://db/app"},
		{"keyword_dsn", "host=db dbname=app", "host=db dbname=app"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toPgx5DSN(tt.in))
		})
	}
}
