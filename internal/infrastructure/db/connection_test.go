package db

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, 10, config.MaxOpenConns)
	assert.Equal(t, 5, config.MaxIdleConns)
	assert.Equal(t, 30*time.Minute, config.ConnMaxLifetime)
	assert.Equal(t, 30*time.Second, config.QueryTimeout)
	assert.False(t, config.Enabled)
	assert.NoError(t, config.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"enabled without dsn", func(c *Config) { c.Enabled = true }, "DSN is required"},
		{"no connections", func(c *Config) { c.MaxOpenConns = 0 }, "max_open_conns"},
		{"idle exceeds open", func(c *Config) { c.MaxIdleConns = 20 }, "cannot exceed"},
		{"zero timeout", func(c *Config) { c.QueryTimeout = 0 }, "query_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNewManager_Disabled(t *testing.T) {
	manager, err := NewManager(Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, manager.IsEnabled())
	assert.Nil(t, manager.Repository())
	assert.Nil(t, manager.DB())
	assert.NoError(t, manager.Close())
	assert.Error(t, manager.Migrate(context.Background()))

	health := manager.Health().Health(context.Background())
	assert.True(t, health.Healthy)
	assert.Contains(t, health.Errors[0], "disabled")
	assert.NoError(t, manager.Health().Ping(context.Background()))

	stats := manager.Health().Stats(context.Background())
	assert.False(t, stats["enabled"].(bool))
}

func TestNewManager_MissingDSN(t *testing.T) {
	_, err := NewManager(Config{Enabled: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DSN is required")
}

func TestManager_WithMockDB(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockDB.Close()

	config := DefaultConfig()
	config.Enabled = true
	config.DSN = "mock"
	m := newManagerWithDB(sqlx.NewDb(mockDB, "postgres"), config)

	assert.True(t, m.IsEnabled())
	require.NotNil(t, m.Repository())
	assert.NotNil(t, m.Repository().Events)
	assert.NotNil(t, m.Repository().Switches)

	mock.ExpectPing()
	health := m.Health().Health(context.Background())
	assert.True(t, health.Healthy)
	assert.Empty(t, health.Errors)

	mock.ExpectPing().WillReturnError(sqlmock.ErrCancelled)
	health = m.Health().Health(context.Background())
	assert.False(t, health.Healthy)
	require.Len(t, health.Errors, 1)
	assert.Contains(t, health.Errors[0], "ping failed")

	for i := 0; i < 4; i++ {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, m.Migrate(context.Background()))

	stats := m.Health().Stats(context.Background())
	assert.True(t, stats["enabled"].(bool))
	assert.Contains(t, stats, "open_connections")

	assert.NoError(t, mock.ExpectationsWereMet())
}
