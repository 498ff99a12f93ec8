package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type widget struct {
	ID   uint
	Name string `gorm:"uniqueIndex"`
}

func TestPluginModule_StartRunsMigrations(t *testing.T) {
	calls := 0
	m := NewPluginModule(Config{Driver: DriverSQLite, Path: ":memory:"},
		func(db *gorm.DB) error { calls++; return db.AutoMigrate(&widget{}) },
		func(db *gorm.DB) error { calls++; return nil },
	)

	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	assert.Equal(t, 2, calls)
	assert.True(t, m.DB().Migrator().HasTable(&widget{}))

	health := m.Health(context.Background())
	assert.True(t, health.Healthy)
	assert.Equal(t, "sqlite", health.Details["driver"])
}

func TestOpen_TranslatesDuplicateKey(t *testing.T) {
	db, err := Open(Config{Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&widget{}))

	require.NoError(t, db.Create(&widget{Name: "a"}).Error)
	err = db.Create(&widget{Name: "a"}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(Config{Driver: DriverPostgres})
	assert.Error(t, err)

	_, err = Open(Config{Driver: "oracle"})
	assert.ErrorContains(t, err, "unsupported")
}

func TestPluginModule_HealthBeforeStart(t *testing.T) {
	m := NewPluginModule(Config{})
	assert.False(t, m.Health(context.Background()).Healthy)
	assert.Equal(t, DriverSQLite, m.Driver())
}
