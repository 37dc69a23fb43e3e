package database

import (
	"testing"

	"asset-ledger/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPostgres(t *testing.T) {
	assert.True(t, IsPostgres("postgres://u:p@db:5432/ledger"))
	assert.True(t, IsPostgres("postgresql://db/ledger"))
	assert.True(t, IsPostgres("host=db user=u dbname=ledger"))
	assert.False(t, IsPostgres("file:assets.db"))
	assert.False(t, IsPostgres(":memory:"))
}

func TestAutoMigrate_EnforcesContentHashUniqueness(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	for _, m := range Models() {
		assert.True(t, db.Migrator().HasTable(m))
	}

	tx := domain.Transaction{Date: domain.MustDate("2024-01-02"), Owner: "Kim", Account: "ISA", Asset: "원화", Type: domain.TxDeposit, Status: domain.StatusSettled, ContentHash: "abc"}
	require.NoError(t, db.Create(&tx).Error)
	dup := tx
	dup.TxID = uuid.Nil
	assert.Error(t, db.Create(&dup).Error)
}
