package repository

import (
	"testing"
	"time"

	"storefront/internal/domain/payment/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	assert.NoError(t, err)

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn: sqlDB,
	}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	assert.NoError(t, err)
	return db, mock
}

func TestAuditCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "payment_audits"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1"))
	mock.ExpectCommit()

	err := repo.Create(&model.PaymentAudit{
		OrderID:       "o1",
		SessionID:     "cs_123",
		PaymentMethod: "gcash",
		Amount:        108,
		PaidAt:        time.Now(),
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditExistsForSession(t *testing.T) {
	t.Run("Existing session returns true", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAuditRepository(db)

		mock.ExpectQuery(`SELECT count\(\*\) FROM "payment_audits"`).
			WithArgs("cs_123").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		exists, err := repo.ExistsForSession("cs_123")
		assert.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("Unknown session returns false", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAuditRepository(db)

		mock.ExpectQuery(`SELECT count\(\*\) FROM "payment_audits"`).
			WithArgs("cs_missing").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		exists, err := repo.ExistsForSession("cs_missing")
		assert.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestAuditList(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditRepository(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "payment_audits"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	rows := sqlmock.NewRows([]string{"id", "order_id", "session_id", "payment_method", "amount", "paid_at"}).
		AddRow("a1", "o1", "cs_1", "gcash", 108.0, time.Now()).
		AddRow("a2", "o2", "cs_2", "card", 48.2, time.Now().Add(-time.Hour))
	mock.ExpectQuery(`SELECT \* FROM "payment_audits"`).
		WillReturnRows(rows)

	audits, total, err := repo.List(0, 10)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, audits, 2)
	assert.Equal(t, "o1", audits[0].OrderID)
}
