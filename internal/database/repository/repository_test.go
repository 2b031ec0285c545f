package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/onegreenvn/crm-campaign-backend/internal/models"
	"github.com/onegreenvn/crm-campaign-backend/internal/segmentation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, mock
}

func TestAudienceRepository_CountAndFindUseSamePredicate(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAudienceRepository(db)
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	p, err := segmentation.Compile([]segmentation.Rule{
		{Field: "totalSpent", Operator: segmentation.OpGreaterThan, Value: 1000.0},
	}, now)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audience\s+WHERE \(total_spent > CAST\(\$2 AS double precision\)\)`).
		WithArgs(now, 1000.0).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	mock.ExpectQuery(`SELECT id, name, email, phone, total_spent, order_count FROM audience\s+WHERE \(total_spent > CAST\(\$2 AS double precision\)\)\s+ORDER BY created_at ASC, id ASC`).
		WithArgs(now, 1000.0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "phone", "total_spent", "order_count"}).
			AddRow("c1", "An", "an@example.com", "0900000001", 1500.0, 2).
			AddRow("c2", "Binh", "binh@example.com", "0900000002", 3200.0, 4))

	count, err := repo.CountAudience(context.Background(), p, now)
	require.NoError(t, err)
	members, err := repo.FindAudience(context.Background(), p, now)
	require.NoError(t, err)

	assert.Equal(t, int64(len(members)), count)
	assert.Equal(t, "Binh", members[1].Name)
	assert.Equal(t, int64(4), members[1].OrderCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommunicationLogRepository_MarkTerminalOnlyMovesPending(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommunicationLogRepository(db)
	at := time.Now()

	mock.ExpectExec(`UPDATE "communication_logs" SET .+ WHERE id = \$\d+ AND status = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "communication_logs" SET .+ WHERE id = \$\d+ AND status = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	moved, err := repo.MarkTerminal(context.Background(), "log-1", models.TerminalUpdate{Status: models.DeliverySent, DeliveredAt: at})
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = repo.MarkTerminal(context.Background(), "log-1", models.TerminalUpdate{Status: models.DeliveryFailed, DeliveredAt: at, FailureReason: "late"})
	require.NoError(t, err)
	assert.False(t, moved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommunicationLogRepository_CampaignHistory(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommunicationLogRepository(db)
	day := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	sent := day.Add(10 * time.Hour)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM \(SELECT 1 FROM communication_logs`).
		WithArgs("op-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT campaign_name,.+GROUP BY campaign_name, DATE\(created_at\)\s+ORDER BY last_sent_at DESC`).
		WithArgs("op-1", 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"campaign_name", "campaign_date", "total_sent", "delivered", "failed", "pending",
			"last_sent_at", "sample_message", "audience_rules",
		}).AddRow("Summer", day, 3, 2, 1, 0, sent, "Hi An, summer is here", []byte(`[]`)))

	rows, total, err := repo.CampaignHistory(context.Background(), "op-1", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, rows, 1)
	assert.Equal(t, "Summer", rows[0].CampaignName)
	assert.Equal(t, int64(2), rows[0].Delivered)
	assert.Equal(t, sent, rows[0].LastSentAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerRepository_DeleteMissing(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCustomerRepository(db)

	mock.ExpectExec(`DELETE FROM "customers" WHERE id = \$1`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerRepository_RecomputeSegmentsOnlyTouchesChangedRows(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCustomerRepository(db)
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-time.Duration(models.InactiveAfterDays+1) * 24 * time.Hour)

	mock.ExpectExec(`UPDATE customers AS c SET .* WHERE c.id = d.id\s+AND \(c.segment IS DISTINCT FROM d.segment OR c.is_active IS DISTINCT FROM d.is_active\)`).
		WithArgs(now, cutoff, cutoff, models.SegmentInactive,
			models.HighValueThreshold, models.SegmentHighValue, models.SegmentRegular).
		WillReturnResult(sqlmock.NewResult(0, 2))

	changed, err := repo.RecomputeSegments(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
