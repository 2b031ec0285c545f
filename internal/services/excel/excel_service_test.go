package excel

import (
	"bytes"
	"testing"
	"time"

	"github.com/onegreenvn/crm-campaign-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestColumnToLetter(t *testing.T) {
	assert.Equal(t, "A", columnToLetter(1))
	assert.Equal(t, "Z", columnToLetter(26))
	assert.Equal(t, "AA", columnToLetter(27))
}

func TestWriteCampaignHistory(t *testing.T) {
	items := []models.CampaignHistoryItem{{
		CampaignName:  "Summer",
		Date:          "2025-06-15",
		AudienceSize:  3,
		Delivered:     2,
		Failed:        1,
		DeliveryRate:  66.67,
		LastSentAt:    time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC),
		SampleMessage: "Hi An, summer is here",
	}}

	var buf bytes.Buffer
	require.NoError(t, NewExcelService().WriteCampaignHistory(&buf, items))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(historySheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, historyColumns, rows[0])
	assert.Equal(t, "audience_size", rows[0][2])
	assert.Equal(t, "3", rows[1][2])
	assert.Equal(t, "Summer", rows[1][0])
	assert.Equal(t, "66.67", rows[1][6])
}
