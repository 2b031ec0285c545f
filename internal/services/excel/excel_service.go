package excel

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/onegreenvn/crm-campaign-backend/internal/models"
	"github.com/xuri/excelize/v2"
)

const historySheetName = "Campaigns"

var historyColumns = []string{
	"campaign_name", "date", "audience_size", "delivered", "failed", "pending",
	"delivery_rate", "last_sent_at", "sample_message",
}

// Service renders reports as Excel workbooks
type Service struct{}

func NewExcelService() *Service {
	return &Service{}
}

// WriteCampaignHistory writes one row per campaign and day to w.
// Rows with failed deliveries are highlighted; rows still pending are shaded.
func (s *Service) WriteCampaignHistory(w io.Writer, items []models.CampaignHistoryItem) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), historySheetName); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	f.SetActiveSheet(0)

	for i, col := range historyColumns {
		f.SetCellValue(historySheetName, cellName(i+1, 1), col)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"FFFF00"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err == nil {
		f.SetCellStyle(historySheetName, "A1", cellName(len(historyColumns), 1), headerStyle)
	}

	failedStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"F8CBAD"}, Pattern: 1}, // light red
	})
	pendingStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"D9D9D9"}, Pattern: 1}, // gray
	})

	for i, col := range historyColumns {
		letter := columnToLetter(i + 1)
		width := 14.0
		switch col {
		case "campaign_name":
			width = 30.0
		case "last_sent_at":
			width = 22.0
		case "sample_message":
			width = 60.0
		}
		f.SetColWidth(historySheetName, letter, letter, width)
	}

	if len(items) == 0 {
		f.SetCellValue(historySheetName, "A2", "no campaigns found")
	}
	for j, item := range items {
		row := j + 2
		values := []interface{}{
			item.CampaignName, item.Date, item.AudienceSize, item.Delivered, item.Failed, item.Pending,
			item.DeliveryRate, item.LastSentAt.Format(time.RFC3339), item.SampleMessage,
		}
		for i, v := range values {
			f.SetCellValue(historySheetName, cellName(i+1, row), v)
		}

		switch {
		case item.Failed > 0:
			f.SetCellStyle(historySheetName, cellName(1, row), cellName(len(historyColumns), row), failedStyle)
		case item.Pending > 0:
			f.SetCellStyle(historySheetName, cellName(1, row), cellName(len(historyColumns), row), pendingStyle)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}

func cellName(col, row int) string {
	return columnToLetter(col) + strconv.Itoa(row)
}

// columnToLetter converts a 1-based column number to its Excel letters
func columnToLetter(col int) string {
	var result string
	for col > 0 {
		col--
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}
