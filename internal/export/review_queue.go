// Package export renders tenant data into spreadsheet downloads.
package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docintel/internal/entity"
)

const reviewSheet = "Review Queue"

var reviewHeaders = []string{
	"Item Index",
	"Priority",
	"Item Type",
	"Text",
	"OCR Confidence",
	"Overall Confidence",
	"Detected Flags",
	"Reason",
	"Page",
	"Reviewed",
	"Reviewed By",
	"Notes",
}

func priorityRank(p entity.ReviewPriority) int {
	switch p {
	case entity.PriorityHigh:
		return 0
	case entity.PriorityMedium:
		return 1
	default:
		return 2
	}
}

// ReviewQueueXLSX returns a workbook listing the items of job that need
// review, highest priority first and in reading order within a priority.
func ReviewQueueXLSX(job *entity.DocumentJob, items []*entity.DocumentItem) ([]byte, error) {
	queue := make([]*entity.DocumentItem, 0, len(items))
	for _, it := range items {
		if it.NeedsReview {
			queue = append(queue, it)
		}
	}
	sort.SliceStable(queue, func(i, j int) bool {
		ri, rj := priorityRank(queue[i].ReviewPriority), priorityRank(queue[j].ReviewPriority)
		if ri != rj {
			return ri < rj
		}
		return queue[i].ItemIndex < queue[j].ItemIndex
	})

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", reviewSheet); err != nil {
		return nil, err
	}
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:       fmt.Sprintf("Review queue %s", job.ID),
		Subject:     job.OriginalFilename,
		Identifier:  job.ID.String(),
		Description: job.CorrelationID,
	}); err != nil {
		return nil, err
	}

	for i, h := range reviewHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(reviewSheet, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(reviewHeaders), 1)
		_ = f.SetCellStyle(reviewSheet, "A1", last, style)
	}

	row := 2
	for _, it := range queue {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(reviewSheet, cell, v)
		}

		write(1, it.ItemIndex)
		write(2, string(it.ReviewPriority))
		write(3, it.ItemType)
		write(4, truncate(it.RawText, 500))
		write(5, it.OCRConfidence)
		write(6, it.OverallConfidence)
		write(7, strings.Join(it.Flags.DetectedNames(), ", "))
		write(8, it.ReviewReason)
		write(9, it.Evidence.Page)
		write(10, it.IsReviewed)
		if it.ReviewedBy != nil {
			write(11, *it.ReviewedBy)
		}
		if it.ReviewNotes != nil {
			write(12, *it.ReviewNotes)
		}
		row++
	}

	_ = f.SetColWidth(reviewSheet, "A", "C", 12)
	_ = f.SetColWidth(reviewSheet, "D", "D", 60) // text
	_ = f.SetColWidth(reviewSheet, "E", "G", 16)
	_ = f.SetColWidth(reviewSheet, "H", "H", 60) // reason
	_ = f.SetColWidth(reviewSheet, "I", "K", 12)
	_ = f.SetColWidth(reviewSheet, "L", "L", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
