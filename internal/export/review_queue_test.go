package export

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docintel/internal/entity"
)

func TestReviewQueueXLSX(t *testing.T) {
	reviewer := "ana"
	job := &entity.DocumentJob{ID: uuid.New(), OriginalFilename: "rx.png", CorrelationID: "corr-1"}
	items := []*entity.DocumentItem{
		{ItemIndex: 0, NeedsReview: true, ReviewPriority: entity.PriorityMedium, RawText: "first", ReviewReason: "Low OCR confidence (0.60)"},
		{ItemIndex: 1, NeedsReview: false, ReviewPriority: entity.PriorityLow, RawText: "clean"},
		{ItemIndex: 2, NeedsReview: true, ReviewPriority: entity.PriorityHigh, RawText: "third",
			Flags: entity.Flags{"illegible": {Detected: true, Confidence: 0.9}}, IsReviewed: true, ReviewedBy: &reviewer},
	}

	data, err := ReviewQueueXLSX(job, items)
	if err != nil {
		t.Fatalf("ReviewQueueXLSX() = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(reviewSheet)
	if err != nil {
		t.Fatalf("GetRows() = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Item Index" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "2" || rows[1][1] != "high" || rows[1][6] != "illegible" || rows[1][10] != "ana" {
		t.Errorf("first row = %v", rows[1])
	}
	if rows[2][0] != "0" || rows[2][7] != "Low OCR confidence (0.60)" {
		t.Errorf("second row = %v", rows[2])
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abc", 4); got != "abc" {
		t.Errorf("truncate = %q", got)
	}
}
