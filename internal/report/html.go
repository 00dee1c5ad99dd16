package report

//go:generate templ generate

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pavelanni/literable/internal/model"
)

// Write renders the report page to w.
func Write(ctx context.Context, w io.Writer, r *model.Report, generated time.Time) error {
	return Page(r, generated).Render(ctx, w)
}

func totalLabel(r *model.Report) string {
	sum, _ := r.Total()
	return fmt.Sprintf("%d / %d", sum, len(r.Rows)*100)
}

func scoredCount(r *model.Report) int {
	_, scored := r.Total()
	return scored
}
