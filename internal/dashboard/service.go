// Package dashboard summarises jobs and stock for the landing page.
package dashboard

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/phoenix-garage/garage/internal/inventory"
	"github.com/phoenix-garage/garage/internal/jobcard"
)

// LowStockPreview is how many low-stock parts the overview lists.
const LowStockPreview = 5

// JobLister lists jobs.
type JobLister interface {
	List(ctx context.Context, filter jobcard.ListFilter) ([]jobcard.Job, error)
}

// PartLister lists parts below the low-stock threshold.
type PartLister interface {
	LowStock(ctx context.Context) ([]inventory.Part, error)
}

// Overview is the dashboard payload.
type Overview struct {
	OpenJobs       int              `json:"openJobs"`
	InProgressJobs int              `json:"inProgressJobs"`
	FinishedJobs   int              `json:"finishedJobs"`
	TotalJobs      int              `json:"totalJobs"`
	UnpaidJobs     int              `json:"unpaidJobs"`
	Outstanding    decimal.Decimal  `json:"outstanding"`
	LowStockCount  int              `json:"lowStockCount"`
	LowStock       []inventory.Part `json:"lowStock"`
}

// Service builds the overview.
type Service struct {
	jobs  JobLister
	parts PartLister
}

// NewService constructs Service.
func NewService(jobs JobLister, parts PartLister) *Service {
	return &Service{jobs: jobs, parts: parts}
}

// Overview loads jobs and low-stock parts concurrently.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	var (
		jobs  []jobcard.Job
		parts []inventory.Part
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		jobs, err = s.jobs.List(ctx, jobcard.ListFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		parts, err = s.parts.LowStock(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return summarise(jobs, parts), nil
}

func summarise(jobs []jobcard.Job, parts []inventory.Part) Overview {
	o := Overview{TotalJobs: len(jobs), Outstanding: decimal.Zero, LowStockCount: len(parts)}
	for _, j := range jobs {
		switch j.Status {
		case jobcard.StatusOpen:
			o.OpenJobs++
		case jobcard.StatusInProgress:
			o.InProgressJobs++
		case jobcard.StatusFinished:
			o.FinishedJobs++
		}
		if j.PaymentStatus == jobcard.PaymentPaid {
			continue
		}
		o.UnpaidJobs++
		due := j.TotalAmount
		if j.PaymentStatus == jobcard.PaymentAdvance {
			due = due.Sub(j.AdvanceAmount)
		}
		if due.IsPositive() {
			o.Outstanding = o.Outstanding.Add(due)
		}
	}

	sorted := make([]inventory.Part, len(parts))
	copy(sorted, parts)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].StockQty < sorted[b].StockQty })
	if len(sorted) > LowStockPreview {
		sorted = sorted[:LowStockPreview]
	}
	o.LowStock = sorted
	return o
}
