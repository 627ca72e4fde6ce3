package service

import (
	"context"

	"github.com/xxxsen/ragchat/internal/repo"
)

// AdminService exposes the accounting aggregates behind the admin
// dashboard: spend totals, per-model and per-day breakdowns and the
// most cited sources.
type AdminService struct {
	usages  *repo.UsageRepo
	sources *repo.SourceRepo
}

func NewAdminService(usages *repo.UsageRepo, sources *repo.SourceRepo) *AdminService {
	return &AdminService{usages: usages, sources: sources}
}

func (s *AdminService) UsageTotals(ctx context.Context, from, to int64) (*repo.UsageTotals, error) {
	return s.usages.Totals(ctx, from, to)
}

func (s *AdminService) UsageByModel(ctx context.Context, from, to int64) ([]repo.ModelUsage, error) {
	return s.usages.TotalsByModel(ctx, from, to)
}

func (s *AdminService) UsageByDay(ctx context.Context, from, to int64) ([]repo.DailyUsage, error) {
	return s.usages.TotalsByDay(ctx, from, to)
}

func (s *AdminService) TopSources(ctx context.Context, limit uint) ([]repo.SourcePopularity, error) {
	if limit == 0 || limit > 100 {
		limit = 20
	}
	return s.sources.ListByPopularity(ctx, limit)
}
