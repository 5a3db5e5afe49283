package service

import (
	"context"

	"github.com/spec-kit/road-maintenance/internal/domain"
	"github.com/spec-kit/road-maintenance/internal/repository"
)

// lookupAccounts loads the referenced accounts keyed by id, skipping nil and repeated ids.
func lookupAccounts(ctx context.Context, repo repository.AccountRepository, ids []*string) (map[string]*domain.Account, error) {
	seen := map[string]struct{}{}
	var unique []string
	for _, id := range ids {
		if id == nil {
			continue
		}
		if _, ok := seen[*id]; ok {
			continue
		}
		seen[*id] = struct{}{}
		unique = append(unique, *id)
	}
	if len(unique) == 0 {
		return map[string]*domain.Account{}, nil
	}
	return repo.GetByIDs(ctx, unique)
}

// Accounts resolves account references for presentation.
func (s *IssueService) Accounts(ctx context.Context, ids ...*string) (map[string]*domain.Account, error) {
	return lookupAccounts(ctx, s.accounts, ids)
}

// Accounts resolves account references for presentation.
func (s *ReportService) Accounts(ctx context.Context, ids ...*string) (map[string]*domain.Account, error) {
	return lookupAccounts(ctx, s.accounts, ids)
}
