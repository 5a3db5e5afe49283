// Package memory provides in-memory repository and storage fakes for tests.
// Writes are not transactional: a rolled back transaction keeps whatever the fakes stored.
package memory

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/road-maintenance/internal/auth"
	"github.com/spec-kit/road-maintenance/internal/domain"
	"github.com/spec-kit/road-maintenance/internal/repository"
)

// Clock hands out strictly increasing timestamps so ordering by time is deterministic.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)}
}

// Tick advances the clock by one second and returns the new time.
func (c *Clock) Tick() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func sameID(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Accounts implements repository.AccountRepository.
type Accounts struct {
	mu    sync.Mutex
	clock *Clock
	ByID  map[string]domain.Account
}

func NewAccounts(c *Clock) *Accounts {
	return &Accounts{clock: c, ByID: map[string]domain.Account{}}
}

func (f *Accounts) Create(_ context.Context, a *domain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.ByID {
		if strings.EqualFold(existing.Email, a.Email) {
			return repository.ErrDuplicate
		}
	}
	a.ID = uuid.NewString()
	a.CreatedAt = f.clock.Tick()
	a.UpdatedAt = a.CreatedAt
	f.ByID[a.ID] = *a
	return nil
}

func (f *Accounts) Update(_ context.Context, a *domain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ByID[a.ID]; !ok {
		return pgx.ErrNoRows
	}
	for id, existing := range f.ByID {
		if id != a.ID && strings.EqualFold(existing.Email, a.Email) {
			return repository.ErrDuplicate
		}
	}
	a.UpdatedAt = f.clock.Tick()
	f.ByID[a.ID] = *a
	return nil
}

func (f *Accounts) GetByID(_ context.Context, id string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.ByID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

func (f *Accounts) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.ByID {
		if strings.EqualFold(a.Email, email) {
			found := a
			return &found, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *Accounts) GetByIDs(_ context.Context, ids []string) (map[string]*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]*domain.Account{}
	for _, id := range ids {
		if a, ok := f.ByID[id]; ok {
			found := a
			out[id] = &found
		}
	}
	return out, nil
}

func (f *Accounts) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.ByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	a.LastLoginAt = &at
	f.ByID[id] = a
	return nil
}

// Seed stores an account, defaulting the password to "initial-pass" and the role to VIEWER.
func (f *Accounts) Seed(t *testing.T, a domain.Account) *domain.Account {
	t.Helper()
	if a.PasswordHash == "" {
		hash, err := auth.HashPassword("initial-pass", 4)
		if err != nil {
			t.Fatal(err)
		}
		a.PasswordHash = hash
	}
	if a.Role == "" {
		a.Role = domain.RoleViewer
	}
	if err := f.Create(context.Background(), &a); err != nil {
		t.Fatal(err)
	}
	return &a
}

// Activities implements repository.ActivityRepository.
type Activities struct {
	mu      sync.Mutex
	Records []domain.ActivityRecord
}

func (f *Activities) Create(_ context.Context, r *domain.ActivityRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = uuid.NewString()
	r.CreatedAt = time.Now()
	f.Records = append(f.Records, *r)
	return nil
}

func (f *Activities) ListByAccount(_ context.Context, accountID string, _, _ int) ([]domain.ActivityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ActivityRecord
	for i := len(f.Records) - 1; i >= 0; i-- {
		if f.Records[i].AccountID == accountID {
			out = append(out, f.Records[i])
		}
	}
	return out, nil
}

// Actions lists the recorded action labels for an account in insertion order.
func (f *Activities) Actions(accountID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.Records {
		if r.AccountID == accountID {
			out = append(out, r.Action)
		}
	}
	return out
}

// PasswordResets implements repository.PasswordResetRepository.
type PasswordResets struct {
	mu     sync.Mutex
	Tokens map[string]domain.PasswordResetToken
}

func NewPasswordResets() *PasswordResets {
	return &PasswordResets{Tokens: map[string]domain.PasswordResetToken{}}
}

func (f *PasswordResets) Create(_ context.Context, t *domain.PasswordResetToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = uuid.NewString()
	t.CreatedAt = time.Now()
	f.Tokens[t.Token] = *t
	return nil
}

func (f *PasswordResets) GetByToken(_ context.Context, token string) (*domain.PasswordResetToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.Tokens[token]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (f *PasswordResets) MarkUsed(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, t := range f.Tokens {
		if t.ID == id {
			t.UsedAt = &at
			f.Tokens[k] = t
		}
	}
	return nil
}

func (f *PasswordResets) DeleteForAccount(_ context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, t := range f.Tokens {
		if t.AccountID == accountID && t.UsedAt == nil {
			delete(f.Tokens, k)
		}
	}
	return nil
}

// ForAccount returns every stored token belonging to the account.
func (f *PasswordResets) ForAccount(accountID string) []domain.PasswordResetToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.PasswordResetToken
	for _, t := range f.Tokens {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	return out
}

// Issues implements repository.IssueRepository. FailWrite, when set, fails Create and Update.
type Issues struct {
	mu        sync.Mutex
	clock     *Clock
	ByID      map[string]domain.Issue
	FailWrite error
}

func NewIssues(c *Clock) *Issues {
	return &Issues{clock: c, ByID: map[string]domain.Issue{}}
}

func (f *Issues) Create(_ context.Context, i *domain.Issue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWrite != nil {
		return f.FailWrite
	}
	i.ID = uuid.NewString()
	i.CreatedAt = f.clock.Tick()
	i.UpdatedAt = i.CreatedAt
	f.ByID[i.ID] = *i
	return nil
}

func (f *Issues) Update(_ context.Context, i *domain.Issue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWrite != nil {
		return f.FailWrite
	}
	if _, ok := f.ByID[i.ID]; !ok {
		return pgx.ErrNoRows
	}
	i.UpdatedAt = f.clock.Tick()
	f.ByID[i.ID] = *i
	return nil
}

func (f *Issues) GetByID(_ context.Context, id string) (*domain.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.ByID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &i, nil
}

func (f *Issues) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ByID[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.ByID, id)
	return nil
}

func (f *Issues) matching(filter repository.IssueFilter) []domain.Issue {
	var out []domain.Issue
	for _, i := range f.ByID {
		if filter.Status != nil && i.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && i.Priority != *filter.Priority {
			continue
		}
		if filter.AssignedToID != nil && !sameID(i.AssignedToID, filter.AssignedToID) {
			continue
		}
		if filter.CreatedByID != nil && !sameID(i.CreatedByID, filter.CreatedByID) {
			continue
		}
		if filter.InvolvingID != nil && !sameID(i.CreatedByID, filter.InvolvingID) && !sameID(i.AssignedToID, filter.InvolvingID) {
			continue
		}
		if filter.Search != nil {
			q := strings.ToLower(*filter.Search)
			if !strings.Contains(strings.ToLower(i.Title+"\n"+i.Description+"\n"+i.Location), q) {
				continue
			}
		}
		if filter.HasCoordinates && !i.HasCoordinates() {
			continue
		}
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out
}

func (f *Issues) List(_ context.Context, filter repository.IssueFilter) ([]domain.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.matching(filter)
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if filter.Offset >= len(all) {
		return nil, nil
	}
	end := filter.Offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[filter.Offset:end], nil
}

func (f *Issues) Count(_ context.Context, filter repository.IssueFilter) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.matching(filter)), nil
}

func (f *Issues) StatsForAccount(_ context.Context, accountID string) (repository.IssueStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stats repository.IssueStats
	for _, i := range f.matching(repository.IssueFilter{InvolvingID: &accountID}) {
		switch i.Status {
		case domain.IssueStatusOpen:
			stats.Open++
		case domain.IssueStatusInProgress:
			stats.InProgress++
		case domain.IssueStatusResolved:
			stats.Resolved++
		}
		if sameID(i.AssignedToID, &accountID) && (i.Status == domain.IssueStatusOpen || i.Status == domain.IssueStatusInProgress) {
			stats.AssignedToMe++
		}
		if sameID(i.CreatedByID, &accountID) {
			stats.CreatedByMe++
		}
	}
	return stats, nil
}

// History implements repository.IssueHistoryRepository.
type History struct {
	mu      sync.Mutex
	clock   *Clock
	Entries []domain.IssueHistoryEntry
}

func NewHistory(c *Clock) *History {
	return &History{clock: c}
}

func (f *History) Create(_ context.Context, e *domain.IssueHistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = uuid.NewString()
	e.ChangedAt = f.clock.Tick()
	f.Entries = append(f.Entries, *e)
	return nil
}

func (f *History) ListByIssue(_ context.Context, issueID string) ([]domain.IssueHistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.IssueHistoryEntry
	for i := len(f.Entries) - 1; i >= 0; i-- {
		if f.Entries[i].IssueID == issueID {
			out = append(out, f.Entries[i])
		}
	}
	return out, nil
}

func (f *History) ListRecentForAccount(_ context.Context, _ string, limit int) ([]domain.IssueHistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.IssueHistoryEntry
	for i := len(f.Entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.Entries[i])
	}
	return out, nil
}

// ForIssue returns the rows of an issue in insertion order.
func (f *History) ForIssue(issueID string) []domain.IssueHistoryEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.IssueHistoryEntry
	for _, e := range f.Entries {
		if e.IssueID == issueID {
			out = append(out, e)
		}
	}
	return out
}

// Comments implements repository.IssueCommentRepository.
type Comments struct {
	mu       sync.Mutex
	Comments []domain.IssueComment
}

func (f *Comments) Create(_ context.Context, c *domain.IssueComment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	f.Comments = append(f.Comments, *c)
	return nil
}

func (f *Comments) ListByIssue(_ context.Context, issueID string) ([]domain.IssueComment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.IssueComment
	for _, c := range f.Comments {
		if c.IssueID == issueID {
			out = append(out, c)
		}
	}
	return out, nil
}

// Attachments implements repository.IssueAttachmentRepository. FailWrite, when set, fails Create.
type Attachments struct {
	mu        sync.Mutex
	ByID      map[string]domain.IssueAttachment
	FailWrite error
}

func NewAttachments() *Attachments {
	return &Attachments{ByID: map[string]domain.IssueAttachment{}}
}

func (f *Attachments) Create(_ context.Context, a *domain.IssueAttachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWrite != nil {
		return f.FailWrite
	}
	a.ID = uuid.NewString()
	a.UploadedAt = time.Now()
	f.ByID[a.ID] = *a
	return nil
}

func (f *Attachments) GetByID(_ context.Context, id string) (*domain.IssueAttachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.ByID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

func (f *Attachments) ListByIssue(_ context.Context, issueID string) ([]domain.IssueAttachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.IssueAttachment
	for _, a := range f.ByID {
		if a.IssueID == issueID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *Attachments) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ByID[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.ByID, id)
	return nil
}

// Store implements storage.Store.
type Store struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Deleted []string
}

func NewStore() *Store {
	return &Store{Objects: map[string][]byte{}}
}

func (f *Store) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Objects[key] = buf.Bytes()
	return "http://files.test/" + key, nil
}

func (f *Store) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Objects, key)
	f.Deleted = append(f.Deleted, key)
	return nil
}

// Reports implements repository.ReportRepository.
type Reports struct {
	mu    sync.Mutex
	clock *Clock
	ByID  map[string]domain.Report
}

func NewReports(c *Clock) *Reports {
	return &Reports{clock: c, ByID: map[string]domain.Report{}}
}

func (f *Reports) Create(_ context.Context, r *domain.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = uuid.NewString()
	r.CreatedAt = f.clock.Tick()
	r.UpdatedAt = r.CreatedAt
	f.ByID[r.ID] = *r
	return nil
}

func (f *Reports) Update(_ context.Context, r *domain.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ByID[r.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.UpdatedAt = f.clock.Tick()
	f.ByID[r.ID] = *r
	return nil
}

func (f *Reports) GetByID(_ context.Context, id string) (*domain.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.ByID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &r, nil
}

func (f *Reports) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ByID[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.ByID, id)
	return nil
}

func (f *Reports) List(_ context.Context, ownerID *string, _, _ int) ([]domain.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Report
	for _, r := range f.ByID {
		if ownerID != nil && r.CreatedByID != *ownerID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

// Revoker implements auth.Revoker.
type Revoker struct {
	mu      sync.Mutex
	Revoked map[string]time.Time
}

func NewRevoker() *Revoker {
	return &Revoker{Revoked: map[string]time.Time{}}
}

func (m *Revoker) Revoke(_ context.Context, id string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Revoked[id] = until
	return nil
}

func (m *Revoker) IsRevoked(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Revoked[id]
	return ok, nil
}
