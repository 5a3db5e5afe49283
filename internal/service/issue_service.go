package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/road-maintenance/internal/auth"
	"github.com/spec-kit/road-maintenance/internal/domain"
	"github.com/spec-kit/road-maintenance/internal/events"
	"github.com/spec-kit/road-maintenance/internal/history"
	"github.com/spec-kit/road-maintenance/internal/persistence"
	"github.com/spec-kit/road-maintenance/internal/repository"
	"github.com/spec-kit/road-maintenance/internal/storage"
	apperrors "github.com/spec-kit/road-maintenance/pkg/util/errorutil"
)

// DefaultMaxUploadBytes caps attachment size when no limit is configured.
const DefaultMaxUploadBytes int64 = 10 * 1024 * 1024

const (
	maxTitleLength    = 200
	maxLocationLength = 255
	maxFileNameLength = 255
)

// AllowedAttachmentTypes lists the accepted upload content types.
var AllowedAttachmentTypes = map[string]struct{}{
	"image/jpeg":         {},
	"image/png":          {},
	"image/gif":          {},
	"application/pdf":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"application/vnd.ms-excel": {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {},
	"text/plain": {},
}

// IssueService coordinates issue workflows.
type IssueService struct {
	issues      repository.IssueRepository
	comments    repository.IssueCommentRepository
	attachments repository.IssueAttachmentRepository
	accounts    repository.AccountRepository
	recorder    *history.Recorder
	store       storage.Store
	tx          *persistence.TxManager
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	maxUpload   int64
	now         func() time.Time
}

// IssueDependencies bundles collaborators for the issue service.
type IssueDependencies struct {
	IssueRepo      repository.IssueRepository
	CommentRepo    repository.IssueCommentRepository
	AttachmentRepo repository.IssueAttachmentRepository
	AccountRepo    repository.AccountRepository
	Recorder       *history.Recorder
	Store          storage.Store
	TxManager      *persistence.TxManager
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	MaxUploadBytes int64
}

// IssueCreateInput describes issue creation payload.
type IssueCreateInput struct {
	Title        string
	Description  string
	Status       string
	Priority     string
	AssignedToID *string
	DueDate      *time.Time
	Location     string
	Latitude     *float64
	Longitude    *float64
}

// IssueUpdateInput is a partial update; nil fields are left untouched.
type IssueUpdateInput struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	// AssignedToID set to "" removes the assignee.
	AssignedToID     *string
	DueDate          *time.Time
	ClearDueDate     bool
	Location         *string
	Latitude         *float64
	Longitude        *float64
	ClearCoordinates bool
}

// IssueListInput describes list filters as received from callers.
type IssueListInput struct {
	Status       string
	Priority     string
	Search       string
	AssignedToMe bool
	CreatedByMe  bool
	Limit        int
	Offset       int
}

// IssuePage is one page of issues with the total match count.
type IssuePage struct {
	Items []domain.Issue
	Total int
}

// IssueDetail aggregates an issue with its children.
type IssueDetail struct {
	Issue       *domain.Issue
	Comments    []domain.IssueComment
	Attachments []domain.IssueAttachment
	History     []domain.IssueHistoryEntry
}

// UploadInput describes a file received for an issue.
type UploadInput struct {
	FileName    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// Dashboard summarizes issues involving an account.
type Dashboard struct {
	Stats          repository.IssueStats
	RecentIssues   []domain.Issue
	RecentActivity []domain.IssueHistoryEntry
}

// NewIssueService constructs the service.
func NewIssueService(deps IssueDependencies) *IssueService {
	maxUpload := deps.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IssueService{
		issues:      deps.IssueRepo,
		comments:    deps.CommentRepo,
		attachments: deps.AttachmentRepo,
		accounts:    deps.AccountRepo,
		recorder:    deps.Recorder,
		store:       deps.Store,
		tx:          deps.TxManager,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
		maxUpload:   maxUpload,
		now:         time.Now,
	}
}

// Create stores a new issue owned by the actor. Status defaults to open, priority to medium.
func (s *IssueService) Create(ctx context.Context, actor *domain.Account, input IssueCreateInput) (*domain.Issue, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	issue := &domain.Issue{
		Title:        strings.TrimSpace(input.Title),
		Description:  strings.TrimSpace(input.Description),
		Status:       domain.IssueStatusOpen,
		Priority:     domain.IssuePriorityMedium,
		CreatedByID:  &actor.ID,
		AssignedToID: emptyToNil(input.AssignedToID),
		DueDate:      input.DueDate,
		Location:     strings.TrimSpace(input.Location),
		Latitude:     input.Latitude,
		Longitude:    input.Longitude,
	}
	if input.Status != "" {
		status, err := domain.ParseIssueStatus(input.Status)
		if err != nil {
			return nil, apperrors.NewFieldError("status", err.Error())
		}
		issue.Status = status
	}
	if input.Priority != "" {
		priority, err := domain.ParseIssuePriority(input.Priority)
		if err != nil {
			return nil, apperrors.NewFieldError("priority", err.Error())
		}
		issue.Priority = priority
	}
	if err := validateIssue(issue); err != nil {
		return nil, err
	}
	if err := s.ensureAssignee(ctx, issue.AssignedToID); err != nil {
		return nil, err
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.issues.Create(ctx, issue); err != nil {
			return err
		}
		s.publish(ctx, events.New(events.EventIssueCreated, actor.ID, events.IssueCreatedPayload{
			Title:    issue.Title,
			Priority: issue.Priority,
		}).ForIssue(issue.ID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return issue, nil
}

// List returns issues matching the filters, newest first.
func (s *IssueService) List(ctx context.Context, actor *domain.Account, input IssueListInput) (IssuePage, error) {
	filter := repository.IssueFilter{Limit: input.Limit, Offset: input.Offset}
	if input.Status != "" {
		status, err := domain.ParseIssueStatus(input.Status)
		if err != nil {
			return IssuePage{}, apperrors.NewFieldError("status", err.Error())
		}
		filter.Status = &status
	}
	if input.Priority != "" {
		priority, err := domain.ParseIssuePriority(input.Priority)
		if err != nil {
			return IssuePage{}, apperrors.NewFieldError("priority", err.Error())
		}
		filter.Priority = &priority
	}
	if search := strings.TrimSpace(input.Search); search != "" {
		filter.Search = &search
	}
	if actor != nil && input.AssignedToMe {
		filter.AssignedToID = &actor.ID
	}
	if actor != nil && input.CreatedByMe {
		filter.CreatedByID = &actor.ID
	}

	items, err := s.issues.List(ctx, filter)
	if err != nil {
		return IssuePage{}, err
	}
	total, err := s.issues.Count(ctx, filter)
	if err != nil {
		return IssuePage{}, err
	}
	return IssuePage{Items: items, Total: total}, nil
}

// Get loads an issue with its comments, attachments and history.
func (s *IssueService) Get(ctx context.Context, id string) (*IssueDetail, error) {
	issue, err := s.getIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	attachments, err := s.attachments.ListByIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	entries, err := s.recorder.ListByIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	return &IssueDetail{Issue: issue, Comments: comments, Attachments: attachments, History: entries}, nil
}

// History lists an issue's change rows, newest first.
func (s *IssueService) History(ctx context.Context, id string) ([]domain.IssueHistoryEntry, error) {
	if _, err := s.getIssue(ctx, id); err != nil {
		return nil, err
	}
	return s.recorder.ListByIssue(ctx, id)
}

// Update applies a partial edit. The caller must pass the access gate; one history row is
// written per changed field in the same transaction as the update.
func (s *IssueService) Update(ctx context.Context, actor *domain.Account, id string, input IssueUpdateInput) (*domain.Issue, []history.FieldChange, error) {
	issue, err := s.getIssue(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !auth.CanModifyIssue(actor, issue) {
		return nil, nil, apperrors.NewForbidden("you do not have permission to modify this issue")
	}

	updated := *issue
	if err := applyIssueUpdate(&updated, input); err != nil {
		return nil, nil, err
	}
	if err := validateIssue(&updated); err != nil {
		return nil, nil, err
	}
	if !sameID(issue.AssignedToID, updated.AssignedToID) {
		if err := s.ensureAssignee(ctx, updated.AssignedToID); err != nil {
			return nil, nil, err
		}
	}

	labels, err := s.accountLabels(ctx, issue, &updated)
	if err != nil {
		return nil, nil, err
	}
	changes := history.Diff(history.Snapshot(issue, labels), history.Snapshot(&updated, labels))
	if len(changes) == 0 {
		return issue, nil, nil
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.issues.Update(ctx, &updated); err != nil {
			return err
		}
		if _, err := s.recorder.RecordChanges(ctx, updated.ID, &actor.ID, changes); err != nil {
			return err
		}
		s.publish(ctx, events.New(events.EventIssueUpdated, actor.ID, events.IssueUpdatedPayload{
			Fields: history.Fields(changes),
		}).ForIssue(updated.ID))
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &updated, changes, nil
}

// UpdateStatus moves an issue to any status. Setting the current status is a no-op.
func (s *IssueService) UpdateStatus(ctx context.Context, actor *domain.Account, id, rawStatus string) (*domain.Issue, error) {
	issue, err := s.getIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanModifyIssue(actor, issue) {
		return nil, apperrors.NewForbidden("you do not have permission to modify this issue")
	}
	status, err := domain.ParseIssueStatus(rawStatus)
	if err != nil {
		return nil, apperrors.NewFieldError("status", err.Error())
	}
	if status == issue.Status {
		return issue, nil
	}

	change := history.FieldChange{Field: history.FieldStatus, OldValue: string(issue.Status), NewValue: string(status)}
	updated := *issue
	updated.Status = status
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.issues.Update(ctx, &updated); err != nil {
			return err
		}
		if _, err := s.recorder.RecordChanges(ctx, updated.ID, &actor.ID, []history.FieldChange{change}); err != nil {
			return err
		}
		s.publish(ctx, events.New(events.EventIssueUpdated, actor.ID, events.IssueUpdatedPayload{
			Fields: []string{history.FieldStatus},
		}).ForIssue(updated.ID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes an issue and, once committed, its stored files.
func (s *IssueService) Delete(ctx context.Context, actor *domain.Account, id string) error {
	issue, err := s.getIssue(ctx, id)
	if err != nil {
		return err
	}
	if !auth.CanModifyIssue(actor, issue) {
		return apperrors.NewForbidden("you do not have permission to delete this issue")
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		attachments, err := s.attachments.ListByIssue(ctx, id)
		if err != nil {
			return err
		}
		if err := s.issues.Delete(ctx, id); err != nil {
			return err
		}
		for _, attachment := range attachments {
			s.removeBlobAfterCommit(ctx, attachment.StorageKey)
		}
		s.publish(ctx, events.New(events.EventIssueDeleted, actor.ID, events.IssueDeletedPayload{
			Title: issue.Title,
		}).ForIssue(id))
		return nil
	})
}

// AddComment appends a comment and records a comment note in the history.
func (s *IssueService) AddComment(ctx context.Context, actor *domain.Account, issueID, content string) (*domain.IssueComment, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewFieldError("content", "This field may not be blank.")
	}
	if _, err := s.getIssue(ctx, issueID); err != nil {
		return nil, err
	}

	comment := &domain.IssueComment{IssueID: issueID, AuthorID: actor.ID, Content: content}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.comments.Create(ctx, comment); err != nil {
			return err
		}
		if _, err := s.recorder.RecordNote(ctx, issueID, &actor.ID, domain.HistoryFieldComment, history.CommentNote(content)); err != nil {
			return err
		}
		s.publish(ctx, events.New(events.EventIssueCommentAdded, actor.ID, events.IssueCommentAddedPayload{
			CommentID: comment.ID,
			Preview:   stringPreview(content, 120),
		}).ForIssue(issueID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// UploadAttachment validates and stores a file, then records its metadata and an attachment
// note. The stored object is removed again if the database write fails.
func (s *IssueService) UploadAttachment(ctx context.Context, actor *domain.Account, issueID string, input UploadInput) (*domain.IssueAttachment, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	contentType, err := s.validateUpload(input)
	if err != nil {
		return nil, err
	}
	if _, err := s.getIssue(ctx, issueID); err != nil {
		return nil, err
	}

	key := storage.AttachmentKey(s.now(), input.FileName)
	url, err := s.store.Put(ctx, key, input.Content, input.Size, contentType)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	attachment := &domain.IssueAttachment{
		IssueID:      issueID,
		StorageKey:   key,
		URL:          url,
		UploadedByID: &actor.ID,
	}
	attachment.ApplyUploadDefaults(domain.UploadInfo{
		Name:        storage.DisplayFileName(input.FileName),
		Size:        input.Size,
		ContentType: contentType,
	})

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.attachments.Create(ctx, attachment); err != nil {
			return err
		}
		if _, err := s.recorder.RecordNote(ctx, issueID, &actor.ID, domain.HistoryFieldAttachment, history.AttachmentNote(attachment.FileName)); err != nil {
			return err
		}
		s.publish(ctx, events.New(events.EventIssueAttachmentAdded, actor.ID, events.IssueAttachmentAddedPayload{
			AttachmentID: attachment.ID,
			FileName:     attachment.FileName,
		}).ForIssue(issueID))
		return nil
	})
	if err != nil {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("key", key), zap.Error(delErr))
		}
		return nil, err
	}
	return attachment, nil
}

// DeleteAttachment removes an attachment. Allowed for the uploader and for whoever passes the
// issue access gate.
func (s *IssueService) DeleteAttachment(ctx context.Context, actor *domain.Account, attachmentID string) error {
	attachment, err := s.attachments.GetByID(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("attachment", map[string]any{"id": attachmentID})
		}
		return err
	}
	issue, err := s.getIssue(ctx, attachment.IssueID)
	if err != nil {
		return err
	}
	if !auth.CanDeleteAttachment(actor, issue, attachment) {
		return apperrors.NewForbidden("you do not have permission to delete this attachment")
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.attachments.Delete(ctx, attachmentID); err != nil {
			return err
		}
		s.removeBlobAfterCommit(ctx, attachment.StorageKey)
		return nil
	})
}

// Dashboard returns counts, recent issues and recent history for issues involving the actor.
func (s *IssueService) Dashboard(ctx context.Context, actor *domain.Account) (*Dashboard, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	stats, err := s.issues.StatsForAccount(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	recent, err := s.issues.List(ctx, repository.IssueFilter{InvolvingID: &actor.ID, Limit: 5})
	if err != nil {
		return nil, err
	}
	activity, err := s.recorder.RecentForAccount(ctx, actor.ID, 10)
	if err != nil {
		return nil, err
	}
	return &Dashboard{Stats: stats, RecentIssues: recent, RecentActivity: activity}, nil
}

// MapIssues returns every issue that has coordinates.
func (s *IssueService) MapIssues(ctx context.Context) ([]domain.Issue, error) {
	return s.listAll(ctx, repository.IssueFilter{HasCoordinates: true})
}

// listAll pages through every issue matching the filter.
func (s *IssueService) listAll(ctx context.Context, filter repository.IssueFilter) ([]domain.Issue, error) {
	const pageSize = 100
	var all []domain.Issue
	for offset := 0; ; offset += pageSize {
		filter.Limit, filter.Offset = pageSize, offset
		page, err := s.issues.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

func (s *IssueService) getIssue(ctx context.Context, id string) (*domain.Issue, error) {
	issue, err := s.issues.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("issue", map[string]any{"id": id})
		}
		return nil, err
	}
	return issue, nil
}

func (s *IssueService) ensureAssignee(ctx context.Context, id *string) error {
	if id == nil {
		return nil
	}
	if _, err := s.accounts.GetByID(ctx, *id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewFieldError("assigned_to", "Invalid pk - object does not exist.")
		}
		return err
	}
	return nil
}

// accountLabels resolves the accounts referenced by either version of the issue to emails.
func (s *IssueService) accountLabels(ctx context.Context, before, after *domain.Issue) (map[string]string, error) {
	accounts, err := s.Accounts(ctx, before.CreatedByID, before.AssignedToID, after.CreatedByID, after.AssignedToID)
	if err != nil {
		return nil, err
	}
	labels := make(map[string]string, len(accounts))
	for id, account := range accounts {
		labels[id] = account.Email
	}
	return labels, nil
}

func (s *IssueService) validateUpload(input UploadInput) (string, error) {
	if input.Content == nil || input.Size <= 0 {
		return "", apperrors.NewFieldError("file", "The submitted file is empty.")
	}
	if input.Size > s.maxUpload {
		return "", apperrors.NewFieldError("file", fmt.Sprintf("File size must be no more than %dMB.", s.maxUpload/(1024*1024)))
	}
	contentType := input.ContentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = parsed
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if _, ok := AllowedAttachmentTypes[contentType]; !ok {
		return "", apperrors.NewFieldError("file", "File type is not supported.")
	}
	if len([]rune(storage.DisplayFileName(input.FileName))) > maxFileNameLength {
		return "", apperrors.NewFieldError("file_name", tooLong(maxFileNameLength))
	}
	return contentType, nil
}

func tooLong(limit int) string {
	return fmt.Sprintf("Ensure this field has no more than %d characters.", limit)
}

func (s *IssueService) removeBlobAfterCommit(ctx context.Context, key string) {
	persistence.AfterCommit(ctx, func(ctx context.Context) {
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to delete stored attachment", zap.String("key", key), zap.Error(err))
		}
	})
}

func (s *IssueService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func applyIssueUpdate(issue *domain.Issue, input IssueUpdateInput) error {
	if input.Title != nil {
		issue.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		issue.Description = strings.TrimSpace(*input.Description)
	}
	if input.Status != nil {
		status, err := domain.ParseIssueStatus(*input.Status)
		if err != nil {
			return apperrors.NewFieldError("status", err.Error())
		}
		issue.Status = status
	}
	if input.Priority != nil {
		priority, err := domain.ParseIssuePriority(*input.Priority)
		if err != nil {
			return apperrors.NewFieldError("priority", err.Error())
		}
		issue.Priority = priority
	}
	if input.AssignedToID != nil {
		issue.AssignedToID = emptyToNil(input.AssignedToID)
	}
	if input.ClearDueDate {
		issue.DueDate = nil
	} else if input.DueDate != nil {
		issue.DueDate = input.DueDate
	}
	if input.Location != nil {
		issue.Location = strings.TrimSpace(*input.Location)
	}
	if input.ClearCoordinates {
		issue.Latitude, issue.Longitude = nil, nil
	} else {
		if input.Latitude != nil {
			issue.Latitude = input.Latitude
		}
		if input.Longitude != nil {
			issue.Longitude = input.Longitude
		}
	}
	return nil
}

func validateIssue(issue *domain.Issue) error {
	details := map[string]any{}
	if issue.Title == "" {
		details["title"] = []string{"This field may not be blank."}
	} else if len([]rune(issue.Title)) > maxTitleLength {
		details["title"] = []string{tooLong(maxTitleLength)}
	}
	if len([]rune(issue.Location)) > maxLocationLength {
		details["location"] = []string{tooLong(maxLocationLength)}
	}
	if !issue.Status.Valid() {
		details["status"] = []string{"Invalid status."}
	}
	if !issue.Priority.Valid() {
		details["priority"] = []string{"Invalid priority."}
	}
	if issue.Latitude != nil && (*issue.Latitude < -90 || *issue.Latitude > 90) {
		details["latitude"] = []string{"Latitude must be between -90 and 90."}
	}
	if issue.Longitude != nil && (*issue.Longitude < -180 || *issue.Longitude > 180) {
		details["longitude"] = []string{"Longitude must be between -180 and 180."}
	}
	if (issue.Latitude == nil) != (issue.Longitude == nil) {
		details["latitude"] = []string{"Latitude and longitude must be provided together."}
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details)
	}
	return nil
}

func emptyToNil(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	return &trimmed
}

func sameID(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func stringPreview(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
