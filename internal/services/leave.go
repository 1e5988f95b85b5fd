package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/leave-notifier/apiserver/internal/mapper"
	"github.com/leave-notifier/apiserver/internal/metrics"
	"github.com/leave-notifier/apiserver/internal/notify"
	"github.com/leave-notifier/apiserver/internal/storage"
	"github.com/leave-notifier/apiserver/internal/store"
	"github.com/leave-notifier/apiserver/types"
)

// LeaveRepository defines persistence operations for leave requests.
type LeaveRepository interface {
	List(ctx context.Context) ([]types.Leave, error)
	ListByUsername(ctx context.Context, username string) ([]types.Leave, error)
	Get(ctx context.Context, id int) (types.Leave, error)
	Create(ctx context.Context, leave types.Leave) (types.Leave, error)
	UpdateStatus(ctx context.Context, id int, status types.Status) error
	SetAttachmentKey(ctx context.Context, id int, key string) error
	Delete(ctx context.Context, id int) error
}

// LeaveService encapsulates leave use-cases: validation, persistence,
// event publication, and attachment handling.
type LeaveService struct {
	repo        LeaveRepository
	users       UserRepository
	notifier    *notify.Notifier
	attachments *storage.Attachments
	logger      *slog.Logger
}

func NewLeaveService(
	repo LeaveRepository,
	users UserRepository,
	notifier *notify.Notifier,
	attachments *storage.Attachments,
	logger *slog.Logger,
) *LeaveService {
	if notifier == nil {
		notifier = notify.NewNotifier(nil, logger)
	}
	if attachments == nil {
		attachments = storage.NewAttachments(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LeaveService{
		repo:        repo,
		users:       users,
		notifier:    notifier,
		attachments: attachments,
		logger:      logger,
	}
}

func (s *LeaveService) List(ctx context.Context) ([]types.Leave, error) {
	return s.repo.List(ctx)
}

func (s *LeaveService) ListForUser(ctx context.Context, username string) ([]types.Leave, error) {
	return s.repo.ListByUsername(ctx, username)
}

func (s *LeaveService) Get(ctx context.Context, id int) (types.Leave, error) {
	return s.repo.Get(ctx, id)
}

// Create validates and persists a new leave request. New leaves always
// start pending, regardless of what the caller supplied. A
// leave-created event is published best-effort after the commit.
func (s *LeaveService) Create(ctx context.Context, leave types.Leave) (types.Leave, error) {
	leave.Username = strings.TrimSpace(leave.Username)
	leave.Justification = strings.TrimSpace(leave.Justification)
	leave.Status = types.StatusPending
	leave.AttachmentKey = ""

	if err := s.validate(ctx, leave); err != nil {
		return types.Leave{}, err
	}

	created, err := s.repo.Create(ctx, leave)
	if err != nil {
		return types.Leave{}, err
	}

	metrics.ObserveLeaveCreated()
	s.notifier.LeaveCreated(ctx, mapper.LeaveView(created))
	return created, nil
}

// Decide moves a pending leave to approved or denied and publishes a
// leave-decided event.
func (s *LeaveService) Decide(ctx context.Context, id int, status types.Status) (types.Leave, error) {
	if status != types.StatusApproved && status != types.StatusDenied {
		return types.Leave{}, fmt.Errorf("%w: decision must be approved or denied", ErrValidation)
	}

	leave, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Leave{}, err
	}
	if leave.Status != types.StatusPending {
		return types.Leave{}, fmt.Errorf("%w: leave %d is already %s", ErrValidation, id, leave.Status)
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return types.Leave{}, err
	}
	leave.Status = status

	metrics.ObserveLeaveDecision(status.String())
	s.notifier.LeaveDecided(ctx, mapper.LeaveView(leave))
	return leave, nil
}

// AttachDocument uploads a supporting document for the leave and
// records its object key.
func (s *LeaveService) AttachDocument(ctx context.Context, id int, filename string, r io.Reader, size int64, contentType string) (types.Leave, error) {
	leave, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Leave{}, err
	}

	key, err := s.attachments.Put(ctx, leave.ID, filename, r, size, contentType)
	if err != nil {
		return types.Leave{}, err
	}

	if err := s.repo.SetAttachmentKey(ctx, leave.ID, key); err != nil {
		return types.Leave{}, err
	}
	leave.AttachmentKey = key
	return leave, nil
}

// OpenAttachment streams the supporting document of the leave.
// It returns store.ErrNotFound when no document was uploaded.
func (s *LeaveService) OpenAttachment(ctx context.Context, id int) (io.ReadCloser, string, error) {
	leave, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if leave.AttachmentKey == "" {
		return nil, "", store.ErrNotFound
	}

	reader, err := s.attachments.Get(ctx, leave.AttachmentKey)
	if err != nil {
		return nil, "", err
	}
	return reader, leave.AttachmentKey, nil
}

// Delete removes a leave and, best-effort, its attachment.
func (s *LeaveService) Delete(ctx context.Context, id int) error {
	leave, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if leave.AttachmentKey != "" && s.attachments.Enabled() {
		if err := s.attachments.Delete(ctx, leave.AttachmentKey); err != nil {
			s.logger.Warn("failed to delete leave attachment",
				"leave_id", id, "key", leave.AttachmentKey, "error", err)
		}
	}
	return nil
}

func (s *LeaveService) validate(ctx context.Context, leave types.Leave) error {
	if leave.Username == "" {
		return fmt.Errorf("%w: username is required", ErrValidation)
	}
	if leave.From.IsZero() || leave.To.IsZero() {
		return fmt.Errorf("%w: from and to dates are required", ErrValidation)
	}
	if leave.From.After(leave.To) {
		return fmt.Errorf("%w: from date is after to date", ErrValidation)
	}
	if !leave.Means.Valid() {
		return fmt.Errorf("%w: unknown means", ErrValidation)
	}

	if _, err := s.users.GetByUsername(ctx, leave.Username); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: user %q does not exist", ErrValidation, leave.Username)
		}
		return err
	}
	return nil
}
