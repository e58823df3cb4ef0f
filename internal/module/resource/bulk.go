package resource

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/simp-lee/backoffice/internal/backend"
	"github.com/simp-lee/backoffice/internal/domain"
	"github.com/simp-lee/backoffice/internal/listing"
	"github.com/simp-lee/backoffice/internal/pkg"
)

// BulkAction names an operation applied to every selected record.
type BulkAction string

// Bulk actions. Delete requires the delete capability, the status actions
// require update.
const (
	BulkDelete     BulkAction = "delete"
	BulkToggle     BulkAction = "toggle"
	BulkActivate   BulkAction = "activate"
	BulkDeactivate BulkAction = "deactivate"
)

// MaxBulkIDs caps the selection of one bulk request.
const MaxBulkIDs = 100

var bulkVerbs = map[BulkAction]string{
	BulkDelete:     "deleted",
	BulkToggle:     "toggled",
	BulkActivate:   "activated",
	BulkDeactivate: "deactivated",
}

func (a BulkAction) capability() listing.Capability {
	if a == BulkDelete {
		return listing.CapDelete
	}
	return listing.CapUpdate
}

// Bulk applies action to each selected record in order, then refetches the
// caller's list once. Records that fail are counted and reported; the call
// fails only when none succeeded.
func (s *Service) Bulk(ctx context.Context, caller Caller, name string, action BulkAction, ids []string) (*MutationResult, error) {
	verb, ok := bulkVerbs[action]
	if !ok {
		return nil, domain.NewAppError(domain.CodeValidation, fmt.Sprintf("unknown bulk action %q", action), nil)
	}
	e, perm, err := s.authorize(ctx, caller, name, action.capability())
	if err != nil {
		return nil, err
	}
	if action != BulkDelete && !e.HasToggle() {
		return nil, domain.NewAppError(domain.CodeValidation, e.Label+" has no status to toggle", nil)
	}
	ids, err = selection(ids)
	if err != nil {
		return nil, err
	}

	var (
		done     int
		firstErr error
	)
	for _, id := range ids {
		if err := s.bulkOne(ctx, caller, e, action, id); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			s.logger.WarnContext(ctx, "bulk item failed",
				slog.String("entity", e.Name),
				slog.String("action", string(action)),
				slog.String("id", id),
				slog.Any("error", err),
			)
			continue
		}
		done++
	}
	if done == 0 {
		return nil, firstErr
	}

	note := &Notification{Type: pkg.ToastSuccess, Message: fmt.Sprintf("%d %s records %s", done, e.Label, verb)}
	if failed := len(ids) - done; failed > 0 {
		note.Type = pkg.ToastInfo
		note.Message += fmt.Sprintf(", %d failed", failed)
	}
	return s.settle(ctx, caller, e, perm, nil, note), nil
}

func (s *Service) bulkOne(ctx context.Context, caller Caller, e *Entity, action BulkAction, id string) error {
	switch action {
	case BulkDelete:
		if err := s.checkEditable(caller, e, id); err != nil {
			return err
		}
		_, err := s.backend.Send(ctx, backend.Request{
			Method:    http.MethodDelete,
			Path:      e.ItemURL(id),
			ObjectKey: e.ObjectKey,
		})
		return err
	case BulkActivate, BulkDeactivate:
		want := action == BulkActivate
		_, _, err := s.setStatus(ctx, caller, e, id, &want)
		return err
	default:
		_, _, err := s.setStatus(ctx, caller, e, id, nil)
		return err
	}
}

// selection validates ids and drops duplicates, keeping the first
// occurrence.
func selection(ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, domain.NewAppError(domain.CodeValidation, "no records selected", nil)
	}
	if len(ids) > MaxBulkIDs {
		return nil, domain.NewAppError(domain.CodeValidation, fmt.Sprintf("at most %d records can be changed at once", MaxBulkIDs), nil)
	}
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if err := validateID(id); err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}
