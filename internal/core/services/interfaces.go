package services

import (
	"context"

	"treasury-lghub/internal/adapters/persistence/models"
)

// PDFRenderer renders fully-substituted letter HTML to PDF bytes. It has no
// knowledge of LG semantics.
type PDFRenderer interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

// ObjectStore persists generated and uploaded documents. Rows only ever hold
// the returned URI, never raw bytes.
type ObjectStore interface {
	Store(ctx context.Context, data []byte, logicalPath string) (string, error)
	Delete(ctx context.Context, uri string) error
}

// Notifier sends stakeholder emails. Failures are non-fatal to the business
// transaction; callers log them to the audit trail and move on.
type Notifier interface {
	NotifyPendingApproval(ctx context.Context, recipients []string, request *models.ApprovalRequest) error
	NotifyReadyToPrint(ctx context.Context, recipient string, request *models.ApprovalRequest, instruction *models.LGInstruction) error
	NotifyLGAction(ctx context.Context, recipients []string, lg *models.LGRecord, instruction *models.LGInstruction) error
	NotifyExpiryReminder(ctx context.Context, recipients []string, lg *models.LGRecord) error
}
