package interfaces

import (
	"context"

	"rover-bridge/models"
)

// CommandRepositoryInterface defines the contract for the command journal.
type CommandRepositoryInterface interface {
	// Record appends one accepted command.
	Record(ctx context.Context, record *models.CommandRecord) error

	// Recent returns the newest records first, at most limit of them.
	Recent(ctx context.Context, limit int) ([]models.CommandRecord, error)

	// Count returns the number of journaled commands.
	Count(ctx context.Context) (int64, error)
}
