package postgres

import (
	"context"

	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

// raceGetOrCreate implements the get-or-create pattern shared by the
// per-subject ledger tables: read the row, insert the default when missing,
// and when the insert loses a concurrent race refetch the row the winner
// inserted instead of surfacing the unique violation. Every caller therefore
// observes the same single row.
func raceGetOrCreate[T any](
	ctx context.Context,
	get func(context.Context) (T, error),
	insert func(context.Context) error,
	fresh T,
) (T, error) {
	existing, err := get(ctx)
	if err == nil {
		return existing, nil
	}
	if !shared.IsNotFound(err) {
		var zero T
		return zero, err
	}

	if err := insert(ctx); err != nil {
		if IsUniqueViolation(err) {
			return get(ctx)
		}
		var zero T
		return zero, err
	}
	return fresh, nil
}
