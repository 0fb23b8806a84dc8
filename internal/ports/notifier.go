package ports

import (
	"context"

	"github.com/alejandrodnm/rsisweep/internal/domain"
)

// Notifier presenta el resultado de un sweep al usuario.
type Notifier interface {
	// Notify muestra el ranking y los instrumentos que fallaron.
	Notify(ctx context.Context, run domain.SweepRun) error
}
