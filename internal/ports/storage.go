package ports

import (
	"context"

	"github.com/alejandrodnm/rsisweep/internal/domain"
)

// Storage persiste los sweeps ejecutados.
type Storage interface {
	// SaveRun persiste el run, su ranking y los fallos por instrumento.
	SaveRun(ctx context.Context, run domain.SweepRun) error

	// GetRecords devuelve los top N records de un run, en orden de ranking.
	GetRecords(ctx context.Context, runID string, limit int) ([]domain.SweepRecord, error)

	// LatestRunID devuelve el ID del último run guardado.
	LatestRunID(ctx context.Context) (string, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
