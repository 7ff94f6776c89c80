package repositories

import (
	"context"

	"github.com/scastiel/parity.coffee/internal/domain"
)

// HealthRepository reports the state of the service's upstream dependencies.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
