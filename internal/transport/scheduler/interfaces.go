package scheduler

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"github.com/fsdevblog/campus-ledger/internal/service"
)

type Releaser interface {
	ReleaseMatured(ctx context.Context, now time.Time) (*service.ReleaseReport, error)
}
