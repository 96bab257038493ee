package api

import (
	"context"
	"time"

	"github.com/vytor/phonicsmastery/internal/services"
)

// Pinger reports storage reachability for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	DB             Pinger
	MasteryService services.MasteryService
	ReportService  services.ReportService
	ImportService  services.ImportService
	RequestTimeout time.Duration
	FlushTimeout   time.Duration
}
