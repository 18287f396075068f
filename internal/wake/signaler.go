package wake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/graderqueue/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// defaultTimeout bounds a single wake attempt when none is configured.
const defaultTimeout = time.Second

// PendingSource reports which worker types have queued work.
type PendingSource interface {
	PendingTypeIDs(ctx context.Context) ([]uint, error)
}

// SignalerOpts configures a Signaler.
type SignalerOpts struct {
	DB        *gorm.DB
	Transport Transport
	Timeout   time.Duration
	Pending   PendingSource // required for Sweep only
	Logger    *zap.Logger
}

// Signaler picks idle workers and wakes them. Every failure is logged and
// swallowed; callers only learn whether some worker acknowledged.
type Signaler struct {
	db        *gorm.DB
	transport Transport
	timeout   time.Duration
	pending   PendingSource
	log       *zap.Logger
}

// NewSignaler returns a Signaler.
func NewSignaler(opts SignalerOpts) *Signaler {
	s := &Signaler{
		db:        opts.DB,
		transport: opts.Transport,
		timeout:   opts.Timeout,
		pending:   opts.Pending,
		log:       opts.Logger,
	}
	if s.transport == nil {
		s.transport = UDPTransport{}
	}
	if s.timeout <= 0 {
		s.timeout = defaultTimeout
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// WakeByTypes wakes at most one idle worker among typeIDs, trying the most
// recently polled first. An empty typeIDs means any type.
func (s *Signaler) WakeByTypes(ctx context.Context, typeIDs []uint) {
	q := s.db.WithContext(ctx).
		Where("current_job_id IS NULL AND wakeup_addr <> ''")
	if len(typeIDs) > 0 {
		q = q.Where("type_id IN ?", typeIDs)
	}
	var candidates []models.Server
	if err := q.Order("last_poll_time IS NULL, last_poll_time DESC").Find(&candidates).Error; err != nil {
		s.log.Warn("wake: list idle servers", zap.Error(err))
		return
	}

	for _, srv := range candidates {
		if ctx.Err() != nil {
			return
		}
		if s.signal(ctx, srv) {
			return
		}
	}
	s.log.Debug("wake: no idle server acknowledged",
		zap.Uints("type_ids", typeIDs),
		zap.Int("candidates", len(candidates)))
}

// WakeByID wakes one specific worker and reports whether it acknowledged.
func (s *Signaler) WakeByID(ctx context.Context, serverID uint) bool {
	var srv models.Server
	err := s.db.WithContext(ctx).First(&srv, serverID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Debug("wake: unknown server", zap.Uint("server_id", serverID))
		return false
	}
	if err != nil {
		s.log.Warn("wake: load server", zap.Uint("server_id", serverID), zap.Error(err))
		return false
	}
	if srv.WakeupAddr == "" {
		s.log.Debug("wake: server has no wake address", zap.Uint("server_id", serverID))
		return false
	}
	return s.signal(ctx, srv)
}

func (s *Signaler) signal(ctx context.Context, srv models.Server) bool {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.transport.Wake(ctx, srv); err != nil {
		s.log.Debug("wake: signal failed",
			zap.Uint("server_id", srv.ID),
			zap.String("server", srv.Name),
			zap.Error(err))
		return false
	}
	s.log.Debug("wake: server acknowledged", zap.Uint("server_id", srv.ID), zap.String("server", srv.Name))
	return true
}

// Sweep wakes one idle worker for every type with pending work. Jobs whose
// submit-time wake was lost still get picked up this way.
func (s *Signaler) Sweep(ctx context.Context) {
	if s.pending == nil {
		return
	}
	typeIDs, err := s.pending.PendingTypeIDs(ctx)
	if err != nil {
		s.log.Warn("wake: sweep pending types", zap.Error(err))
		return
	}
	for _, typeID := range typeIDs {
		s.WakeByTypes(ctx, []uint{typeID})
	}
}

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// StartSweeper runs Sweep on the given cron schedule until the returned stop
// function is called. An empty expression disables the sweeper.
func (s *Signaler) StartSweeper(expr string) (stop func(), err error) {
	if expr == "" {
		return func() {}, nil
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("wake: sweep schedule %q: %w", expr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New(cron.WithParser(cronParser))
	c.Schedule(sched, cron.FuncJob(func() { s.Sweep(ctx) }))
	c.Start()
	s.log.Info("wake: sweeper started", zap.String("schedule", expr))

	return func() {
		cancel()
		<-c.Stop().Done()
	}, nil
}
