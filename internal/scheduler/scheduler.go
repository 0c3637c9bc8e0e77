package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"OpportunityScanner/internal/notifier"
	"OpportunityScanner/internal/recorder"
	"OpportunityScanner/internal/scanner"
)

// Runner executes one scan.
type Runner interface {
	Scan(ctx context.Context, req scanner.Request) (*scanner.Result, error)
}

// Sender delivers a formatted report.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler runs periodic scans and keeps the latest result.
type Scheduler struct {
	Cron     *cron.Cron
	Scanner  Runner
	Notifier Sender // optional
	Recorder recorder.Recorder
	Request  scanner.Request
	Ctx      context.Context

	logger *zap.Logger
	scanMu sync.Mutex // one scan at a time, cron or command
	mu     sync.RWMutex
	latest *recorder.ScanRun
}

// NewScheduler creates a new Scheduler. req is the template for cron-triggered scans.
func NewScheduler(ctx context.Context, sc Runner, tn Sender, rec recorder.Recorder, req scanner.Request, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	logger = logger.Named("scheduler")
	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		Scanner:  sc,
		Notifier: tn,
		Recorder: rec,
		Request:  req,
		Ctx:      ctx,
		logger:   logger,
	}
}

// Register adds the periodic scan task.
func (s *Scheduler) Register(scanCron string) error {
	if _, err := s.Cron.AddFunc(scanCron, s.scheduledScan); err != nil {
		return fmt.Errorf("register scan task: %w", err)
	}
	s.logger.Info("scan task registered", zap.String("cron", scanCron))
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for a running scan to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunScheduledNow executes the periodic task immediately (for RUN_ON_START / --run-now).
func (s *Scheduler) RunScheduledNow() {
	s.scheduledScan()
}

func (s *Scheduler) scheduledScan() {
	run, err := s.RunNow(s.Ctx, "", "cron")
	if err != nil {
		s.logger.Error("scheduled scan", zap.Error(err))
		s.trySend(notifier.FormatError(fmt.Errorf("scheduled scan failed: %w", err)))
		return
	}
	s.trySend(notifier.FormatScanReport(run))
}

// RunNow executes a scan immediately. mode overrides the template request when set.
func (s *Scheduler) RunNow(ctx context.Context, mode, trigger string) (*recorder.ScanRun, error) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	req := s.Request
	if mode != "" {
		req.Mode = mode
	}
	s.logger.Info("running scan", zap.String("trigger", trigger), zap.String("mode", req.Mode))

	res, err := s.Scanner.Scan(ctx, req)
	if err != nil {
		return nil, err
	}
	run := recorder.FromResult(res, trigger)
	if err := s.Recorder.RecordRun(run); err != nil {
		s.logger.Error("record scan run", zap.Error(err))
	}

	s.mu.Lock()
	s.latest = run
	s.mu.Unlock()
	return run, nil
}

// Latest returns the most recent run of this process, falling back to stored history.
func (s *Scheduler) Latest() (*recorder.ScanRun, error) {
	s.mu.RLock()
	run := s.latest
	s.mu.RUnlock()
	if run != nil {
		return run, nil
	}
	return s.Recorder.LatestRun()
}

// HandleCommand processes a bot command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	h := notifier.NewCommandHandler(
		func(ctx context.Context, mode string) (*recorder.ScanRun, error) {
			return s.RunNow(ctx, mode, "telegram")
		},
		s.Latest,
	)
	return h(ctx, command)
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.logger.Error("send notification", zap.Error(err))
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
