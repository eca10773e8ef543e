// Package scheduler запускает по расписанию перевод заработка из холда в доступный баланс.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/fsdevblog/campus-ledger/internal/service"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	DefaultSchedule   = "0 2 * * *"
	defaultRunTimeout = 10 * time.Minute
)

type Scheduler struct {
	cron       *cron.Cron
	releaser   Releaser
	schedule   string
	runTimeout time.Duration
	now        func() time.Time
	l          *logrus.Entry
}

// New создает планировщик. schedule - стандартное cron выражение из пяти полей или дескриптор вида @every 1h.
// Прогон, не успевший завершиться к следующему срабатыванию, не запускается повторно.
func New(releaser Releaser, schedule string, l *logrus.Logger) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid release schedule `%s`: %w", schedule, err)
	}

	entry := l.WithFields(logrus.Fields{
		"component": "scheduler",
		"module":    "release",
	})
	logger := cronLogger{l: entry}

	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		releaser:   releaser,
		schedule:   schedule,
		runTimeout: defaultRunTimeout,
		now:        time.Now,
		l:          entry,
	}, nil
}

// Run запускает расписание и блокируется до отмены контекста. После отмены дожидается текущего прогона.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.l.WithError(err).Error("release run failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule release: %w", err)
	}

	s.l.WithField("schedule", s.schedule).Info("Starting")
	s.cron.Start()

	<-ctx.Done()
	s.l.Info("Got stop signal, exiting...")
	<-s.cron.Stop().Done()
	return nil
}

// RunOnce выполняет один прогон. Используется расписанием и ручкой оператора.
func (s *Scheduler) RunOnce(ctx context.Context) (*service.ReleaseReport, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	report, err := s.releaser.ReleaseMatured(runCtx, s.now())
	if err != nil {
		return report, fmt.Errorf("release run: %w", err)
	}
	return report, nil
}

// cronLogger адаптер logrus для cron.Logger.
type cronLogger struct {
	l *logrus.Entry
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.WithFields(fields(keysAndValues)).Debug(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.WithError(err).WithFields(fields(keysAndValues)).Error(msg)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(keysAndValues)/2) //nolint:mnd
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}
