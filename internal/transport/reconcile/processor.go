// Package reconcile в фоне сверяет ожидающие оплаты транзакции с платежным шлюзом.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fsdevblog/campus-ledger/internal/domain"
	"github.com/fsdevblog/campus-ledger/internal/transport/gateway"
	"github.com/sirupsen/logrus"
)

const (
	defaultServiceTimeout         = 3 * time.Second
	defaultReconcileTimeout       = 15 * time.Second
	defaultInterval               = 30 * time.Second
	defaultLimitPerIteration uint = 50
	defaultWorkers           uint = 5
)

// Processor периодически забирает ожидающие оплаты транзакции и сверяет каждую со шлюзом.
type Processor struct {
	svs               Servicer
	l                 *logrus.Entry
	interval          time.Duration
	limitPerIteration uint
	workers           uint
}

func New(svs Servicer, l *logrus.Logger) *Processor {
	loggerEntry := l.WithFields(logrus.Fields{
		"component": "reconcile",
		"module":    "processor",
	})

	return &Processor{
		svs:               svs,
		l:                 loggerEntry,
		interval:          defaultInterval,
		limitPerIteration: defaultLimitPerIteration,
		workers:           defaultWorkers,
	}
}

// SetInterval устанавливает паузу между итерациями.
func (p *Processor) SetInterval(interval time.Duration) *Processor {
	if interval > 0 {
		p.interval = interval
	}
	return p
}

// SetLimitPerIteration устанавливает кол-во транзакций, обрабатываемых в одной итерации.
func (p *Processor) SetLimitPerIteration(limit uint) *Processor {
	if limit > 0 {
		p.limitPerIteration = limit
	}
	return p
}

// SetWorkers устанавливает кол-во воркеров, параллельно сверяющих транзакции.
func (p *Processor) SetWorkers(workers uint) *Processor {
	if workers > 0 {
		p.workers = workers
	}
	return p
}

// Run запускает сверку в цикле до отмены контекста.
//
// Алгоритм работы:
//  1. Через сервисный слой запрашивается список ожидающих оплаты транзакций, старые первыми. Объем списка
//     лимитируется через SetLimitPerIteration.
//  2. Транзакции раздаются N воркерам (SetWorkers), каждый сверяет транзакцию через сервисный слой.
//  3. Между итерациями пауза SetInterval с разбросом, чтобы несколько инстансов не ходили в шлюз одновременно.
func (p *Processor) Run(ctx context.Context) {
	p.l.WithFields(logrus.Fields{
		"interval":          p.interval,
		"limitPerIteration": p.limitPerIteration,
		"workers":           p.workers,
	}).Info("Starting")

	for {
		if err := p.process(ctx); err != nil && !errors.Is(err, ErrNoTransactions) {
			p.l.WithError(err).Error("process error")
		}

		pause := time.Duration(jitter(float64(p.interval), 0.15, 0.15)) //nolint:mnd
		select {
		case <-ctx.Done():
			p.l.Info("Got stop signal, exiting...")
			return
		case <-time.After(pause):
		}
	}
}

// process одна итерация сверки. Возвращает ErrNoTransactions, если сверять нечего.
func (p *Processor) process(ctx context.Context) error {
	transactions, err := p.produce(ctx)
	if err != nil {
		return fmt.Errorf("process: %w", err)
	}

	var changed, failed int
	for _, result := range p.runWorkers(ctx, transactions) {
		switch {
		case result.Error != nil:
			failed++
		case result.Status != result.Transaction.Status:
			changed++
		}
	}

	p.l.WithFields(logrus.Fields{
		"total":   len(transactions),
		"changed": changed,
		"failed":  failed,
	}).Debug("iteration finished")
	return nil
}

// workerResult результат сверки одной транзакции.
type workerResult struct {
	WorkerID    uint
	Transaction *domain.Transaction
	Status      domain.TransactionStatusType
	Error       error
}

// runWorkers fan-out/fan-in: раздает транзакции воркерам и дожидается окончания их работы.
func (p *Processor) runWorkers(ctx context.Context, transactions []domain.Transaction) []workerResult {
	var taskCh = make(chan *domain.Transaction, len(transactions))
	for _, t := range transactions {
		taskCh <- &t
	}
	close(taskCh)

	wg := new(sync.WaitGroup)
	wg.Add(int(p.workers)) // nolint:gosec

	var resultCh = make(chan *workerResult, len(transactions))
	for i := range p.workers {
		go p.worker(ctx, wg, i+1, taskCh, resultCh)
	}
	wg.Wait()
	close(resultCh)

	var results = make([]workerResult, 0, len(transactions))
	for result := range resultCh {
		l := p.l.WithFields(logrus.Fields{
			"worker":   result.WorkerID,
			"order_id": result.Transaction.OrderID,
		})
		switch {
		case result.Error != nil:
			l.WithError(result.Error).Warn("reconciliation deferred")
		case result.Status != result.Transaction.Status:
			l.WithField("status", result.Status).Info("Success")
		}
		results = append(results, *result)
	}
	return results
}

func (p *Processor) worker(
	ctx context.Context,
	wg *sync.WaitGroup,
	workerID uint,
	taskCh <-chan *domain.Transaction,
	resultCh chan<- *workerResult,
) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-taskCh:
			if !ok {
				return
			}
			resultCh <- p.processWorkerTask(ctx, workerID, task)
		}
	}
}

// processWorkerTask сверяет транзакцию. Если шлюз ответил 429, ждет указанное в Retry-After время и повторяет.
func (p *Processor) processWorkerTask(ctx context.Context, workerID uint, task *domain.Transaction) *workerResult {
	result := &workerResult{
		WorkerID:    workerID,
		Transaction: task,
	}
	for {
		reqCtx, cancel := context.WithTimeout(ctx, defaultReconcileTimeout)
		updated, err := p.svs.ReconcileTransaction(reqCtx, *task)
		cancel()

		if err != nil {
			var tooManyReq *gateway.TooManyRequestError
			if !errors.As(err, &tooManyReq) {
				result.Error = err
				return result
			}
			select {
			case <-ctx.Done():
				result.Error = ctx.Err()
				return result
			case <-time.After(tooManyReq.RetryAfter):
				continue
			}
		}

		result.Status = updated.Status
		return result
	}
}

// produce получает транзакции для сверки. Возвращает ErrNoTransactions, если их нет.
func (p *Processor) produce(ctx context.Context) ([]domain.Transaction, error) {
	produceCtx, cancel := context.WithTimeout(ctx, defaultServiceTimeout)
	defer cancel()

	transactions, err := p.svs.TransactionsForReconciliation(produceCtx, p.limitPerIteration)
	if err != nil {
		return nil, fmt.Errorf("produce: %w", err)
	}
	if len(transactions) == 0 {
		return nil, ErrNoTransactions
	}
	return transactions, nil
}
