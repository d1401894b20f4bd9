package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/factgate/internal/logging"
	"github.com/ppiankov/factgate/internal/model"
	"github.com/ppiankov/factgate/internal/pipeline"
)

// Reconciler reconciles one claim
type Reconciler interface {
	ReconcileClaim(ctx context.Context, claimID string, opts pipeline.Options) model.ReconciliationResult
}

// ClaimJob reconciles a single claim
type ClaimJob struct {
	ClaimID    string
	Options    pipeline.Options
	Reconciler Reconciler
}

// Execute executes the claim job
func (j *ClaimJob) Execute(ctx context.Context) Result {
	return j.Reconciler.ReconcileClaim(ctx, j.ClaimID, j.Options)
}

// BatchProcessor reconciles many claims concurrently. Claims share no state;
// a failed claim never stops the others.
type BatchProcessor struct {
	reconciler  Reconciler
	concurrency int
	onResult    func(model.ReconciliationResult)
	mu          sync.Mutex
}

// NewBatchProcessor creates a new batch processor; concurrency is clamped to [1, model.MaxWorkers]
func NewBatchProcessor(reconciler Reconciler, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		reconciler:  reconciler,
		concurrency: model.ClampWorkers(concurrency),
	}
}

// OnResult registers a callback invoked once per finished claim.
// Calls are serialized, so the callback may write to a shared writer.
func (b *BatchProcessor) OnResult(fn func(model.ReconciliationResult)) {
	b.onResult = fn
}

// Concurrency returns the effective worker count
func (b *BatchProcessor) Concurrency() int {
	return b.concurrency
}

// ProcessClaims reconciles claimIDs and returns one result per claim, sorted
// by claim id. Claims abandoned because ctx was cancelled are reported as
// failures carrying the context error.
func (b *BatchProcessor) ProcessClaims(ctx context.Context, claimIDs []string, opts pipeline.Options) []model.ReconciliationResult {
	if len(claimIDs) == 0 {
		return []model.ReconciliationResult{}
	}

	ctx = logging.WithBatch(ctx, uuid.NewString())
	logger := logging.FromContext(ctx)
	logger.Info().Int("claims", len(claimIDs)).Int("workers", b.concurrency).Msg("batch started")
	start := time.Now()

	pool := NewPoolWithContext(ctx, b.concurrency)
	pool.Start()

	for _, id := range claimIDs {
		job := &notifyingJob{ClaimJob: ClaimJob{ClaimID: id, Options: opts, Reconciler: b.reconciler}, batch: b}
		if !pool.Submit(job) {
			break
		}
	}

	raw := pool.Wait()

	done := make(map[string]bool, len(raw))
	results := make([]model.ReconciliationResult, 0, len(claimIDs))
	for _, r := range raw {
		res := r.(model.ReconciliationResult)
		if done[res.ClaimID] {
			continue
		}
		done[res.ClaimID] = true
		results = append(results, res)
	}
	for _, id := range claimIDs {
		if !done[id] {
			done[id] = true
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			results = append(results, model.Failed(id, fmt.Errorf("abandoned: %w", err)))
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].ClaimID < results[j].ClaimID
	})

	logger.Info().
		Int("claims", len(results)).
		Int("processed", len(raw)).
		Dur("elapsed", time.Since(start)).
		Msg("batch finished")
	return results
}

// notifyingJob reports each result to the batch callback as it completes
type notifyingJob struct {
	ClaimJob
	batch *BatchProcessor
}

func (j *notifyingJob) Execute(ctx context.Context) Result {
	result := j.ClaimJob.Execute(ctx).(model.ReconciliationResult)
	if j.batch.onResult != nil {
		j.batch.mu.Lock()
		j.batch.onResult(result)
		j.batch.mu.Unlock()
	}
	return result
}

// ReadClaimIDsFromFile reads claim ids from a file (one per line)
func ReadClaimIDsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var ids []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			ids = append(ids, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return ids, nil
}
