package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"novel-epub/config"
	"novel-epub/downloader"
)

const (
	StepExtract  = "extract_urls"
	StepDownload = "download_with_validation"
	StepConvert  = "convert"
)

// Stages are the three steps of a run. Each returns the path it produced.
type Stages interface {
	ExtractURLs(ctx context.Context, in WorkflowInput) (string, error)
	Download(ctx context.Context, in WorkflowInput, urlsFile string) (string, error)
	Convert(ctx context.Context, in WorkflowInput, outputDir string) (string, error)
}

type StatusResponse struct {
	WorkflowID  string `json:"workflow_id"`
	Status      State  `json:"status"`
	CurrentStep string `json:"current_step,omitempty"`
	Result      string `json:"result,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Engine runs pipelines and records their progress in the store.
type Engine struct {
	cfg    *config.Config
	store  *Store
	stages Stages
	policy config.StagePolicy
	log    *logrus.Entry
	sleep  func(context.Context, time.Duration) error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewEngine(cfg *config.Config, store *Store, stages Stages, log *logrus.Entry) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:    cfg,
		store:  store,
		stages: stages,
		policy: cfg.Stage,
		log:    log,
		sleep:  sleep,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit validates req, records a queued run and executes it in the background.
func (e *Engine) Submit(ctx context.Context, req Request) (string, error) {
	run, err := e.newRun(req)
	if err != nil {
		return "", err
	}
	e.log.Infof("Run %s queued: %s by %s, pages %d-%d", run.ID, run.Input.Title, run.Input.Author, run.Input.PageFrom, run.Input.PageTo)
	e.launch(run)
	return run.ID, nil
}

// Run executes a run in the calling goroutine and returns its final record.
func (e *Engine) Run(ctx context.Context, req Request) (*Run, error) {
	run, err := e.newRun(req)
	if err != nil {
		return nil, err
	}
	err = e.execute(ctx, run)
	return run, err
}

// Resume relaunches runs a previous process left unfinished.
func (e *Engine) Resume(ctx context.Context) (int, error) {
	runs, err := e.store.List()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, run := range runs {
		if run.State.Finished() {
			continue
		}
		e.log.Infof("Resuming run %s at %s", run.ID, run.Step)
		e.launch(run)
		n++
	}
	return n, nil
}

// Status never fails; an unknown id is reported as not found.
func (e *Engine) Status(id string) StatusResponse {
	run, err := e.store.Get(id)
	if err != nil {
		if !errors.Is(err, ErrRunNotFound) {
			e.log.Errorf("Failed to read run %s: %v", id, err)
		}
		return StatusResponse{
			WorkflowID:  id,
			Status:      StateNotFound,
			CurrentStep: "error",
			Error:       fmt.Sprintf("run %s not found", id),
		}
	}
	return run.Status()
}

func (r *Run) Status() StatusResponse {
	return StatusResponse{
		WorkflowID:  r.ID,
		Status:      r.State,
		CurrentStep: r.Step,
		Result:      r.Result,
		Error:       r.Error,
	}
}

// Close cancels background runs and waits for them. Cancelled runs stay resumable.
func (e *Engine) Close() {
	e.cancel()
	e.wg.Wait()
}

// Wait blocks until every background run has returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) newRun(req Request) (*Run, error) {
	in, err := NewWorkflowInput(e.cfg, req)
	if err != nil {
		return nil, err
	}
	run := &Run{
		ID:      NewRunID(),
		Input:   in,
		State:   StateQueued,
		Outputs: map[string]string{},
	}
	if err := e.store.Put(run); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	return run, nil
}

func (e *Engine) launch(run *Run) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.execute(e.ctx, run); err != nil {
			e.log.Errorf("Run %s failed: %v", run.ID, err)
		}
	}()
}

func (e *Engine) execute(ctx context.Context, run *Run) error {
	log := e.log.WithField("run", run.ID)
	if run.Outputs == nil {
		run.Outputs = map[string]string{}
	}
	run.State = StateRunning
	e.save(run)

	in := run.Input
	steps := []struct {
		name string
		fn   func(ctx context.Context) (string, error)
	}{
		{StepExtract, func(ctx context.Context) (string, error) {
			return e.stages.ExtractURLs(ctx, in)
		}},
		{StepDownload, func(ctx context.Context) (string, error) {
			return e.stages.Download(ctx, in, run.Outputs[StepExtract])
		}},
		{StepConvert, func(ctx context.Context) (string, error) {
			return e.stages.Convert(ctx, in, run.Outputs[StepDownload])
		}},
	}

	for _, step := range steps {
		if _, done := run.Outputs[step.name]; done {
			continue
		}
		run.Step = step.name
		e.save(run)
		log.Infof("Starting %s", step.name)

		out, err := e.retry(ctx, log, step.name, step.fn)
		if err != nil {
			if ctx.Err() != nil {
				log.Warnf("Run interrupted during %s", step.name)
				return err
			}
			run.State = StateFailed
			run.Error = fmt.Sprintf("%s: %v", step.name, err)
			e.save(run)
			return err
		}
		run.Outputs[step.name] = out
		e.save(run)
	}

	run.State = StateCompleted
	run.Step = StateCompleted.String()
	run.Result = run.Outputs[StepConvert]
	e.save(run)
	log.Infof("Run completed: %s", run.Result)
	return nil
}

// retry applies the stage policy. Validation errors and cancellation are final.
func (e *Engine) retry(ctx context.Context, log *logrus.Entry, name string, fn func(context.Context) (string, error)) (string, error) {
	interval := config.Seconds(e.policy.InitialInterval)
	maxInterval := config.Seconds(e.policy.MaxInterval)
	for attempt := 1; ; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, downloader.ErrValidation) || ctx.Err() != nil || attempt >= e.policy.MaxAttempts {
			return "", err
		}
		log.Warnf("%s attempt %d/%d failed: %v, retrying in %s", name, attempt, e.policy.MaxAttempts, err, interval)
		if err := e.sleep(ctx, interval); err != nil {
			return "", err
		}
		next := time.Duration(math.Round(float64(interval) * e.policy.BackoffCoefficient))
		interval = min(next, maxInterval)
	}
}

func (e *Engine) save(run *Run) {
	if err := e.store.Put(run); err != nil {
		e.log.Errorf("Failed to persist run %s: %v", run.ID, err)
	}
}

func (s State) String() string {
	return string(s)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
