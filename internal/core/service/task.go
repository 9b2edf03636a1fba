package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Hommy-master/browserbox/internal/core/domain"
	"github.com/Hommy-master/browserbox/internal/pool"
)

// Pool is the admission API consumed by TaskService.
type Pool interface {
	AcquireCapacity() bool
	ReleaseCapacity()
	GetOrCreate(ctx context.Context, locator string) (string, error)
	AcquireInstance(id string) (pool.Handle, bool)
	ReleaseInstance(id string)
}

// Runner executes a task on an acquired instance.
type Runner interface {
	Run(ctx context.Context, h pool.Handle, prompt string) (string, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, h pool.Handle, prompt string) (string, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, h pool.Handle, prompt string) (string, error) {
	return f(ctx, h, prompt)
}

type taskHandle interface {
	RunTask(ctx context.Context, prompt string) (string, error)
}

// DefaultRunner hands the prompt to the instance when it can run tasks
// and otherwise reports the placeholder result.
var DefaultRunner Runner = RunnerFunc(func(ctx context.Context, h pool.Handle, prompt string) (string, error) {
	if th, ok := h.(taskHandle); ok {
		return th.RunTask(ctx, prompt)
	}
	if prompt != "" {
		return "Executed task with prompt: " + prompt, nil
	}
	return "Executed default task", nil
})

// DoTaskRequest contains parameters for task submission.
type DoTaskRequest struct {
	Env      string // Required, environment locator
	Prompt   string // Optional
	ImageURL string // Optional, echoed back
}

// DoTaskResponse contains the task result.
type DoTaskResponse struct {
	Result     string `json:"result"`
	ImageURL   string `json:"image_url,omitempty"`
	InstanceID string `json:"instance_id"`
}

// TaskService runs tasks against pooled environments.
type TaskService struct {
	pool   Pool
	runner Runner
	logger *slog.Logger
}

// NewTaskService creates a TaskService. A nil runner selects DefaultRunner.
func NewTaskService(p Pool, runner Runner, logger *slog.Logger) *TaskService {
	if runner == nil {
		runner = DefaultRunner
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskService{
		pool:   p,
		runner: runner,
		logger: logger.With("component", "task"),
	}
}

// DoTask admits the request, resolves its environment to an instance and
// runs the prompt on it. Capacity is always returned.
func (s *TaskService) DoTask(ctx context.Context, req *DoTaskRequest) (*DoTaskResponse, error) {
	// 1. Validate input
	if req.Env == "" {
		return nil, domain.ErrMissingArgument.WithDetails("env is required")
	}

	// 2. Admission
	if !s.pool.AcquireCapacity() {
		return nil, domain.ErrPoolExhausted
	}
	defer s.pool.ReleaseCapacity()

	// 3. Resolve the environment
	id, err := s.pool.GetOrCreate(ctx, req.Env)
	if err != nil {
		if errors.Is(err, domain.ErrPoolClosed) || errors.Is(err, domain.ErrEnvironmentUnavailable) || ctx.Err() != nil {
			return nil, err
		}
		return nil, domain.ErrEnvironmentUnavailable.WithCause(err)
	}

	// 4. Take the instance
	h, ok := s.pool.AcquireInstance(id)
	if !ok {
		return nil, domain.ErrInstanceUnavailable.WithDetailsf("instance %s is busy", id)
	}
	defer s.pool.ReleaseInstance(id)

	// 5. Run
	start := time.Now()
	result, err := s.runner.Run(ctx, h, req.Prompt)
	if err != nil {
		s.logger.Error("task failed", "instance_id", id, "error", err)
		var de *domain.DomainError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, domain.ErrTaskFailed.WithCause(err)
	}

	s.logger.Info("task executed",
		"instance_id", id,
		"env", req.Env,
		"elapsed", time.Since(start))
	return &DoTaskResponse{
		Result:     result,
		ImageURL:   req.ImageURL,
		InstanceID: id,
	}, nil
}
