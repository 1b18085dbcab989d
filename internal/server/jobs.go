package server

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/copyleftdev/gradopt/internal/errors"
	"github.com/copyleftdev/gradopt/internal/logging"
	"github.com/copyleftdev/gradopt/internal/optimization"
	"github.com/copyleftdev/gradopt/internal/optimization/descent"
	"github.com/copyleftdev/gradopt/internal/optimization/problems"
)

// JobStatus is the lifecycle state of a solve job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Finished reports whether the job reached a terminal state.
func (s JobStatus) Finished() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

var (
	// ErrJobNotFound is returned for unknown or pruned job ids.
	ErrJobNotFound = apperrors.New("job not found")
	// ErrJobFinished is returned when cancelling a job that already ended.
	ErrJobFinished = apperrors.New("job already finished")
)

// SolveRequest describes a solve job. Zero values select the service
// defaults; the tolerance overrides are only applied when present.
type SolveRequest struct {
	Problem        string    `json:"problem"`
	Dimension      int       `json:"dimension,omitempty"`
	Initial        []float64 `json:"initial,omitempty"`
	Method         string    `json:"method,omitempty"`
	LineSearch     string    `json:"line_search,omitempty"`
	ApproxGradient bool      `json:"approx_gradient,omitempty"`

	GradientTolerance *float64 `json:"gradient_tolerance,omitempty"`
	RelativeTolerance *float64 `json:"relative_tolerance,omitempty"`
	MaxIterations     *int     `json:"max_iterations,omitempty"`
}

// Job tracks one solve. Fields are guarded by the server's job mutex.
type Job struct {
	ID          string
	Request     SolveRequest
	Spec        descent.Spec
	Status      JobStatus
	Result      *optimization.Result
	Error       string
	StartTime   time.Time
	EndTime     *time.Time
	LastUpdated time.Time
}

// JobView is the JSON representation of a job.
type JobView struct {
	ID          string               `json:"job_id"`
	Status      JobStatus            `json:"status"`
	Problem     string               `json:"problem"`
	Method      string               `json:"method"`
	LineSearch  string               `json:"line_search"`
	StartTime   string               `json:"start_time"`
	EndTime     string               `json:"end_time,omitempty"`
	LastUpdated string               `json:"last_update"`
	Result      *optimization.Result `json:"result,omitempty"`
	Error       string               `json:"error,omitempty"`
}

func (j *Job) view() JobView {
	v := JobView{
		ID:          j.ID,
		Status:      j.Status,
		Problem:     j.Request.Problem,
		Method:      j.Spec.Method,
		LineSearch:  j.Spec.LineSearch,
		StartTime:   j.StartTime.Format(time.RFC3339),
		LastUpdated: j.LastUpdated.Format(time.RFC3339),
		Result:      j.Result,
		Error:       j.Error,
	}
	if j.EndTime != nil {
		v.EndTime = j.EndTime.Format(time.RFC3339)
	}
	return v
}

// solveTask is a validated job ready to run.
type solveTask struct {
	optimizer *descent.Optimizer
	objective *optimization.Function
	x0        []float64
}

// solve runs the task, turning a panic into an error so that one bad job
// cannot take the service down.
func (t *solveTask) solve() (result *optimization.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = apperrors.Errorf("solve panicked: %v", r).WithComponent(component).WithOperation("solve")
		}
	}()
	return t.optimizer.Solve(t.objective, t.x0)
}

// prepare resolves req against the service defaults. Every error wraps
// optimization.ErrInvalidArgument.
func (s *Server) prepare(id string, req SolveRequest) (descent.Spec, *solveTask, error) {
	const op = "prepare"

	spec := s.cfg.Solver()
	if req.Method != "" {
		spec.Method = req.Method
	}
	if req.LineSearch != "" {
		spec.LineSearch = req.LineSearch
	}
	if req.GradientTolerance != nil {
		spec.GradientTolerance = *req.GradientTolerance
	}
	if req.RelativeTolerance != nil {
		spec.RelativeTolerance = *req.RelativeTolerance
	}
	if req.MaxIterations != nil {
		spec.MaxIterations = *req.MaxIterations
	}

	if req.Problem == "" {
		return spec, nil, optimization.InvalidArgument(component, op, "problem is required")
	}
	if req.Dimension < 0 {
		return spec, nil, optimization.InvalidArgument(component, op, "dimension must not be negative, got %d", req.Dimension)
	}
	n := req.Dimension
	if n == 0 && len(req.Initial) > 0 {
		n = len(req.Initial)
	}
	// BFGS keeps an n×n matrix per job
	if limit := s.cfg.Optimization.MaxDimension; n > limit || len(req.Initial) > limit {
		return spec, nil, optimization.InvalidArgument(component, op,
			"dimension must be at most %d, got %d", limit, max(n, len(req.Initial)))
	}

	p, err := problems.Lookup(req.Problem, n)
	if err != nil {
		return spec, nil, err
	}

	x0 := p.Start()
	if len(req.Initial) > 0 {
		if len(req.Initial) != p.Dim() {
			return spec, nil, optimization.InvalidArgument(component, op,
				"initial point has %d parameters, %s in %d dimensions needs %d", len(req.Initial), p.Name(), p.Dim(), p.Dim())
		}
		x0 = append([]float64(nil), req.Initial...)
	}

	obj, err := problems.NewObjective(p, !req.ApproxGradient)
	if err != nil {
		return spec, nil, err
	}

	zl := logging.NewZapLogger(s.logger.WithFields(map[string]interface{}{
		"job_id":  id,
		"problem": p.Name(),
	}))
	opt, err := descent.Build(spec, zl)
	if err != nil {
		return spec, nil, err
	}

	return spec, &solveTask{optimizer: opt, objective: obj, x0: x0}, nil
}

// startJob validates req, registers a pending job and hands it to a worker.
func (s *Server) startJob(req SolveRequest) (*JobView, error) {
	id := uuid.NewString()

	spec, task, err := s.prepare(id, req)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	job := &Job{
		ID:          id,
		Request:     req,
		Spec:        spec,
		Status:      JobPending,
		StartTime:   now,
		LastUpdated: now,
	}

	s.jobsMu.Lock()
	s.pruneLocked(now)
	s.jobs[id] = job
	v := job.view()
	s.jobsMu.Unlock()

	s.logger.Info("Solve job accepted", map[string]interface{}{
		"job_id":      id,
		"problem":     req.Problem,
		"method":      spec.Method,
		"line_search": spec.LineSearch,
	})

	s.wg.Add(1)
	go s.runJob(job, task)

	return &v, nil
}

// runJob waits for a worker slot and solves. A job cancelled while it waits
// never runs; one cancelled while running has its result discarded.
func (s *Server) runJob(job *Job, task *solveTask) {
	defer s.wg.Done()

	s.workers <- struct{}{}
	defer func() { <-s.workers }()

	s.jobsMu.Lock()
	if job.Status == JobCancelled {
		s.jobsMu.Unlock()
		return
	}
	job.Status = JobRunning
	job.LastUpdated = time.Now()
	method, lineSearch := job.Spec.Method, job.Spec.LineSearch
	s.jobsMu.Unlock()

	s.metrics.inFlight.Inc()
	start := time.Now()
	result, err := task.solve()
	elapsed := time.Since(start)
	s.metrics.inFlight.Dec()

	status := "error"
	if result != nil {
		status = result.Status.String()
	}
	s.metrics.observe(method, lineSearch, status, result, elapsed)

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	now := time.Now()
	job.LastUpdated = now

	if job.Status == JobCancelled {
		s.logger.Info("Discarding result of cancelled job", map[string]interface{}{
			"job_id": job.ID,
		})
		return
	}

	job.EndTime = &now
	if err != nil {
		s.logger.Error("Solve job failed", map[string]interface{}{
			"job_id": job.ID,
			"error":  err.Error(),
		})
		job.Status = JobFailed
		job.Error = err.Error()
		return
	}
	job.Status = JobCompleted
	job.Result = result
}

// jobStatus returns a snapshot of the job called id.
func (s *Server) jobStatus(id string) (*JobView, error) {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, apperrors.Wrapf(ErrJobNotFound, "job %q", id).WithComponent(component)
	}
	v := job.view()
	return &v, nil
}

// cancelJob marks the job called id as cancelled.
func (s *Server) cancelJob(id string) (*JobView, error) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, apperrors.Wrapf(ErrJobNotFound, "job %q", id).WithComponent(component)
	}
	if job.Status.Finished() {
		return nil, apperrors.Wrapf(ErrJobFinished, "job %q is %s", id, job.Status).WithComponent(component)
	}

	now := time.Now()
	job.Status = JobCancelled
	job.EndTime = &now
	job.LastUpdated = now

	s.logger.Info("Solve job cancelled", map[string]interface{}{
		"job_id": id,
	})

	v := job.view()
	return &v, nil
}

// pruneLocked drops finished jobs that ended more than the retention period
// before now. The caller holds jobsMu.
func (s *Server) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.cfg.Optimization.JobRetention)
	for id, job := range s.jobs {
		if job.Status.Finished() && job.EndTime != nil && job.EndTime.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
}
