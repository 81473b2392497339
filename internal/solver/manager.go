package solver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pdptw-visualizer/backend/internal/metrics"
	"github.com/pdptw-visualizer/backend/internal/models"
	"github.com/pdptw-visualizer/backend/internal/parser"
	"golang.org/x/time/rate"
)

var (
	// ErrRateLimited is returned when solve requests arrive faster than allowed.
	ErrRateLimited = errors.New("solve rate limit exceeded")
	// ErrUnknownPreset is returned for a preset name not in the presets file.
	ErrUnknownPreset = errors.New("unknown solver preset")
	// ErrInvalidParam is returned for parameters that cannot be written to
	// the solver's parameter line.
	ErrInvalidParam = errors.New("invalid solver parameter")
)

const (
	cacheTimeout  = 2 * time.Second
	subscriberBuf = 8
)

// Request is one solve submission.
type Request struct {
	Instance string            `json:"instance"`
	Params   map[string]string `json:"params"`
	Preset   string            `json:"preset"`
}

// Options configures a Manager.
type Options struct {
	MaxConcurrent     int
	RequestsPerMinute int
	Presets           *models.SolverPresets
}

// Manager runs solve jobs in the background and tracks their status.
type Manager struct {
	exec    Executor
	cache   Cache
	presets *models.SolverPresets
	limiter *rate.Limiter
	sem     chan struct{}

	mu   sync.RWMutex
	jobs map[string]*models.SolveJob
	subs map[string][]chan models.SolveJob

	sysOnce sync.Once
	sys     *models.SysInfo
	wg      sync.WaitGroup
}

// NewManager creates a solve manager. A nil cache disables caching.
func NewManager(exec Executor, cache Cache, opts Options) *Manager {
	limit := rate.Inf
	burst := 1
	if opts.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RequestsPerMinute))
		burst = opts.RequestsPerMinute
	}
	concurrent := opts.MaxConcurrent
	if concurrent <= 0 {
		concurrent = 1
	}

	return &Manager{
		exec:    exec,
		cache:   cache,
		presets: opts.Presets,
		limiter: rate.NewLimiter(limit, burst),
		sem:     make(chan struct{}, concurrent),
		jobs:    make(map[string]*models.SolveJob),
		subs:    make(map[string][]chan models.SolveJob),
	}
}

// Presets returns the loaded presets, possibly nil.
func (m *Manager) Presets() *models.SolverPresets {
	return m.presets
}

// ResolveParams merges explicit params over the named preset, or over the
// default preset when none is named.
func (m *Manager) ResolveParams(presetName string, explicit map[string]string) (map[string]string, error) {
	params := make(map[string]string)

	name := presetName
	if name == "" && m.presets != nil {
		name = m.presets.Default
	}
	if name != "" {
		preset := m.presets.Find(name)
		if preset == nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
		}
		for k, v := range preset.StringParams() {
			params[k] = v
		}
	}
	for k, v := range explicit {
		params[k] = v
	}

	for k, v := range params {
		if k == "" || strings.ContainsAny(k, " \t\r\n=") {
			return nil, fmt.Errorf("%w: key %q", ErrInvalidParam, k)
		}
		if v == "" || strings.ContainsAny(v, " \t\r\n") {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidParam, k, v)
		}
	}
	return params, nil
}

// Submit validates the instance and starts a solve job. Malformed instances
// are rejected with the parser's error before anything is run. A cached
// result completes the job immediately.
func (m *Manager) Submit(ctx context.Context, req Request) (*models.SolveJob, error) {
	start := time.Now()
	inst, err := parser.ParseInstance(req.Instance)
	metrics.ObserveParse("instance", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	params, err := m.ResolveParams(req.Preset, req.Params)
	if err != nil {
		return nil, err
	}

	job := &models.SolveJob{
		ID:           uuid.New().String(),
		InstanceName: inst.Name,
		Params:       params,
		Status:       models.SolveStatusQueued,
		CreatedAt:    time.Now(),
	}
	key := CacheKey(params, req.Instance)

	if text, ok := m.cached(ctx, key); ok {
		if m.complete(job, text, inst) {
			job.Cached = true
			metrics.SolveCacheHits.Inc()
			metrics.SolveJobs.WithLabelValues(string(job.Status)).Inc()
			m.store(job)
			fmt.Printf("[Solver %s] Served %s from cache\n", shortID(job.ID), inst.Name)
			return m.snapshot(job), nil
		}
		// Stale entry that no longer parses; solve again.
		job.Status = models.SolveStatusQueued
		job.Error = ""
		job.SolutionText = ""
		job.Warnings = nil
		job.CompletedAt = nil
		job.DurationMs = 0
	}

	if !m.limiter.Allow() {
		return nil, ErrRateLimited
	}

	m.store(job)
	snap := m.snapshot(job)

	m.wg.Add(1)
	go m.run(job, inst, req.Instance, key)

	fmt.Printf("[Solver %s] Queued %s params=%q\n", shortID(job.ID), inst.Name, ParamLine(params))
	return snap, nil
}

func (m *Manager) cached(ctx context.Context, key string) (string, bool) {
	if m.cache == nil {
		return "", false
	}
	ctx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()

	text, ok, err := m.cache.Get(ctx, key)
	if err != nil {
		fmt.Printf("[Solver] Cache lookup failed: %v\n", err)
		return "", false
	}
	return text, ok
}

func (m *Manager) run(job *models.SolveJob, inst *models.Instance, instanceText, key string) {
	defer m.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			m.fail(job, fmt.Sprintf("panic during solve: %v", r))
		}
	}()

	m.sem <- struct{}{}
	defer func() { <-m.sem }()

	now := time.Now()
	m.mu.Lock()
	job.Status = models.SolveStatusRunning
	job.StartedAt = &now
	job.System = m.sysInfo()
	m.notifyLocked(job)
	m.mu.Unlock()

	fmt.Printf("[Solver %s] Running %s\n", shortID(job.ID), inst.Name)
	text, err := m.exec.Run(context.Background(), job.ID, job.Params, instanceText)
	metrics.SolveDuration.Observe(time.Since(now).Seconds())
	if err != nil {
		m.fail(job, err.Error())
		return
	}

	if !m.complete(job, text, inst) {
		metrics.SolveJobs.WithLabelValues(string(models.SolveStatusError)).Inc()
		return
	}
	metrics.SolveJobs.WithLabelValues(string(models.SolveStatusComplete)).Inc()

	if m.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
		if err := m.cache.Set(ctx, key, text); err != nil {
			fmt.Printf("[Solver %s] Cache store failed: %v\n", shortID(job.ID), err)
		}
		cancel()
	}
	fmt.Printf("[Solver %s] Complete: %d routes, total cost %d (%dms)\n",
		shortID(job.ID), len(job.Solution.Routes), job.Solution.TotalCost(), job.DurationMs)
}

// complete parses solver output into the job and reports whether it succeeded.
func (m *Manager) complete(job *models.SolveJob, text string, inst *models.Instance) bool {
	start := time.Now()
	sol, warnings, err := parser.ParseSolution(text, inst)
	metrics.ObserveParse("solution", time.Since(start), err)
	metrics.ParseWarnings.Add(float64(len(warnings)))

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	job.CompletedAt = &now
	job.DurationMs = now.Sub(job.CreatedAt).Milliseconds()
	if job.StartedAt != nil {
		job.DurationMs = now.Sub(*job.StartedAt).Milliseconds()
	}
	job.SolutionText = text
	job.Warnings = flattenWarnings(warnings)
	if err != nil {
		job.Status = models.SolveStatusError
		job.Error = fmt.Sprintf("parsing solver output: %v", err)
		m.notifyLocked(job)
		return false
	}
	job.Solution = sol
	job.Status = models.SolveStatusComplete
	m.notifyLocked(job)
	return true
}

func (m *Manager) fail(job *models.SolveJob, msg string) {
	metrics.SolveJobs.WithLabelValues(string(models.SolveStatusError)).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	job.Status = models.SolveStatusError
	job.Error = msg
	job.CompletedAt = &now
	m.notifyLocked(job)
	fmt.Printf("[Solver %s] Error: %s\n", shortID(job.ID), msg)
}

func (m *Manager) store(job *models.SolveJob) {
	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()
}

func (m *Manager) snapshot(job *models.SolveJob) *models.SolveJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := *job
	return &snap
}

// GetJob returns a snapshot of a job.
func (m *Manager) GetJob(id string) (*models.SolveJob, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	snap := *job
	return &snap, true
}

// Subscribe streams job snapshots on every status change. The channel is
// closed after the terminal snapshot, or by the returned cancel function.
func (m *Manager) Subscribe(id string) (<-chan models.SolveJob, func(), bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, func() {}, false
	}

	ch := make(chan models.SolveJob, subscriberBuf)
	ch <- *job
	if job.Done() {
		close(ch)
		return ch, func() {}, true
	}

	m.subs[id] = append(m.subs[id], ch)
	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		subs := m.subs[id]
		for i, c := range subs {
			if c == ch {
				m.subs[id] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
		if len(m.subs[id]) == 0 {
			delete(m.subs, id)
		}
	}
	return ch, cancel, true
}

// notifyLocked fans a snapshot out to subscribers; m.mu must be held.
// Slow subscribers miss intermediate states but always get the final one.
func (m *Manager) notifyLocked(job *models.SolveJob) {
	subs := m.subs[job.ID]
	for _, ch := range subs {
		if job.Done() {
			// Make room so the terminal state is never dropped.
			select {
			case <-ch:
			default:
			}
		}
		select {
		case ch <- *job:
		default:
		}
		if job.Done() {
			close(ch)
		}
	}
	if job.Done() {
		delete(m.subs, job.ID)
	}
}

func (m *Manager) sysInfo() *models.SysInfo {
	m.sysOnce.Do(func() {
		m.sys = CollectSysInfo()
	})
	return m.sys
}

// CleanupOldJobs drops finished jobs older than maxAge and returns the count.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, job := range m.jobs {
		if job.Done() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed
}

// Wait blocks until every running job has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Close waits for running jobs and closes the cache.
func (m *Manager) Close() error {
	m.wg.Wait()
	if m.cache != nil {
		return m.cache.Close()
	}
	return nil
}

func flattenWarnings(warnings []*models.ParseError) []models.ParseError {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]models.ParseError, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, *w)
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
