package service

import (
	"context"
	"errors"
	"sync"

	"github.com/timmy/footfall/internal/domain"
	"github.com/timmy/footfall/internal/timewindow"
)

var errNetwork = errors.New("connection refused")

// fakeJobAPI serves scripted responses. Status responses are consumed in order; the
// last one repeats.
type fakeJobAPI struct {
	mu sync.Mutex

	createID  string
	createErr error
	created   []CreateJobRequest

	statuses  []statusResult
	statusIdx int

	cancelled []string
	cancelErr error

	job       *domain.Job
	jobErr    error
	points    []domain.Point
	timeRange timewindow.Window
	rangeErr  error

	history []domain.Job
	deleted []string

	progress    []progressResult
	progressIdx int
	generated   [][2]int64
	onGenerate  func()
	imageURL    string
	analysis    *domain.Analysis
	exportData  []byte
	exportCalls int
}

type statusResult struct {
	report domain.StatusReport
	err    error
}

type progressResult struct {
	value float64
	err   error
}

func (f *fakeJobAPI) CreateJob(_ context.Context, req CreateJobRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	return f.createID, f.createErr
}

func (f *fakeJobAPI) GetStatus(ctx context.Context, _ string) (domain.StatusReport, error) {
	if err := ctx.Err(); err != nil {
		return domain.StatusReport{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return domain.StatusReport{Status: domain.JobStatusProcessing}, nil
	}
	r := f.statuses[f.statusIdx]
	if f.statusIdx < len(f.statuses)-1 {
		f.statusIdx++
	}
	return r.report, r.err
}

func (f *fakeJobAPI) CancelJob(_ context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, jobID)
	return f.cancelErr
}

func (f *fakeJobAPI) GetJob(_ context.Context, jobID string) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.jobErr != nil {
		return nil, f.jobErr
	}
	if f.job == nil {
		return nil, &APIError{StatusCode: 404, Message: "not found"}
	}
	j := *f.job
	return &j, nil
}

func (f *fakeJobAPI) GetPoints(context.Context, string) ([]domain.Point, error) {
	return f.points, nil
}

func (f *fakeJobAPI) GetTimeRange(context.Context, string) (timewindow.Window, error) {
	return f.timeRange, f.rangeErr
}

func (f *fakeJobAPI) ListHistory(context.Context) ([]domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Job(nil), f.history...), nil
}

func (f *fakeJobAPI) DeleteJob(_ context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, jobID)
	return nil
}

func (f *fakeJobAPI) GenerateSubRange(_ context.Context, _ string, startSec, endSec int64) error {
	if f.onGenerate != nil {
		f.onGenerate()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generated = append(f.generated, [2]int64{startSec, endSec})
	return nil
}

func (f *fakeJobAPI) GetSubRangeProgress(context.Context, string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.progress) == 0 {
		return 0, nil
	}
	r := f.progress[f.progressIdx]
	if f.progressIdx < len(f.progress)-1 {
		f.progressIdx++
	}
	return r.value, r.err
}

func (f *fakeJobAPI) GetSubRangeImage(context.Context, string, int64, int64) (string, error) {
	return f.imageURL, nil
}

func (f *fakeJobAPI) GetAnalysis(context.Context, string, int64, int64, string) (*domain.Analysis, error) {
	return f.analysis, nil
}

func (f *fakeJobAPI) Export(context.Context, string, domain.ExportKind, int64, int64, string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exportCalls++
	return f.exportData, nil
}

type fakeStore struct {
	mu     sync.Mutex
	id     string
	saves  int
	clears int
	// onSave runs before a save is applied
	onSave func()
}

func (s *fakeStore) Load(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, nil
}

func (s *fakeStore) Save(_ context.Context, id string) error {
	if s.onSave != nil {
		s.onSave()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	s.saves++
	return nil
}

func (s *fakeStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = ""
	s.clears++
	return nil
}

func (s *fakeStore) current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

type fakeArchiver struct {
	keys []string
}

func (a *fakeArchiver) Archive(_ context.Context, key string, _ []byte, _ string) (string, error) {
	a.keys = append(a.keys, key)
	return "https://bucket.example/" + key, nil
}
