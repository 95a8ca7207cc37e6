package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/footfall/internal/domain"
	"github.com/timmy/footfall/internal/timewindow"
)

// APIError is a non-2xx answer from the job service. Message is the service's own
// wording and is shown to the user verbatim.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("job service returned %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the job service.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// UserMessage returns the text to show for err: the service's message when it sent
// one, otherwise err's own text.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

// JobServiceConfig holds configuration for the job service client.
type JobServiceConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// JobServiceClient talks to the external heatmap job service.
type JobServiceClient struct {
	client *resty.Client
}

// NewJobServiceClient creates a new job service client.
// Parameters:
//   - cfg: base URL, optional API key and request timeout.
//
// Returns:
//   - *JobServiceClient: initialized client.
func NewJobServiceClient(cfg *JobServiceConfig) *JobServiceClient {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	client.SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		// Uploads can be large; keep a ceiling so a stalled poll still fails
		timeout = 5 * time.Minute
	}
	client.SetTimeout(timeout)
	return &JobServiceClient{client: client}
}

// CreateJobRequest is the multipart payload for a new job.
type CreateJobRequest struct {
	VideoPath string
	VideoName string
	Points    []domain.Point
	Window    timewindow.Window
}

type createJobResponse struct {
	JobID string `json:"job_id"`
}

type pointsResponse struct {
	Points []domain.Point `json:"points"`
}

type progressResponse struct {
	Progress float64 `json:"progress"`
}

type imageResponse struct {
	URL string `json:"url"`
}

type subRangeRequest struct {
	StartSeconds int64 `json:"start_seconds"`
	EndSeconds   int64 `json:"end_seconds"`
}

// CreateJob uploads the video with its points and time window.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - req: video file, four points and the recording window.
//
// Returns:
//   - string: job identifier assigned by the service.
//   - error: non-nil if the upload fails or the service rejects it.
func (c *JobServiceClient) CreateJob(ctx context.Context, req CreateJobRequest) (string, error) {
	if req.VideoPath == "" {
		return "", ErrVideoMissing
	}
	points, err := json.Marshal(req.Points)
	if err != nil {
		return "", fmt.Errorf("failed to encode points: %w", err)
	}

	var out createJobResponse
	r := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"points":     string(points),
			"start_date": req.Window.StartDate,
			"start_time": req.Window.StartTime,
			"end_date":   req.Window.EndDate,
			"end_time":   req.Window.EndTime,
		}).
		SetResult(&out)
	if req.VideoName != "" {
		f, err := os.Open(req.VideoPath)
		if err != nil {
			return "", fmt.Errorf("failed to open video: %w", err)
		}
		defer f.Close()
		r.SetFileReader("video", req.VideoName, f)
	} else {
		r.SetFile("video", req.VideoPath)
	}

	resp, err := r.Post("/jobs")
	if err := check(resp, err, "create job"); err != nil {
		return "", err
	}
	if out.JobID == "" {
		return "", errors.New("job service returned no job_id")
	}
	return out.JobID, nil
}

// GetStatus fetches the status and message of a job.
func (c *JobServiceClient) GetStatus(ctx context.Context, jobID string) (domain.StatusReport, error) {
	var out domain.StatusReport
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", jobID).
		SetResult(&out).
		Get("/jobs/{id}/status")
	if err := check(resp, err, "get status"); err != nil {
		return domain.StatusReport{}, err
	}
	return out, nil
}

// CancelJob asks the service to stop a job. The service may finish it anyway.
func (c *JobServiceClient) CancelJob(ctx context.Context, jobID string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", jobID).
		Post("/jobs/{id}/cancel")
	return check(resp, err, "cancel job")
}

// ListHistory returns every job the service knows about.
func (c *JobServiceClient) ListHistory(ctx context.Context) ([]domain.Job, error) {
	var out []domain.Job
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/jobs/history")
	if err := check(resp, err, "list history"); err != nil {
		return nil, err
	}
	return out, nil
}

// GetJob looks a job up directly and falls back to scanning the history when the
// service has no lookup route. The fallback is linear in the history size.
func (c *JobServiceClient) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	var out domain.Job
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", jobID).
		SetResult(&out).
		Get("/jobs/{id}")
	err = check(resp, err, "get job")
	if err == nil {
		if out.ID == "" {
			out.ID = jobID
		}
		return &out, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	history, err := c.ListHistory(ctx)
	if err != nil {
		return nil, err
	}
	for i := range history {
		if history[i].ID == jobID {
			return &history[i], nil
		}
	}
	return nil, &APIError{StatusCode: http.StatusNotFound, Message: fmt.Sprintf("job %s not found", jobID)}
}

// GetPoints returns the four points a job was created with.
func (c *JobServiceClient) GetPoints(ctx context.Context, jobID string) ([]domain.Point, error) {
	var out pointsResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", jobID).
		SetResult(&out).
		Get("/jobs/{id}/points")
	if err := check(resp, err, "get points"); err != nil {
		return nil, err
	}
	return out.Points, nil
}

// GetTimeRange returns the recording window a job was created with.
func (c *JobServiceClient) GetTimeRange(ctx context.Context, jobID string) (timewindow.Window, error) {
	var out timewindow.Window
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", jobID).
		SetResult(&out).
		Get("/jobs/{id}/time-range")
	if err := check(resp, err, "get time range"); err != nil {
		return timewindow.Window{}, err
	}
	return out, nil
}

// GenerateSubRange starts a derived heatmap for seconds [start, end) of a job.
func (c *JobServiceClient) GenerateSubRange(ctx context.Context, jobID string, startSec, endSec int64) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", jobID).
		SetHeader("Content-Type", "application/json").
		SetBody(subRangeRequest{StartSeconds: startSec, EndSeconds: endSec}).
		Post("/jobs/{id}/custom-heatmap")
	return check(resp, err, "generate sub-range")
}

// GetSubRangeProgress returns the derived heatmap's progress in [0,1].
func (c *JobServiceClient) GetSubRangeProgress(ctx context.Context, jobID string) (float64, error) {
	var out progressResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", jobID).
		SetResult(&out).
		Get("/jobs/{id}/custom-heatmap/progress")
	if err := check(resp, err, "get sub-range progress"); err != nil {
		return 0, err
	}
	return out.Progress, nil
}

// GetSubRangeImage returns the URL of a finished derived heatmap.
func (c *JobServiceClient) GetSubRangeImage(ctx context.Context, jobID string, startSec, endSec int64) (string, error) {
	var out imageResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", jobID).
		SetQueryParams(rangeParams(startSec, endSec, "")).
		SetResult(&out).
		Get("/jobs/{id}/custom-heatmap")
	if err := check(resp, err, "get sub-range image"); err != nil {
		return "", err
	}
	return out.URL, nil
}

// GetAnalysis returns visitor statistics for seconds [start, end) of a job,
// optionally filtered to one area.
func (c *JobServiceClient) GetAnalysis(ctx context.Context, jobID string, startSec, endSec int64, area string) (*domain.Analysis, error) {
	var out domain.Analysis
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", jobID).
		SetQueryParams(rangeParams(startSec, endSec, area)).
		SetResult(&out).
		Get("/jobs/{id}/analysis")
	if err := check(resp, err, "get analysis"); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteJob removes a job and its artifacts from the service.
func (c *JobServiceClient) DeleteJob(ctx context.Context, jobID string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", jobID).
		Delete("/jobs/{id}")
	return check(resp, err, "delete job")
}

// Export downloads a CSV, PDF or image artifact for seconds [start, end) of a job.
func (c *JobServiceClient) Export(ctx context.Context, jobID string, kind domain.ExportKind, startSec, endSec int64, area string) ([]byte, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown export kind %q", kind)
	}
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"id": jobID, "kind": string(kind)}).
		SetQueryParams(rangeParams(startSec, endSec, area)).
		SetHeader("Accept", kind.ContentType()).
		Get("/jobs/{id}/export/{kind}")
	if err := check(resp, err, "export "+string(kind)); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

func rangeParams(startSec, endSec int64, area string) map[string]string {
	params := map[string]string{
		"start": strconv.FormatInt(startSec, 10),
		"end":   strconv.FormatInt(endSec, 10),
	}
	if area != "" {
		params["area"] = area
	}
	return params
}

// check turns a transport failure or non-2xx response into an error.
func check(resp *resty.Response, err error, op string) error {
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if resp.IsError() {
		return &APIError{StatusCode: resp.StatusCode(), Message: errorMessage(resp)}
	}
	return nil
}

// errorMessage extracts the service's error text from a JSON body of the form
// {"error"|"detail"|"message": "..."}, falling back to the raw body or status text.
func errorMessage(resp *resty.Response) string {
	body := resp.Body()
	var payload map[string]any
	if json.Unmarshal(body, &payload) == nil {
		for _, key := range []string{"error", "detail", "message"} {
			if s, ok := payload[key].(string); ok && s != "" {
				return s
			}
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) < 512 {
		return text
	}
	return http.StatusText(resp.StatusCode())
}
