package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"

	"github.com/timmy/footfall/internal/app"
	"github.com/timmy/footfall/internal/config"
	"github.com/timmy/footfall/internal/domain"
	"github.com/timmy/footfall/internal/logger"
	"github.com/timmy/footfall/internal/service"
	"github.com/timmy/footfall/internal/timewindow"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "text",
		ServiceName: "footfall-cli",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	video := flag.String("video", "", "Video file to submit")
	start := flag.String("start", "", `Recording start, "YYYY-MM-DD HH:MM:SS"`)
	end := flag.String("end", "", `Recording end; derived from the video length when empty`)
	points := flag.String("points", "", `Four normalized corners, "x,y;x,y;x,y;x,y"`)
	clicks := flag.String("clicks", "", `Four pixel corners on the reference frame, "px,py;..."`)
	resume := flag.Bool("resume", false, "Resume the job a previous run was tracking")
	cancelJob := flag.Bool("cancel", false, "Cancel the job a previous run was tracking")
	history := flag.Bool("history", false, "List past jobs")
	deleteID := flag.String("delete", "", "Delete a job and its archived exports")
	subrange := flag.String("subrange", "", "Completed job to analyze over a sub-range")
	from := flag.String("from", "", `Sub-range start, "YYYY-MM-DD HH:MM:SS"`)
	to := flag.String("to", "", `Sub-range end, "YYYY-MM-DD HH:MM:SS"`)
	area := flag.String("area", "", "Area to restrict the analysis to")
	export := flag.String("export", "", "Comma-separated export formats: csv, pdf, image")
	outDir := flag.String("out", ".", "Directory exports are written to")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Build(ctx, cfg, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize")
	}
	defer a.Close()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, the job keeps running and can be resumed")
		cancel()
	}()

	switch {
	case *history:
		err = listHistory(ctx, a)
	case *deleteID != "":
		err = a.History.Delete(ctx, *deleteID)
	case *cancelJob:
		err = cancelTracked(ctx, a, appLogger)
	case *resume:
		err = resumeTracked(ctx, a, appLogger)
	case *subrange != "":
		err = analyze(ctx, a, appLogger, *subrange, *from, *to, *area, *export, *outDir)
	case *video != "":
		err = submit(ctx, a, appLogger, *video, *start, *end, *points, *clicks)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		appLogger.WithError(err).Error(service.UserMessage(err))
		a.Close()
		os.Exit(1)
	}
}

func submit(ctx context.Context, a *app.App, log *logger.Logger, video, start, end, points, clicks string) error {
	if _, err := a.Intake.LoadVideo(ctx, video); err != nil {
		return err
	}
	if _, err := a.Intake.ExtractFrame(ctx); err != nil {
		return err
	}

	startDate, startTime, err := splitDatetime(start)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	a.Wizard.SetStart(startDate, startTime)
	if end != "" {
		endDate, endTime, err := splitDatetime(end)
		if err != nil {
			return fmt.Errorf("end: %w", err)
		}
		a.Wizard.SetEnd(endDate, endTime)
	}
	if res := a.Wizard.WindowCheck(); !res.Valid {
		return fmt.Errorf("%w: time window %s", service.ErrIncompleteInputs, res.Reason)
	}

	pixel := clicks != ""
	if pixel {
		points = clicks
	}
	corners, err := parsePoints(points)
	if err != nil {
		return err
	}
	for _, p := range corners {
		var added bool
		if pixel {
			added = a.Wizard.AddClick(p.X, p.Y)
		} else {
			added = a.Wizard.AddPoint(p.X, p.Y)
		}
		if !added {
			return fmt.Errorf("%w: point %.3f,%.3f rejected", service.ErrIncompleteInputs, p.X, p.Y)
		}
	}

	watchProgress(a, log)
	id, err := a.Jobs.Submit(ctx)
	if err != nil {
		return err
	}
	log.WithField(logger.FieldJobID, id).Info("Job submitted")
	return waitJob(ctx, a, log)
}

func resumeTracked(ctx context.Context, a *app.App, log *logger.Logger) error {
	watchProgress(a, log)
	resumed, err := a.Jobs.Resume(ctx)
	if err != nil {
		return err
	}
	if !resumed {
		log.Info("No job to resume")
		return nil
	}
	return waitJob(ctx, a, log)
}

func cancelTracked(ctx context.Context, a *app.App, log *logger.Logger) error {
	resumed, err := a.Jobs.Resume(ctx)
	if err != nil {
		return err
	}
	if !resumed {
		return service.ErrNoActiveJob
	}
	id := a.Jobs.Snapshot().JobID
	if err := a.Jobs.Cancel(ctx); err != nil {
		log.WithError(err).WithField(logger.FieldJobID, id).Warn("Cancelled locally; the service did not confirm")
		return nil
	}
	log.WithField(logger.FieldJobID, id).Info("Job cancelled")
	return nil
}

func watchProgress(a *app.App, log *logger.Logger) {
	var mu sync.Mutex
	last := ""
	a.Jobs.OnChange(func(s service.JobSnapshot) {
		line := fmt.Sprintf("%s %s %d", s.State, s.Phase, s.Percent)
		mu.Lock()
		seen := line == last
		last = line
		mu.Unlock()
		if seen {
			return
		}
		fields := logger.Fields{logger.FieldJobID: s.JobID, logger.FieldStatus: string(s.State)}
		if s.Phase != service.PhaseNone {
			fields[logger.FieldPhase] = string(s.Phase)
		}
		if s.HasPercent {
			fields["percent"] = s.Percent
		}
		log.WithFields(fields).Info(s.Message)
	})
}

func waitJob(ctx context.Context, a *app.App, log *logger.Logger) error {
	snap, err := a.Jobs.Wait(ctx)
	if err != nil {
		// interrupted; the job id stays stored for -resume
		return nil
	}
	switch snap.State {
	case service.StateCompleted:
		log.WithField(logger.FieldJobID, snap.JobID).Info("Job completed")
		return nil
	case service.StateCancelled:
		log.WithField(logger.FieldJobID, snap.JobID).Info("Job was cancelled")
		return nil
	default:
		return errors.New(snap.Error)
	}
}

func listHistory(ctx context.Context, a *app.App) error {
	jobs, err := a.History.List(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "JOB\tSTATUS\tVIDEO\tCREATED\tWINDOW")
	for _, j := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s .. %s\n", j.ID, j.Status, j.InputVideoName, j.CreatedAt, j.StartDatetime, j.EndDatetime)
	}
	return w.Flush()
}

func analyze(ctx context.Context, a *app.App, log *logger.Logger, jobID, from, to, area, export, outDir string) error {
	if err := a.SubRange.Load(ctx, jobID); err != nil {
		return err
	}
	if from != "" || to != "" {
		var w timewindow.Window
		var err error
		if w.StartDate, w.StartTime, err = splitDatetime(from); err != nil {
			return fmt.Errorf("from: %w", err)
		}
		if w.EndDate, w.EndTime, err = splitDatetime(to); err != nil {
			return fmt.Errorf("to: %w", err)
		}
		if res := a.SubRange.SetSubWindow(w); !res.Valid {
			return fmt.Errorf("%w: %s", service.ErrInvalidSubWindow, res.Reason)
		}
	}
	a.SubRange.SetArea(area)

	if err := a.SubRange.Generate(ctx); err != nil {
		return err
	}
	snap, err := a.SubRange.Wait(ctx)
	if err != nil {
		return err
	}
	if snap.State != service.SubRangeReady {
		return errors.New(snap.Error)
	}
	log.WithFields(logger.Fields{logger.FieldJobID: jobID, "image": snap.ImageURL}).Info("Sub-range heatmap ready")

	analysis, err := a.SubRange.Analyze(ctx)
	if err != nil {
		return err
	}
	log.WithFields(logger.Fields{
		"total_visitors":  analysis.TotalVisitors,
		"unique_visitors": analysis.UniqueVisitors,
		"peaks":           len(analysis.PeakIntervals),
	}).Info("Analysis")
	for _, r := range analysis.Recommendations {
		fmt.Println("-", r)
	}

	if export == "" {
		return nil
	}
	for _, k := range strings.Split(export, ",") {
		kind := domain.ExportKind(strings.TrimSpace(k))
		res, err := a.SubRange.Export(ctx, kind)
		if res == nil {
			return err
		}
		if err != nil {
			log.WithError(err).Warn("Export was not archived")
		}
		path := filepath.Join(outDir, fmt.Sprintf("%s-%d-%d.%s", res.JobID, res.StartSeconds, res.EndSeconds, kind.Extension()))
		if err := os.WriteFile(path, res.Data, 0o644); err != nil {
			return err
		}
		log.WithFields(logger.Fields{"path": path, "archive": res.URL, logger.FieldSize: len(res.Data)}).Info("Export written")
	}
	return nil
}

// splitDatetime splits "YYYY-MM-DD HH:MM:SS" into its date and clock parts.
func splitDatetime(s string) (string, string, error) {
	date, clock, ok := strings.Cut(strings.TrimSpace(s), " ")
	if !ok {
		return "", "", fmt.Errorf("expected \"YYYY-MM-DD HH:MM:SS\", got %q", s)
	}
	return date, strings.TrimSpace(clock), nil
}

func parsePoints(s string) ([]domain.Point, error) {
	var out []domain.Point
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		xs, ys, ok := strings.Cut(pair, ",")
		if !ok {
			return nil, fmt.Errorf("point %q is not x,y", pair)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
		if err != nil {
			return nil, fmt.Errorf("point %q: %w", pair, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
		if err != nil {
			return nil, fmt.Errorf("point %q: %w", pair, err)
		}
		out = append(out, domain.Point{X: x, Y: y})
	}
	if len(out) != 4 {
		return nil, fmt.Errorf("%w: need four corners, got %d", service.ErrIncompleteInputs, len(out))
	}
	return out, nil
}
