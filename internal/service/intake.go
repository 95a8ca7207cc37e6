package service

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/timmy/footfall/internal/logger"
	"github.com/timmy/footfall/internal/media"
	"github.com/timmy/footfall/internal/quad"
	"github.com/timmy/footfall/internal/wizard"
)

// VideoProber reads a video's metadata and its first frame.
type VideoProber interface {
	Probe(ctx context.Context, path string) (*media.Video, error)
	ExtractFrame(ctx context.Context, path, outPath string) error
}

// Intake feeds a local video into the wizard: it checks the file type, probes the
// duration and extracts the reference frame the corners are clicked on.
type Intake struct {
	prober  VideoProber
	wizard  *wizard.Wizard
	workDir string
	log     *logger.Logger
}

// NewIntake creates an intake writing frames under workDir.
func NewIntake(prober VideoProber, wiz *wizard.Wizard, workDir string, log *logger.Logger) *Intake {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Intake{prober: prober, wizard: wiz, workDir: workDir, log: log.WithComponent("intake")}
}

// UploadPath returns a fresh path under the work directory for an uploaded file,
// keeping its base name so the job is listed under it.
func (in *Intake) UploadPath(name string) string {
	return filepath.Join(in.workDir, "uploads", uuid.New().String(), filepath.Base(name))
}

// LoadVideo probes path and selects it in the wizard.
func (in *Intake) LoadVideo(ctx context.Context, path string) (*media.Video, error) {
	v, err := in.prober.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	in.wizard.SetVideo(v)
	in.log.WithFields(logger.Fields{
		"video":            v.Name,
		"mime":             v.MIME,
		"duration_seconds": v.DurationSeconds,
	}).Info("Video selected")
	return v, nil
}

// ExtractFrame writes the selected video's first frame and hands its dimensions to
// the wizard. It returns the frame's path.
func (in *Intake) ExtractFrame(ctx context.Context) (string, error) {
	v := in.wizard.Video()
	if !v.Available() {
		return "", ErrVideoMissing
	}
	out := filepath.Join(in.workDir, "frames", uuid.New().String()+".jpg")
	if err := in.prober.ExtractFrame(ctx, v.Path, out); err != nil {
		return "", fmt.Errorf("failed to extract reference frame: %w", err)
	}
	frame, err := quad.LoadFrame(out)
	if err != nil {
		return "", err
	}
	if cur := in.wizard.Video(); cur == nil || cur.Path != v.Path {
		return "", fmt.Errorf("video changed during frame extraction")
	}
	in.wizard.FrameExtracted(frame)
	in.log.WithFields(logger.Fields{"width": frame.Width, "height": frame.Height}).Debug("Reference frame ready")
	return out, nil
}
