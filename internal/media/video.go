// Package media inspects uploaded surveillance videos: file type, duration and the
// reference frame used for corner selection.
package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrUnsupportedType is returned when a file is not a video.
var ErrUnsupportedType = errors.New("unsupported file type")

// Video is the file reference the wizard carries. A Remote video was rehydrated
// from the job service and has no local file behind it.
type Video struct {
	Path            string  `json:"path,omitempty"`
	Name            string  `json:"name"`
	MIME            string  `json:"mime,omitempty"`
	Size            int64   `json:"size,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
	Remote          bool    `json:"remote,omitempty"`
}

// Available reports whether the raw file can still be read for a submission.
func (v *Video) Available() bool {
	if v == nil || v.Remote || v.Path == "" {
		return false
	}
	_, err := os.Stat(v.Path)
	return err == nil
}

// Open checks that path exists and sniffs its content to confirm it is a video.
// Duration is left at zero; use Prober.Duration to fill it.
func Open(path string) (*Video, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat video: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory: %w", path, ErrUnsupportedType)
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to detect video type: %w", err)
	}
	if !strings.HasPrefix(mt.String(), "video/") {
		return nil, fmt.Errorf("%s is %s: %w", filepath.Base(path), mt.String(), ErrUnsupportedType)
	}
	return &Video{
		Path: path,
		Name: filepath.Base(path),
		MIME: mt.String(),
		Size: info.Size(),
	}, nil
}

// Prober wraps the ffprobe and ffmpeg binaries.
type Prober struct {
	FFprobeBin string
	FFmpegBin  string
}

func (p *Prober) ffprobe() string {
	if p.FFprobeBin == "" {
		return "ffprobe"
	}
	return p.FFprobeBin
}

func (p *Prober) ffmpeg() string {
	if p.FFmpegBin == "" {
		return "ffmpeg"
	}
	return p.FFmpegBin
}

// Duration returns the container duration of the video in seconds.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	out, err := runCommand(ctx, p.ffprobe(),
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("running ffprobe: %w: %s", err, strings.TrimSpace(out))
	}
	return parseDuration(out)
}

// ExtractFrame writes the first frame of the video to outPath as an image.
func (p *Prober) ExtractFrame(ctx context.Context, path, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("creating frame directory: %w", err)
	}
	out, err := runCommand(ctx, p.ffmpeg(),
		"-y",
		"-i", path,
		"-frames:v", "1",
		"-q:v", "2",
		outPath,
	)
	if err != nil {
		return fmt.Errorf("running ffmpeg: %w: %s", err, strings.TrimSpace(out))
	}
	return nil
}

// Probe opens path and fills in its duration.
func (p *Prober) Probe(ctx context.Context, path string) (*Video, error) {
	v, err := Open(path)
	if err != nil {
		return nil, err
	}
	v.DurationSeconds, err = p.Duration(ctx, path)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func parseDuration(out string) (float64, error) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "N/A" {
			continue
		}
		d, err := strconv.ParseFloat(line, 64)
		if err != nil {
			continue
		}
		if d <= 0 {
			return 0, fmt.Errorf("invalid duration %q", line)
		}
		return d, nil
	}
	return 0, errors.New("ffprobe reported no duration")
}

// runCommand executes an external binary and captures combined output.
func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var output strings.Builder
	cmd.Stdout = &output
	cmd.Stderr = &output
	err := cmd.Run()
	return output.String(), err
}
