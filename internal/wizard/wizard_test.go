package wizard

import (
	"testing"

	"github.com/timmy/footfall/internal/domain"
	"github.com/timmy/footfall/internal/logger"
	"github.com/timmy/footfall/internal/media"
	"github.com/timmy/footfall/internal/quad"
	"github.com/timmy/footfall/internal/timewindow"
)

func newWizard() *Wizard {
	return New(logger.Discard())
}

func video(seconds float64) *media.Video {
	return &media.Video{Path: "/tmp/store.mp4", Name: "store.mp4", DurationSeconds: seconds}
}

func addCorners(w *Wizard) {
	w.AddPoint(0.1, 0.9)
	w.AddPoint(0.9, 0.9)
	w.AddPoint(0.8, 0.1)
	w.AddPoint(0.2, 0.1)
}

func TestGoToSnapsToFirstInvalidStep(t *testing.T) {
	w := newWizard()
	w.SetVideo(video(60))

	nav := w.GoTo(StepConfirm)
	if !nav.Rejected {
		t.Error("expected jump to be rejected")
	}
	if nav.To != StepDateTime || w.Step() != StepDateTime {
		t.Errorf("step = %v (nav.To %v), want %v", w.Step(), nav.To, StepDateTime)
	}
	if nav.Reason == "" {
		t.Error("expected a rejection reason")
	}
}

func TestGoToWithoutVideoStaysOnFirstStep(t *testing.T) {
	w := newWizard()
	nav := w.Next()
	if !nav.Rejected || w.Step() != StepVideo {
		t.Errorf("Next() without video = %+v, step %v", nav, w.Step())
	}
}

func TestSequentialNavigation(t *testing.T) {
	w := newWizard()
	w.SetVideo(video(125.7))
	w.SetStart("2024-06-01", "10:00:00")

	if nav := w.Next(); nav.Rejected || nav.To != StepDateTime {
		t.Fatalf("Next() to datetime = %+v", nav)
	}
	if nav := w.Next(); nav.Rejected || nav.To != StepPoints {
		t.Fatalf("Next() to points = %+v", nav)
	}
	if nav := w.Next(); !nav.Rejected || nav.To != StepPoints {
		t.Fatalf("Next() without corners = %+v", nav)
	}
	addCorners(w)
	if nav := w.Next(); nav.Rejected || nav.To != StepConfirm {
		t.Fatalf("Next() to confirm = %+v", nav)
	}
	if nav := w.Next(); nav.Rejected || nav.To != StepConfirm {
		t.Errorf("Next() past the end = %+v", nav)
	}
	if nav := w.Previous(); nav.To != StepPoints {
		t.Errorf("Previous() = %+v", nav)
	}
	if nav := w.GoTo(StepVideo); nav.Rejected || nav.To != StepVideo {
		t.Errorf("GoTo(video) = %+v", nav)
	}
	if nav := w.GoTo(StepConfirm); nav.Rejected {
		t.Errorf("GoTo(confirm) with every step valid = %+v", nav)
	}
}

func TestDefaultEndAndManualExtension(t *testing.T) {
	w := newWizard()
	w.SetVideo(video(125.7))
	w.SetStart("2024-06-01", "10:00:00")

	st := w.Snapshot()
	if st.Reference != 125 {
		t.Errorf("reference = %d, want 125", st.Reference)
	}
	if st.Window.EndDate != "2024-06-01" || st.Window.EndTime != "10:02:05" {
		t.Errorf("default end = %s %s", st.Window.EndDate, st.Window.EndTime)
	}
	if !w.WindowCheck().Valid {
		t.Error("default window should be valid")
	}

	w.AdjustEnd(timewindow.FieldSeconds, 1)
	r := w.WindowCheck()
	if r.Valid || r.Reason != timewindow.ReasonExceedsDuration {
		t.Errorf("extended window check = %+v", r)
	}
}

func TestEditSnapsBack(t *testing.T) {
	w := newWizard()
	w.SetVideo(video(60))
	w.SetStart("2024-06-01", "10:00:00")
	addCorners(w)
	w.GoTo(StepConfirm)

	w.RemovePoint(2)
	if w.Step() != StepPoints {
		t.Errorf("step after removing a corner = %v, want points", w.Step())
	}

	w.SetEnd("2024-06-01", "09:00:00")
	if w.Step() != StepDateTime {
		t.Errorf("step after inverting window = %v, want datetime", w.Step())
	}
}

func TestFrameExtractedResetsOnlyOnce(t *testing.T) {
	w := newWizard()
	w.SetVideo(video(60))
	w.SetStart("2024-06-01", "10:00:00")
	w.GoTo(StepPoints)

	w.FrameExtracted(quad.Frame{Width: 640, Height: 480})
	if w.Step() != StepVideo {
		t.Fatalf("step after first frame = %v, want video", w.Step())
	}

	w.GoTo(StepPoints)
	w.FrameExtracted(quad.Frame{Width: 640, Height: 480})
	if w.Step() != StepPoints {
		t.Errorf("second extraction should not reset, step = %v", w.Step())
	}

	if !w.AddClick(64, 432) {
		t.Fatal("AddClick() should accept a click on the frame")
	}
	p := w.Snapshot().Points[0]
	if p.X != 0.1 || p.Y != 0.9 {
		t.Errorf("click point = %+v", p)
	}
}

func TestSubmissionRequiresAllSteps(t *testing.T) {
	w := newWizard()
	if _, ok := w.Submission(); ok {
		t.Fatal("empty wizard should not produce a submission")
	}
	w.SetVideo(video(60))
	w.SetStart("2024-06-01", "10:00:00")
	addCorners(w)
	sub, ok := w.Submission()
	if !ok {
		t.Fatal("expected submission")
	}
	if sub.Video.Name != "store.mp4" || len(sub.Points) != 4 || sub.Window.EndTime != "10:01:00" {
		t.Errorf("submission = %+v", sub)
	}
}

func TestRehydrateLandsOnConfirm(t *testing.T) {
	w := newWizard()
	tw := timewindow.Window{StartDate: "2024-06-01", StartTime: "10:00:00", EndDate: "2024-06-01", EndTime: "10:30:00"}
	points := []domain.Point{{X: 0.1, Y: 0.9}, {X: 0.9, Y: 0.9}, {X: 0.9, Y: 0.1}, {X: 0.1, Y: 0.1}}

	w.Rehydrate("store.mp4", tw, points)
	if w.Step() != StepConfirm {
		t.Errorf("step after rehydrate = %v", w.Step())
	}
	v := w.Video()
	if v == nil || !v.Remote || v.Available() {
		t.Errorf("rehydrated video = %+v", v)
	}

	w.Reset()
	st := w.Snapshot()
	if st.Step != StepVideo || st.Video != nil || len(st.Points) != 0 {
		t.Errorf("state after reset = %+v", st)
	}
}
