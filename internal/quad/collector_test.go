package quad

import (
	"bytes"
	"image"
	"image/png"
	"reflect"
	"testing"
)

func fill(c *Collector) {
	c.AddPoint(0.1, 0.9)
	c.AddPoint(0.9, 0.9)
	c.AddPoint(0.8, 0.2)
	c.AddPoint(0.2, 0.2)
}

func TestCollectorLabelsFollowInsertionOrder(t *testing.T) {
	c := NewCollector()
	want := []string{"Bottom-Left", "Bottom-Right", "Top-Right", "Top-Left"}
	for i, name := range want {
		label, ok := c.CurrentLabel()
		if !ok {
			t.Fatalf("step %d: expected a label", i)
		}
		if label.String() != name {
			t.Errorf("step %d: label = %s, want %s", i, label, name)
		}
		c.AddPoint(0.5, 0.5)
	}
	if _, ok := c.CurrentLabel(); ok {
		t.Error("expected no label once four points are collected")
	}
	if !c.IsComplete() {
		t.Error("expected collector to be complete")
	}
}

func TestCollectorIgnoresFifthPoint(t *testing.T) {
	c := NewCollector()
	fill(c)
	before := c.Points()

	if c.AddPoint(0.5, 0.5) {
		t.Error("AddPoint should refuse a fifth point")
	}
	if !reflect.DeepEqual(before, c.Points()) {
		t.Errorf("points changed after overflow: %v -> %v", before, c.Points())
	}
}

func TestCollectorRemovePoint(t *testing.T) {
	c := NewCollector()
	fill(c)

	if !c.RemovePoint(1) {
		t.Fatal("RemovePoint(1) should succeed")
	}
	pts := c.Points()
	if len(pts) != 3 || pts[0].X != 0.1 || pts[1].X != 0.8 || pts[2].X != 0.2 {
		t.Errorf("unexpected points after removal: %v", pts)
	}
	label, ok := c.CurrentLabel()
	if !ok || label != TopLeft {
		t.Errorf("next label = %v, %v; want Top-Left", label, ok)
	}

	if c.RemovePoint(3) || c.RemovePoint(-1) {
		t.Error("out-of-range removal should be a no-op")
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3", c.Len())
	}
}

func TestCollectorRejectsOutOfRange(t *testing.T) {
	c := NewCollector()
	if c.AddPoint(1.2, 0.5) || c.AddPoint(0.5, -0.1) {
		t.Error("coordinates outside [0,1] should be rejected")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestCollectorReplace(t *testing.T) {
	c := NewCollector()
	c.AddPoint(0.3, 0.3)
	src := NewCollector()
	fill(src)
	c.Replace(append(src.Points(), src.Points()[0]))
	if !c.IsComplete() || !reflect.DeepEqual(c.Points(), src.Points()) {
		t.Errorf("Replace() = %v", c.Points())
	}
}

func TestFrameClicks(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 640, 480))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	f, err := DecodeFrame(&buf)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if f.Width != 640 || f.Height != 480 {
		t.Fatalf("frame = %+v", f)
	}

	c := NewCollector()
	c.AddClick(f, 320, 480)
	c.AddClick(f, 700, -5)
	pts := c.Points()
	if pts[0].X != 0.5 || pts[0].Y != 1 {
		t.Errorf("first click = %+v", pts[0])
	}
	if pts[1].X != 1 || pts[1].Y != 0 {
		t.Errorf("clamped click = %+v", pts[1])
	}
	if px, py := f.Pixel(0.5, 0.5); px != 320 || py != 240 {
		t.Errorf("Pixel() = %d,%d", px, py)
	}

	if _, err := DecodeFrame(bytes.NewReader([]byte("not an image"))); err == nil {
		t.Error("expected decode error")
	}
}
