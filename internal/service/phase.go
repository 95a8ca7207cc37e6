package service

import (
	"regexp"
	"strconv"
	"strings"
)

// Phase is a coarse, cosmetic processing stage inferred from a free-text status
// message. It is never used to decide lifecycle transitions.
type Phase string

const (
	PhaseNone       Phase = ""
	PhaseUploading  Phase = "uploading"
	PhaseDetecting  Phase = "detecting"
	PhaseTracking   Phase = "tracking"
	PhaseGenerating Phase = "generating"
	PhaseSaving     Phase = "saving"
)

// phaseTable is checked in order against the lowercased message; first match wins.
// Later stages come first because messages often mention earlier ones
// ("tracking detections", "saving heatmap").
var phaseTable = []struct {
	needles []string
	phase   Phase
}{
	{[]string{"sav"}, PhaseSaving},
	{[]string{"heatmap", "generat"}, PhaseGenerating},
	{[]string{"track"}, PhaseTracking},
	{[]string{"detect"}, PhaseDetecting},
	{[]string{"upload"}, PhaseUploading},
}

// InferPhase maps a status message to a phase. ok is false when nothing matches, in
// which case the caller keeps its previous phase.
func InferPhase(message string) (phase Phase, ok bool) {
	msg := strings.ToLower(message)
	for _, row := range phaseTable {
		for _, needle := range row.needles {
			if strings.Contains(msg, needle) {
				return row.phase, true
			}
		}
	}
	return PhaseNone, false
}

var percentPattern = regexp.MustCompile(`(\d{1,3})\s*%\s*\)?\s*\.?\s*$`)

// ExtractPercent returns the trailing "NN%" of a status message, capped at 100.
func ExtractPercent(message string) (int, bool) {
	m := percentPattern.FindStringSubmatch(strings.TrimSpace(message))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	if n > 100 {
		n = 100
	}
	return n, true
}
