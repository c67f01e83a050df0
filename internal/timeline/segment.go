// Package timeline models a playable program as an ordered run of audio
// segments on a virtual time axis, and splices newly generated clips into it.
package timeline

import (
	"fmt"
	"math"
	"strings"
)

// Kind tags where a segment's audio came from. It does not affect layout.
type Kind string

const (
	KindOriginal  Kind = "original"
	KindGenerated Kind = "generated"
)

// MainSourceID identifies the pre-recorded episode audio.
const MainSourceID = "main"

// ParseKind accepts the canonical kinds plus the legacy "ai" alias.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(KindOriginal):
		return KindOriginal, nil
	case string(KindGenerated), "ai":
		return KindGenerated, nil
	}
	return "", fmt.Errorf("unknown segment kind %q", s)
}

// Segment maps the half-open virtual interval [VirtualStart, VirtualEnd)
// onto [SourceStart, SourceEnd) of one source asset.
type Segment struct {
	ID           string  `json:"id"`
	Kind         Kind    `json:"kind"`
	VirtualStart float64 `json:"virtual_start"`
	VirtualEnd   float64 `json:"virtual_end"`
	SourceID     string  `json:"source_id"`
	SourceStart  float64 `json:"source_start"`
	SourceEnd    float64 `json:"source_end"`
}

// Duration is the segment's length in seconds.
func (s Segment) Duration() float64 {
	return s.VirtualEnd - s.VirtualStart
}

// Contains reports whether t falls inside [VirtualStart, VirtualEnd).
func (s Segment) Contains(t float64) bool {
	return t >= s.VirtualStart && t < s.VirtualEnd
}

// SourceOffset translates a virtual time inside the segment to a position in
// the source asset.
func (s Segment) SourceOffset(t float64) float64 {
	return s.SourceStart + (t - s.VirtualStart)
}

// Block is the older global-start/duration shape some clients still send.
type Block struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Start       float64 `json:"start"`
	Duration    float64 `json:"duration"`
	GlobalStart float64 `json:"global_start"`
	SourceID    string  `json:"source_id,omitempty"`
}

// Segment converts a legacy block into the canonical model.
func (b Block) Segment() (Segment, error) {
	kind, err := ParseKind(b.Type)
	if err != nil {
		return Segment{}, err
	}
	src := b.SourceID
	if src == "" {
		if kind == KindOriginal {
			src = MainSourceID
		} else {
			src = b.ID
		}
	}
	return Segment{
		ID:           b.ID,
		Kind:         kind,
		VirtualStart: b.GlobalStart,
		VirtualEnd:   b.GlobalStart + b.Duration,
		SourceID:     src,
		SourceStart:  b.Start,
		SourceEnd:    b.Start + b.Duration,
	}, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
