package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/bobarin/interject/internal/session"
	"github.com/bobarin/interject/internal/timeline"
	"github.com/spf13/cobra"
)

type insertion struct {
	at    float64
	clips []timeline.Clip
}

// parseInsert reads "at:source:dur[,source:dur...]".
func parseInsert(s string) (insertion, error) {
	atStr, rest, ok := strings.Cut(s, ":")
	if !ok || rest == "" {
		return insertion{}, fmt.Errorf("insert %q: want at:source:dur[,source:dur...]", s)
	}
	at, err := strconv.ParseFloat(strings.TrimSpace(atStr), 64)
	if err != nil {
		return insertion{}, fmt.Errorf("insert %q: bad time: %w", s, err)
	}

	var clips []timeline.Clip
	for _, part := range strings.Split(rest, ",") {
		src, durStr, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok || src == "" {
			return insertion{}, fmt.Errorf("insert %q: clip %q wants source:dur", s, part)
		}
		dur, err := strconv.ParseFloat(durStr, 64)
		if err != nil {
			return insertion{}, fmt.Errorf("insert %q: bad duration for %s: %w", s, src, err)
		}
		clips = append(clips, timeline.Clip{SourceID: src, Duration: dur})
	}
	return insertion{at: at, clips: clips}, nil
}

// build replays the flags into a session.
func build(cmd *cobra.Command) (*session.Session, error) {
	duration, _ := cmd.Flags().GetFloat64("duration")
	inserts, _ := cmd.Flags().GetStringArray("insert")
	transcriptPath, _ := cmd.Flags().GetString("transcript")

	var transcript []timeline.TranscriptLine
	if transcriptPath != "" {
		data, err := os.ReadFile(transcriptPath)
		if err != nil {
			return nil, fmt.Errorf("read transcript: %w", err)
		}
		if err := json.Unmarshal(data, &transcript); err != nil {
			return nil, fmt.Errorf("parse transcript: %w", err)
		}
	}

	s := session.New(nil, "")
	if err := s.InitializeFromOriginalAudio(duration, transcript); err != nil {
		return nil, err
	}

	for _, raw := range inserts {
		ins, err := parseInsert(raw)
		if err != nil {
			return nil, err
		}
		lines := make([]timeline.TranscriptLine, len(ins.clips))
		var offset float64
		for i, c := range ins.clips {
			lines[i] = timeline.TranscriptLine{Speaker: c.SourceID, Content: "[generated]", Seconds: offset}
			offset += c.Duration
		}
		if _, err := s.ApplyGeneratedAnswer(ins.at, ins.clips, lines); err != nil {
			return nil, fmt.Errorf("insert %q: %w", raw, err)
		}
	}
	return s, nil
}

func runLayout(cmd *cobra.Command) error {
	s, err := build(cmd)
	if err != nil {
		return err
	}
	st := s.State()

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Segments      []timeline.Segment        `json:"segments"`
			Transcript    []timeline.TranscriptLine `json:"transcript"`
			TotalDuration float64                   `json:"total_duration"`
		}{st.Segments, st.Transcript, st.TotalDuration})
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tKIND\tVIRTUAL\tSOURCE\tSOURCE RANGE")
	for i, seg := range st.Segments {
		fmt.Fprintf(w, "%d\t%s\t%s-%s\t%s\t%s-%s\n", i, seg.Kind,
			secs(seg.VirtualStart), secs(seg.VirtualEnd), seg.SourceID,
			secs(seg.SourceStart), secs(seg.SourceEnd))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "total %s\n", secs(st.TotalDuration))
	return nil
}

func runLocate(cmd *cobra.Command) error {
	at, _ := cmd.Flags().GetFloat64("at")
	s, err := build(cmd)
	if err != nil {
		return err
	}

	pos := s.Tick(at)
	out := cmd.OutOrStdout()
	if pos.Segment == nil {
		fmt.Fprintf(out, "%s is outside the program (total %s)\n", secs(at), secs(pos.TotalDuration))
	} else {
		fmt.Fprintf(out, "segment %s (%s) source %s at %s\n",
			pos.Segment.ID, pos.Segment.Kind, pos.Segment.SourceID, secs(pos.Segment.SourceOffset(at)))
	}
	if pos.Line != nil {
		fmt.Fprintf(out, "line %d [%s] %s: %s\n", pos.LineIndex, secs(pos.Line.Seconds), pos.Line.Speaker, pos.Line.Content)
	}
	fmt.Fprintf(out, "progress %.1f%%\n", pos.Progress)
	return nil
}

func secs(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
