package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// entries limits ffprobe output to the fields normalization and poster
// extraction read.
const entries = "format=format_name,duration:" +
	"stream=codec_type,codec_name,width,height,nb_frames,r_frame_rate,avg_frame_rate,duration"

// Result is the decoded ffprobe report for one file.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream holds the per-stream fields ffprobe reports as strings or numbers.
type Stream struct {
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Duration     string `json:"duration"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	NBFrames     string `json:"nb_frames"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
}

// Format is the container section of the report.
type Format struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

// Inspect runs binary (ffprobe when empty) against path.
func Inspect(ctx context.Context, binary, path string) (Result, error) {
	if strings.TrimSpace(path) == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}
	if binary = strings.TrimSpace(binary); binary == "" {
		binary = "ffprobe"
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-show_entries", entries, "-of", "json", "--", path) //nolint:gosec
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			return Result{}, fmt.Errorf("ffprobe inspect %s: %w: %s", path, err, detail)
		}
		return Result{}, fmt.Errorf("ffprobe inspect %s: %w", path, err)
	}
	return Parse(out)
}

// Parse decodes ffprobe JSON output.
func Parse(output []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// Containers splits the demuxer list, so "mov,mp4,m4a" yields three names.
func (r Result) Containers() []string {
	var names []string
	for _, name := range strings.Split(r.Format.FormatName, ",") {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// VideoStream returns the first video stream.
func (r Result) VideoStream() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return stream, true
		}
	}
	return Stream{}, false
}

// DurationSeconds returns the container duration, falling back to the video
// stream. NaN means ffprobe reported something unparsable.
func (r Result) DurationSeconds() float64 {
	if strings.TrimSpace(r.Format.Duration) != "" {
		return parseFloat(r.Format.Duration)
	}
	if stream, ok := r.VideoStream(); ok {
		return parseFloat(stream.Duration)
	}
	return 0
}

// FrameCount returns nb_frames of the video stream, 0 when unknown.
func (r Result) FrameCount() int64 {
	stream, ok := r.VideoStream()
	if !ok {
		return 0
	}
	count, err := strconv.ParseInt(strings.TrimSpace(stream.NBFrames), 10, 64)
	if err != nil || count < 0 {
		return 0
	}
	return count
}

// FrameRate prefers avg_frame_rate over r_frame_rate. 0 means unknown.
func (r Result) FrameRate() float64 {
	stream, ok := r.VideoStream()
	if !ok {
		return 0
	}
	if rate := parseRational(stream.AvgFrameRate); rate > 0 {
		return rate
	}
	return parseRational(stream.RFrameRate)
}

// parseRational reads "30000/1001" or a plain number; invalid input is 0.
func parseRational(value string) float64 {
	num, den, isFraction := strings.Cut(strings.TrimSpace(value), "/")
	n := parseFloat(num)
	if math.IsNaN(n) || n <= 0 {
		return 0
	}
	if !isFraction {
		return n
	}
	d := parseFloat(den)
	if math.IsNaN(d) || d <= 0 {
		return 0
	}
	return n / d
}

func parseFloat(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return math.NaN()
	}
	return parsed
}
