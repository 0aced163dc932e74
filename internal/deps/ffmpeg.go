package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"glossvideo/internal/config"
)

// Requirements lists the binaries the configured transcoder executes.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Transcode.FFmpegBinary,
			Description: "Converts uploads and builds poster and small companions",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Transcode.FFprobeBinary,
			Description: "Inspects container and codec before normalization",
		},
	}
}

// CheckEncoder reports whether the ffmpeg binary lists encoder among its
// video or audio encoders.
func CheckEncoder(ctx context.Context, ffmpegCommand, encoder string) Status {
	status := Status{Requirement: Requirement{
		Name:        "Encoder " + encoder,
		Command:     strings.TrimSpace(ffmpegCommand),
		Description: "Required for the canonical output format",
	}}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	out, err := exec.CommandContext(ctx, status.Command, "-hide_banner", "-encoders").Output() //nolint:gosec
	if err != nil {
		status.Detail = fmt.Sprintf("list encoders: %v", err)
		return status
	}
	if !listsEncoder(out, encoder) {
		status.Detail = fmt.Sprintf("%s does not provide encoder %q", status.Command, encoder)
		return status
	}
	status.Available = true
	return status
}

// listsEncoder scans "ffmpeg -encoders" output, whose rows are a flag column
// followed by the encoder name.
func listsEncoder(out []byte, encoder string) bool {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[1] == encoder {
			return true
		}
	}
	return false
}
