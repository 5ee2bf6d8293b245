package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// AudioExt is the extension of files produced by FFmpegConverter.
const AudioExt = ".mp3"

// FFmpegConverter shells out to ffmpeg to produce mono constant-bitrate MP3.
// A fixed bitrate keeps the output size predictable from the video duration.
type FFmpegConverter struct {
	binary      string
	sampleRate  int
	bitrateKbps int
}

func NewFFmpegConverter(binary string, sampleRate, bitrateKbps int) *FFmpegConverter {
	if binary == "" {
		binary = "ffmpeg"
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if bitrateKbps <= 0 {
		bitrateKbps = 32
	}
	return &FFmpegConverter{binary: binary, sampleRate: sampleRate, bitrateKbps: bitrateKbps}
}

func (c *FFmpegConverter) Args(src, dst string) []string {
	return []string{
		"-nostdin", "-hide_banner", "-loglevel", "error", "-y",
		"-i", src,
		"-vn", "-ac", "1", "-ar", strconv.Itoa(c.sampleRate),
		"-c:a", "libmp3lame", "-b:a", strconv.Itoa(c.bitrateKbps) + "k",
		"-f", "mp3", dst,
	}
}

func (c *FFmpegConverter) Convert(ctx context.Context, src, dst string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.binary, c.Args(src, dst)...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 512 {
			msg = msg[:512]
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, msg)
	}
	return nil
}

// EncodedSize estimates the converted file size for a clip of length d.
func EncodedSize(d time.Duration, bitrateKbps int) int64 {
	if bitrateKbps <= 0 {
		bitrateKbps = 32
	}
	return int64(d.Seconds() * float64(bitrateKbps) * 1000 / 8)
}
