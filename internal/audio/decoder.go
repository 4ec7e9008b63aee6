package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Format is the PCM layout every decoder produces: signed 16-bit
// little-endian interleaved samples.
type Format struct {
	SampleRate int
	Channels   int
}

// DefaultFormat is 44.1kHz stereo.
var DefaultFormat = Format{SampleRate: 44100, Channels: 2}

// BytesPerFrame returns the size of one interleaved frame.
func (f Format) BytesPerFrame() int {
	return 2 * f.Channels
}

// Stream is one decoded track.
type Stream interface {
	io.Reader
	Seek(pos time.Duration) error
	Duration() (time.Duration, bool)
	Close() error
}

// Decoder opens audio files as PCM streams in a fixed Format.
type Decoder interface {
	Open(path string) (Stream, error)
}

// FFmpegDecoder uses FFmpeg for audio decoding
type FFmpegDecoder struct {
	ffmpegPath  string
	ffprobePath string
	format      Format
	log         zerolog.Logger
}

// NewFFmpegDecoder creates a new FFmpeg-based decoder
func NewFFmpegDecoder(format Format) (*FFmpegDecoder, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	return &FFmpegDecoder{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		format:      format,
		log:         log.With().Str("component", "ffmpeg").Logger(),
	}, nil
}

// Open reads the file duration and starts an ffmpeg process decoding it to PCM.
func (d *FFmpegDecoder) Open(path string) (Stream, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	duration, err := d.Duration(path)
	if err != nil {
		return nil, err
	}

	s := &ffmpegStream{decoder: d, path: path, duration: duration}
	if err := s.start(0); err != nil {
		return nil, err
	}
	return s, nil
}

// Duration returns the duration of an audio file
func (d *FFmpegDecoder) Duration(path string) (time.Duration, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	output, err := exec.Command(d.ffprobePath, args...).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	durationSec, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return time.Duration(durationSec * float64(time.Second)), nil
}

// ffmpegStream reads raw PCM from an ffmpeg process. Seeking restarts the
// process at the new offset.
type ffmpegStream struct {
	decoder  *FFmpegDecoder
	path     string
	duration time.Duration
	cmd      *exec.Cmd
	stdout   io.ReadCloser
}

func (s *ffmpegStream) start(from time.Duration) error {
	d := s.decoder
	args := []string{}
	if from > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", from.Seconds()))
	}
	args = append(args,
		"-v", "error",
		"-i", s.path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", strconv.Itoa(d.format.Channels),
		"-ar", strconv.Itoa(d.format.SampleRate),
		"-",
	)

	cmd := exec.Command(d.ffmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	d.log.Debug().Str("path", s.path).Dur("from", from).Msg("ffmpeg started")
	s.cmd = cmd
	s.stdout = stdout
	return nil
}

func (s *ffmpegStream) stop() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait() // reap
	}
	s.cmd = nil
	s.stdout = nil
}

func (s *ffmpegStream) Read(p []byte) (int, error) {
	if s.stdout == nil {
		return 0, io.EOF
	}
	n, err := s.stdout.Read(p)
	if errors.Is(err, os.ErrClosed) {
		err = io.EOF
	}
	return n, err
}

func (s *ffmpegStream) Seek(pos time.Duration) error {
	s.stop()
	return s.start(pos)
}

func (s *ffmpegStream) Duration() (time.Duration, bool) {
	return s.duration, s.duration > 0
}

func (s *ffmpegStream) Close() error {
	s.stop()
	return nil
}

// AutoDecoder picks a decoder by file extension. Extensions without a
// native decoder fall back to ffmpeg when it is available.
type AutoDecoder struct {
	native   *BeepDecoder
	fallback Decoder
}

// NewAutoDecoder returns a decoder for format. FFmpeg is optional.
func NewAutoDecoder(format Format) *AutoDecoder {
	a := &AutoDecoder{native: NewBeepDecoder(format)}
	if ff, err := NewFFmpegDecoder(format); err == nil {
		a.fallback = ff
	} else {
		log.Warn().Err(err).Msg("ffmpeg unavailable, only mp3/wav/flac/ogg will play")
	}
	return a
}

func (a *AutoDecoder) Open(path string) (Stream, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if a.native.Supports(ext) {
		return a.native.Open(path)
	}
	if a.fallback != nil {
		return a.fallback.Open(path)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
}
