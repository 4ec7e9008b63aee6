package audio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

const resampleQuality = 4

// BeepDecoder decodes mp3, wav, flac and ogg vorbis in-process.
type BeepDecoder struct {
	format Format
}

// NewBeepDecoder creates a decoder producing PCM in format.
func NewBeepDecoder(format Format) *BeepDecoder {
	return &BeepDecoder{format: format}
}

// Supports reports whether ext (with dot, lower case) is decoded natively.
func (d *BeepDecoder) Supports(ext string) bool {
	switch ext {
	case ".mp3", ".wav", ".flac", ".ogg":
		return true
	}
	return false
}

func (d *BeepDecoder) Open(path string) (Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var (
		src    beep.StreamSeekCloser
		format beep.Format
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		src, format, err = mp3.Decode(f)
	case ".wav":
		src, format, err = wav.Decode(f)
	case ".flac":
		src, format, err = flac.Decode(f)
	case ".ogg":
		src, format, err = vorbis.Decode(f)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}

	s := &beepStream{
		file:   f,
		src:    src,
		in:     format.SampleRate,
		out:    beep.SampleRate(d.format.SampleRate),
		format: d.format,
		buf:    make([][2]float64, 1024),
	}
	s.reset()
	return s, nil
}

// beepStream converts a beep streamer to interleaved s16le PCM.
type beepStream struct {
	file    *os.File
	src     beep.StreamSeekCloser
	stream  beep.Streamer
	in, out beep.SampleRate
	format  Format
	buf     [][2]float64
	pending []byte
}

func (s *beepStream) reset() {
	s.pending = s.pending[:0]
	if s.in == s.out {
		s.stream = s.src
		return
	}
	s.stream = beep.Resample(resampleQuality, s.in, s.out, s.src)
}

func (s *beepStream) Read(p []byte) (int, error) {
	if len(s.pending) == 0 {
		n, ok := s.stream.Stream(s.buf)
		if !ok || n == 0 {
			if err := s.src.Err(); err != nil {
				return 0, err
			}
			return 0, io.EOF
		}
		s.pending = s.encode(s.buf[:n])
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *beepStream) encode(frames [][2]float64) []byte {
	out := make([]byte, 0, len(frames)*s.format.BytesPerFrame())
	for _, fr := range frames {
		for ch := 0; ch < s.format.Channels; ch++ {
			v := fr[min(ch, 1)]
			if s.format.Channels == 1 {
				v = (fr[0] + fr[1]) / 2
			}
			v = max(-1, min(1, v))
			sample := int16(v * 32767)
			out = append(out, byte(sample), byte(sample>>8))
		}
	}
	return out
}

func (s *beepStream) Seek(pos time.Duration) error {
	n := s.in.N(pos)
	if l := s.src.Len(); l > 0 && n > l {
		n = l
	}
	if err := s.src.Seek(max(n, 0)); err != nil {
		return err
	}
	s.reset()
	return nil
}

func (s *beepStream) Duration() (time.Duration, bool) {
	l := s.src.Len()
	if l <= 0 {
		return 0, false
	}
	return s.in.D(l), true
}

func (s *beepStream) Close() error {
	err := s.src.Close()
	s.file.Close()
	return err
}
