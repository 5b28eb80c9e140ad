package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-audio/wav"
)

// wavHeaderSize is the size of the canonical PCM WAV header: RIFF/WAVE,
// a 16-byte fmt chunk, and the data chunk preamble.
const wavHeaderSize = 44

// ErrInvalidWAV is returned by DecodeInfo when the payload is not a parseable
// RIFF/WAVE file.
var ErrInvalidWAV = errors.New("audio: invalid WAV data")

// Info describes the PCM layout of a decoded WAV payload.
type Info struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	DataBytes     int
}

// ByteRate returns the number of PCM bytes per second of playback.
func (i Info) ByteRate() int {
	return i.SampleRate * i.Channels * i.BitsPerSample / 8
}

// Duration returns the playback length of the data chunk: dataBytes / byteRate.
func (i Info) Duration() time.Duration {
	br := i.ByteRate()
	if br <= 0 {
		return 0
	}
	return time.Duration(float64(i.DataBytes) / float64(br) * float64(time.Second))
}

// EncodeWAV encodes mono float samples as a 16-bit PCM WAV file with the
// canonical 44-byte header (format tag 1). Returns nil for empty input.
func EncodeWAV(samples []float32, sampleRate int) []byte {
	if len(samples) == 0 || sampleRate <= 0 {
		return nil
	}

	const (
		channels      = 1
		bitsPerSample = 16
	)
	dataSize := len(samples) * 2
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+dataSize))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(wavHeaderSize+dataSize-8))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM format tag
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	for _, s := range FloatToPCM16(samples) {
		binary.Write(buf, binary.LittleEndian, s)
	}
	return buf.Bytes()
}

// DecodeInfo parses the header of a WAV payload and returns its PCM layout.
// Used by the playback sequencer to compute clip durations without decoding
// the sample data itself.
func DecodeInfo(b []byte) (Info, error) {
	d := wav.NewDecoder(bytes.NewReader(b))
	d.ReadInfo()
	if !d.WasPCMAccessed() {
		if err := d.FwdToPCM(); err != nil {
			return Info{}, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
		}
	}
	if d.SampleRate == 0 || d.NumChans == 0 || d.BitDepth == 0 {
		return Info{}, ErrInvalidWAV
	}
	return Info{
		SampleRate:    int(d.SampleRate),
		Channels:      int(d.NumChans),
		BitsPerSample: int(d.BitDepth),
		DataBytes:     int(d.PCMLen()),
	}, nil
}

// DecodeSamples fully decodes a WAV stream into mono float samples plus the
// sample rate. Multi-channel audio is downmixed by channel averaging.
func DecodeSamples(r io.ReadSeeker) ([]float32, int, error) {
	d := wav.NewDecoder(r)
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, 0, ErrInvalidWAV
	}
	f32 := buf.AsFloat32Buffer().Data
	mono := DownmixInterleaved(f32, buf.Format.NumChannels)
	return mono, buf.Format.SampleRate, nil
}
