package recorder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

// Artifact audio format: mono, 16-bit signed PCM, 44.1 kHz.
const (
	SampleRate    = 44100
	NumChannels   = 1
	BitsPerSample = 16

	// BytesPerSecond is the data rate of the artifact format
	BytesPerSecond = SampleRate * NumChannels * BitsPerSample / 8

	wavHeaderSize = 44
)

// wavHeader is the RIFF/WAVE header written in front of the PCM data
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

// EncodeWAV wraps raw PCM data in a WAV container in the artifact format
func EncodeWAV(pcm []byte) []byte {
	hdr := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(wavHeaderSize - 8 + len(pcm)),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   NumChannels,
		SampleRate:    SampleRate,
		ByteRate:      BytesPerSecond,
		BlockAlign:    NumChannels * BitsPerSample / 8,
		BitsPerSample: BitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(len(pcm)),
	}

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	_ = binary.Write(buf, binary.LittleEndian, hdr)
	buf.Write(pcm)
	return buf.Bytes()
}

// WriteWAV writes raw PCM data to path as a WAV file
func WriteWAV(path string, pcm []byte) error {
	if err := os.WriteFile(path, EncodeWAV(pcm), 0o644); err != nil {
		return fmt.Errorf("failed to write wav file: %w", err)
	}
	return nil
}

// WriteSilence writes a WAV file containing the given number of seconds of
// silence in the artifact format. Used as the fallback artifact so a file
// always exists after finalize.
func WriteSilence(path string, seconds int) error {
	if seconds < 1 {
		seconds = 1
	}
	return WriteWAV(path, make([]byte, seconds*BytesPerSecond))
}
