package rtpingest

import (
	"encoding/binary"
	"testing"
)

func pcmFromSamples(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func samplesFromPCM(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

func TestResampleTooShort(t *testing.T) {
	if got := Resample8kToArtifact(nil); got != nil {
		t.Errorf("nil input: got %d bytes", len(got))
	}
	if got := Resample8kToArtifact([]byte{0x01, 0x02}); got != nil {
		t.Errorf("single sample: got %d bytes", len(got))
	}
}

func TestResampleStretchesDuration(t *testing.T) {
	// One second of input should come out close to one second at the
	// artifact rate
	in := pcmFromSamples(make([]int16, sourceSampleRate))
	out := Resample8kToArtifact(in)

	gotSamples := len(out) / 2
	if gotSamples < targetSampleRate-16 || gotSamples > targetSampleRate {
		t.Errorf("output samples = %d, want about %d", gotSamples, targetSampleRate)
	}
}

func TestResampleConstantSignal(t *testing.T) {
	samples := make([]int16, 100)
	for i := range samples {
		samples[i] = -1234
	}
	out := samplesFromPCM(Resample8kToArtifact(pcmFromSamples(samples)))

	if len(out) == 0 {
		t.Fatal("no output")
	}
	for i, s := range out {
		if s != -1234 {
			t.Fatalf("sample %d = %d, want -1234", i, s)
		}
	}
}

func TestResampleInterpolatesBetweenSamples(t *testing.T) {
	out := samplesFromPCM(Resample8kToArtifact(pcmFromSamples([]int16{0, 1000, 2000, 3000})))

	if len(out) == 0 {
		t.Fatal("no output")
	}
	prev := out[0]
	for i, s := range out[1:] {
		if s < prev {
			t.Fatalf("sample %d = %d dips below previous %d on a rising ramp", i+1, s, prev)
		}
		prev = s
	}
	if out[0] != 0 {
		t.Errorf("first sample = %d, want 0", out[0])
	}
	if max := out[len(out)-1]; max > 3000 {
		t.Errorf("last sample = %d, exceeds input peak 3000", max)
	}
}
