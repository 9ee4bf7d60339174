package rtpingest

// Telephony audio arrives at 8 kHz; artifacts are 44.1 kHz.
const (
	sourceSampleRate = 8000
	targetSampleRate = 44100
)

// Resample8kToArtifact converts 8 kHz mono 16-bit PCM to the 44.1 kHz
// artifact rate by linear interpolation between consecutive samples.
func Resample8kToArtifact(pcm []byte) []byte {
	inSamples := len(pcm) / 2
	if inSamples < 2 {
		return nil
	}

	ratio := float64(sourceSampleRate) / float64(targetSampleRate)
	outSamples := int(float64(inSamples) / ratio)
	out := make([]byte, 0, outSamples*2)

	for i := 0; i < outSamples; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		if srcIdx+1 >= inSamples {
			break
		}

		sample1 := int16(pcm[srcIdx*2]) | int16(pcm[srcIdx*2+1])<<8
		sample2 := int16(pcm[(srcIdx+1)*2]) | int16(pcm[(srcIdx+1)*2+1])<<8

		interpolated := int16(float64(sample1)*(1-frac) + float64(sample2)*frac)

		out = append(out, byte(interpolated&0xFF), byte((interpolated>>8)&0xFF))
	}

	return out
}
