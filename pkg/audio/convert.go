package audio

// PCM conversion helpers shared by the capture backends and the debug
// recorder. All byte-level PCM is little-endian int16.

// BytesToInt16 decodes little-endian int16 PCM bytes into samples.
// A trailing odd byte is ignored.
func BytesToInt16(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
	}
	return out
}

// Int16ToBytes encodes samples as little-endian int16 PCM bytes.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// StereoToMono averages interleaved L+R sample pairs into mono. Uses int32
// arithmetic to prevent overflow; a trailing unpaired sample is dropped.
func StereoToMono(samples []int16) []int16 {
	frames := len(samples) / 2
	out := make([]int16, frames)
	for i := range frames {
		avg := (int32(samples[i*2]) + int32(samples[i*2+1])) / 2
		out[i] = int16(avg)
	}
	return out
}

// Int16ToFloat32 converts PCM samples to normalised float32 in [-1, 1],
// the input format of the ONNX keyword models.
func Int16ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}
