package capture

// Resample converts a PCM chunk from inRate to outRate using linear
// interpolation over just that chunk. Chunks are resampled independently,
// so phase is not carried across chunk boundaries.
func Resample(pcm []int16, inRate, outRate int) []int16 {
	if inRate == outRate || len(pcm) == 0 {
		return pcm
	}
	n := len(pcm)
	target := n * outRate / inRate
	if target <= 0 {
		return nil
	}
	out := make([]int16, target)
	if n == 1 {
		for i := range out {
			out[i] = pcm[0]
		}
		return out
	}
	step := float64(n-1) / float64(target-1)
	if target == 1 {
		step = 0
	}
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= n-1 {
			out[i] = pcm[n-1]
			continue
		}
		frac := pos - float64(j)
		v := float64(pcm[j]) + (float64(pcm[j+1])-float64(pcm[j]))*frac
		out[i] = int16(v)
	}
	return out
}

// PCMFromBytes reinterprets little-endian S16 bytes as samples.
func PCMFromBytes(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
	}
	return samples
}
