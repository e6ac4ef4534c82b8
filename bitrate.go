package transcode

// bitrateBaselineFPS is the frame rate at which the quality factor maps
// 1:1 onto pixel count. Other frame rates scale linearly around it, so the
// quality slider keeps comparable meaning across frame-rate choices.
const bitrateBaselineFPS = 30.0

// EstimateBitrate derives a target average bitrate in bits per second from
// the resolved size, effective frame rate, and quality factor:
//
//	bitrate = W * H * (fps / 30) * quality
//
// truncated toward zero. No floor is applied; degenerate geometry yields a
// degenerate bitrate, which the encoder layer rejects.
func EstimateBitrate(size Size, fps, quality float64) int {
	return int(float64(size.Area()) * (fps / bitrateBaselineFPS) * quality)
}
