package transcode

// VideoCodec identifies the output video codec.
type VideoCodec int

const (
	VideoCodecUnknown VideoCodec = iota
	VideoCodecH264
	VideoCodecH265
	VideoCodecVP9
	VideoCodecAV1
	videoCodecCount
)

// videoCodecMeta contains static metadata about a codec.
type videoCodecMeta struct {
	Name     string
	MimeType string
	FourCC   string
	Hardware bool // hardware encoders exist for this codec
}

// Static metadata table - indexed by VideoCodec, zero allocations.
var videoCodecInfo = [videoCodecCount]videoCodecMeta{
	VideoCodecUnknown: {"Unknown", "", "", false},
	VideoCodecH264:    {"H264", "video/H264", "avc1", true},
	VideoCodecH265:    {"H265", "video/H265", "hvc1", true},
	VideoCodecVP9:     {"VP9", "video/VP9", "vp09", false},
	VideoCodecAV1:     {"AV1", "video/AV1", "av01", false},
}

func (c VideoCodec) String() string {
	if c <= VideoCodecUnknown || c >= videoCodecCount {
		return "Unknown"
	}
	return videoCodecInfo[c].Name
}

// MimeType returns the MIME type for this codec.
func (c VideoCodec) MimeType() string {
	if c <= VideoCodecUnknown || c >= videoCodecCount {
		return ""
	}
	return videoCodecInfo[c].MimeType
}

// FourCC returns the sample-entry identifier handed to the encoder backend.
func (c VideoCodec) FourCC() string {
	if c <= VideoCodecUnknown || c >= videoCodecCount {
		return ""
	}
	return videoCodecInfo[c].FourCC
}

// HardwareCapable reports whether hardware encoders exist for this codec.
// Requesting hardware acceleration for a codec without hardware support
// silently falls back to software encoding.
func (c VideoCodec) HardwareCapable() bool {
	if c <= VideoCodecUnknown || c >= videoCodecCount {
		return false
	}
	return videoCodecInfo[c].Hardware
}

// Valid reports whether c names a supported output codec.
func (c VideoCodec) Valid() bool {
	return c > VideoCodecUnknown && c < videoCodecCount
}

// AudioCodec identifies the audio codec type.
type AudioCodec int

const (
	AudioCodecUnknown AudioCodec = iota
	AudioCodecAAC
)

func (c AudioCodec) String() string {
	switch c {
	case AudioCodecAAC:
		return "AAC"
	default:
		return "Unknown"
	}
}

// MimeType returns the MIME type for this codec.
func (c AudioCodec) MimeType() string {
	switch c {
	case AudioCodecAAC:
		return "audio/AAC"
	default:
		return ""
	}
}

// Container identifies a media container format.
type Container int

const (
	ContainerUnknown Container = iota
	ContainerMP4
	ContainerMOV
	ContainerM4V
	ContainerMKV
	ContainerWebM
	ContainerAVI
	containerCount
)

// containerMeta contains static metadata about a container format.
type containerMeta struct {
	Name      string
	Extension string
	MimeType  string
	Writable  bool // supported as an output kind
}

var containerInfo = [containerCount]containerMeta{
	ContainerUnknown: {"Unknown", "", "", false},
	ContainerMP4:     {"MP4", ".mp4", "video/mp4", true},
	ContainerMOV:     {"MOV", ".mov", "video/quicktime", true},
	ContainerM4V:     {"M4V", ".m4v", "video/x-m4v", false},
	ContainerMKV:     {"MKV", ".mkv", "video/x-matroska", true},
	ContainerWebM:    {"WebM", ".webm", "video/webm", false},
	ContainerAVI:     {"AVI", ".avi", "video/x-msvideo", false},
}

func (c Container) String() string {
	if c <= ContainerUnknown || c >= containerCount {
		return "Unknown"
	}
	return containerInfo[c].Name
}

// Extension returns the conventional file extension, including the dot.
func (c Container) Extension() string {
	if c <= ContainerUnknown || c >= containerCount {
		return ""
	}
	return containerInfo[c].Extension
}

// MimeType returns the MIME type for this container.
func (c Container) MimeType() string {
	if c <= ContainerUnknown || c >= containerCount {
		return ""
	}
	return containerInfo[c].MimeType
}

// Writable reports whether this container is a supported output kind.
// Every listed container is accepted as input.
func (c Container) Writable() bool {
	if c <= ContainerUnknown || c >= containerCount {
		return false
	}
	return containerInfo[c].Writable
}

// MediaKind distinguishes track/sample media types.
type MediaKind int

const (
	MediaKindUnknown MediaKind = iota
	MediaKindVideo
	MediaKindAudio
)

func (k MediaKind) String() string {
	switch k {
	case MediaKindVideo:
		return "video"
	case MediaKindAudio:
		return "audio"
	default:
		return "unknown"
	}
}
