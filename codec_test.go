package transcode

import "testing"

func TestVideoCodecString(t *testing.T) {
	tests := []struct {
		codec VideoCodec
		want  string
	}{
		{VideoCodecH264, "H264"},
		{VideoCodecH265, "H265"},
		{VideoCodecVP9, "VP9"},
		{VideoCodecAV1, "AV1"},
		{VideoCodecUnknown, "Unknown"},
		{VideoCodec(99), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.codec.String(); got != tt.want {
			t.Errorf("VideoCodec(%d).String() = %q, want %q", tt.codec, got, tt.want)
		}
	}
}

func TestVideoCodecHardwareCapable(t *testing.T) {
	tests := []struct {
		codec VideoCodec
		want  bool
	}{
		{VideoCodecH264, true},
		{VideoCodecH265, true},
		{VideoCodecVP9, false},
		{VideoCodecAV1, false},
		{VideoCodecUnknown, false},
	}
	for _, tt := range tests {
		if got := tt.codec.HardwareCapable(); got != tt.want {
			t.Errorf("%s.HardwareCapable() = %v, want %v", tt.codec, got, tt.want)
		}
	}
}

func TestVideoCodecFourCC(t *testing.T) {
	tests := []struct {
		codec VideoCodec
		want  string
	}{
		{VideoCodecH264, "avc1"},
		{VideoCodecH265, "hvc1"},
		{VideoCodecVP9, "vp09"},
		{VideoCodecAV1, "av01"},
		{VideoCodecUnknown, ""},
	}
	for _, tt := range tests {
		if got := tt.codec.FourCC(); got != tt.want {
			t.Errorf("%s.FourCC() = %q, want %q", tt.codec, got, tt.want)
		}
	}
}

func TestContainerWritable(t *testing.T) {
	tests := []struct {
		container Container
		want      bool
	}{
		{ContainerMP4, true},
		{ContainerMOV, true},
		{ContainerMKV, true},
		{ContainerM4V, false},
		{ContainerWebM, false},
		{ContainerAVI, false},
		{ContainerUnknown, false},
		{Container(99), false},
	}
	for _, tt := range tests {
		if got := tt.container.Writable(); got != tt.want {
			t.Errorf("%s.Writable() = %v, want %v", tt.container, got, tt.want)
		}
	}
}

func TestContainerExtension(t *testing.T) {
	tests := []struct {
		container Container
		want      string
	}{
		{ContainerMP4, ".mp4"},
		{ContainerMOV, ".mov"},
		{ContainerM4V, ".m4v"},
		{ContainerMKV, ".mkv"},
		{ContainerWebM, ".webm"},
		{ContainerAVI, ".avi"},
	}
	for _, tt := range tests {
		if got := tt.container.Extension(); got != tt.want {
			t.Errorf("%s.Extension() = %q, want %q", tt.container, got, tt.want)
		}
	}
}
