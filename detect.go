package transcode

import (
	"bytes"
	"io"
	"os"
)

// DetectContainer detects the container format from the first bytes of a
// file. Supports detection of:
//   - MP4/MOV/M4V: ISO BMFF ftyp box brands (ISO/IEC 14496-12)
//   - Matroska/WebM: EBML header with DocType (RFC 8794)
//   - AVI: RIFF chunk with AVI form type
//
// Returns ContainerUnknown if the format cannot be determined.
func DetectContainer(header []byte) Container {
	if len(header) < 12 {
		return ContainerUnknown
	}

	// ISO BMFF: size(4) + "ftyp" + major brand(4)
	if bytes.Equal(header[4:8], []byte("ftyp")) {
		return containerForBrand(string(header[8:12]))
	}

	// EBML magic 0x1A45DFA3 (Matroska/WebM)
	if header[0] == 0x1A && header[1] == 0x45 && header[2] == 0xDF && header[3] == 0xA3 {
		return containerForDocType(header)
	}

	// RIFF....AVI(space)
	if bytes.Equal(header[0:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("AVI ")) {
		return ContainerAVI
	}

	return ContainerUnknown
}

// containerForBrand maps an ftyp major brand to a container kind.
func containerForBrand(brand string) Container {
	switch brand {
	case "isom", "iso2", "iso4", "iso5", "iso6", "mp41", "mp42", "avc1", "dash":
		return ContainerMP4
	case "qt  ":
		return ContainerMOV
	case "M4V ", "M4VP":
		return ContainerM4V
	default:
		// Unrecognized brands inside an ftyp box are still ISO BMFF;
		// treat them as MP4.
		return ContainerMP4
	}
}

// containerForDocType scans an EBML header for its DocType string. The
// DocType element (ID 0x4282) sits within the first few dozen bytes.
func containerForDocType(header []byte) Container {
	limit := len(header)
	if limit > 64 {
		limit = 64
	}
	for i := 4; i < limit-1; i++ {
		if header[i] != 0x42 || header[i+1] != 0x82 {
			continue
		}
		// One-byte EBML size with the marker bit set.
		if i+2 >= limit || header[i+2]&0x80 == 0 {
			continue
		}
		size := int(header[i+2] & 0x7F)
		start := i + 3
		if start+size > len(header) {
			break
		}
		switch string(header[start : start+size]) {
		case "webm":
			return ContainerWebM
		case "matroska":
			return ContainerMKV
		}
	}
	// EBML without a recognizable DocType: assume Matroska.
	return ContainerMKV
}

// DetectContainerFile sniffs the container format of the file at path.
func DetectContainerFile(path string) (Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return ContainerUnknown, err
	}
	defer f.Close()

	header := make([]byte, 64)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return ContainerUnknown, err
	}
	return DetectContainer(header[:n]), nil
}
