//go:build !(darwin || linux) || nonative

package transcode

// IsNativeBackendAvailable reports whether libtranscode_av is loadable.
// Always false on platforms without the native library binding.
func IsNativeBackendAvailable() bool {
	return false
}

// NewNativeBackend creates the production backend backed by the native
// media framework.
func NewNativeBackend() (Backend, error) {
	return nil, ErrNotSupported
}
