//go:build !opencv

package imaging

// Default returns the pure-Go encoder. Build with -tags opencv for WebP.
func Default() Encoder { return Standard{} }
