package runner

import "bytes"

// DefaultSelfHostMarker is the text that shows a module runs its own doctests
// when executed as a script.
const DefaultSelfHostMarker = "doctest.testmod"

// Strategy is how a module's tests are driven.
type Strategy string

const (
	// SelfHosted runs the module as a program; its own harness runs the tests.
	SelfHosted Strategy = "self-hosted"

	// GenericDriver runs the module through the interpreter's doctest driver.
	GenericDriver Strategy = "generic-driver"
)

// DetectStrategy picks SelfHosted when source contains marker.
func DetectStrategy(source []byte, marker string) Strategy {
	if marker == "" {
		marker = DefaultSelfHostMarker
	}
	if bytes.Contains(source, []byte(marker)) {
		return SelfHosted
	}
	return GenericDriver
}
