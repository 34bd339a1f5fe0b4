package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"codec", fmt.Errorf("resolving codec: %w", ErrUnrecognizedCodec), ExitUsage},
		{"directory", fmt.Errorf("opening root: %w", ErrInvalidDirectory), ExitBadDir},
		{"truncated", fmt.Errorf("block-000001.bsbi: %w", ErrTruncatedRecord), ExitCorruption},
		{"dictionary", ErrMalformedDictionary, ExitCorruption},
		{"app error wins", New(ErrCorruptIndex, ExitUsage, "forced"), ExitUsage},
		{"other", fmt.Errorf("disk full"), ExitFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExitCode(tc.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrInvalidDirectory, ExitBadDir, "not a directory: %s", "/tmp/x")
	assert.True(t, Is(err, ErrInvalidDirectory))
	assert.Equal(t, "invalid directory: not a directory: /tmp/x", err.Error())
}
