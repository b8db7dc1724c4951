package document

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPDFRendererDeterministicOutput(t *testing.T) {
	renderer := NewPDFRenderer(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	layout := BuildLayout(sampleRequest(), nil)

	first, err := renderer.Render(layout)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := renderer.Render(layout)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestPDFRendererMissingSignaturesStillRenders(t *testing.T) {
	renderer := NewPDFRenderer(time.Unix(0, 0))
	layout := BuildLayout(sampleRequest(), nil)

	for _, slot := range layout.Signatures {
		require.True(t, slot.Missing)
	}

	data, err := renderer.Render(layout)
	require.NoError(t, err)
	require.Equal(t, "%PDF", string(data[:4]))
}
