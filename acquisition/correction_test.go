package acquisition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func image(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestBinAverageAndSum(t *testing.T) {
	src := []float64{
		1, 2, 3, 4, 5, 6, 7, 8,
		1, 2, 3, 4, 5, 6, 7, 8,
		1, 1, 1, 1, 1, 1, 1, 1,
		1, 1, 1, 1, 1, 1, 1, 1,
		0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 4,
	}
	avg, err := bin(src, 8, 8, BinAvg|Bin1x2)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 3.5, 5.5, 7.5, 1, 1, 1, 1, 0, 0, 0, 0, 0, 0, 0, 1}, avg)

	sum, err := bin(src, 8, 8, BinSum|Bin4x4)
	require.NoError(t, err)
	assert.Equal(t, []float64{28, 60, 0, 4}, sum)
}

func TestGainFromOpenBeamAndDarkField(t *testing.T) {
	c := NewCorrection(1, 4)
	require.NoError(t, c.Set(DarkField, []float64{10, 10, 10, 10}))
	require.NoError(t, c.Set(OpenBeam, []float64{110, 210, 110, 60}))
	require.True(t, c.Loaded())

	// median(ob) = 110; gain = 110*65536/(ob-df)
	assert.Equal(t, []uint32{72089, 36044, 72089, 144179}, c.gain)
	assert.Equal(t, []uint16{10, 10, 10, 10}, c.offset)

	frame := []uint16{110, 210, 110, 60}
	c.Apply(frame)
	for _, v := range frame {
		assert.InDelta(t, 110, int(v), 1, "плоское поле должно выравниваться")
	}
}

func TestBadPixelMap(t *testing.T) {
	c := NewCorrection(3, 3)
	bpm := image(9, 0)
	bpm[4] = 1
	require.NoError(t, c.Set(BadPixelMap, bpm))
	assert.Equal(t, []int{4}, c.BadPixels())
	assert.Equal(t, uint32(65535), c.pixelMap[4])

	frame := []uint16{1, 10, 1, 20, 9999, 40, 1, 30, 1}
	c.Apply(frame)
	assert.Equal(t, uint16(25), frame[4])

	require.NoError(t, c.Set(BadPixelMap, image(9, 0)))
	assert.Empty(t, c.BadPixels(), "нулевая маска сбрасывает коррекцию")
	assert.False(t, c.Loaded())
}

func TestRebinRegeneratesCorrections(t *testing.T) {
	c := NewCorrection(4, 4)
	require.NoError(t, c.Set(DarkField, image(16, 8)))
	require.NoError(t, c.SetBinning(BinAvg|Bin1x2))

	rows, cols := c.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 2, cols)
	assert.Equal(t, []uint16{8, 8, 8, 8}, c.offset)

	require.NoError(t, c.SetBinning(DefaultBinning))
	assert.Len(t, c.offset, 16)
}

func TestFailedRebinKeepsState(t *testing.T) {
	c := NewCorrection(2, 2)
	require.NoError(t, c.Set(DarkField, image(4, 3)))

	require.ErrorIs(t, c.SetBinning(BinAvg|Bin4x4), ErrBinning)
	rows, cols := c.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 2, cols)
	assert.Equal(t, DefaultBinning, c.Mode())
	assert.Len(t, c.offset, 4)
}

func TestCorrectionShapeAndKind(t *testing.T) {
	c := NewCorrection(2, 2)
	assert.ErrorIs(t, c.Set(OpenBeam, image(3, 1)), ErrShape)
	assert.ErrorIs(t, c.Set("xx", image(4, 1)), ErrCorrection)

	_, err := ParseCorrectionKind("bpm")
	require.NoError(t, err)
	_, err = ParseCorrectionKind("gain")
	assert.ErrorIs(t, err, ErrCorrection)

	require.NoError(t, c.Set(DarkField, image(4, 1)))
	require.NoError(t, c.Set(DarkField, nil))
	assert.False(t, c.Loaded())
}
