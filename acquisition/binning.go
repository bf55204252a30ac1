package acquisition

import (
	"fmt"
	"strings"
)

// BinningMode - битовая маска режима биннинга: размер блока и способ свертки.
type BinningMode uint32

const (
	Bin1x1 BinningMode = 0x1
	Bin2x2 BinningMode = 0x2
	Bin4x4 BinningMode = 0x4
	Bin1x2 BinningMode = 0x8
	Bin1x4 BinningMode = 0x10
	BinAvg BinningMode = 0x100
	BinSum BinningMode = 0x200
)

// DefaultBinning - режим, который рабочий процесс детектора выставляет при старте.
const DefaultBinning = BinAvg | Bin1x1

// Factor возвращает делитель размеров кадра. Режим 1x2 драйвер трактует
// как квадратный блок 2x2, 1x4 и 4x4 - как 4x4.
func (m BinningMode) Factor() int {
	switch {
	case m&Bin1x1 != 0:
		return 1
	case m&Bin1x2 != 0:
		return 2
	default:
		return 4
	}
}

func (m BinningMode) String() string {
	var parts []string
	for _, f := range []struct {
		bit  BinningMode
		name string
	}{
		{Bin1x1, "1x1"}, {Bin2x2, "2x2"}, {Bin4x4, "4x4"}, {Bin1x2, "1x2"}, {Bin1x4, "1x4"},
		{BinAvg, "AVG"}, {BinSum, "SUM"},
	} {
		if m&f.bit != 0 {
			parts = append(parts, f.name)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("BinningMode(0x%x)", uint32(m))
	}
	return strings.Join(parts, "|")
}

// Validate требует ровно один способ свертки.
func (m BinningMode) Validate() error {
	avg, sum := m&BinAvg != 0, m&BinSum != 0
	if avg == sum {
		return fmt.Errorf("%w: %s needs exactly one of AVG or SUM", ErrBinning, m)
	}
	return nil
}

// bin сворачивает изображение rows x cols блоками factor x factor.
func bin(src []float64, rows, cols int, mode BinningMode) ([]float64, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	f := mode.Factor()
	if rows%f != 0 || cols%f != 0 {
		return nil, fmt.Errorf("%w: %dx%d is not divisible by %d", ErrBinning, rows, cols, f)
	}
	if len(src) != rows*cols {
		return nil, fmt.Errorf("%w: image has %d pixels, want %dx%d", ErrShape, len(src), rows, cols)
	}
	if f == 1 {
		return append([]float64(nil), src...), nil
	}

	br, bc := rows/f, cols/f
	out := make([]float64, br*bc)
	for r := 0; r < rows; r++ {
		row := src[r*cols : (r+1)*cols]
		dst := out[(r/f)*bc : (r/f+1)*bc]
		for c, v := range row {
			dst[c/f] += v
		}
	}
	if mode&BinAvg != 0 {
		n := float64(f * f)
		for i := range out {
			out[i] /= n
		}
	}
	return out, nil
}
