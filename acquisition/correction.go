package acquisition

import (
	"fmt"
	"math"
	"sort"
)

// CorrectionKind - вид корректирующего изображения.
type CorrectionKind string

const (
	// OpenBeam - изображение без объекта, по нему строится карта усиления.
	OpenBeam CorrectionKind = "ob"
	// DarkField - темновой кадр, смещение.
	DarkField CorrectionKind = "df"
	// BadPixelMap - маска дефектных пикселей.
	BadPixelMap CorrectionKind = "bpm"
)

// ParseCorrectionKind принимает "ob", "df" или "bpm".
func ParseCorrectionKind(s string) (CorrectionKind, error) {
	switch k := CorrectionKind(s); k {
	case OpenBeam, DarkField, BadPixelMap:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown correction type %q", ErrCorrection, s)
}

// Correction хранит исходные корректирующие изображения в полном разрешении
// и производные буферы в текущем разрешении биннинга.
type Correction struct {
	fullRows, fullCols int
	rows, cols         int
	mode               BinningMode

	ob, df, bpm []float64

	gain     []uint32 // median(ob) * 65536 / (ob - df)
	offset   []uint16
	pixelMap []uint32 // bpm * 65535
	badIdx   []int
}

// NewCorrection создает пустой набор коррекций для сенсора rows x cols.
func NewCorrection(rows, cols int) *Correction {
	return &Correction{fullRows: rows, fullCols: cols, rows: rows, cols: cols, mode: DefaultBinning}
}

// Loaded сообщает, задана ли хотя бы одна коррекция.
func (c *Correction) Loaded() bool {
	return c.gain != nil || c.offset != nil || c.badIdx != nil
}

// Set заменяет корректирующее изображение вида kind. Пустое изображение
// сбрасывает коррекцию; маска дефектов из одних нулей - тоже.
func (c *Correction) Set(kind CorrectionKind, image []float64) error {
	if image != nil && len(image) != c.fullRows*c.fullCols {
		return fmt.Errorf("%w: %s image has %d pixels, want %dx%d", ErrShape, kind, len(image), c.fullRows, c.fullCols)
	}
	next := *c
	switch kind {
	case OpenBeam:
		next.ob = image
	case DarkField:
		next.df = image
	case BadPixelMap:
		if mean(image) == 0 {
			image = nil
		}
		next.bpm = image
	default:
		return fmt.Errorf("%w: unknown correction type %q", ErrCorrection, kind)
	}
	if err := next.rebuild(c.mode); err != nil {
		return err
	}
	*c = next
	return nil
}

// SetBinning пересчитывает все буферы под новый режим. При ошибке набор
// коррекций и размеры не меняются.
func (c *Correction) SetBinning(mode BinningMode) error {
	next := *c
	if err := next.rebuild(mode); err != nil {
		return err
	}
	*c = next
	return nil
}

func (c *Correction) rebuild(mode BinningMode) error {
	if err := mode.Validate(); err != nil {
		return err
	}
	f := mode.Factor()
	if c.fullRows%f != 0 || c.fullCols%f != 0 {
		return fmt.Errorf("%w: %dx%d is not divisible by %d", ErrBinning, c.fullRows, c.fullCols, f)
	}
	rows, cols := c.fullRows/f, c.fullCols/f

	var gain []uint32
	if c.ob != nil {
		g := gainImage(c.ob, c.df)
		b, err := bin(g, c.fullRows, c.fullCols, mode)
		if err != nil {
			return err
		}
		gain = toUint32(b)
	}

	var offset []uint16
	if c.df != nil {
		b, err := bin(c.df, c.fullRows, c.fullCols, mode)
		if err != nil {
			return err
		}
		offset = toUint16(b)
	}

	var pixelMap []uint32
	var badIdx []int
	if c.bpm != nil {
		scaled := make([]float64, len(c.bpm))
		for i, v := range c.bpm {
			scaled[i] = v * math.MaxUint16
		}
		b, err := bin(scaled, c.fullRows, c.fullCols, mode)
		if err != nil {
			return err
		}
		pixelMap = toUint32(b)
		badIdx = make([]int, 0)
		for i, v := range pixelMap {
			if v != 0 {
				badIdx = append(badIdx, i)
			}
		}
	}

	c.mode, c.rows, c.cols = mode, rows, cols
	c.gain, c.offset, c.pixelMap, c.badIdx = gain, offset, pixelMap, badIdx
	return nil
}

// Dims возвращает размеры кадра в текущем режиме биннинга.
func (c *Correction) Dims() (rows, cols int) { return c.rows, c.cols }

// Mode возвращает текущий режим биннинга.
func (c *Correction) Mode() BinningMode { return c.mode }

// BadPixels возвращает индексы дефектных пикселей в текущем разрешении.
func (c *Correction) BadPixels() []int { return c.badIdx }

// Apply корректирует кадр на месте: вычитает смещение, умножает на
// коэффициент усиления и заменяет дефектные пиксели средним соседей.
func (c *Correction) Apply(frame []uint16) {
	if len(frame) != c.rows*c.cols {
		return
	}
	for i, raw := range frame {
		v := float64(raw)
		if c.offset != nil {
			v -= float64(c.offset[i])
		}
		if c.gain != nil {
			v = v * float64(c.gain[i]) / 65536
		}
		frame[i] = clampUint16(v)
	}
	if len(c.badIdx) == 0 {
		return
	}
	bad := make(map[int]struct{}, len(c.badIdx))
	for _, i := range c.badIdx {
		bad[i] = struct{}{}
	}
	for _, i := range c.badIdx {
		r, col := i/c.cols, i%c.cols
		var sum, n float64
		for _, d := range [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			rr, cc := r+d[0], col+d[1]
			if rr < 0 || rr >= c.rows || cc < 0 || cc >= c.cols {
				continue
			}
			j := rr*c.cols + cc
			if _, isBad := bad[j]; isBad {
				continue
			}
			sum += float64(frame[j])
			n++
		}
		if n > 0 {
			frame[i] = clampUint16(sum / n)
		}
	}
}

func gainImage(ob, df []float64) []float64 {
	med := median(ob)
	out := make([]float64, len(ob))
	for i, v := range ob {
		d := v
		if df != nil {
			d -= df[i]
		}
		if d <= 0 {
			continue
		}
		out[i] = med * 65536 / d
	}
	return out
}

func median(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func clampUint16(v float64) uint16 {
	switch {
	case v <= 0 || math.IsNaN(v):
		return 0
	case v >= math.MaxUint16:
		return math.MaxUint16
	}
	return uint16(v)
}

func toUint16(v []float64) []uint16 {
	out := make([]uint16, len(v))
	for i, x := range v {
		out[i] = clampUint16(x)
	}
	return out
}

func toUint32(v []float64) []uint32 {
	out := make([]uint32, len(v))
	for i, x := range v {
		switch {
		case x <= 0 || math.IsNaN(x):
		case x >= math.MaxUint32:
			out[i] = math.MaxUint32
		default:
			out[i] = uint32(x)
		}
	}
	return out
}
