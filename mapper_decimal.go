package kindred

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

const maxDecimalPrecision = 18

// decimalMapper stores an apd.Decimal as a scaled integer: the value times 10^scale.
type decimalMapper struct {
	precision int
	scale     int
}

// NewDecimalMapper returns a fixed-point decimal mapper. Precision is the total
// number of significant digits (1..18) and scale the digits after the point (0..precision).
// Encoding never rounds: a value needing more fractional digits than scale, or more
// digits than precision, fails with ErrPrecision.
func NewDecimalMapper(precision, scale int) (Mapper, error) {
	if precision < 1 || precision > maxDecimalPrecision {
		return nil, newConfigError(ErrInvalidDecimal, decimalType, "",
			fmt.Sprintf("precision %d not in [1, %d]", precision, maxDecimalPrecision))
	}
	if scale < 0 || scale > precision {
		return nil, newConfigError(ErrInvalidDecimal, decimalType, "",
			fmt.Sprintf("scale %d not in [0, %d]", scale, precision))
	}
	return &decimalMapper{precision: precision, scale: scale}, nil
}

func (m *decimalMapper) Encode(v reflect.Value) (Value, error) {
	d := v.Interface().(apd.Decimal)
	if d.Form != apd.Finite {
		return nil, newConversionError(ErrPrecision, decimalType, d.String(), nil)
	}
	unscaled, err := m.unscale(&d)
	if err != nil {
		return nil, newConversionError(ErrPrecision, decimalType, d.String(), err)
	}
	return Int(unscaled), nil
}

func (m *decimalMapper) Decode(v Value) (reflect.Value, error) {
	switch nv := Unwrap(v).(type) {
	case Null:
		return reflect.Zero(decimalType), nil
	case Int:
		n := int64(nv)
		if digits(n) > m.precision {
			return reflect.Value{}, newConversionError(ErrPrecision, decimalType, n, nil)
		}
		out := reflect.New(decimalType)
		out.Interface().(*apd.Decimal).Set(apd.New(n, -int32(m.scale)))
		return out.Elem(), nil
	}
	return reflect.Value{}, mismatch(decimalType, v)
}

// unscale shifts d left by scale digits, padding with zeros and refusing to drop
// any nonzero digit.
func (m *decimalMapper) unscale(d *apd.Decimal) (int64, error) {
	text := d.Text('f')
	neg := strings.HasPrefix(text, "-")
	text = strings.TrimPrefix(text, "-")

	whole, frac, _ := strings.Cut(text, ".")
	if len(frac) > m.scale {
		if strings.Trim(frac[m.scale:], "0") != "" {
			return 0, fmt.Errorf("%d fractional digits exceed scale %d", len(strings.TrimRight(frac, "0")), m.scale)
		}
		frac = frac[:m.scale]
	}
	frac += strings.Repeat("0", m.scale-len(frac))

	significant := strings.TrimLeft(whole+frac, "0")
	if len(significant) > m.precision {
		return 0, fmt.Errorf("%d digits exceed precision %d", len(significant), m.precision)
	}
	if significant == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(significant, 10, 64)
	if err != nil {
		return 0, err
	}
	if neg {
		n = -n
	}
	return n, nil
}

// digits counts the decimal digits of |n|. The magnitude is taken as uint64
// so math.MinInt64 is counted correctly.
func digits(n int64) int {
	u := uint64(n)
	if n < 0 {
		u = -u
	}
	return len(strconv.FormatUint(u, 10))
}
