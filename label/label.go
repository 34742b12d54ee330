// Package label converts plate character labels to and from the bipolar
// bit-vectors the network is trained against.
//
// Every character becomes 8 values, most significant bit first, where a 0 bit
// is -1 and a 1 bit is +1. Decimal digits are encoded by their numeric value,
// every other character by its code point.
package label

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// Bits is the width of a single encoded character.
const Bits = 8

var (
	ErrEmptyLabel   = errors.New("label is empty")
	ErrCodeOverflow = errors.New("character code does not fit in 8 bits")
	ErrVectorLength = errors.New("vector length is not a multiple of 8")
)

// Stem returns the label part of a file name. The extension is dropped and,
// when the name has an underscore, only the text before it is kept so that
// "A_1.png" and "A_2.png" both carry the label "A".
func Stem(filename string) string {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if before, _, ok := strings.Cut(stem, "_"); ok {
		return before
	}
	return stem
}

// Code returns the integer encoded for a single character. Any Unicode
// decimal digit counts as a digit, so '٣' encodes as 3.
func Code(r rune) (int, error) {
	code := int(r)
	if d, ok := digitValue(r); ok {
		code = d
	}
	if code > 0xff {
		return 0, errors.Wrapf(ErrCodeOverflow, "%q (%d)", r, code)
	}
	return code, nil
}

// digitValue returns the value of a decimal digit rune. Unicode assigns
// decimal digits in contiguous runs of ten starting at zero.
func digitValue(r rune) (int, bool) {
	if r >= '0' && r <= '9' {
		return int(r - '0'), true
	}
	if !unicode.IsDigit(r) {
		return 0, false
	}
	n := 0
	for unicode.IsDigit(r - rune(n) - 1) {
		n++
	}
	return n % 10, true
}

// Encode returns the target vector for label, 8 values per character.
func Encode(label string) ([]float64, error) {
	if label == "" {
		return nil, ErrEmptyLabel
	}
	out := make([]float64, 0, Bits*len(label))
	for _, r := range label {
		code, err := Code(r)
		if err != nil {
			return nil, errors.Wrapf(err, "encode label %q", label)
		}
		for _, b := range fmt.Sprintf("%08b", code) {
			if b == '1' {
				out = append(out, 1)
			} else {
				out = append(out, -1)
			}
		}
	}
	return out, nil
}

// EncodeFile encodes the label carried by a file name.
func EncodeFile(filename string) ([]float64, error) {
	return Encode(Stem(filename))
}

// Codes reads a vector back into per-character codes. Values above zero are
// taken as 1 bits, so raw network outputs can be passed directly.
func Codes(vec []float64) ([]int, error) {
	if len(vec) == 0 || len(vec)%Bits != 0 {
		return nil, errors.Wrapf(ErrVectorLength, "got %d values", len(vec))
	}
	codes := make([]int, len(vec)/Bits)
	for i := range codes {
		for _, v := range vec[i*Bits : (i+1)*Bits] {
			codes[i] <<= 1
			if v > 0 {
				codes[i] |= 1
			}
		}
	}
	return codes, nil
}

// Decode renders a vector as a label. Codes below 10 are shown as digits.
func Decode(vec []float64) (string, error) {
	codes, err := Codes(vec)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, c := range codes {
		if c < 10 {
			sb.WriteString(strconv.Itoa(c))
			continue
		}
		sb.WriteRune(rune(c))
	}
	return sb.String(), nil
}
