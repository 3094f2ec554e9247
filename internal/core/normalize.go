package core

// normalize.go implements the value normalizers used by JRDB layouts.
//
// JRDB pads numeric fields with spaces instead of zeros and packs decimals
// and lap times into fixed digit positions:
//
//   - "999" fields carry one implied decimal: " 23" is 2.3
//   - "9999" time fields are m ss t: "1345" is 1:34.5, i.e. 94.5 seconds
//
// An all-blank field means "not recorded" and always normalizes to nil,
// never to zero.

import (
	"fmt"
	"strings"
	"unicode"
)

// NormalizerName identifies one of the value normalizers in a layout file.
type NormalizerName string

const (
	NormalizeNone          NormalizerName = ""
	NormalizeRemoveBlank   NormalizerName = "remove_blank"
	NormalizeBlankToZero   NormalizerName = "blank_to_zero"
	NormalizeStrToFloat    NormalizerName = "str_to_float"
	NormalizeTimeToSeconds NormalizerName = "time_to_seconds"
)

// normalizeFunc converts one raw field. A nil result means "no value".
type normalizeFunc func(text string) (any, error)

var normalizers = map[NormalizerName]normalizeFunc{
	NormalizeNone: func(text string) (any, error) {
		return text, nil
	},
	NormalizeRemoveBlank: func(text string) (any, error) {
		return nilIfAbsent(RemoveBlank(text)), nil
	},
	NormalizeBlankToZero: func(text string) (any, error) {
		return nilIfAbsent(BlankToZero(text)), nil
	},
	NormalizeStrToFloat: func(text string) (any, error) {
		v, err := StrToFloat(text)
		if err != nil || v == nil {
			return nil, err
		}
		return *v, nil
	},
	NormalizeTimeToSeconds: func(text string) (any, error) {
		v, err := TimeToSeconds(text)
		if err != nil || v == nil {
			return nil, err
		}
		return *v, nil
	},
}

// ParseNormalizerName maps a layout-file spelling to a NormalizerName.
// Older layouts name the functions with a "_series" suffix
// ("str_to_float_series"); both spellings are accepted.
func ParseNormalizerName(s string) (NormalizerName, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "_series")
	name := NormalizerName(s)
	if _, ok := normalizers[name]; !ok {
		return "", fmt.Errorf("unknown normalizer %q", s)
	}
	return name, nil
}

func lookupNormalizer(name NormalizerName) (normalizeFunc, bool) {
	fn, ok := normalizers[name]
	return fn, ok
}

func nilIfAbsent(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// IsBlank reports whether text is empty or consists only of whitespace,
// including the full-width space U+3000.
func IsBlank(text string) bool {
	return strings.TrimFunc(text, unicode.IsSpace) == ""
}

// RemoveBlank strips every whitespace character.
//
//	RemoveBlank("  6") == "6"
func RemoveBlank(text string) *string {
	if IsBlank(text) {
		return nil
	}
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	return &s
}

// BlankToZero replaces every whitespace character with '0'.
//
//	BlankToZero("  6") == "006"
func BlankToZero(text string) *string {
	if IsBlank(text) {
		return nil
	}
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '0'
		}
		return r
	}, text)
	return &s
}

// StrToFloat converts a "999" field: two integer digits and one tenths digit.
//
//	StrToFloat("123") == 12.3
//	StrToFloat(" 23") == 2.3
//
// A '+' or '-' that is not the first character swaps places with it, so a
// trailing or floating sign leads the integer part: "12-" reads as "-21",
// which is -2 + 0.1 = -1.9. The sign belongs to the integer part only and
// "-0" is 0, so " -6" is 0.6.
func StrToFloat(text string) (*float64, error) {
	if IsBlank(text) {
		return nil, nil
	}

	padded := *BlankToZero(bringSignToHead(text))
	if len(padded) < 3 {
		return nil, &NormalizationError{Normalizer: NormalizeStrToFloat, Value: text,
			Err: fmt.Errorf("need 3 digits, got %d", len(padded))}
	}

	whole, err := parseSignedDigits(padded[0:2])
	if err != nil {
		return nil, &NormalizationError{Normalizer: NormalizeStrToFloat, Value: text, Err: err}
	}
	tenths, err := parseDigits(padded[2:3])
	if err != nil {
		return nil, &NormalizationError{Normalizer: NormalizeStrToFloat, Value: text, Err: err}
	}

	v := float64(whole) + float64(tenths)/10
	return &v, nil
}

// TimeToSeconds converts a "9999" lap-time field: minutes, two digits of
// seconds and one digit of tenths.
//
//	TimeToSeconds("1345") == 94.5
func TimeToSeconds(text string) (*float64, error) {
	if IsBlank(text) {
		return nil, nil
	}

	padded := *BlankToZero(text)
	if len(padded) < 4 {
		return nil, &NormalizationError{Normalizer: NormalizeTimeToSeconds, Value: text,
			Err: fmt.Errorf("need 4 digits, got %d", len(padded))}
	}

	minutes, err := parseDigits(padded[0:1])
	if err != nil {
		return nil, &NormalizationError{Normalizer: NormalizeTimeToSeconds, Value: text, Err: err}
	}
	seconds, err := parseDigits(padded[1:3])
	if err != nil {
		return nil, &NormalizationError{Normalizer: NormalizeTimeToSeconds, Value: text, Err: err}
	}
	tenths, err := parseDigits(padded[3:4])
	if err != nil {
		return nil, &NormalizationError{Normalizer: NormalizeTimeToSeconds, Value: text, Err: err}
	}

	v := float64(minutes)*60 + float64(seconds) + float64(tenths)/10
	return &v, nil
}

// bringSignToHead swaps the first '+' or '-' with the first character.
// Text without a sign, or with one already in front, is returned unchanged.
func bringSignToHead(text string) string {
	runes := []rune(text)
	for i, r := range runes {
		if r == '+' || r == '-' {
			if i == 0 {
				return text
			}
			runes[0], runes[i] = runes[i], runes[0]
			return string(runes)
		}
	}
	return text
}

// parseSignedDigits parses an ASCII decimal string with an optional leading
// '+' or '-'. At least one digit must follow the sign.
func parseSignedDigits(s string) (int, error) {
	if s == "" || (s[0] != '+' && s[0] != '-') {
		return parseDigits(s)
	}
	if len(s) == 1 {
		return 0, fmt.Errorf("sign without digits %q", s)
	}
	n, err := parseDigits(s[1:])
	if err != nil {
		return 0, err
	}
	if s[0] == '-' {
		n = -n
	}
	return n, nil
}

// parseDigits parses an ASCII decimal string with no sign.
func parseDigits(s string) (int, error) {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("non-digit %q", s)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
