package types

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/spf13/cast"
)

// Args are the program arguments: a list of arguments, each a vector of 32-bit words.
type Args [][]uint32

// WordCount returns the total number of words across all arguments.
func (a Args) WordCount() int {
	n := 0
	for _, arg := range a {
		n += len(arg)
	}
	return n
}

// Words flattens the arguments in order.
func (a Args) Words() []uint32 {
	words := make([]uint32, 0, a.WordCount())
	for _, arg := range a {
		words = append(words, arg...)
	}
	return words
}

// String renders the arguments as a JSON array of arrays, e.g. [[17],[23]].
func (a Args) String() string {
	if a == nil {
		return "[]"
	}
	bz, err := json.Marshal([][]uint32(a))
	if err != nil {
		return "[]"
	}
	return string(bz)
}

// ParseArgsJSON parses the String form back into Args.
func ParseArgsJSON(s string) (Args, error) {
	var out [][]uint32
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, ErrValidationFailed.Wrapf("invalid args %q: %s", s, err)
	}
	return Args(out), nil
}

// ParseArg parses one command line argument of comma separated words, e.g. "17" or "1,2,3".
// An empty string is an empty argument.
func ParseArg(s string) ([]uint32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []uint32{}, nil
	}

	parts := strings.Split(s, ",")
	words := make([]uint32, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "-") {
			return nil, ErrValidationFailed.Wrapf("argument word %q is negative", part)
		}
		if !isDecimal(part) {
			return nil, ErrValidationFailed.Wrapf("argument word %q is not a plain decimal number", part)
		}
		w, err := cast.ToUint64E(part)
		if err != nil {
			return nil, ErrValidationFailed.Wrapf("argument word %q: %s", part, err)
		}
		if w > math.MaxUint32 {
			return nil, ErrValidationFailed.Wrapf("argument word %q does not fit in 32 bits", part)
		}
		words = append(words, uint32(w))
	}
	return words, nil
}

// isDecimal reports whether s is a decimal number without sign, base prefix,
// digit separators or leading zeros. cast would otherwise read "017" as octal.
func isDecimal(s string) bool {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// ParseArgs parses a list of command line arguments with ParseArg.
func ParseArgs(raw []string) (Args, error) {
	args := make(Args, 0, len(raw))
	for _, s := range raw {
		words, err := ParseArg(s)
		if err != nil {
			return nil, err
		}
		args = append(args, words)
	}
	return args, nil
}
