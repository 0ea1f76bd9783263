package params

import (
	"encoding/json"
	"math/rand/v2"
	"strconv"
	"strings"
)

// Seed is either an explicit non-negative value or "random". The zero value
// is random.
type Seed struct {
	value    uint64
	explicit bool
}

// RandomSeed returns a seed resolved at submission time.
func RandomSeed() Seed { return Seed{} }

// FixedSeed returns an explicit seed.
func FixedSeed(v uint64) Seed { return Seed{value: v, explicit: true} }

// IsRandom reports whether the seed is resolved at submission time.
func (s Seed) IsRandom() bool { return !s.explicit }

// Value returns the explicit seed and true, or 0 and false when random.
func (s Seed) Value() (uint64, bool) { return s.value, s.explicit }

// Resolve returns the explicit value or draws one in [0, 2^32-1].
func (s Seed) Resolve() uint64 {
	if s.explicit {
		return s.value
	}
	return uint64(rand.Uint32())
}

func (s Seed) String() string {
	if !s.explicit {
		return "random"
	}
	return strconv.FormatUint(s.value, 10)
}

// ParseSeed accepts "", "random" or a non-negative integer.
func ParseSeed(text string) (Seed, error) {
	t := strings.TrimSpace(text)
	if t == "" || strings.EqualFold(t, "random") {
		return RandomSeed(), nil
	}
	v, err := strconv.ParseUint(t, 10, 64)
	if err != nil {
		return Seed{}, invalid("seed", "must be a non-negative integer or empty for random")
	}
	return FixedSeed(v), nil
}

// MarshalJSON encodes a random seed as the string "random" and an explicit
// seed as a number.
func (s Seed) MarshalJSON() ([]byte, error) {
	if !s.explicit {
		return []byte(`"random"`), nil
	}
	return []byte(strconv.FormatUint(s.value, 10)), nil
}

// UnmarshalJSON accepts null, a number, or a string understood by ParseSeed.
func (s *Seed) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*s = RandomSeed()
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		v, err := ParseSeed(str)
		if err != nil {
			return err
		}
		*s = v
		return nil
	}
	v, err := ParseSeed(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}
