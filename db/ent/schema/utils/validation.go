package utils

import "fmt"

func EnumValidator(allowed ...string) func(string) error {
	set := map[string]struct{}{}
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return func(s string) error {
		if _, ok := set[s]; ok {
			return nil
		}
		return fmt.Errorf("validation failed: %q not in %v", s, allowed)
	}
}

// Range01 rejects values outside [0,1].
func Range01(f float64) error {
	if f < 0 || f > 1 {
		return fmt.Errorf("validation failed: %v not in [0,1]", f)
	}
	return nil
}
