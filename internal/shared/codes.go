package shared

import (
	"fmt"
	"math/rand/v2"
)

// ShortCode returns prefix-NNNN with a random number below 10^digits.
func ShortCode(prefix string, digits int) string {
	limit := 1
	for i := 0; i < digits; i++ {
		limit *= 10
	}
	return fmt.Sprintf("%s-%0*d", prefix, digits, rand.IntN(limit))
}

// CodeAttempts bounds collision retries for short codes.
const CodeAttempts = 8
