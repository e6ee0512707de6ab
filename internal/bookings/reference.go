package bookings

import (
	"crypto/rand"
	"math/big"
	"time"
)

const refCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewBookingRef builds a reference like BKG-20250114-7XK2Q9. The date part
// makes references sortable for support staff; the random suffix comes from
// crypto/rand so references are not guessable.
func NewBookingRef() string {
	return "BKG-" + time.Now().UTC().Format("20060102") + "-" + randomSuffix(6)
}

func randomSuffix(length int) string {
	suffix := make([]byte, length)
	max := big.NewInt(int64(len(refCharset)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken;
			// fall back to a fixed character rather than panicking mid-checkout.
			suffix[i] = refCharset[0]
			continue
		}
		suffix[i] = refCharset[n.Int64()]
	}
	return string(suffix)
}
