package tickets

import (
	"crypto/rand"
	"math/big"
	"time"
)

const codeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewTicketCode builds a code like TKT-20250114-M4Q7XK2P9T. Longer suffix
// than booking references: ticket codes are presented at the gate and must
// stay unguessable at event scale.
func NewTicketCode() string {
	return "TKT-" + time.Now().UTC().Format("20060102") + "-" + randomSuffix(10)
}

func randomSuffix(length int) string {
	suffix := make([]byte, length)
	max := big.NewInt(int64(len(codeCharset)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			suffix[i] = codeCharset[0]
			continue
		}
		suffix[i] = codeCharset[n.Int64()]
	}
	return string(suffix)
}
