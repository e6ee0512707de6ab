package payments

import (
	"crypto/rand"
	"math/big"
	"time"
)

const refCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewTransactionRef builds a reference like TXN-20250114-M4Q7XK2P. Same shape
// as booking references so support staff can read both the same way.
func NewTransactionRef() string {
	return "TXN-" + time.Now().UTC().Format("20060102") + "-" + randomSuffix(8)
}

// NewRefundRef builds a reference like REF-20250114-M4Q7XK2P.
func NewRefundRef() string {
	return "REF-" + time.Now().UTC().Format("20060102") + "-" + randomSuffix(8)
}

// NewSettlementRef builds a reference like STL-20250114-M4Q7XK2P.
func NewSettlementRef() string {
	return "STL-" + time.Now().UTC().Format("20060102") + "-" + randomSuffix(8)
}

func randomSuffix(length int) string {
	suffix := make([]byte, length)
	max := big.NewInt(int64(len(refCharset)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			suffix[i] = refCharset[0]
			continue
		}
		suffix[i] = refCharset[n.Int64()]
	}
	return string(suffix)
}
