package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// GenerateExportName builds a sortable, collision-resistant file name such
// as "burn-20261017-103000-123-4567.zst.age".
func GenerateExportName(prefix, ext string) string {
	now := time.Now().UTC()

	datePart := now.Format("20060102-150405")
	millis := now.Nanosecond() / int(time.Millisecond)

	// 4-digit cryptographic random
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		n = big.NewInt(now.UnixNano() % 10000)
	}

	return fmt.Sprintf("%s-%s-%03d-%04d%s", prefix, datePart, millis, n.Int64(), ext)
}
