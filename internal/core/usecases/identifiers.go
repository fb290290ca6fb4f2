package usecases

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// pnrAlphabet omits I, O, 0 and 1.
const pnrAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const pnrLength = 6

func generatePNR() (string, error) {
	b := make([]byte, pnrLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.Grow(pnrLength)
	for _, v := range b {
		sb.WriteByte(pnrAlphabet[int(v)%len(pnrAlphabet)])
	}
	return sb.String(), nil
}

// generateBookingNumber returns SKY-YYYYMMDD-XXXXXX.
func generateBookingNumber(now time.Time) (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return fmt.Sprintf("SKY-%s-%s", now.UTC().Format("20060102"), strings.ToUpper(hex.EncodeToString(b))), nil
}
