package utils

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ==================== BOOKING CODE ====================

// GenerateBookingCode returns a human-readable booking reference.
// Format: BK<yyyyMMddHHmmss><4 random digits>
func GenerateBookingCode(now time.Time) string {
	return fmt.Sprintf("BK%s%04d", now.Format("20060102150405"), rand.IntN(10000))
}

// ==================== TICKET CODE ====================

// GenerateTicketCode returns a short ticket reference: TK<8 upper hex>
func GenerateTicketCode() string {
	return "TK" + strings.ToUpper(uuid.NewString()[:8])
}
