package service

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const orderNumberPrefix = "ORD-"

// NewOrderNumber returns ORD-yyyyMMdd-XXXXXXXX. The suffix is 32 random bits
// taken from a v4 uuid; the unique index on orders is the final guard.
func NewOrderNumber(now time.Time) string {
	token := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return orderNumberPrefix + now.UTC().Format("20060102") + "-" + token
}
