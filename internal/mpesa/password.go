package mpesa

import (
	"encoding/base64"
	"time"
)

// timestampLayout is the provider's YYYYMMDDHHMMSS timestamp.
const timestampLayout = "20060102150405"

// Timestamp formats t in the provider's timestamp format.
func Timestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

// Password builds the request password from the short code, passkey and
// timestamp. It embeds the timestamp, so it is valid for one request only.
func Password(shortCode, passKey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passKey + timestamp))
}
