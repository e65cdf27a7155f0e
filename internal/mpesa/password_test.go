package mpesa

import (
	"encoding/base64"
	"testing"
	"time"
)

func TestTimestamp_ZeroPadded(t *testing.T) {
	ts := Timestamp(time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC))
	if ts != "20250102030405" {
		t.Errorf("expected 20250102030405, got %s", ts)
	}
}

func TestPassword(t *testing.T) {
	got := Password("174379", "bfb279f9", "20250102030405")

	decoded, err := base64.StdEncoding.DecodeString(got)
	if err != nil {
		t.Fatalf("password is not base64: %v", err)
	}
	if string(decoded) != "174379bfb279f920250102030405" {
		t.Errorf("unexpected password contents %q", decoded)
	}
}
