package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func sampleClaims() Claims {
	return Claims{
		AccountID: 7,
		Username:  "t1",
		Role:      "teacher",
		FullName:  "T One",
		SessionID: "4f8c2f0e-4f2a-4a7e-9a55-3f1a2e7c9b10",
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	codec, err := NewCodec([]byte("unit-test-secret"))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	raw, err := codec.Issue(sampleClaims(), time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	got, err := codec.Verify(raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	want := sampleClaims()
	if got.AccountID != want.AccountID || got.Username != want.Username || got.Role != want.Role ||
		got.FullName != want.FullName || got.SessionID != want.SessionID {
		t.Fatalf("Verify() claims = %+v, want %+v", got, want)
	}
	if got.ExpiresAt == nil || got.ExpiresAt.Sub(got.IssuedAt.Time) != time.Hour {
		t.Fatalf("unexpected expiry window: iat=%v exp=%v", got.IssuedAt, got.ExpiresAt)
	}
}

func TestVerifyRejects(t *testing.T) {
	codec, err := NewCodec([]byte("unit-test-secret"))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	other, err := NewCodec([]byte("another-secret"))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	valid, err := codec.Issue(sampleClaims(), time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	expired, err := codec.Issue(sampleClaims(), -time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	foreign, err := other.Issue(sampleClaims(), time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	noSession := sampleClaims()
	noSession.SessionID = ""
	anonymous, err := codec.Issue(noSession, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, sampleClaims()).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not-a-token"},
		{name: "expired", token: expired},
		{name: "wrong secret", token: foreign},
		{name: "tampered payload", token: tampered},
		{name: "alg none", token: none},
		{name: "missing session", token: anonymous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := codec.Verify(tt.token); !errors.Is(err, ErrInvalid) {
				t.Fatalf("Verify() error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestNewCodecRequiresSecret(t *testing.T) {
	if _, err := NewCodec(nil); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
