package security

import (
	"testing"
	"time"
)

func TestLimiterStore_BurstThenThrottle(t *testing.T) {
	s := NewLimiterStore(1, 3, time.Minute)

	for i := 0; i < 3; i++ {
		if !s.Allow("10.0.0.1") {
			t.Fatalf("request %d within burst should be allowed", i+1)
		}
	}
	if s.Allow("10.0.0.1") {
		t.Error("request past burst should be rejected")
	}
}

func TestLimiterStore_KeysAreIndependent(t *testing.T) {
	s := NewLimiterStore(1, 1, time.Minute)

	if !s.Allow("10.0.0.1") {
		t.Fatal("first client should be allowed")
	}
	if !s.Allow("10.0.0.2") {
		t.Error("second client should have its own bucket")
	}
}

func TestLimiterStore_EmptyKeySharesBucket(t *testing.T) {
	s := NewLimiterStore(1, 1, time.Minute)

	if !s.Allow("") {
		t.Fatal("first empty-key request should be allowed")
	}
	if s.Allow("   ") {
		t.Error("blank keys should share the unknown bucket")
	}
}

func TestParseSnowflake(t *testing.T) {
	if _, err := ParseSnowflake("80351110224678912"); err != nil {
		t.Errorf("valid snowflake rejected: %v", err)
	}

	for _, bad := range []string{"", "0", "abc", "12a34", "-5", "123456789012345678901"} {
		if _, err := ParseSnowflake(bad); err == nil {
			t.Errorf("ParseSnowflake(%q) should fail", bad)
		}
	}
}
