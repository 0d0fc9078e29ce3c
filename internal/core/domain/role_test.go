package domain

import (
	"testing"
	"time"
)

func TestNextExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	soon := now.Add(time.Minute)
	later := now.Add(time.Hour)
	past := now.Add(-time.Minute)

	if got := NextExpiry([]UserRole{{RoleID: "r1"}}, now); got != nil {
		t.Fatalf("expected nil for permanent assignments, got %v", got)
	}

	got := NextExpiry([]UserRole{
		{RoleID: "r1", ExpiresAt: &later},
		{RoleID: "r2"},
		{RoleID: "r3", ExpiresAt: &past},
		{RoleID: "r4", ExpiresAt: &soon},
	}, now)
	if got == nil || !got.Equal(soon) {
		t.Fatalf("expected %v, got %v", soon, got)
	}
}
