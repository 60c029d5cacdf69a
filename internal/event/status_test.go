package event

import "testing"

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name          string
		event         string
		attentionType string
		wantKind      Kind
		wantAttention Attention
	}{
		{"working on prompt", "UserPromptSubmit", "", KindWorking, 0},
		{"permission request", "PermissionRequest", "", KindAttention, AttentionPermission},
		{"session start waits", "SessionStart", "", KindAttention, AttentionWaiting},
		{"notification", "Notification", "", KindAttention, AttentionNotification},
		{"compacting", "PreCompact", "", KindCompacting, 0},
		{"unknown falls back to waiting", "SomeFutureHook", "", KindAttention, AttentionWaiting},
		{"explicit attention type wins", "Stop", "input", KindAttention, AttentionInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveStatus(tc.event, tc.attentionType)
			if got.Kind != tc.wantKind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tc.wantKind)
			}
			if got.Kind == KindAttention && got.Attention != tc.wantAttention {
				t.Fatalf("Attention = %v, want %v", got.Attention, tc.wantAttention)
			}
		})
	}
}

func TestAttentionPriorityOrdering(t *testing.T) {
	if AttentionPermission.Priority() >= AttentionInput.Priority() {
		t.Fatalf("Permission must outrank Input")
	}
	if AttentionInput.Priority() >= AttentionNotification.Priority() {
		t.Fatalf("Input must outrank Notification")
	}
	if AttentionNotification.Priority() >= AttentionWaiting.Priority() {
		t.Fatalf("Notification must outrank Waiting")
	}
}

func TestActivitySample(t *testing.T) {
	cases := []struct {
		status Status
		want   float64
	}{
		{NewWorking(), 1.0},
		{NewAttention(AttentionPermission), 0.8},
		{NewAttention(AttentionInput), 0.8},
		{NewAttention(AttentionNotification), 0.5},
		{NewAttention(AttentionWaiting), 0.1},
		{NewCompacting(), 0.6},
	}
	for _, tc := range cases {
		if got := tc.status.ActivitySample(); got != tc.want {
			t.Fatalf("ActivitySample(%v) = %v, want %v", tc.status, got, tc.want)
		}
	}
}
