package logger

import (
	"net/http"
	"testing"
)

func TestMaskAuthorization(t *testing.T) {
	got := MaskAuthorization("Bearer abcdef1234")
	want := "Bearer ****1234"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestMaskCookie(t *testing.T) {
	got := MaskCookie("access_token=abcdef1234; theme=xyz")
	want := "access_token=****1234; theme=****xyz"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestMaskHeadersLeavesOtherHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer secret-token-9876")
	h.Set("Content-Type", "application/pdf")

	masked := MaskHeaders(h)
	if masked["Authorization"] != "Bearer ****9876" {
		t.Fatalf("authorization not masked: %q", masked["Authorization"])
	}
	if masked["Content-Type"] != "application/pdf" {
		t.Fatalf("content type changed: %q", masked["Content-Type"])
	}
}
