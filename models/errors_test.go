package models

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestWrapScanError(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"launch failure", &LaunchError{Err: cause}, ErrCodeLaunch},
		{"navigation failure", &NavigationError{URL: "https://x.test", Err: cause}, ErrCodeNavigation},
		{"navigation timeout", &NavigationError{URL: "https://x.test", Timeout: true, Err: context.DeadlineExceeded}, ErrCodeTimeout},
		{"inspection failure", &InspectionError{Check: "broken_images", Err: cause}, ErrCodeInspection},
		{"wrapped inspection failure", fmt.Errorf("phase: %w", &InspectionError{Check: "links", Err: cause}), ErrCodeInspection},
		{"bare deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"anything else", cause, ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			se := WrapScanError("https://x.test", tt.err)
			if se.Code != tt.code {
				t.Errorf("Code = %q, want %q", se.Code, tt.code)
			}
			if !errors.Is(se, tt.err) {
				t.Error("ScanError must unwrap to the original cause")
			}
			if se.URL != "https://x.test" {
				t.Errorf("URL = %q", se.URL)
			}
		})
	}
}

func TestWrapScanError_KeepsExistingScanError(t *testing.T) {
	t.Parallel()

	orig := NewScanError(ErrCodeInvalidInput, "bad url", nil)
	if got := WrapScanError("u", orig); got != orig {
		t.Error("an existing ScanError must be returned unchanged")
	}
}

func TestScanError_ToDetail(t *testing.T) {
	t.Parallel()

	se := NewScanError(ErrCodeNavigation, "navigation failed", errors.New("net::ERR_NAME_NOT_RESOLVED"))
	d := se.ToDetail()
	if d.Code != ErrCodeNavigation {
		t.Errorf("Code = %q", d.Code)
	}
	if d.Message != "navigation failed: net::ERR_NAME_NOT_RESOLVED" {
		t.Errorf("Message = %q", d.Message)
	}
}
