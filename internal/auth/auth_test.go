package auth

import (
	"errors"
	"testing"

	"github.com/danmuck/mpdctl/internal/testutil/testlog"
)

func TestStaticTokenValidate(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name    string
		stored  string
		input   string
		wantErr error
	}{
		{name: "empty token denied", stored: "", input: "abc", wantErr: ErrUnauthorized},
		{name: "mismatched token denied", stored: "abc", input: "xyz", wantErr: ErrUnauthorized},
		{name: "matching token accepted", stored: "abc", input: "abc", wantErr: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := (StaticToken{Token: tc.stored}).Validate(tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected err %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestCheckHeader(t *testing.T) {
	testlog.Start(t)
	v := StaticToken{Token: "s3cret"}
	tests := []struct {
		header  string
		wantErr error
	}{
		{header: "Bearer s3cret", wantErr: nil},
		{header: "bearer   s3cret ", wantErr: nil},
		{header: "Bearer nope", wantErr: ErrUnauthorized},
		{header: "Basic czNjcmV0", wantErr: ErrMissingToken},
		{header: "Bearer ", wantErr: ErrMissingToken},
		{header: "", wantErr: ErrMissingToken},
	}
	for _, tc := range tests {
		if err := CheckHeader(v, tc.header); !errors.Is(err, tc.wantErr) {
			t.Fatalf("header=%q expected %v, got %v", tc.header, tc.wantErr, err)
		}
	}
}
