package auth

import (
	"errors"
	"testing"

	"github.com/danmuck/streamcore/internal/testutil/testlog"
)

func TestStaticToken(t *testing.T) {
	testlog.Start(t)
	v := StaticToken("s3cret")
	if err := v.Validate("s3cret"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := v.Validate("nope"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := StaticToken("").Validate(""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("empty token must reject, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		header string
		token  string
		ok     bool
	}{
		{header: "Bearer abc", token: "abc", ok: true},
		{header: "bearer   abc ", token: "abc", ok: true},
		{header: "Basic abc"},
		{header: "Bearer"},
		{header: "Bearer  "},
		{header: ""},
	}
	for _, tc := range cases {
		token, ok := BearerToken(tc.header)
		if token != tc.token || ok != tc.ok {
			t.Fatalf("BearerToken(%q) got=(%q,%v) want=(%q,%v)", tc.header, token, ok, tc.token, tc.ok)
		}
	}
}
