package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danmuck/torrentctl/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
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
			testlog.Logf("auth/static-token: stored=%q input=%q", tc.stored, tc.input)
			err := (StaticToken{Token: tc.stored}).Validate(tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected err %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{header: "Bearer abc", token: "abc", ok: true},
		{header: "bearer  abc ", token: "abc", ok: true},
		{header: "Basic abc", ok: false},
		{header: "Bearer", ok: false},
		{header: "Bearer ", ok: false},
		{header: "", ok: false},
	}
	for _, tc := range tests {
		token, ok := BearerToken(tc.header)
		if ok != tc.ok || token != tc.token {
			t.Fatalf("header=%q got (%q,%v) want (%q,%v)", tc.header, token, ok, tc.token, tc.ok)
		}
	}
}

func TestMiddleware(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(StaticToken{Token: "secret"}))
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	for _, tc := range []struct {
		header string
		want   int
	}{
		{header: "", want: http.StatusUnauthorized},
		{header: "Bearer wrong", want: http.StatusUnauthorized},
		{header: "Bearer secret", want: http.StatusOK},
	} {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		if rr.Code != tc.want {
			t.Fatalf("header=%q status=%d want=%d", tc.header, rr.Code, tc.want)
		}
		testlog.Logf("auth/middleware: header=%q status=%d", tc.header, rr.Code)
	}
}
