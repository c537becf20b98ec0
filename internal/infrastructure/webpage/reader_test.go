package webpage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader_HTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><h1>Welcome</h1><script>x()</script></body></html>`))
	}))
	defer srv.Close()

	text, err := NewReader(WithHTTPClient(srv.Client())).Read(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Welcome", text)
}

func TestReader_PlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("<b>raw</b>"))
	}))
	defer srv.Close()

	text, err := NewReader().Read(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "<b>raw</b>", text)
}

func TestReader_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewReader().Read(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "status 404")

	_, err = NewReader().Read(context.Background(), "file:///etc/passwd")
	assert.ErrorContains(t, err, "unsupported url")
}
