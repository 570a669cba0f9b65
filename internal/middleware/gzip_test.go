package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(s)); err != nil {
		t.Fatalf("write gzip: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return buf.Bytes()
}

// echoCategory отвечает телом запроса как созданной категорией.
func echoCategory(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}

func TestGzipMiddleware(t *testing.T) {
	type want struct {
		statusCode      int
		contentEncoding string
		body            string
	}

	tests := []struct {
		name           string
		handler        http.HandlerFunc
		body           string
		gzipRequest    bool
		acceptEncoding string
		want           want
	}{
		{
			name:           "gzipped category payload",
			handler:        echoCategory,
			body:           `{"name":"Snacks"}`,
			gzipRequest:    true,
			acceptEncoding: "gzip",
			want: want{
				statusCode:      http.StatusCreated,
				contentEncoding: "gzip",
				body:            `{"name":"Snacks"}`,
			},
		},
		{
			name:           "client without gzip support",
			handler:        echoCategory,
			body:           `{"name":"Drinks"}`,
			acceptEncoding: "identity",
			want: want{
				statusCode: http.StatusCreated,
				body:       `{"name":"Drinks"}`,
			},
		},
		{
			name: "already encoded response is passed through",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Encoding", "gzip")
				w.Header().Set("Content-Type", "text/plain; version=0.0.4")
				_, _ = w.Write(gzipBytes(t, "# HELP rewardadmin_refunds_total\n"))
			},
			acceptEncoding: "gzip, deflate",
			want: want{
				statusCode:      http.StatusOK,
				contentEncoding: "gzip",
				body:            "# HELP rewardadmin_refunds_total\n",
			},
		},
		{
			name: "no content after delete",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			},
			acceptEncoding: "gzip",
			want: want{
				statusCode: http.StatusNoContent,
			},
		},
		{
			name:           "corrupt gzip request body",
			handler:        echoCategory,
			body:           `{"name":"Snacks"}`,
			acceptEncoding: "gzip",
			want: want{
				statusCode: http.StatusBadRequest,
				body:       http.StatusText(http.StatusBadRequest),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reqBody io.Reader = strings.NewReader(tt.body)
			if tt.gzipRequest {
				reqBody = bytes.NewReader(gzipBytes(t, tt.body))
			}

			req := httptest.NewRequest(http.MethodPost, "/api/admin/categories", reqBody)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			if tt.gzipRequest || tt.want.statusCode == http.StatusBadRequest {
				req.Header.Set("Content-Encoding", "gzip")
			}

			w := httptest.NewRecorder()
			GzipMiddleware(tt.handler).ServeHTTP(w, req)

			res := w.Result()
			defer res.Body.Close()

			if res.StatusCode != tt.want.statusCode {
				t.Fatalf("status: got %d want %d", res.StatusCode, tt.want.statusCode)
			}

			if ce := res.Header.Get("Content-Encoding"); ce != tt.want.contentEncoding {
				t.Fatalf("content-encoding: got %q want %q", ce, tt.want.contentEncoding)
			}

			raw, err := io.ReadAll(res.Body)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}

			body := raw
			if tt.want.contentEncoding == "gzip" {
				zr, err := gzip.NewReader(bytes.NewReader(raw))
				if err != nil {
					t.Fatalf("new gzip reader: %v", err)
				}
				body, err = io.ReadAll(zr)
				if err != nil {
					t.Fatalf("gunzip body: %v", err)
				}
			}

			if bytes.HasPrefix(body, []byte{0x1f, 0x8b}) {
				t.Fatalf("body is still gzip after a single decode")
			}

			if got := strings.TrimSpace(string(body)); got != strings.TrimSpace(tt.want.body) {
				t.Fatalf("body: got %q want %q", got, tt.want.body)
			}
		})
	}
}
