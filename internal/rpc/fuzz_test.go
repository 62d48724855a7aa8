package rpc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	klog "github.com/Klingon-tech/klingwallet/internal/log"
)

// FuzzServeRPC feeds arbitrary bodies through the HTTP layer. Every body
// must produce a well-formed JSON-RPC response carrying exactly one of
// result or error.
func FuzzServeRPC(f *testing.F) {
	for _, seed := range []string{
		`{"jsonrpc":"2.0","method":"echo","params":{"name":"a"},"id":1}`,
		`{"jsonrpc":"2.0","method":"echo","params":["a","b","c"],"id":"x"}`,
		`{"jsonrpc":"2.0","method":"echo","params":["a","b","c","d"],"id":null}`,
		`{"jsonrpc":"2.0","method":"echo","params":[{"x":1}],"id":2}`,
		`{"jsonrpc":"2.0","method":"echo","params":[{"name":"a","passphrase":"b"},"c"],"id":4}`,
		`{"jsonrpc":"2.0","method":"other","id":3}`,
		`{"jsonrpc":"1.0"}`,
		`[]`,
		`null`,
		`{`,
	} {
		f.Add([]byte(seed))
	}

	klog.SetOutput(io.Discard, "error")
	srv := New("127.0.0.1:0", nil)
	srv.methods = map[string]method{
		"echo": func(_ context.Context, req *Request) (any, *Error) {
			var p WalletRestoreParam
			if err := parseParams(req, &p); err != nil {
				return nil, err
			}
			return p, nil
		},
	}
	known := map[int]bool{
		CodeParseError: true, CodeInvalidRequest: true,
		CodeMethodNotFound: true, CodeInvalidParams: true,
	}

	f.Fuzz(func(t *testing.T, body []byte) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(string(body)))
		srv.serveRPC(rec, req)

		var resp struct {
			JSONRPC string          `json:"jsonrpc"`
			Result  json.RawMessage `json:"result"`
			Error   *Error          `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("response is not JSON: %v: %q", err, rec.Body.String())
		}
		if resp.JSONRPC != "2.0" {
			t.Fatalf("jsonrpc = %q", resp.JSONRPC)
		}
		if (resp.Error == nil) == (resp.Result == nil) {
			t.Fatalf("want exactly one of result and error: %s", rec.Body.String())
		}
		if resp.Error != nil && !known[resp.Error.Code] {
			t.Fatalf("unexpected code %d", resp.Error.Code)
		}
	})
}
