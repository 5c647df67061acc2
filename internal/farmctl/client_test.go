package farmctl

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"dispatchd/internal/cliexit"
)

func TestSubmitGraphReturnsBodyOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/graphs/" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		if string(b) != `{"root":0}` {
			t.Fatalf("unexpected body %s", b)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("root=0"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	out, err := c.SubmitGraph([]byte(`{"root":0}`), "bob")
	if err != nil {
		t.Fatalf("SubmitGraph: %v", err)
	}
	if out != "root=0" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestSetStatusMapsBadRequestToServerRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"kind":"validation","message":"bad status"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.SetStatus(1, "task", "BOGUS")
	if err == nil {
		t.Fatalf("expected an error")
	}
	if cliexit.Code(err) != cliexit.ServerRejected {
		t.Fatalf("expected ServerRejected, got %d", cliexit.Code(err))
	}
}

func TestPatchNodeOmitsNilFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		if string(b) != `{"kind":"folder","maxRN":4}` {
			t.Fatalf("unexpected body %s", b)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL)
	maxRN := 4
	if _, err := c.PatchNode(7, "folder", nil, &maxRN); err != nil {
		t.Fatalf("PatchNode: %v", err)
	}
}

func TestSetLicenceQuotaBuildsTokenPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pools/gpu/licences/maya" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.SetLicenceQuota("gpu", "maya", 3); err != nil {
		t.Fatalf("SetLicenceQuota: %v", err)
	}
}

func TestTransportErrorOnUnreachableServer(t *testing.T) {
	c := New("http://127.0.0.1:0")
	_, err := c.SetStatus(1, "task", "CANCELED")
	if err == nil {
		t.Fatalf("expected an error")
	}
	if cliexit.Code(err) != cliexit.TransportError {
		t.Fatalf("expected TransportError, got %d", cliexit.Code(err))
	}
	var cerr *cliexit.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected a *cliexit.Error")
	}
}
