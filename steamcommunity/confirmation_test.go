package steamcommunity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestConfirmationType_String(t *testing.T) {
	tests := []struct {
		typ      ConfirmationType
		expected string
	}{
		{ConfirmationTypeUnknown, "Unknown"},
		{ConfirmationTypeTrade, "Trade"},
		{ConfirmationTypeMarketListing, "Market Listing"},
		{ConfirmationType(999), "Unknown"}, // Unknown type
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			got := tt.typ.String()
			if got != tt.expected {
				t.Errorf("ConfirmationType(%d).String() = %q, want %q", tt.typ, got, tt.expected)
			}
		})
	}
}

const steamTimeResponse = `{"response":{"server_time":"1700000000"}}`

func queryTimeHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ITwoFactorService/QueryTime/v1/" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(steamTimeResponse))
			return
		}
		t.Fatalf("unexpected query-time path: %s", r.URL.Path)
	}
}

func validIdentitySecret() []byte {
	return []byte("identity-secret-bytes")
}

func TestGetConfirmations(t *testing.T) {
	const listHTML = `
		<div class="mobileconf_list_entry" data-confid="1" data-key="key1" data-creator="555" data-type="2"></div>
		<div class="mobileconf_list_entry" data-confid="2" data-key="key2" data-creator="777" data-type="3"></div>
	`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ITwoFactorService/QueryTime/v1/":
			queryTimeHandler(t)(w, r)
		case "/mobileconf/conf":
			q := r.URL.Query()
			if q.Get("tag") != "conf" {
				t.Errorf("tag = %q, want conf", q.Get("tag"))
			}
			if q.Get("m") != "android" {
				t.Errorf("m = %q, want android", q.Get("m"))
			}
			w.Write([]byte(listHTML))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestCommunity(t, srv.URL)
	c.httpClient.Transport = rewriteHostTransport(srv)

	confs, err := c.GetConfirmations(context.Background(), validIdentitySecret(), "android:deadbeef-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("GetConfirmations: %v", err)
	}
	if len(confs) != 2 {
		t.Fatalf("len(confs) = %d, want 2", len(confs))
	}
	if confs[0].ID != "1" || confs[0].Type != ConfirmationTypeTrade || confs[0].CreatorID != "555" || confs[0].Key != "key1" {
		t.Errorf("confs[0] = %+v", confs[0])
	}
	if confs[1].ID != "2" || confs[1].Type != ConfirmationTypeMarketListing || confs[1].CreatorID != "777" || confs[1].Key != "key2" {
		t.Errorf("confs[1] = %+v", confs[1])
	}
}

func TestGetConfirmations_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ITwoFactorService/QueryTime/v1/":
			queryTimeHandler(t)(w, r)
		case "/mobileconf/conf":
			w.Write([]byte(`<html><body>No pending confirmations.</body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestCommunity(t, srv.URL)
	c.httpClient.Transport = rewriteHostTransport(srv)

	confs, err := c.GetConfirmations(context.Background(), validIdentitySecret(), "android:deadbeef-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("GetConfirmations: %v", err)
	}
	if confs == nil {
		t.Fatal("confs is nil, want non-nil empty slice")
	}
	if len(confs) != 0 {
		t.Fatalf("len(confs) = %d, want 0", len(confs))
	}
}

func TestGetConfirmations_InvalidEntryVoidsListing(t *testing.T) {
	const listHTML = `
		<div class="mobileconf_list_entry" data-confid="1" data-key="key1" data-creator="555" data-type="2"></div>
		<div class="mobileconf_list_entry" data-confid="0" data-key="key2" data-creator="777" data-type="3"></div>
	`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ITwoFactorService/QueryTime/v1/":
			queryTimeHandler(t)(w, r)
		case "/mobileconf/conf":
			w.Write([]byte(listHTML))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestCommunity(t, srv.URL)
	c.httpClient.Transport = rewriteHostTransport(srv)

	_, err := c.GetConfirmations(context.Background(), validIdentitySecret(), "android:deadbeef-0000-0000-0000-000000000000")
	if err == nil {
		t.Fatal("expected error for invalid data-confid, listing should be voided entirely")
	}
}

func TestGetConfirmations_InvalidDeviceID(t *testing.T) {
	c := newTestCommunity(t, "https://steamcommunity.com")

	_, err := c.GetConfirmations(context.Background(), validIdentitySecret(), "not-a-device-id")
	if err == nil {
		t.Fatal("expected error for invalid device id")
	}
}

func TestAcceptConfirmations_BatchSuccess(t *testing.T) {
	var gotCidCk []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ITwoFactorService/QueryTime/v1/":
			queryTimeHandler(t)(w, r)
		case "/mobileconf/multiajaxop":
			if err := r.ParseForm(); err != nil {
				t.Fatalf("parse form: %v", err)
			}
			if r.PostForm.Get("op") != "allow" {
				t.Errorf("op = %q, want allow", r.PostForm.Get("op"))
			}
			gotCidCk = r.PostForm["cid[]"]
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"success": true}`))
		default:
			t.Fatalf("unexpected path for batch success test: %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := newTestCommunity(t, srv.URL)
	c.httpClient.Transport = rewriteHostTransport(srv)

	confs := []Confirmation{
		{ID: "1", Key: "key1", CreatorID: "555", Type: ConfirmationTypeTrade},
		{ID: "2", Key: "key2", CreatorID: "777", Type: ConfirmationTypeMarketListing},
	}
	err := c.AcceptConfirmations(context.Background(), confs, validIdentitySecret(), "android:deadbeef-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("AcceptConfirmations: %v", err)
	}
	if len(gotCidCk) != 2 || gotCidCk[0] != "1" || gotCidCk[1] != "2" {
		t.Errorf("cid[] = %v, want [1 2]", gotCidCk)
	}
}

func TestAcceptConfirmations_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("no request should be made for an empty confirmation slice, got %s", r.URL.Path)
	}))
	defer srv.Close()

	c := newTestCommunity(t, srv.URL)
	c.httpClient.Transport = rewriteHostTransport(srv)

	if err := c.AcceptConfirmations(context.Background(), nil, validIdentitySecret(), "android:deadbeef-0000-0000-0000-000000000000"); err != nil {
		t.Fatalf("AcceptConfirmations with no confirmations: %v", err)
	}
}

func TestRejectConfirmations_FallsBackToPerItemOnBatchFailure(t *testing.T) {
	var ajaxOpCalls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ITwoFactorService/QueryTime/v1/":
			queryTimeHandler(t)(w, r)
		case "/mobileconf/multiajaxop":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"success": false}`))
		case "/mobileconf/ajaxop":
			q := r.URL.Query()
			if q.Get("op") != "cancel" {
				t.Errorf("op = %q, want cancel", q.Get("op"))
			}
			ajaxOpCalls = append(ajaxOpCalls, q.Get("cid"))
			w.Write([]byte(`{"success": true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestCommunity(t, srv.URL)
	c.httpClient.Transport = rewriteHostTransport(srv)

	confs := []Confirmation{
		{ID: "1", Key: "key1", CreatorID: "555", Type: ConfirmationTypeTrade},
		{ID: "2", Key: "key2", CreatorID: "777", Type: ConfirmationTypeMarketListing},
	}
	err := c.RejectConfirmations(context.Background(), confs, validIdentitySecret(), "android:deadbeef-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("RejectConfirmations: %v", err)
	}
	if len(ajaxOpCalls) != 2 || ajaxOpCalls[0] != "1" || ajaxOpCalls[1] != "2" {
		t.Errorf("ajaxop fallback calls = %v, want [1 2] in order", ajaxOpCalls)
	}
}

func TestRejectConfirmations_FallbackAbortsOnFirstError(t *testing.T) {
	var ajaxOpCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ITwoFactorService/QueryTime/v1/":
			queryTimeHandler(t)(w, r)
		case "/mobileconf/multiajaxop":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"success": false}`))
		case "/mobileconf/ajaxop":
			ajaxOpCalls++
			http.Error(w, "internal error", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestCommunity(t, srv.URL)
	c.httpClient.Transport = rewriteHostTransport(srv)

	confs := []Confirmation{
		{ID: "1", Key: "key1", CreatorID: "555", Type: ConfirmationTypeTrade},
		{ID: "2", Key: "key2", CreatorID: "777", Type: ConfirmationTypeMarketListing},
	}
	err := c.RejectConfirmations(context.Background(), confs, validIdentitySecret(), "android:deadbeef-0000-0000-0000-000000000000")
	if err == nil {
		t.Fatal("expected error when the first fallback call fails")
	}
	if ajaxOpCalls != 1 {
		t.Fatalf("ajaxop calls = %d, want 1 (loop should abort on first failure)", ajaxOpCalls)
	}
}

func TestAcceptConfirmationByCreatorID(t *testing.T) {
	const listHTML = `
		<div class="mobileconf_list_entry" data-confid="1" data-key="key1" data-creator="555" data-type="2"></div>
		<div class="mobileconf_list_entry" data-confid="2" data-key="key2" data-creator="777" data-type="3"></div>
	`

	var multiOpCid string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ITwoFactorService/QueryTime/v1/":
			queryTimeHandler(t)(w, r)
		case "/mobileconf/conf":
			w.Write([]byte(listHTML))
		case "/mobileconf/multiajaxop":
			if err := r.ParseForm(); err != nil {
				t.Fatalf("parse form: %v", err)
			}
			cids := r.PostForm["cid[]"]
			if len(cids) != 1 {
				t.Fatalf("cid[] = %v, want exactly 1 entry", cids)
			}
			multiOpCid = cids[0]
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"success": true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestCommunity(t, srv.URL)
	c.httpClient.Transport = rewriteHostTransport(srv)

	err := c.AcceptConfirmationByCreatorID(context.Background(), validIdentitySecret(), "android:deadbeef-0000-0000-0000-000000000000", "777")
	if err != nil {
		t.Fatalf("AcceptConfirmationByCreatorID: %v", err)
	}
	if multiOpCid != "2" {
		t.Errorf("accepted cid = %q, want 2 (the entry with creator 777)", multiOpCid)
	}
}

func TestAcceptConfirmationByCreatorID_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ITwoFactorService/QueryTime/v1/":
			queryTimeHandler(t)(w, r)
		case "/mobileconf/conf":
			w.Write([]byte(`<html><body>nothing pending</body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestCommunity(t, srv.URL)
	c.httpClient.Transport = rewriteHostTransport(srv)

	err := c.AcceptConfirmationByCreatorID(context.Background(), validIdentitySecret(), "android:deadbeef-0000-0000-0000-000000000000", "999")
	if err == nil {
		t.Fatal("expected error when no confirmation matches the creator ID")
	}
}

func TestConfirmationGate_SerializesCalls(t *testing.T) {
	gate := &confirmationGate{delay: 20 * time.Millisecond}

	gate.acquire()
	released := make(chan struct{})
	go func() {
		gate.release()
		close(released)
	}()

	acquired := make(chan struct{})
	go func() {
		gate.acquire()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire() returned before the delayed release fired")
	case <-time.After(5 * time.Millisecond):
	}

	<-released
	<-acquired
}

func TestConfirmationGate_ZeroDelayBypasses(t *testing.T) {
	gate := &confirmationGate{}
	gate.acquire()
	gate.acquire() // must not deadlock: zero delay disables the gate entirely
	gate.release()
}
