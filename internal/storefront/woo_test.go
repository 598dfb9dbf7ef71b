package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchOrders_PagesAndMaps(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/wp-json/wc/v3/orders" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if u, p, ok := r.BasicAuth(); !ok || u != "ck" || p != "cs" {
			t.Errorf("missing basic auth")
		}
		if r.URL.Query().Get("status") != "processing" {
			t.Errorf("status filter missing")
		}
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, `[
				{"id":101,"date_created_gmt":"2025-03-01T10:00:00","customer_note":"Prosím zlatou",
				 "billing":{"first_name":"Jana","last_name":"Nováková"},
				 "line_items":[{"id":7,"name":"Svadobné oznámenie","quantity":40,
				   "meta_data":[{"key":"Mená","value":"Jana & Peter"},{"key":"_reduced_stock","value":1},{"key":"opts","value":{"a":1}}]}]},
				{"id":102,"billing":{"first_name":"","last_name":""},"line_items":[]}
			]`)
		default:
			fmt.Fprint(w, `[]`)
		}
	}))
	defer srv.Close()

	c := New(time.Second, 2)
	got, err := c.FetchOrders(context.Background(), Credentials{BaseURL: srv.URL + "/", ConsumerKey: "ck", ConsumerSecret: "cs"})
	if err != nil {
		t.Fatalf("FetchOrders: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 page requests, got %d", calls)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(got))
	}
	o := got[0]
	if o.Number != "101" || o.CustomerName != "Jana Nováková" || o.Note != "Prosím zlatou" {
		t.Fatalf("unexpected order: %+v", o)
	}
	if o.PlacedAt.IsZero() || o.PlacedAt.Day() != 1 {
		t.Fatalf("placed at not parsed: %v", o.PlacedAt)
	}
	li := o.LineItems[0]
	if li.ID != "7" || li.Quantity != 40 || len(li.Meta) != 3 {
		t.Fatalf("unexpected line: %+v", li)
	}
	if li.Meta[0].Value != "Jana & Peter" || li.Meta[1].Value != "1" || li.Meta[2].Value != `{"a":1}` {
		t.Fatalf("unexpected meta: %+v", li.Meta)
	}
}

func TestFetchOrders_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := New(time.Second, 10).FetchOrders(context.Background(), Credentials{BaseURL: srv.URL})
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("expected ErrStatus, got %v", err)
	}
}

func TestCompleteOrder_PluginAndREST(t *testing.T) {
	var gotPath, gotMethod, gotKey string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod, gotKey = r.URL.Path, r.Method, r.Header.Get("X-AutoDesign-Key")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	c := New(time.Second, 10)

	if err := c.CompleteOrder(context.Background(), Credentials{BaseURL: srv.URL, PluginKey: "pk"}, "101"); err != nil {
		t.Fatalf("plugin complete: %v", err)
	}
	if gotPath != "/wp-json/autodesign/v1/update-status" || gotMethod != http.MethodPost || gotKey != "pk" || gotBody["order_id"] != "101" {
		t.Fatalf("unexpected plugin call: %s %s key=%q body=%v", gotMethod, gotPath, gotKey, gotBody)
	}

	if err := c.CompleteOrder(context.Background(), Credentials{BaseURL: srv.URL, ConsumerKey: "ck", ConsumerSecret: "cs"}, "101"); err != nil {
		t.Fatalf("rest complete: %v", err)
	}
	if gotPath != "/wp-json/wc/v3/orders/101" || gotMethod != http.MethodPut || gotBody["status"] != "completed" {
		t.Fatalf("unexpected rest call: %s %s body=%v", gotMethod, gotPath, gotBody)
	}
}
