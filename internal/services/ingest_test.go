package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/autodesign-coordinator/internal/domain"
	"github.com/tbourn/autodesign-coordinator/internal/extract"
	"github.com/tbourn/autodesign-coordinator/internal/repo"
	"github.com/tbourn/autodesign-coordinator/internal/storefront"
)

// ----- Fakes -----

type fakeStorefront struct {
	orders    []storefront.RawOrder
	fetchErr  error
	gotCreds  storefront.Credentials
	completed []string
	compErr   error
}

func (f *fakeStorefront) FetchOrders(ctx context.Context, creds storefront.Credentials) ([]storefront.RawOrder, error) {
	f.gotCreds = creds
	return f.orders, f.fetchErr
}

func (f *fakeStorefront) CompleteOrder(ctx context.Context, creds storefront.Credentials, number string) error {
	f.completed = append(f.completed, number)
	return f.compErr
}

type fakeExtractor struct {
	fields map[string]string
	err    error
	calls  int
	keys   []string
}

func (f *fakeExtractor) ExtractFields(ctx context.Context, text, key string) (map[string]string, error) {
	f.calls++
	f.keys = append(f.keys, key)
	return f.fields, f.err
}

// prefixSealer "seals" by prefixing, enough to prove the service opens
// secrets before use.
type prefixSealer struct{}

func (prefixSealer) Seal(p string) (string, error) { return "sealed:" + p, nil }
func (prefixSealer) Open(s string) (string, error) {
	if !strings.HasPrefix(s, "sealed:") {
		return "", errors.New("not sealed")
	}
	return strings.TrimPrefix(s, "sealed:"), nil
}

func rawOrder(number, customer string, lines ...storefront.RawLineItem) storefront.RawOrder {
	return storefront.RawOrder{Number: number, CustomerName: customer, Note: "Zlaté písmo", PlacedAt: time.Now().UTC(), LineItems: lines}
}

// ----- Tests -----

func TestBuildSourceText(t *testing.T) {
	got := BuildSourceText(" please gold ", storefront.RawLineItem{
		Name: "Svadobné oznámenie",
		Meta: []storefront.MetaEntry{
			{Key: "Mená", Value: "Jana & Peter"},
			{Key: "_reduced_stock", Value: "1"},
			{Key: "gtm4wp_product_data", Value: "{}"},
			{Key: "Dátum", Value: " "},
		},
	})
	want := "Note: please gold\nProduct: Svadobné oznámenie\nMená: Jana & Peter"
	if got != want {
		t.Fatalf("BuildSourceText =\n%q\nwant\n%q", got, want)
	}
	if got := BuildSourceText("", storefront.RawLineItem{Name: "Card"}); got != "Product: Card" {
		t.Fatalf("no-note text = %q", got)
	}
}

func TestSyncStore_IngestsMatchesAndExtracts(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	st, err := repo.CreateStore(ctx, db, &domain.Store{Name: "S", BaseURL: "https://s", ConsumerKey: "ck", ConsumerSecret: "sealed:cs"})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := repo.UpsertTemplate(ctx, db, &domain.TemplateConfig{Key: "WED_BASIC", Alias: "Svadobné oznámenie"}); err != nil {
		t.Fatalf("template: %v", err)
	}

	sf := &fakeStorefront{orders: []storefront.RawOrder{
		rawOrder("101", "Jana Nováková",
			storefront.RawLineItem{ID: "1", Name: "Svadobne oznamenie", Quantity: 40},
			storefront.RawLineItem{ID: "2", Name: "Darčeková taška", Quantity: 1},
		),
	}}
	ex := &fakeExtractor{fields: map[string]string{extract.NameMain: "Jana & Peter"}}
	svc := &OrderService{DB: db, Storefront: sf, Extractor: ex, Secrets: prefixSealer{}, Threshold: 0.3}

	res, err := svc.SyncStore(ctx, st.ID)
	if err != nil {
		t.Fatalf("SyncStore: %v", err)
	}
	if sf.gotCreds.ConsumerSecret != "cs" {
		t.Fatalf("secret not opened: %q", sf.gotCreds.ConsumerSecret)
	}
	if res.Orders != 1 || res.Created != 2 || res.Ready != 2 || res.Failed != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if ex.calls != 2 || ex.keys[0] != "WED_BASIC" || ex.keys[1] != "" {
		t.Fatalf("unexpected extractor calls: %d %v", ex.calls, ex.keys)
	}

	o, err := repo.GetOrderByNumber(ctx, db, st.ID, "101")
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	items, _ := repo.ListItemsByOrder(ctx, db, o.ID)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	for _, it := range items {
		if it.Status != domain.ItemAIReady || it.FieldMap()[extract.NameMain] != "Jana & Peter" {
			t.Fatalf("unexpected item: %+v", it)
		}
	}
	byLine := map[string]domain.OrderItem{}
	for _, it := range items {
		byLine[it.ExternalLineID] = it
	}
	if k := byLine["1"].TemplateKey; k == nil || *k != "WED_BASIC" {
		t.Fatalf("line 1 should match WED_BASIC, got %v", k)
	}
	if k := byLine["2"].TemplateKey; k != nil {
		t.Fatalf("line 2 should not match, got %v", *k)
	}

	// Re-ingestion updates in place and never re-extracts AI_READY items.
	sf.orders = []storefront.RawOrder{rawOrder("101", "Jana Nováková-Kováčová",
		storefront.RawLineItem{ID: "1", Name: "Svadobne oznamenie", Quantity: 50},
		storefront.RawLineItem{ID: "2", Name: "Darčeková taška", Quantity: 1},
	)}
	res, err = svc.SyncStore(ctx, st.ID)
	if err != nil {
		t.Fatalf("re-sync: %v", err)
	}
	if res.Created != 0 || res.Updated != 2 || ex.calls != 2 {
		t.Fatalf("re-sync should only update: %+v calls=%d", res, ex.calls)
	}
	var count int64
	db.Model(&domain.Order{}).Count(&count)
	o2, _ := repo.GetOrderByNumber(ctx, db, st.ID, "101")
	if count != 1 || o2.ID != o.ID || o2.CustomerName != "Jana Nováková-Kováčová" {
		t.Fatalf("expected one updated order, count=%d order=%+v", count, o2)
	}
	first, _ := repo.GetItem(ctx, db, byLine["1"].ID)
	if first.Quantity != 50 {
		t.Fatalf("quantity not refreshed: %d", first.Quantity)
	}
}

func TestSyncStore_DegradedExtraction(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	st := mustStore(t, db)
	sf := &fakeStorefront{orders: []storefront.RawOrder{
		rawOrder("7", "Eva", storefront.RawLineItem{ID: "1", Name: "Pozvánka"}),
	}}
	ex := &fakeExtractor{err: errors.New("rate limited")}
	svc := &OrderService{DB: db, Storefront: sf, Extractor: ex}

	res, err := svc.SyncStore(ctx, st.ID)
	if err != nil {
		t.Fatalf("SyncStore: %v", err)
	}
	if res.Degraded != 1 || res.Ready != 0 || res.Failed != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	o, _ := repo.GetOrderByNumber(ctx, db, st.ID, "7")
	items, _ := repo.ListItemsByOrder(ctx, db, o.ID)
	it := items[0]
	if it.Status != domain.ItemPending || !it.ExtractionDegraded {
		t.Fatalf("degraded item should stay PENDING and flagged: %+v", it)
	}
	if it.FieldMap()[extract.BodyFull] != it.SourceText || it.Quantity != 1 {
		t.Fatalf("degraded map should carry the source text: %v", it.FieldMap())
	}

	// Extraction recovers on retry.
	ex.err, ex.fields = nil, map[string]string{extract.NameMain: "Eva"}
	got, err := svc.RetryExtraction(ctx, it.ID)
	if err != nil {
		t.Fatalf("RetryExtraction: %v", err)
	}
	if got.Status != domain.ItemAIReady || got.ExtractionDegraded || got.FieldMap()[extract.NameMain] != "Eva" {
		t.Fatalf("unexpected item after retry: %+v", got)
	}
	if _, err := svc.RetryExtraction(ctx, it.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("retry of AI_READY item must be refused, got %v", err)
	}
}

func TestSyncStore_Failures(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	st := mustStore(t, db)

	svc := &OrderService{DB: db, Storefront: &fakeStorefront{fetchErr: errors.New("timeout")}}
	if _, err := svc.SyncStore(ctx, st.ID); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if _, err := svc.SyncStore(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// One bad order does not stop its sibling.
	svc.Storefront = &fakeStorefront{orders: []storefront.RawOrder{
		rawOrder("", "nobody"),
		rawOrder("8", "Ivan", storefront.RawLineItem{ID: "1", Name: "Card"}),
	}}
	res, err := svc.SyncStore(ctx, st.ID)
	if err != nil {
		t.Fatalf("SyncStore: %v", err)
	}
	if res.Failed != 1 || len(res.Errors) != 1 || res.Created != 1 || res.Degraded != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestUpdateItem(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	st := mustStore(t, db)
	o := mustOrder(t, db, st.ID, "9")
	pending := mustItem(t, db, o.ID, "1", domain.ItemPending)
	gen := mustItem(t, db, o.ID, "2", domain.ItemGenerating)
	svc := &OrderService{DB: db}

	got, err := svc.UpdateItem(ctx, pending.ID, ItemUpdate{Fields: map[string]string{"NAME_MAIN": "A"}})
	if err != nil || got.Status != domain.ItemPending || got.FieldMap()["NAME_MAIN"] != "A" {
		t.Fatalf("edit without approve: %+v err=%v", got, err)
	}

	w, h := 148.0, 105.0
	got, err = svc.UpdateItem(ctx, pending.ID, ItemUpdate{Approve: true, TrimWidthMM: &w, TrimHeightMM: &h})
	if err != nil || got.Status != domain.ItemAIReady || got.TrimWidthMM == nil || *got.TrimWidthMM != 148 {
		t.Fatalf("approve: %+v err=%v", got, err)
	}

	if _, err := svc.UpdateItem(ctx, gen.ID, ItemUpdate{Fields: map[string]string{"x": "y"}}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("edit of GENERATING item must be refused, got %v", err)
	}
	if _, err := svc.UpdateItem(ctx, pending.ID, ItemUpdate{TrimWidthMM: &w}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("half a trim size must be refused, got %v", err)
	}
	if _, err := svc.UpdateItem(ctx, "missing", ItemUpdate{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
