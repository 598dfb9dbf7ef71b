package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/tbourn/autodesign-coordinator/internal/domain"
	"github.com/tbourn/autodesign-coordinator/internal/repo"
	"github.com/tbourn/autodesign-coordinator/internal/services"
)

func TestPlans_SheetsAndPlan(t *testing.T) {
	db := newHandlerDB(t)
	r := mount(New(realDeps(db)))
	o, items := seedOrder(t, db, "7", domain.ItemDone, domain.ItemDone)
	if err := repo.SetItemTrim(context.Background(), db, items[0].ID, 100, 100); err != nil {
		t.Fatalf("trim: %v", err)
	}

	w := do(r, http.MethodGet, "/sheets", nil)
	var sheets ListSheetsResponse
	decode(t, w, &sheets)
	if len(sheets.Sheets) != 2 {
		t.Fatalf("expected the built-in sheets, got %+v", sheets.Sheets)
	}

	w = do(r, http.MethodPost, "/plans", CreatePlanRequest{Sheet: "SRA3", OrderIDs: []string{o.ID}})
	if w.Code != http.StatusOK {
		t.Fatalf("plan: %d %s", w.Code, w.Body.String())
	}
	var plan services.PlanView
	decode(t, w, &plan)
	if plan.Placed != 1 || len(plan.Sheets) != 1 || len(plan.Unplaceable) != 1 || plan.Unplaceable[0].Item.ID != items[1].ID {
		t.Fatalf("unexpected plan: %+v", plan)
	}

	w = do(r, http.MethodPost, "/plans", CreatePlanRequest{Sheet: "B0"})
	if w.Code != http.StatusBadRequest || errCode(t, w) != ErrCodeBadRequest {
		t.Fatalf("unknown sheet: %d %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodPost, "/plans", map[string]string{}); w.Code != http.StatusBadRequest {
		t.Fatalf("missing sheet: %d", w.Code)
	}
}

func TestAgents_ListsRecentWorkers(t *testing.T) {
	deps := realDeps(newHandlerDB(t))
	r := mount(New(deps))

	w := do(r, http.MethodGet, "/agents", nil)
	if w.Body.String() != `{"agents":[]}` {
		t.Fatalf("expected no agents, got %s", w.Body.String())
	}

	if err := deps.Presence.Touch(context.Background(), "mac-studio-1"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	w = do(r, http.MethodGet, "/agents", nil)
	var resp ListAgentsResponse
	decode(t, w, &resp)
	if len(resp.Agents) != 1 || resp.Agents[0].ID != "mac-studio-1" {
		t.Fatalf("unexpected agents: %+v", resp.Agents)
	}
}
