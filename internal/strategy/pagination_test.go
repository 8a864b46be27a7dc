package strategy

import (
	"strconv"
	"testing"

	"github.com/sourcelens-io/sourcelens/internal/capture"
	"github.com/sourcelens-io/sourcelens/internal/llmclient"
	"github.com/sourcelens-io/sourcelens/internal/source"
)

func candidate(name, value string) capture.CandidateParameter {
	kind := capture.CandidateInteger
	if _, err := strconv.Atoi(value); err != nil {
		kind = capture.CandidateToken
	}
	return capture.CandidateParameter{Name: name, Kind: kind, Value: value}
}

func TestAssembleStrategyLimitOffset(t *testing.T) {
	roles := map[llmclient.PaginationRole]capture.CandidateParameter{
		llmclient.RoleLimit:  candidate("limit", "20"),
		llmclient.RoleOffset: candidate("offset", "0"),
	}
	strat, err := assembleStrategy(roles)
	if err != nil {
		t.Fatalf("assembleStrategy() error = %v", err)
	}
	if strat.Shape != source.ShapeLimitOffset {
		t.Errorf("Shape = %v, want limit_offset", strat.Shape)
	}
	if strat.Limit.Default != 20 || strat.Offset.Default != 0 {
		t.Errorf("Limit/Offset defaults = %d/%d", strat.Limit.Default, strat.Offset.Default)
	}
}

func TestAssembleStrategyCursorBased(t *testing.T) {
	roles := map[llmclient.PaginationRole]capture.CandidateParameter{
		llmclient.RoleCursor: candidate("lastEvaluated", "eyJpZCI6MTIzfQ=="),
		llmclient.RoleLimit:  candidate("limit", "5"),
	}
	strat, err := assembleStrategy(roles)
	if err != nil {
		t.Fatalf("assembleStrategy() error = %v", err)
	}
	if strat.Shape != source.ShapeCursorBased {
		t.Errorf("Shape = %v, want cursor_based", strat.Shape)
	}
	if strat.Cursor.Name != "lastEvaluated" {
		t.Errorf("Cursor.Name = %q", strat.Cursor.Name)
	}
}

func TestAssembleStrategyPageBased(t *testing.T) {
	roles := map[llmclient.PaginationRole]capture.CandidateParameter{
		llmclient.RolePage:  candidate("page", "1"),
		llmclient.RoleLimit: candidate("per_page", "20"),
	}
	strat, err := assembleStrategy(roles)
	if err != nil {
		t.Fatalf("assembleStrategy() error = %v", err)
	}
	if strat.Shape != source.ShapePageBased {
		t.Errorf("Shape = %v, want page_based", strat.Shape)
	}
}

func TestAssembleStrategyRejectsMissingMandatoryRole(t *testing.T) {
	roles := map[llmclient.PaginationRole]capture.CandidateParameter{
		llmclient.RolePage: candidate("page", "1"),
	}
	if _, err := assembleStrategy(roles); err == nil {
		t.Error("expected error when only page role is present (no limit/offset partner)")
	}
}

func TestAssembleStrategyRejectsEmptyRoles(t *testing.T) {
	if _, err := assembleStrategy(map[llmclient.PaginationRole]capture.CandidateParameter{}); err != ErrNoPaginationDetected {
		t.Errorf("err = %v, want ErrNoPaginationDetected", err)
	}
}

func TestAtoiOrZero(t *testing.T) {
	cases := map[string]int{"0": 0, "42": 42, "-5": -5, "abc": 0, "": 0}
	for in, want := range cases {
		if got := atoiOrZero(in); got != want {
			t.Errorf("atoiOrZero(%q) = %d, want %d", in, got, want)
		}
	}
}
