package parse_test

import (
	"testing"

	"tablero/internal/domain"
	"tablero/internal/parse"
)

func completeIndicator() domain.ProtoIndicator {
	return domain.ProtoIndicator{
		Name:        "Disponibilidad",
		Area:        domain.AreaSystems,
		Target:      99,
		Actual:      97,
		Responsible: "Elena",
	}
}

func TestValidateAcceptsCompleteBatch(t *testing.T) {
	res := parse.Validate(domain.ImportBatch{
		Indicators: []domain.ProtoIndicator{completeIndicator()},
		Activities: []domain.ProtoActivity{{Name: "A", Area: domain.AreaSystems, Responsible: "Elena"}},
		Risks:      []domain.ProtoRisk{{Name: "R", Area: domain.AreaSystems, Responsible: "Elena"}},
	})
	if !res.IsValid || len(res.Errors) != 0 {
		t.Fatalf("expected valid, got %+v", res)
	}
}

func TestValidateZeroTargetMessage(t *testing.T) {
	ind := completeIndicator()
	ind.Target = 0
	res := parse.Validate(domain.ImportBatch{Indicators: []domain.ProtoIndicator{ind}})
	if res.IsValid {
		t.Fatalf("expected invalid")
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected exactly one error, got %v", res.Errors)
	}
	if res.Errors[0] != "Indicador 1: Meta debe ser mayor a 0" {
		t.Fatalf("unexpected message: %q", res.Errors[0])
	}
}

func TestValidateAccumulatesAllDefects(t *testing.T) {
	res := parse.Validate(domain.ImportBatch{
		Indicators: []domain.ProtoIndicator{{}},
		Activities: []domain.ProtoActivity{{Name: "ok", Area: domain.AreaQuality}},
		Risks:      []domain.ProtoRisk{{Responsible: "x"}},
	})
	if res.IsValid {
		t.Fatalf("expected invalid")
	}
	// empty indicator: name, area, target, responsible; activity: responsible;
	// risk: name, area
	if len(res.Errors) != 7 {
		t.Fatalf("expected 7 errors, got %d: %v", len(res.Errors), res.Errors)
	}
}

func TestValidateDoesNotMutate(t *testing.T) {
	batch := domain.ImportBatch{Indicators: []domain.ProtoIndicator{completeIndicator()}}
	before := batch.Indicators[0]
	parse.Validate(batch)
	if batch.Indicators[0] != before {
		t.Fatalf("batch mutated during validation")
	}
}
