package parse

import (
	"fmt"

	"tablero/internal/domain"
)

// ValidationResult accumulates every structural defect found in a batch so
// the user can fix the source file in one pass.
type ValidationResult struct {
	IsValid bool
	Errors  []string
}

// Validate checks an ImportBatch for structural completeness. It never
// mutates the batch and never fails fast: one message is accumulated per
// violation.
func Validate(batch domain.ImportBatch) ValidationResult {
	var errs []string

	for i, ind := range batch.Indicators {
		if ind.Name == "" {
			errs = append(errs, fmt.Sprintf("Indicador %d: Nombre requerido", i+1))
		}
		if ind.Area == "" {
			errs = append(errs, fmt.Sprintf("Indicador %d: Área requerida", i+1))
		}
		if ind.Target <= 0 {
			errs = append(errs, fmt.Sprintf("Indicador %d: Meta debe ser mayor a 0", i+1))
		}
		if ind.Responsible == "" {
			errs = append(errs, fmt.Sprintf("Indicador %d: Responsable requerido", i+1))
		}
	}

	for i, act := range batch.Activities {
		if act.Name == "" {
			errs = append(errs, fmt.Sprintf("Actividad %d: Nombre requerido", i+1))
		}
		if act.Area == "" {
			errs = append(errs, fmt.Sprintf("Actividad %d: Área requerida", i+1))
		}
		if act.Responsible == "" {
			errs = append(errs, fmt.Sprintf("Actividad %d: Responsable requerido", i+1))
		}
	}

	for i, risk := range batch.Risks {
		if risk.Name == "" {
			errs = append(errs, fmt.Sprintf("Riesgo %d: Nombre requerido", i+1))
		}
		if risk.Area == "" {
			errs = append(errs, fmt.Sprintf("Riesgo %d: Área requerida", i+1))
		}
		if risk.Responsible == "" {
			errs = append(errs, fmt.Sprintf("Riesgo %d: Responsable requerido", i+1))
		}
	}

	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}
