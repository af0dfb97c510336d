package invariant

import (
	"errors"
	"strconv"
	"strings"

	"github.com/roach88/phdtrack/internal/catalog"
	"github.com/roach88/phdtrack/internal/domain"
	"github.com/roach88/phdtrack/internal/engine"
)

// ValidInput checks an orchestrator input against its catalog definition.
// Schema failures become INVALID_REQUEST.
func ValidInput(cat *catalog.Catalog, definition string, in any) error {
	err := cat.ValidateInput(definition, in)
	if err == nil {
		return nil
	}
	var se *catalog.SchemaError
	if !errors.As(err, &se) {
		return err
	}
	return engine.InvalidRequest("input does not match "+strings.TrimPrefix(definition, "#"),
		map[string]string{
			"definition": definition,
			"reason":     se.Err.Error(),
			"hint":       "Check the input fields against the orchestrator's schema",
		})
}

// KnownStageType resolves a raw stage category through the catalog.
// Unknown categories are a contract violation of whoever produced them and
// are never mapped onto a default.
func KnownStageType(cat *catalog.Catalog, raw string, index int) (domain.StageType, error) {
	st, err := cat.StageType(raw)
	if err == nil {
		return st, nil
	}
	var ue *catalog.UnknownStageTypeError
	if !errors.As(err, &ue) {
		return "", err
	}
	known := make([]string, len(ue.Known))
	for i, k := range ue.Known {
		known[i] = string(k)
	}
	return "", engine.NewContractError(engine.ErrCodeUnknownStageType, ue.Error(),
		map[string]string{
			"stage_type":      raw,
			"stage_index":     strconv.Itoa(index),
			"catalog_version": strconv.Itoa(ue.Version),
			"known":           strings.Join(known, ","),
			"hint":            "Stage categories must come from the versioned catalog; extend the catalog deliberately",
		})
}
