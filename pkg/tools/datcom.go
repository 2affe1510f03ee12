package tools

import (
	"context"
	"encoding/json"

	"github.com/aileronlabs/aileron/pkg/datcom"
)

// The DATCOM converters return their namelist records as compact JSON
// so the model and the conversion pipeline can read individual fields
// back. Records keep their underscore-prefixed derivation annotations.

func newConvertWingTool() Tool {
	return newFuncTool(ToolConvertWing,
		"Converts standard wing parameters (area, aspect ratio, taper ratio, sweep) into the DATCOM $WGPLNF namelist record.",
		func(_ context.Context, in datcom.WingInput) (string, error) {
			record, err := datcom.ConvertWing(in)
			if err != nil {
				return "", domainError(ToolConvertWing, err)
			}
			return recordJSON(ToolConvertWing, record)
		})
}

func newConvertTailTool() Tool {
	return newFuncTool(ToolConvertTail,
		"Converts tail surface parameters (area, aspect ratio, taper ratio, sweep) into the DATCOM $HTPLNF or $VTPLNF namelist record.",
		func(_ context.Context, in datcom.TailInput) (string, error) {
			record, err := datcom.ConvertTail(in)
			if err != nil {
				return "", domainError(ToolConvertTail, err)
			}
			return recordJSON(ToolConvertTail, record)
		})
}

func newSynthesisPositionsTool() Tool {
	return newFuncTool(ToolSynthesisPositions,
		"Calculates component X and Z coordinates for the DATCOM $SYNTHS namelist from the fuselage length and optional position fractions.",
		func(_ context.Context, in datcom.SynthsInput) (string, error) {
			record, err := datcom.SynthesisPositions(in)
			if err != nil {
				return "", domainError(ToolSynthesisPositions, err)
			}
			return recordJSON(ToolSynthesisPositions, record)
		})
}

func newDefineBodyTool() Tool {
	return newFuncTool(ToolDefineBody,
		"Defines an axisymmetric fuselage for the DATCOM $BODY namelist from overall length and maximum diameter.",
		func(_ context.Context, in datcom.BodyInput) (string, error) {
			record, err := datcom.DefineBody(in)
			if err != nil {
				return "", domainError(ToolDefineBody, err)
			}
			return recordJSON(ToolDefineBody, record)
		})
}

func newFltconMatrixTool() Tool {
	return newFuncTool(ToolFltconMatrix,
		"Generates the flight condition matrix for the DATCOM $FLTCON namelist from Mach numbers, altitudes, an alpha range and aircraft weight.",
		func(_ context.Context, in datcom.FltconInput) (string, error) {
			record, err := datcom.FltconMatrix(in)
			if err != nil {
				return "", domainError(ToolFltconMatrix, err)
			}
			return recordJSON(ToolFltconMatrix, record)
		})
}

type validateArgs struct {
	Params map[string]interface{} `json:"params" jsonschema:"description=DATCOM parameters gathered from the other converters"`
}

func newValidateTool() Tool {
	return newFuncTool(ToolValidateParams,
		"Validates the reasonableness and consistency of a set of DATCOM parameters and reports errors and warnings.",
		func(_ context.Context, in validateArgs) (string, error) {
			return recordJSON(ToolValidateParams, datcom.Validate(in.Params))
		})
}

// domainError wraps a converter failure in the {"error": ...} shape the
// record observations use.
func domainError(tool string, err error) *ToolError {
	return &ToolError{Tool: tool, Message: errorJSON(err), Err: err}
}

func errorJSON(err error) string {
	raw, marshalErr := json.Marshal(map[string]string{"error": err.Error()})
	if marshalErr != nil {
		return `{"error":"internal error"}`
	}
	return string(raw)
}

// recordJSON marshals a namelist record observation.
func recordJSON(tool string, record interface{}) (string, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return "", &ToolError{Tool: tool, Message: "failed to encode record", Err: err}
	}
	return string(raw), nil
}
