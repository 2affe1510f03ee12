package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/aileronlabs/aileron/pkg/datcom"
	"github.com/aileronlabs/aileron/pkg/llms"
)

// maxAnalysisPoints is the DATCOM hard limit on NMACH·NALT·NALPHA.
const maxAnalysisPoints = 400

// Conventional sizing fractions applied when a tail surface is absent
// from the query: the area comes from the wing, the shape from typical
// UAV practice.
const (
	htailAreaFraction = 0.20
	htailAspectRatio  = 4.0
	vtailAreaFraction = 0.15
	vtailAspectRatio  = 1.5
	tailTaperRatio    = 0.4
)

// paramExtractionPrompt asks the model for a strict JSON object. The
// field list names every parameter the pipeline can consume; the model
// must answer null for anything the query does not state.
const paramExtractionPrompt = `Extract all DATCOM parameters from the user query below.
Return ONLY a valid JSON object with the following fields (use null for missing values):
{
  "wing_S": <number or null>,
  "wing_A": <number or null>,
  "wing_lambda": <number or null>,
  "wing_sweep_angle": <number or null>,
  "htail_S": <number or null>,
  "htail_A": <number or null>,
  "htail_lambda": <number or null>,
  "htail_sweep_angle": <number or null>,
  "vtail_S": <number or null>,
  "vtail_A": <number or null>,
  "vtail_lambda": <number or null>,
  "vtail_sweep_angle": <number or null>,
  "mach_numbers": [<numbers>] or null,
  "altitudes": [<numbers>] or null,
  "alpha_degrees": [<numbers>] or null,
  "weight": <number or null>,
  "body_length": <number or null>,
  "body_max_diameter": <number or null>,
  "xcg": <number or null>,
  "xw": <number or null>,
  "xh": <number or null>
}

Do not make up values; only extract what is explicitly mentioned.

User Query: %s

JSON Output:`

const (
	extractionClarification = "無法從查詢中解析 DATCOM 參數，請以「參數=數值」的形式明確描述需求，" +
		"例如: 機翼 S=530, A=2.8, lambda=0.3, 後掠角=45, Mach=0.6, 高度=35000, 攻角=-2 到 10。"
	gateClarification = "無法生成 DATCOM 輸入檔，缺少必要參數: %s。請在查詢中補充這些參數後重試。"
)

// DatcomParams mirrors the JSON shape of the extraction prompt. Pointer
// and slice fields distinguish an absent parameter from a zero value.
type DatcomParams struct {
	WingS          *float64 `json:"wing_S"`
	WingA          *float64 `json:"wing_A"`
	WingLambda     *float64 `json:"wing_lambda"`
	WingSweepAngle *float64 `json:"wing_sweep_angle"`

	HtailS          *float64 `json:"htail_S"`
	HtailA          *float64 `json:"htail_A"`
	HtailLambda     *float64 `json:"htail_lambda"`
	HtailSweepAngle *float64 `json:"htail_sweep_angle"`

	VtailS          *float64 `json:"vtail_S"`
	VtailA          *float64 `json:"vtail_A"`
	VtailLambda     *float64 `json:"vtail_lambda"`
	VtailSweepAngle *float64 `json:"vtail_sweep_angle"`

	MachNumbers  []float64 `json:"mach_numbers"`
	Altitudes    []float64 `json:"altitudes"`
	AlphaDegrees []float64 `json:"alpha_degrees"`

	Weight          *float64 `json:"weight"`
	BodyLength      *float64 `json:"body_length"`
	BodyMaxDiameter *float64 `json:"body_max_diameter"`

	XCG *float64 `json:"xcg"`
	XW  *float64 `json:"xw"`
	XH  *float64 `json:"xh"`
}

// missingRequired names the parameters the gate insists on: the full
// wing block plus at least one Mach, one altitude and an alpha schedule.
// Names match the extraction prompt so the clarification tells the user
// exactly what to add.
func (p *DatcomParams) missingRequired() []string {
	var missing []string
	need := func(present bool, name string) {
		if !present {
			missing = append(missing, name)
		}
	}
	need(p.WingS != nil, "wing_S")
	need(p.WingA != nil, "wing_A")
	need(p.WingLambda != nil, "wing_lambda")
	need(p.WingSweepAngle != nil, "wing_sweep_angle")
	need(len(p.MachNumbers) > 0, "mach_numbers")
	need(len(p.Altitudes) > 0, "altitudes")
	need(len(p.AlphaDegrees) > 0, "alpha_degrees")
	return missing
}

// parseParams pulls the outermost JSON object out of a model reply and
// decodes it. The model tends to wrap the object in prose or fences, so
// everything outside the first '{' and the last '}' is discarded.
func parseParams(text string) (*DatcomParams, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, errors.New("no JSON object in reply")
	}
	var params DatcomParams
	if err := json.Unmarshal([]byte(text[start:end+1]), &params); err != nil {
		return nil, err
	}
	return &params, nil
}

// extractParams prompts the model for the parameter record. A malformed
// reply is retried once with a fresh completion; a transport failure is
// returned as-is since the client has already retried it.
func extractParams(ctx context.Context, llm llms.LLM, question string) (*DatcomParams, error) {
	prompt := fmt.Sprintf(paramExtractionPrompt, question)

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		reply, err := llm.Complete(ctx, llms.CompletionRequest{
			Messages: []llms.Message{llms.User(prompt)},
		})
		if err != nil {
			return nil, fmt.Errorf("parameter extraction: %w", err)
		}
		params, err := parseParams(reply.Text)
		if err != nil {
			slog.Warn("parameter extraction returned malformed JSON", "attempt", attempt, "error", err)
			lastErr = err
			continue
		}
		return params, nil
	}
	return nil, fmt.Errorf("parameter extraction: %w", lastErr)
}

// alphaRange folds the extracted alpha list into the [start, end, step]
// triple the flight matrix expects. The list is sorted first; the step
// is the gap between the two lowest values; a single value collapses to
// a one-point schedule.
func alphaRange(alphas []float64) (start, end, step float64) {
	sorted := append([]float64(nil), alphas...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0], sorted[0], 1.0
	}
	return sorted[0], sorted[len(sorted)-1], sorted[1] - sorted[0]
}

// deckBuild accumulates the per-stage records and diagnostics of one
// pipeline run. Failed stages leave their record nil and add an entry to
// failures; the deck renders whatever survived.
type deckBuild struct {
	wing   *datcom.WingPlanform
	htail  *datcom.TailPlanform
	vtail  *datcom.TailPlanform
	fltcon *datcom.Fltcon
	synths *datcom.Synths
	body   *datcom.Body

	headers  []string
	inferred []string
	failures []string
}

func (b *deckBuild) fail(stage string, err error) {
	slog.Warn("datcom stage failed", "stage", stage, "error", err)
	b.failures = append(b.failures, fmt.Sprintf("%s: %v", stage, err))
}

// assembleDeck runs the post-gate stages. It is pure arithmetic: given
// the same parameter record it produces the same deck.
func assembleDeck(params *DatcomParams) *deckBuild {
	b := &deckBuild{headers: provenance(params)}

	wing, err := datcom.ConvertWing(datcom.WingInput{
		S:          *params.WingS,
		A:          *params.WingA,
		Lambda:     *params.WingLambda,
		SweepAngle: *params.WingSweepAngle,
	})
	if err != nil {
		b.fail("WGPLNF", err)
	} else {
		b.wing = wing
	}

	start, end, step := alphaRange(params.AlphaDegrees)
	fltcon, err := datcom.FltconMatrix(datcom.FltconInput{
		MachNumbers: params.MachNumbers,
		Altitudes:   params.Altitudes,
		AlphaRange:  []float64{start, end, step},
		Weight:      floatOrZero(params.Weight),
	})
	switch {
	case err != nil:
		b.fail("FLTCON", err)
	case fltcon.Points() > maxAnalysisPoints:
		b.fail("FLTCON", fmt.Errorf("flight matrix expands to %d analysis points, DATCOM accepts at most %d",
			fltcon.Points(), maxAnalysisPoints))
	default:
		b.fltcon = fltcon
	}

	b.buildSynths(params)
	b.buildBody(params)
	b.buildTail("horizontal_tail", params.HtailS, params.HtailA, params.HtailLambda, params.HtailSweepAngle,
		htailAreaFraction, htailAspectRatio, false)
	b.buildTail("vertical_tail", params.VtailS, params.VtailA, params.VtailLambda, params.VtailSweepAngle,
		vtailAreaFraction, vtailAspectRatio, true)
	return b
}

// buildSynths places the components along the fuselage. Explicit
// stations are converted to fractions of the body length, estimating
// the length as 1.15 times the rearmost station when the query does not
// give one. A bare body length falls back to conventional fractions.
// With no length signal at all the record is omitted.
func (b *deckBuild) buildSynths(params *DatcomParams) {
	var in datcom.SynthsInput
	switch {
	case params.XCG != nil && params.XW != nil && params.XH != nil:
		length := 0.0
		if params.BodyLength != nil {
			length = *params.BodyLength
		} else {
			length = 1.15 * math.Max(*params.XCG, math.Max(*params.XW, *params.XH))
		}
		if length <= 0 {
			b.fail("SYNTHS", fmt.Errorf("cannot derive a positive fuselage length from XCG=%g XW=%g XH=%g",
				*params.XCG, *params.XW, *params.XH))
			return
		}
		in = datcom.SynthsInput{
			FuselageLength:       length,
			CGPositionPercent:    *params.XCG / length,
			WingPositionPercent:  *params.XW / length,
			HtailPositionPercent: *params.XH / length,
		}
	case params.BodyLength != nil:
		in = datcom.SynthsInput{FuselageLength: *params.BodyLength}
	default:
		return
	}

	synths, err := datcom.SynthesisPositions(in)
	if err != nil {
		b.fail("SYNTHS", err)
		return
	}
	b.synths = synths
}

func (b *deckBuild) buildBody(params *DatcomParams) {
	if params.BodyLength == nil || params.BodyMaxDiameter == nil {
		return
	}
	body, err := datcom.DefineBody(datcom.BodyInput{
		FuselageLength: *params.BodyLength,
		MaxDiameter:    *params.BodyMaxDiameter,
	})
	if err != nil {
		b.fail("BODY", err)
		return
	}
	b.body = body
}

// buildTail converts one tail surface, filling any field the query left
// out from the wing-derived defaults. A tail with no explicit fields and
// no wing to infer from is omitted; a tail whose area can neither be
// read nor inferred is omitted as well.
func (b *deckBuild) buildTail(component string, s, a, lambda, sweep *float64, areaFraction, defaultAR float64, vertical bool) {
	stage := "HTPLNF"
	if vertical {
		stage = "VTPLNF"
	}

	explicit := s != nil || a != nil || lambda != nil || sweep != nil
	if !explicit && b.wing == nil {
		return
	}
	if s == nil && b.wing == nil {
		slog.Warn("tail surface omitted, area not inferable without a wing", "stage", stage)
		return
	}

	var filled []string
	area := 0.0
	if s != nil {
		area = *s
	} else {
		area = areaFraction * b.wing.SREF
		filled = append(filled, fmt.Sprintf("S=%.2f (%.0f%% of wing area)", area, areaFraction*100))
	}
	ar := defaultAR
	if a != nil {
		ar = *a
	} else {
		filled = append(filled, fmt.Sprintf("A=%.1f", defaultAR))
	}
	taper := tailTaperRatio
	if lambda != nil {
		taper = *lambda
	} else {
		filled = append(filled, fmt.Sprintf("lambda=%.1f", tailTaperRatio))
	}
	sweepAngle := 0.0
	if sweep != nil {
		sweepAngle = *sweep
	} else {
		filled = append(filled, "sweep=0.0")
	}

	tail, err := datcom.ConvertTail(datcom.TailInput{
		Component:  component,
		S:          area,
		A:          ar,
		Lambda:     taper,
		SweepAngle: sweepAngle,
		IsVertical: vertical,
	})
	if err != nil {
		b.fail(stage, err)
		return
	}
	if vertical {
		b.vtail = tail
	} else {
		b.htail = tail
	}
	if len(filled) > 0 {
		b.inferred = append(b.inferred, fmt.Sprintf("%s: %s", stage, strings.Join(filled, ", ")))
	}
}

// surfaceReport pairs a planform block with its consistency check.
type surfaceReport struct {
	name   string
	report *datcom.Report
}

func (b *deckBuild) validateSurfaces() []surfaceReport {
	var reports []surfaceReport
	if b.wing != nil {
		reports = append(reports, surfaceReport{"WGPLNF", datcom.Validate(b.wing.Params())})
	}
	if b.htail != nil {
		reports = append(reports, surfaceReport{"HTPLNF", datcom.Validate(b.htail.Params())})
	}
	if b.vtail != nil {
		reports = append(reports, surfaceReport{"VTPLNF", datcom.Validate(b.vtail.Params())})
	}
	return reports
}

// render formats the deck and appends the diagnostics: stage failures
// first, then the inferred defaults, then the per-surface validation
// report. Validation never blocks the output.
func (b *deckBuild) render() string {
	deck := datcom.Deck{
		Header: b.headers,
		Fltcon: b.fltcon,
		Synths: b.synths,
		Body:   b.body,
		Wing:   b.wing,
		HTail:  b.htail,
		VTail:  b.vtail,
	}

	var sb strings.Builder
	sb.WriteString(deck.Format())

	if len(b.failures) > 0 {
		sb.WriteString("\n以下階段處理失敗，輸出為部分結果:\n")
		for _, failure := range b.failures {
			sb.WriteString("- " + failure + "\n")
		}
	}
	if len(b.inferred) > 0 {
		sb.WriteString("\n推斷參數 (查詢未提供，使用慣用預設值):\n")
		for _, note := range b.inferred {
			sb.WriteString("- " + note + "\n")
		}
	}
	if reports := b.validateSurfaces(); len(reports) > 0 {
		sb.WriteString("\n參數驗證:\n")
		for _, sr := range reports {
			sb.WriteString(fmt.Sprintf("- %s: %s (%s)\n", sr.name, sr.report.Status, sr.report.Summary))
			for _, e := range sr.report.Errors {
				sb.WriteString("    error: " + e + "\n")
			}
			for _, w := range sr.report.Warnings {
				sb.WriteString("    warning: " + w + "\n")
			}
		}
	}
	return sb.String()
}

// runDatcomPipeline is the generation path: extract, gate, then the
// fixed stage sequence. Every deterministic failure becomes prose in the
// returned generation; the error is non-nil only when the context ends.
func runDatcomPipeline(ctx context.Context, llm llms.LLM, question string) (string, error) {
	params, err := extractParams(ctx, llm, question)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		slog.Warn("datcom parameter extraction failed", "error", err)
		return extractionClarification, nil
	}

	if missing := params.missingRequired(); len(missing) > 0 {
		slog.Info("datcom gate rejected query", "missing", missing)
		return fmt.Sprintf(gateClarification, strings.Join(missing, ", ")), nil
	}

	return assembleDeck(params).render(), nil
}

// provenance builds the leading comment cards of the deck. Comment cards
// are free-form but stay ASCII so the file passes through FORTRAN-era
// tooling untouched.
func provenance(params *DatcomParams) []string {
	wing := fmt.Sprintf("wing: S=%s A=%s lambda=%s sweep=%s",
		num(params.WingS), num(params.WingA), num(params.WingLambda), num(params.WingSweepAngle))
	flight := fmt.Sprintf("flight: mach=%s alt=%s alpha=%s",
		numList(params.MachNumbers), numList(params.Altitudes), numList(params.AlphaDegrees))
	return []string{"generated by aileron from user-supplied parameters", wing, flight}
}

func num(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func numList(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
