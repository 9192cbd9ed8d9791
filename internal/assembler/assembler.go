// Package assembler combines the backoff selector's template match, the
// optional model proposal, and the quality filter's verdicts into a
// node's final note payload and diagnostic trace.
package assembler

import (
	"context"
	"errors"
	"hash/fnv"
	"time"

	"github.com/starford/ansuz/internal/quality"
	"github.com/starford/ansuz/internal/registry"
	"github.com/starford/ansuz/internal/selector"
	"github.com/starford/ansuz/internal/tree"
)

// NoteMode selects how note text is produced.
type NoteMode string

const (
	// TemplateOnly renders notes from rule templates; no model call.
	TemplateOnly NoteMode = "template_only"
	// Model lets the model propose free text directly.
	Model NoteMode = "model"
	// TwoStage has the model predict a template id and the rule engine
	// render the text. An L1/L2 rule match short-circuits the model call.
	TwoStage NoteMode = "two_stage"
)

// Valid reports whether m is a known mode.
func (m NoteMode) Valid() bool {
	switch m {
	case TemplateOnly, Model, TwoStage:
		return true
	}
	return false
}

// Reason codes. Exactly one terminal code ends every node's reason list.
const (
	CodeRuleL1Match       = "RULE_L1_MATCH"
	CodeRuleL2Match       = "RULE_L2_MATCH"
	CodeRuleBackoffMatch  = "RULE_BACKOFF_MATCH"
	CodeNoTemplateMatch   = "NO_TEMPLATE_MATCH"
	CodeModelSkipped      = "MODEL_SKIPPED_RULE_PRIORITY"
	CodeModelUnavailable  = "MODEL_UNAVAILABLE"
	CodeModelTimeout      = "MODEL_TIMEOUT"
	CodeModelError        = "MODEL_ERROR"
	CodeModelRejected     = "MODEL_NOTE_REJECTED"
	CodeUnknownTemplateID = "MODEL_TEMPLATE_ID_UNKNOWN"

	CodeTemplateAccepted = "TEMPLATE_NOTE_ACCEPTED"
	CodeModelAccepted    = "MODEL_NOTE_ACCEPTED"
	CodeFallbackAccepted = "FALLBACK_NOTE_ACCEPTED"
)

// TerminalCodes is the closed set of terminal reason codes.
var TerminalCodes = map[string]struct{}{
	CodeTemplateAccepted: {},
	CodeModelAccepted:    {},
	CodeFallbackAccepted: {},
}

// Quality flags describing which path produced the accepted note.
const (
	FlagModelUsed    = "model_used"
	FlagRuleUsed     = "rule_used"
	FlagFallbackUsed = "fallback_used"
)

// ModelRequest is the node context handed to the external model.
type ModelRequest struct {
	Family       tree.NodeType
	Content      string
	PartOfSpeech string
	DepLabel     string
	ContextKey   string
	// WantTemplateID asks the model for a template id instead of text.
	WantTemplateID bool
}

// ModelResponse carries either free note text or a predicted template id.
type ModelResponse struct {
	Text       string
	TemplateID string
}

// ModelClient is the external note-generation model. It may be slow or
// absent; the assembler treats both as "no candidate".
type ModelClient interface {
	Generate(ctx context.Context, req ModelRequest) (ModelResponse, error)
}

// Confidence assigned by provenance.
const (
	ruleConfidence     = 1.0
	modelConfidence    = 0.75
	fallbackConfidence = 1.0
)

// Assembler enriches nodes with notes. Safe for concurrent use across
// nodes: it holds only immutable configuration.
type Assembler struct {
	filter  *quality.Filter
	model   ModelClient
	timeout time.Duration
}

// New creates an Assembler. model may be nil; the assembler then degrades
// to the template/fallback path in model-dependent modes.
func New(filter *quality.Filter, model ModelClient, timeout time.Duration) *Assembler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Assembler{filter: filter, model: model, timeout: timeout}
}

// Enrich runs the full per-node flow: backoff selection, candidate
// production per mode, quality filtering, and payload assembly. It never
// fails; every degradation lands on the guaranteed fallback note.
func (a *Assembler) Enrich(ctx context.Context, n *tree.Node, snap *registry.Snapshot, mode NoteMode) {
	sel := selector.Select(n, snap)
	trace := sel.Trace()
	nc := quality.ContextFor(n)
	stats := quality.NewStatsCollector()
	var codes []string

	note, codes, selMode := a.produce(ctx, n, snap, sel, nc, stats, codes, mode)
	trace.SelectionMode = selMode

	n.Notes = []tree.TypedNote{note}
	n.LinguisticNotes = []string{note.Text}
	n.TemplateSelection = &trace
	n.ReasonCodes = codes
	n.RejectedCandidates = stats.Rejected()
	n.RejectedCandidateStats = stats.Stats()

	n.BackoffUsed = trace.Level != tree.LevelExact
	if n.BackoffUsed {
		n.AddQualityFlag(tree.QualityFlagBackoff)
	}
	switch note.Source {
	case tree.SourceModel:
		n.AddQualityFlag(FlagModelUsed)
	case tree.SourceRule:
		n.AddQualityFlag(FlagRuleUsed)
	case tree.SourceFallback:
		n.AddQualityFlag(FlagFallbackUsed)
	}
}

// produce walks the mode-specific candidate chain and returns the
// accepted note, the reason codes ending in the terminal code, and the
// selection mode for the trace.
func (a *Assembler) produce(ctx context.Context, n *tree.Node, snap *registry.Snapshot, sel selector.Result, nc quality.NodeContext, stats *quality.StatsCollector, codes []string, mode NoteMode) (tree.TypedNote, []string, tree.SelectionMode) {
	switch mode {
	case Model:
		return a.produceModel(ctx, n, sel, nc, stats, codes)
	case TwoStage:
		return a.produceTwoStage(ctx, n, snap, sel, nc, stats, codes)
	default:
		return a.produceTemplate(n, sel, nc, stats, codes)
	}
}

func (a *Assembler) produceTemplate(n *tree.Node, sel selector.Result, nc quality.NodeContext, stats *quality.StatsCollector, codes []string) (tree.TypedNote, []string, tree.SelectionMode) {
	mode := ruleSelectionMode(sel.Level)
	if sel.Entry == nil {
		codes = append(codes, CodeNoTemplateMatch)
		return quality.FallbackNote(nc), append(codes, CodeFallbackAccepted), mode
	}
	codes = append(codes, ruleMatchCode(sel.Level))
	if text, ok := a.renderVariant(n, sel.Entry, nc, stats); ok {
		note := tree.TypedNote{Text: text, Kind: noteKind(n), Confidence: ruleConfidence, Source: tree.SourceRule}
		return note, append(codes, CodeTemplateAccepted), mode
	}
	return quality.FallbackNote(nc), append(codes, CodeFallbackAccepted), mode
}

func (a *Assembler) produceModel(ctx context.Context, n *tree.Node, sel selector.Result, nc quality.NodeContext, stats *quality.StatsCollector, codes []string) (tree.TypedNote, []string, tree.SelectionMode) {
	resp, code := a.callModel(ctx, n, sel, false)
	if code != "" {
		codes = append(codes, code)
	}
	if code == "" {
		v := a.filter.Check(resp.Text, nc)
		if v.Accepted {
			note := tree.TypedNote{Text: v.Canonical, Kind: noteKind(n), Confidence: modelConfidence, Source: tree.SourceModel}
			return note, append(codes, CodeModelAccepted), tree.ModeModel
		}
		stats.Record(v.Canonical, v.NormKey, v.Reason)
		codes = append(codes, CodeModelRejected)
	}

	// Model gave nothing usable; fall through to rule templates.
	if sel.Entry != nil {
		if text, ok := a.renderVariant(n, sel.Entry, nc, stats); ok {
			codes = append(codes, ruleMatchCode(sel.Level))
			note := tree.TypedNote{Text: text, Kind: noteKind(n), Confidence: ruleConfidence, Source: tree.SourceRule}
			return note, append(codes, CodeTemplateAccepted), tree.ModeModel
		}
	} else {
		codes = append(codes, CodeNoTemplateMatch)
	}
	return quality.FallbackNote(nc), append(codes, CodeFallbackAccepted), tree.ModeModel
}

func (a *Assembler) produceTwoStage(ctx context.Context, n *tree.Node, snap *registry.Snapshot, sel selector.Result, nc quality.NodeContext, stats *quality.StatsCollector, codes []string) (tree.TypedNote, []string, tree.SelectionMode) {
	// Rule priority: an L1/L2 match renders directly and skips the model
	// call, avoiding spurious rejection noise and the call latency.
	if sel.Entry != nil && (sel.Level == tree.LevelExact || sel.Level == tree.LevelDropTAM) {
		codes = append(codes, ruleMatchCode(sel.Level), CodeModelSkipped)
		if text, ok := a.renderVariant(n, sel.Entry, nc, stats); ok {
			note := tree.TypedNote{Text: text, Kind: noteKind(n), Confidence: ruleConfidence, Source: tree.SourceRule}
			return note, append(codes, CodeTemplateAccepted), ruleSelectionMode(sel.Level)
		}
		return quality.FallbackNote(nc), append(codes, CodeFallbackAccepted), ruleSelectionMode(sel.Level)
	}

	resp, code := a.callModel(ctx, n, sel, true)
	if code != "" {
		codes = append(codes, code)
	}
	if code == "" {
		entry, ok := snap.ByID(resp.TemplateID)
		if !ok {
			codes = append(codes, CodeUnknownTemplateID)
		} else if text, rendered := a.renderVariant(n, &entry, nc, stats); rendered {
			note := tree.TypedNote{Text: text, Kind: noteKind(n), Confidence: modelConfidence, Source: tree.SourceRule}
			n.AddQualityFlag(FlagModelUsed)
			return note, append(codes, CodeTemplateAccepted), tree.ModeTwoStage
		}
	}

	// Model id unusable; fall back to whatever the backoff search found.
	if sel.Entry != nil {
		codes = append(codes, ruleMatchCode(sel.Level))
		if text, ok := a.renderVariant(n, sel.Entry, nc, stats); ok {
			note := tree.TypedNote{Text: text, Kind: noteKind(n), Confidence: ruleConfidence, Source: tree.SourceRule}
			return note, append(codes, CodeTemplateAccepted), tree.ModeTwoStage
		}
	} else {
		codes = append(codes, CodeNoTemplateMatch)
	}
	return quality.FallbackNote(nc), append(codes, CodeFallbackAccepted), tree.ModeTwoStage
}

// callModel invokes the external model under the configured timeout.
// The returned code is "" on success, otherwise the degradation reason.
func (a *Assembler) callModel(ctx context.Context, n *tree.Node, sel selector.Result, wantID bool) (ModelResponse, string) {
	if a.model == nil {
		return ModelResponse{}, CodeModelUnavailable
	}
	cctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	resp, err := a.model.Generate(cctx, ModelRequest{
		Family:         n.Type,
		Content:        n.Content,
		PartOfSpeech:   n.PartOfSpeech,
		DepLabel:       n.DepLabel,
		ContextKey:     sel.Keys.L1,
		WantTemplateID: wantID,
	})
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ModelResponse{}, CodeModelTimeout
	case err != nil:
		return ModelResponse{}, CodeModelError
	}
	return resp, ""
}

// renderVariant picks a deterministic starting variant and returns the
// first one that passes the filter. Rejections are recorded in stats.
func (a *Assembler) renderVariant(n *tree.Node, entry *registry.TemplateEntry, nc quality.NodeContext, stats *quality.StatsCollector) (string, bool) {
	if len(entry.Variants) == 0 {
		return "", false
	}
	start := variantIndex(n, entry)
	for i := 0; i < len(entry.Variants); i++ {
		candidate := entry.Variants[(start+i)%len(entry.Variants)]
		v := a.filter.Check(candidate, nc)
		if v.Accepted {
			return v.Canonical, true
		}
		stats.Record(v.Canonical, v.NormKey, v.Reason)
	}
	return "", false
}

// variantIndex derives a stable variant offset from the node content and
// template id, so identical inputs always render the same variant.
func variantIndex(n *tree.Node, entry *registry.TemplateEntry) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(n.Content))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(entry.TemplateID))
	return int(h.Sum32() % uint32(len(entry.Variants)))
}

func ruleMatchCode(level tree.SelectionLevel) string {
	switch level {
	case tree.LevelExact:
		return CodeRuleL1Match
	case tree.LevelDropTAM:
		return CodeRuleL2Match
	default:
		return CodeRuleBackoffMatch
	}
}

func ruleSelectionMode(level tree.SelectionLevel) tree.SelectionMode {
	switch level {
	case tree.LevelExact:
		return tree.ModeRuleL1
	case tree.LevelDropTAM:
		return tree.ModeRuleL2
	default:
		return tree.ModeRuleBackoff
	}
}

// noteKind classifies the note by node family: word-level notes explain
// morphology, everything above explains syntax.
func noteKind(n *tree.Node) tree.NoteKind {
	if n.Type == tree.Word {
		return tree.KindMorphological
	}
	return tree.KindSyntactic
}
