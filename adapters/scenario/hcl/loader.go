// Package hcl loads scenario files written in HCL.
//
// A scenario file declares arms (named cost lists) and then, block by block in
// source order, the steps those arms contribute:
//
//	name = "miller-loop"
//
//	budget {
//	  max_units        = 1000000
//	  security_padding = 2000
//	  idle_units       = 20000
//	}
//
//	arm "doubling" { costs = [70000] }
//	arm "ell"      { costs = [11677, 92056] }
//
//	loop "main" {
//	  pattern = [1, 0, 1]
//	  step { arm = "doubling" }
//	  step {
//	    arm  = "ell"
//	    when = "bit_set"
//	    pad  = true
//	  }
//	}
//
//	checkpoint "main_loop_rounds" {}
//	emit { arms = ["doubling"] }
package hcl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"

	"cu-planner/core/scenario"
	"cu-planner/core/sequence"
	"cu-planner/core/types"
	"cu-planner/internal/errors"
)

// FileExtension is the extension of scenario files
const FileExtension = ".hcl"

var fileSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "name"},
		{Name: "description"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "budget"},
		{Type: "arm", LabelNames: []string{"name"}},
		{Type: "emit"},
		{Type: "pad"},
		{Type: "zero"},
		{Type: "loop", LabelNames: []string{"name"}},
		{Type: "checkpoint", LabelNames: []string{"name"}},
	},
}

var budgetSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "max_units"},
		{Name: "security_padding"},
		{Name: "idle_units"},
		{Name: "start_units"},
	},
}

var armSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{{Name: "costs", Required: true}},
}

var armsSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{{Name: "arms", Required: true}},
}

var zeroSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{{Name: "count", Required: true}},
}

var loopSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{{Name: "pattern", Required: true}},
	Blocks:     []hcl.BlockHeaderSchema{{Type: "step"}},
}

var stepSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "arm", Required: true},
		{Name: "when"},
		{Name: "pad"},
	},
}

// Loader parses scenario files
type Loader struct {
	defaults types.Budget
}

// NewLoader creates a loader. Budget fields a file leaves out come from defaults.
func NewLoader(defaults types.Budget) *Loader {
	return &Loader{defaults: defaults}
}

// LoadFile parses a scenario file from disk
func (l *Loader) LoadFile(path string) (*types.Scenario, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.TypeNotFound, err, "reading scenario file %s", path)
	}
	return l.Parse(src, path)
}

// Parse parses scenario source. filename is used for diagnostics and as the
// fallback scenario name.
func (l *Loader) Parse(src []byte, filename string) (*types.Scenario, error) {
	// hclparse caches by filename, so every parse gets a fresh parser
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, diagError(filename, diags)
	}

	content, diags := file.Body.Content(fileSchema)
	if diags.HasErrors() {
		return nil, diagError(filename, diags)
	}

	s := &types.Scenario{
		Name:   strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)),
		Source: filename,
		Budget: l.defaults,
	}

	if attr, ok := content.Attributes["name"]; ok {
		if s.Name, diags = stringAttr(attr); diags.HasErrors() {
			return nil, diagError(filename, diags)
		}
	}
	if attr, ok := content.Attributes["description"]; ok {
		if s.Description, diags = stringAttr(attr); diags.HasErrors() {
			return nil, diagError(filename, diags)
		}
	}

	b := sequence.NewBuilder()
	budgetSeen := false
	for _, block := range content.Blocks {
		var blockDiags hcl.Diagnostics
		switch block.Type {
		case "budget":
			if budgetSeen {
				blockDiags = blockError(block, "duplicate budget block")
				break
			}
			budgetSeen = true
			blockDiags = decodeBudget(block, &s.Budget)
		case "arm":
			blockDiags = decodeArm(block, b)
		case "emit":
			blockDiags = decodeArmList(block, b.Emit)
		case "pad":
			blockDiags = decodeArmList(block, b.Pad)
		case "zero":
			blockDiags = decodeZero(block, b)
		case "loop":
			blockDiags = decodeLoop(block, b)
		case "checkpoint":
			b.Checkpoint(block.Labels[0])
		}
		if blockDiags.HasErrors() {
			return nil, diagError(filename, blockDiags)
		}
	}

	built, err := b.Build()
	if err != nil {
		return nil, errors.Wrapf(errors.TypeParsing, err, "building scenario %s", filename)
	}
	s.Steps = built.Steps
	s.Checkpoints = built.Checkpoints
	return s, nil
}

func decodeBudget(block *hcl.Block, budget *types.Budget) hcl.Diagnostics {
	content, diags := block.Body.Content(budgetSchema)
	if diags.HasErrors() {
		return diags
	}

	fields := []struct {
		name   string
		target *int64
	}{
		{"max_units", &budget.MaxUnits},
		{"security_padding", &budget.SecurityPadding},
		{"idle_units", &budget.IdleUnits},
		{"start_units", &budget.StartUnits},
	}
	for _, field := range fields {
		attr, ok := content.Attributes[field.name]
		if !ok {
			continue
		}
		val, d := attr.Expr.Value(nil)
		if d.HasErrors() {
			return d
		}
		n, err := ctyInt64(field.name, val)
		if err != nil {
			return attrError(attr, err)
		}
		*field.target = n
	}
	return nil
}

func decodeArm(block *hcl.Block, b *sequence.Builder) hcl.Diagnostics {
	content, diags := block.Body.Content(armSchema)
	if diags.HasErrors() {
		return diags
	}

	attr := content.Attributes["costs"]
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return diags
	}
	costs, err := ctyInt64List("costs", val)
	if err != nil {
		return attrError(attr, err)
	}
	b.DefineArm(block.Labels[0], costs...)
	return nil
}

func decodeArmList(block *hcl.Block, emit func(arms ...string) *sequence.Builder) hcl.Diagnostics {
	content, diags := block.Body.Content(armsSchema)
	if diags.HasErrors() {
		return diags
	}

	attr := content.Attributes["arms"]
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return diags
	}
	arms, err := ctyStringList("arms", val)
	if err != nil {
		return attrError(attr, err)
	}
	emit(arms...)
	return nil
}

func decodeZero(block *hcl.Block, b *sequence.Builder) hcl.Diagnostics {
	content, diags := block.Body.Content(zeroSchema)
	if diags.HasErrors() {
		return diags
	}

	attr := content.Attributes["count"]
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return diags
	}
	n, err := ctyInt64("count", val)
	if err != nil {
		return attrError(attr, err)
	}
	b.Zero(int(n))
	return nil
}

func decodeLoop(block *hcl.Block, b *sequence.Builder) hcl.Diagnostics {
	content, diags := block.Body.Content(loopSchema)
	if diags.HasErrors() {
		return diags
	}

	patternAttr := content.Attributes["pattern"]
	val, diags := patternAttr.Expr.Value(nil)
	if diags.HasErrors() {
		return diags
	}
	pattern, err := ctyIntList("pattern", val)
	if err != nil {
		return attrError(patternAttr, err)
	}

	steps := make([]sequence.LoopStep, 0, len(content.Blocks))
	for _, stepBlock := range content.Blocks {
		step, d := decodeLoopStep(stepBlock)
		if d.HasErrors() {
			return d
		}
		steps = append(steps, step)
	}

	b.Loop(block.Labels[0], pattern, steps)
	return nil
}

func decodeLoopStep(block *hcl.Block) (sequence.LoopStep, hcl.Diagnostics) {
	var step sequence.LoopStep

	content, diags := block.Body.Content(stepSchema)
	if diags.HasErrors() {
		return step, diags
	}

	if step.Arm, diags = stringAttr(content.Attributes["arm"]); diags.HasErrors() {
		return step, diags
	}

	if attr, ok := content.Attributes["when"]; ok {
		when, d := stringAttr(attr)
		if d.HasErrors() {
			return step, d
		}
		cond, err := sequence.ParseCondition(when)
		if err != nil {
			return step, attrError(attr, err)
		}
		step.When = cond
	}

	if attr, ok := content.Attributes["pad"]; ok {
		val, d := attr.Expr.Value(nil)
		if d.HasErrors() {
			return step, d
		}
		pad, err := ctyBool("pad", val)
		if err != nil {
			return step, attrError(attr, err)
		}
		step.Pad = pad
	}

	return step, nil
}

func stringAttr(attr *hcl.Attribute) (string, hcl.Diagnostics) {
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return "", diags
	}
	s, err := ctyString(attr.Name, val)
	if err != nil {
		return "", attrError(attr, err)
	}
	return s, nil
}

func attrError(attr *hcl.Attribute, err error) hcl.Diagnostics {
	return hcl.Diagnostics{{
		Severity: hcl.DiagError,
		Summary:  "Invalid attribute value",
		Detail:   err.Error(),
		Subject:  attr.Expr.Range().Ptr(),
	}}
}

func blockError(block *hcl.Block, summary string) hcl.Diagnostics {
	return hcl.Diagnostics{{
		Severity: hcl.DiagError,
		Summary:  summary,
		Subject:  block.DefRange.Ptr(),
	}}
}

// diagError turns the first error diagnostic into a parsing error carrying file and line
func diagError(filename string, diags hcl.Diagnostics) error {
	for _, diag := range diags {
		if diag.Severity != hcl.DiagError {
			continue
		}
		line := 0
		if diag.Subject != nil {
			line = diag.Subject.Start.Line
		}
		msg := diag.Summary
		if diag.Detail != "" {
			msg += ": " + diag.Detail
		}
		return errors.Newf(errors.TypeParsing, "%s:%d: %s", filename, line, msg).
			WithContext("file", filename).
			WithContext("line", line)
	}
	return errors.Newf(errors.TypeParsing, "%s: %s", filename, diags.Error())
}

// FileSource exposes a scenario file as a registry source
type FileSource struct {
	path   string
	loader *Loader
}

// NewFileSource creates a source for a scenario file
func NewFileSource(path string, loader *Loader) *FileSource {
	return &FileSource{path: path, loader: loader}
}

// Name returns the file name without extension
func (f *FileSource) Name() string {
	return strings.TrimSuffix(filepath.Base(f.path), filepath.Ext(f.path))
}

// Description returns the file path
func (f *FileSource) Description() string {
	return fmt.Sprintf("scenario file %s", f.path)
}

// Load parses the file
func (f *FileSource) Load(ctx context.Context) (*types.Scenario, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.loader.LoadFile(f.path)
}

// RegisterDir registers every scenario file in dir and returns how many were added
func RegisterDir(registry scenario.Registry, dir string, loader *Loader) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+FileExtension))
	if err != nil {
		return 0, errors.Wrapf(errors.TypeInput, err, "listing scenario directory %s", dir)
	}

	added := 0
	for _, path := range matches {
		if err := registry.Register(NewFileSource(path, loader)); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// IsScenarioFile reports whether path looks like a scenario file
func IsScenarioFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), FileExtension)
}

var _ scenario.Source = (*FileSource)(nil)
