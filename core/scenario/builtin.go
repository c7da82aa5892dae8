package scenario

import (
	"context"

	"cu-planner/core/sequence"
	"cu-planner/core/types"
)

// Compute-unit constants of the pairing verifier the built-in scenarios model
const (
	// MaxComputeUnits is the per-transaction compute ceiling
	MaxComputeUnits = 1_000_000

	// SecurityPadding is kept free in every transaction
	SecurityPadding = 2000
)

// ateLoopBits is the ATE loop count reversed, first element removed, -1 squared to 1
var ateLoopBits = []int{
	1, 0, 1, 0, 0, 1, 0, 1, 1, 0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0, 0, 0, 0, 0, 1, 0, 0, 1, 0, 0, 1,
	1, 1, 0, 0, 0, 0, 1, 0, 1, 0, 0, 1, 0, 1, 1, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0, 1, 0, 1, 0, 0, 0,
}

// cyclotomicExpBits drives the cyclotomic exponentiation by the curve parameter
var cyclotomicExpBits = []int{
	1, 0, 0, 0, -1, 0, 0, 0, 0, 1, 0, 1, 0, 0, 0, 0, 1, 0, 0, 1, 0, -1, 0, 1, 0, 1, 0, 1, 0, 0, 1, 0,
	0, 0, 1, 0, -1, 0, -1, 0, -1, 0, 1, 0, 1, 0, 0, -1, 0, 1, 0, 1, 0, -1, 0, 0, 1, 0, 1, 0, 0, 0, 1,
}

type builtinSource struct {
	name        string
	description string
	budget      types.Budget
	build       func(b *sequence.Builder)
}

// Name returns the scenario identifier
func (s *builtinSource) Name() string {
	return s.name
}

// Description explains what the scenario models
func (s *builtinSource) Description() string {
	return s.description
}

// Load builds the scenario
func (s *builtinSource) Load(ctx context.Context) (*types.Scenario, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := sequence.NewBuilder()
	s.build(b)
	built, err := b.Build()
	if err != nil {
		return nil, err
	}

	return &types.Scenario{
		Name:        s.name,
		Description: s.description,
		Source:      "builtin",
		Budget:      s.budget,
		Steps:       built.Steps,
		Checkpoints: built.Checkpoints,
	}, nil
}

// Builtins returns the built-in scenarios
func Builtins() []Source {
	return []Source{
		&builtinSource{
			name:        "miller-loop",
			description: "Miller loop with one step per field operation",
			budget: types.Budget{
				MaxUnits:        MaxComputeUnits,
				SecurityPadding: SecurityPadding,
				IdleUnits:       20000,
			},
			build: buildMillerLoop,
		},
		&builtinSource{
			name:        "miller-loop-rounds",
			description: "Miller loop split into fine-grained rounds under a 200k ceiling",
			budget: types.Budget{
				MaxUnits:        200_000,
				SecurityPadding: 5000,
				IdleUnits:       2000,
			},
			build: buildMillerLoopRounds,
		},
		&builtinSource{
			name:        "final-exponentiation",
			description: "Final exponentiation of the pairing result",
			budget: types.Budget{
				MaxUnits:        MaxComputeUnits,
				SecurityPadding: SecurityPadding,
				IdleUnits:       30000,
			},
			build: buildFinalExponentiation,
		},
		&builtinSource{
			name:        "prepare-inputs",
			description: "Public input preparation after a 70k setup transaction",
			budget: types.Budget{
				MaxUnits:        MaxComputeUnits,
				SecurityPadding: SecurityPadding,
				IdleUnits:       10000,
				StartUnits:      70000 - 10000,
			},
			build: buildPrepareInputs,
		},
	}
}

func buildMillerLoop(b *sequence.Builder) {
	b.DefineArm("square_in_place", 91923).
		DefineArm("doubling", 70000).
		DefineArm("adding", 90000).
		DefineArm("ell", 11677, 92056, 10550, 92091, 10147, 91988).
		DefineArm("mul_by_char", 18000)

	b.Loop("main", ateLoopBits, []sequence.LoopStep{
		{Arm: "square_in_place", When: sequence.NotFirst, Pad: true},
		{Arm: "doubling"},
		{Arm: "ell"},
		{Arm: "adding", When: sequence.BitSet, Pad: true},
		{Arm: "ell", When: sequence.BitSet, Pad: true},
	}).Checkpoint("main_loop_rounds")

	b.Emit("mul_by_char", "adding", "ell", "mul_by_char", "adding", "ell")
}

func buildMillerLoopRounds(b *sequence.Builder) {
	b.DefineArm("adding", 12673, 23173, 15199, 27102, 12907, 12661).
		DefineArm("doubling", 13078, 16767, 25817, 15379, 15070, 5567).
		DefineArm("ell", 8000, 8000, 90000, 8000, 8000, 90000, 8000, 8000, 90000).
		DefineArm("square_in_place", 90000).
		DefineArm("mul_by_char", 18000).
		DefineArm("skip", 0)

	b.Loop("main", ateLoopBits, []sequence.LoopStep{
		{Arm: "doubling"},
		{Arm: "ell"},
		{Arm: "square_in_place", When: sequence.NotFirst, Pad: true},
		{Arm: "adding", When: sequence.BitSet, Pad: true},
		{Arm: "ell", When: sequence.BitSet, Pad: true},
		{Arm: "skip"},
	}).Checkpoint("main_loop_rounds")

	b.Emit("mul_by_char", "adding", "ell", "mul_by_char", "adding", "ell")
}

func buildFinalExponentiation(b *sequence.Builder) {
	b.DefineArm("conjugate_swap", 1000).
		DefineArm("inverse", 28000, 30000, 11000, 22000, 21000, 3500, 80000, 25000).
		DefineArm("mul", 20000, 20000, 20000, 20000, 20000).
		DefineArm("frobenius", 18000, 18000, 18000).
		DefineArm("cyclotomic_square", 50000).
		DefineArm("exp_edge", 11000)

	exp := func(name string) {
		b.Emit("exp_edge")
		b.Loop(name, cyclotomicExpBits, []sequence.LoopStep{
			{Arm: "cyclotomic_square", When: sequence.NotFirst},
			{Arm: "mul", When: sequence.BitSet},
		})
		b.Emit("exp_edge")
	}

	b.Emit("conjugate_swap", "inverse", "conjugate_swap", "mul", "conjugate_swap", "frobenius", "mul", "conjugate_swap")
	exp("exp1")
	b.Emit("cyclotomic_square", "cyclotomic_square", "mul", "conjugate_swap")
	exp("exp2")
	b.Emit("cyclotomic_square")
	exp("exp3")
	b.Emit(
		"conjugate_swap", "mul", "conjugate_swap", "mul", "conjugate_swap", "mul", "conjugate_swap", "mul",
		"conjugate_swap", "frobenius", "mul", "conjugate_swap", "frobenius", "conjugate_swap", "mul",
		"frobenius", "conjugate_swap", "mul", "conjugate_swap",
	)
}

func buildPrepareInputs(b *sequence.Builder) {
	b.DefineArm("doubling", 13078, 16767, 25817, 15379, 15070, 5567, 15070).
		DefineArm("adding", 12673, 23173, 15199, 27102, 12907, 12661)

	b.Emit("doubling", "adding")
}
