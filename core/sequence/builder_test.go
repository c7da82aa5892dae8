package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cu-planner/internal/errors"
)

func TestBuilderEmitAndPad(t *testing.T) {
	built, err := NewBuilder().
		DefineArm("mul", 20, 20).
		DefineArm("swap", 1).
		Emit("swap", "mul").
		Pad("mul").
		Zero(1).
		Build()
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 20, 20, 0, 0, 0}, built.Costs())
	assert.Equal(t, "swap[0]", built.Steps[0].Label)
	assert.Equal(t, "mul[1]", built.Steps[2].Label)
	assert.Equal(t, "pad:mul[0]", built.Steps[3].Label)
	assert.Equal(t, "zero", built.Steps[5].Label)
}

func TestBuilderLoopConditions(t *testing.T) {
	built, err := NewBuilder().
		DefineArm("square", 9).
		DefineArm("double", 5).
		DefineArm("add", 7, 7).
		Loop("main", []int{1, 0, -1}, []LoopStep{
			{Arm: "square", When: NotFirst, Pad: true},
			{Arm: "double"},
			{Arm: "add", When: BitSet, Pad: true},
		}).
		Checkpoint("main_loop").
		Build()
	require.NoError(t, err)

	expected := []int64{
		0, 5, 7, 7, // first iteration: square padded, bit set
		9, 5, 0, 0, // bit clear: add padded
		9, 5, 7, 7, // -1 counts as set
	}
	assert.Equal(t, expected, built.Costs())
	assert.Equal(t, "pad:main[0]/square[0]", built.Steps[0].Label)
	assert.Equal(t, "main[2]/add[1]", built.Steps[11].Label)
	require.Len(t, built.Checkpoints, 1)
	assert.Equal(t, 12, built.Checkpoints[0].Step)
}

func TestBuilderLoopWithoutPadding(t *testing.T) {
	built, err := NewBuilder().
		DefineArm("square", 50).
		DefineArm("mul", 20, 20).
		Loop("exp", []int{1, 0, 1}, []LoopStep{
			{Arm: "square", When: NotFirst},
			{Arm: "mul", When: BitSet},
		}).
		Build()
	require.NoError(t, err)

	assert.Equal(t, []int64{20, 20, 50, 50, 20, 20}, built.Costs())
}

func TestBuilderCollectsProblems(t *testing.T) {
	_, err := NewBuilder().
		DefineArm("a", 1).
		DefineArm("a", 2).
		DefineArm("neg", -4).
		DefineArm("empty").
		Emit("missing").
		Loop("l", []int{1}, nil).
		Checkpoint("x").
		Checkpoint("x").
		Build()

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeInput))
	for _, fragment := range []string{
		`arm "a" defined twice`,
		`negative cost -4`,
		`arm "empty" has no costs`,
		`unknown arm "missing"`,
		`loop "l" has no steps`,
		`checkpoint "x" recorded twice`,
	} {
		assert.Contains(t, err.Error(), fragment)
	}
}

func TestParseCondition(t *testing.T) {
	tests := []struct {
		in      string
		want    Condition
		wantErr bool
	}{
		{in: "", want: Always},
		{in: "always", want: Always},
		{in: "NOT_FIRST", want: NotFirst},
		{in: " bit_set ", want: BitSet},
		{in: "odd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCondition(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			roundTrip, err := ParseCondition(got.String())
			require.NoError(t, err)
			assert.Equal(t, got, roundTrip)
		})
	}
}
