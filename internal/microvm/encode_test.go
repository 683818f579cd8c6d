package microvm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleProgram() []Instruction {
	return []Instruction{
		{Op: uint8(OpPushInt), Operand: 2147483640},
		{Op: uint8(OpPushInt), Operand: 10},
		{Op: uint8(OpIAdd)},
		{Op: uint8(OpHalt)},
	}
}

func TestEncodeDecodeRoundTrips(t *testing.T) {
	plain := sampleProgram()
	encoded := make([]Instruction, len(plain))
	copy(encoded, plain)

	EncodeProgram(encoded, 0xDEADBEEF)
	require.NotEqual(t, plain, encoded)

	DecodeProgram(encoded, 0xDEADBEEF)
	require.Equal(t, plain, encoded)
}

func TestEncodeIsNotIdentityForNonzeroInstructions(t *testing.T) {
	plain := sampleProgram()
	encoded := make([]Instruction, len(plain))
	copy(encoded, plain)
	EncodeProgram(encoded, 1)

	for i := range plain {
		if plain[i].Op != 0 || plain[i].Operand != 0 {
			require.NotEqual(t, plain[i], encoded[i])
		}
	}
}

func TestDecodeAllMatchesPerStepDecode(t *testing.T) {
	plain := sampleProgram()
	encoded := make([]Instruction, len(plain))
	copy(encoded, plain)
	EncodeProgram(encoded, 777)

	all := DecodeAll(encoded, 777)
	for i, ins := range encoded {
		require.Equal(t, all[i], decodeStep(ins, i, 777))
	}
}

func TestDifferentSeedsProduceDifferentEncodings(t *testing.T) {
	a := sampleProgram()
	b := sampleProgram()
	EncodeProgram(a, 1)
	EncodeProgram(b, 2)
	require.NotEqual(t, a, b)
}
