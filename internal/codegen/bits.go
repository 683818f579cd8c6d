package codegen

import "math"

func float32Bits(f float32) uint32 { return math.Float32bits(f) }

func float64Bits(f float64) uint64 { return math.Float64bits(f) }
