package calib

import (
	"encoding/binary"
	"hash"
	"math"
)

func mathFloat64bits(f float64) uint64 { return math.Float64bits(f) }

func writeUint64(h hash.Hash64, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

func writeInt(h hash.Hash64, v int) {
	writeUint64(h, uint64(int64(v)))
}
