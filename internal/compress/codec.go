package compress

import (
	"math"

	coreerrors "github.com/agentmem/agentmem/internal/errors"
)

func compressVector(v []float32, tier Tier, accessFreq float64, lastAccessed int64) (*CompressedEntry, error) {
	if len(v) == 0 {
		return nil, coreerrors.ValidationError("cannot compress an empty vector", nil)
	}

	entry := &CompressedEntry{
		Tier:         tier,
		OriginalDim:  len(v),
		AccessFreq:   accessFreq,
		LastAccessed: lastAccessed,
	}

	switch tier {
	case TierNone:
		entry.Payload = encodeNone(v)
	case TierHalf:
		entry.Payload, entry.Scale = encodeHalf(v)
	case TierPQ8:
		entry.Payload, entry.Min, entry.Max = encodePQ(v, 8)
	case TierPQ4:
		entry.Payload, entry.Min, entry.Max = encodePQ(v, 4)
	case TierBinary:
		dim := truncatedDim(len(v))
		entry.TruncatedDim = dim
		entry.Payload, entry.Mean = encodeBinary(v[:dim])
	default:
		return nil, coreerrors.ValidationError("unknown compression tier", nil)
	}
	return entry, nil
}

func decompressEntry(e *CompressedEntry) []float32 {
	switch e.Tier {
	case TierHalf:
		return decodeHalf(e.Payload, e.Scale, e.OriginalDim)
	case TierPQ8:
		return decodePQ(e.Payload, e.Min, e.Max, 8, e.OriginalDim)
	case TierPQ4:
		return decodePQ(e.Payload, e.Min, e.Max, 4, e.OriginalDim)
	case TierBinary:
		return decodeBinary(e.Payload, e.Mean, e.TruncatedDim, e.OriginalDim)
	default:
		return decodeNone(e.Payload, e.OriginalDim)
	}
}

// none: raw float32 sequence, 4 bytes per component, little-endian.
func encodeNone(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		putFloat32(buf[i*4:], f)
	}
	return buf
}

func decodeNone(buf []byte, dim int) []float32 {
	out := make([]float32, dim)
	for i := 0; i < dim; i++ {
		out[i] = getFloat32(buf[i*4:])
	}
	return out
}

// half: single scale s=max|v_i|, int16 = round(v_i*32767/s).
func encodeHalf(v []float32) ([]byte, float64) {
	scale := 0.0
	for _, f := range v {
		a := math.Abs(float64(f))
		if a > scale {
			scale = a
		}
	}
	buf := make([]byte, 2*len(v))
	for i, f := range v {
		var q int16
		if scale > 0 {
			q = int16(math.Round(float64(f) * 32767 / scale))
		}
		putInt16(buf[i*2:], q)
	}
	return buf, scale
}

func decodeHalf(buf []byte, scale float64, dim int) []float32 {
	out := make([]float32, dim)
	for i := 0; i < dim; i++ {
		q := getInt16(buf[i*2:])
		out[i] = float32(float64(q) * scale / 32767)
	}
	return out
}

// pq8/pq4: scalar uniform quantization, header (min,max), bits bits/component.
func encodePQ(v []float32, bits int) ([]byte, float64, float64) {
	min, max := float64(v[0]), float64(v[0])
	for _, f := range v {
		fv := float64(f)
		if fv < min {
			min = fv
		}
		if fv > max {
			max = fv
		}
	}

	levels := float64((1 << uint(bits)) - 1)
	codes := make([]byte, len(v))
	for i, f := range v {
		codes[i] = quantize(float64(f), min, max, levels)
	}

	if bits == 8 {
		return codes, min, max
	}
	// pq4: pack two 4-bit values per byte, low nibble first.
	packed := make([]byte, (len(codes)+1)/2)
	for i, c := range codes {
		if i%2 == 0 {
			packed[i/2] = c & 0x0F
		} else {
			packed[i/2] |= (c & 0x0F) << 4
		}
	}
	return packed, min, max
}

func quantize(v, min, max, levels float64) byte {
	if max == min {
		return 0
	}
	q := math.Round((v - min) * levels / (max - min))
	if q < 0 {
		q = 0
	}
	if q > levels {
		q = levels
	}
	return byte(q)
}

func decodePQ(buf []byte, min, max float64, bits, dim int) []float32 {
	levels := float64((1 << uint(bits)) - 1)
	out := make([]float32, dim)

	if bits == 8 {
		for i := 0; i < dim; i++ {
			out[i] = float32(min + float64(buf[i])*(max-min)/levels)
		}
		return out
	}

	for i := 0; i < dim; i++ {
		byteIdx := i / 2
		var code byte
		if i%2 == 0 {
			code = buf[byteIdx] & 0x0F
		} else {
			code = (buf[byteIdx] >> 4) & 0x0F
		}
		out[i] = float32(min + float64(code)*(max-min)/levels)
	}
	return out
}

// binary: one bit per component encoding v>=mean; reconstructed to mean*1.1
// (bit set) or mean*0.9 (bit clear).
func encodeBinary(v []float32) ([]byte, float64) {
	sum := 0.0
	for _, f := range v {
		sum += float64(f)
	}
	mean := sum / float64(len(v))

	buf := make([]byte, (len(v)+7)/8)
	for i, f := range v {
		if float64(f) >= mean {
			buf[i/8] |= 1 << uint(i%8)
		}
	}
	return buf, mean
}

func decodeBinary(buf []byte, mean float64, truncatedDim, originalDim int) []float32 {
	out := make([]float32, originalDim)
	for i := 0; i < truncatedDim; i++ {
		bit := (buf[i/8] >> uint(i%8)) & 1
		if bit == 1 {
			out[i] = float32(mean * 1.1)
		} else {
			out[i] = float32(mean * 0.9)
		}
	}
	return out
}

func putFloat32(buf []byte, f float32) {
	bits := math.Float32bits(f)
	buf[0] = byte(bits)
	buf[1] = byte(bits >> 8)
	buf[2] = byte(bits >> 16)
	buf[3] = byte(bits >> 24)
}

func getFloat32(buf []byte) float32 {
	bits := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	return math.Float32frombits(bits)
}

func putInt16(buf []byte, v int16) {
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
}

func getInt16(buf []byte) int16 {
	return int16(uint16(buf[0]) | uint16(buf[1])<<8)
}
