// Package wire encodes map results in protobuf wire format.
//
// The message layout is:
//
//	1  request_id  string
//	2  status      varint (0 success, 1 failure)
//	3  error       string
//	4  extents     packed varint [nx, ny, nz]
//	5  origin      packed double [x, y, z]
//	6  resolution  double
//	7  occupancy   packed varint, row-major
//	8  distance    packed double, row-major
//	9  gradient    packed double, row-major, xyz interleaved
//	10 method      string
//	11 built_at    varint, unix nanoseconds
//
// Fields 7 to 9 are omitted on failure; field 9 is omitted when the build
// skipped the gradient.
package wire

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/tethermap/internal/mapping"
	"github.com/san-kum/tethermap/internal/sdf"
	"github.com/san-kum/tethermap/internal/voxel"
	"google.golang.org/protobuf/encoding/protowire"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	fieldRequestID protowire.Number = iota + 1
	fieldStatus
	fieldError
	fieldExtents
	fieldOrigin
	fieldResolution
	fieldOccupancy
	fieldDistance
	fieldGradient
	fieldMethod
	fieldBuiltAt
)

var ErrMalformed = errors.New("wire: malformed message")

// Message is the decoded form of an encoded result.
type Message struct {
	RequestID  string
	Status     mapping.Status
	Error      string
	Extents    [3]int
	Origin     [3]float64
	Resolution float64
	Occupancy  []int
	Distance   []float64
	Gradient   []float64
	Method     string
	BuiltAt    int64
}

// Cells is the number of cells described by the shape fields.
func (m *Message) Cells() int {
	return m.Extents[0] * m.Extents[1] * m.Extents[2]
}

func (m *Message) Region() voxel.Region {
	return voxel.Region{
		Origin:     r3.Vec{X: m.Origin[0], Y: m.Origin[1], Z: m.Origin[2]},
		Extents:    m.Extents,
		Resolution: m.Resolution,
	}
}

// Field rebuilds the distance field of a successful result.
func (m *Message) Field() (*sdf.Field, error) {
	region := m.Region()
	if err := region.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if m.Status != mapping.Success || m.Distance == nil || m.Occupancy == nil {
		return nil, fmt.Errorf("%w: message %q carries no field", ErrMalformed, m.RequestID)
	}

	occ := voxel.NewGrid[voxel.Occupancy](region)
	for i, c := range m.Occupancy {
		occ.Data()[i] = voxel.Occupancy(c)
	}
	dist := voxel.NewGrid[float64](region)
	copy(dist.Data(), m.Distance)
	return &sdf.Field{
		Grid:        dist,
		Occupancy:   occ,
		MaxDistance: math.Max(region.Diagonal(), region.Resolution),
	}, nil
}

func EncodeResult(res *mapping.Result) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldRequestID, protowire.BytesType)
	b = protowire.AppendString(b, res.RequestID)
	b = protowire.AppendTag(b, fieldStatus, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(res.Status))
	if res.Err != nil {
		b = protowire.AppendTag(b, fieldError, protowire.BytesType)
		b = protowire.AppendString(b, res.Err.Error())
	}

	r := res.Region
	b = appendPackedVarints(b, fieldExtents, []uint64{
		uint64(r.Extents[0]), uint64(r.Extents[1]), uint64(r.Extents[2]),
	})
	b = appendPackedDoubles(b, fieldOrigin, []float64{r.Origin.X, r.Origin.Y, r.Origin.Z})
	b = protowire.AppendTag(b, fieldResolution, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(r.Resolution))

	if res.OK() {
		occ := make([]uint64, res.Occupancy.Len())
		for i, c := range res.Occupancy.Data() {
			occ[i] = uint64(c)
		}
		b = appendPackedVarints(b, fieldOccupancy, occ)
		b = appendPackedDoubles(b, fieldDistance, res.SDF.Data())
		if res.Gradient != nil {
			b = appendPackedDoubles(b, fieldGradient, res.Gradient.Flatten())
		}
		b = protowire.AppendTag(b, fieldMethod, protowire.BytesType)
		b = protowire.AppendString(b, res.Method.String())
		b = protowire.AppendTag(b, fieldBuiltAt, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(res.BuiltAt.UnixNano()))
	}
	return b
}

func appendPackedVarints(b []byte, num protowire.Number, vs []uint64) []byte {
	var payload []byte
	for _, v := range vs {
		payload = protowire.AppendVarint(payload, v)
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, payload)
}

func appendPackedDoubles(b []byte, num protowire.Number, vs []float64) []byte {
	payload := make([]byte, 0, 8*len(vs))
	for _, v := range vs {
		payload = protowire.AppendFixed64(payload, math.Float64bits(v))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, payload)
}

// DecodeResult parses an encoded result. Unknown fields are skipped.
func DecodeResult(b []byte) (*Message, error) {
	m := &Message{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldRequestID && typ == protowire.BytesType:
			m.RequestID, n = protowire.ConsumeString(b)
		case num == fieldError && typ == protowire.BytesType:
			m.Error, n = protowire.ConsumeString(b)
		case num == fieldMethod && typ == protowire.BytesType:
			m.Method, n = protowire.ConsumeString(b)
		case num == fieldStatus && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			m.Status = mapping.Status(v)
		case num == fieldBuiltAt && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			m.BuiltAt = int64(v)
		case num == fieldResolution && typ == protowire.Fixed64Type:
			var v uint64
			v, n = protowire.ConsumeFixed64(b)
			m.Resolution = math.Float64frombits(v)
		case num == fieldExtents && typ == protowire.BytesType:
			var vs []int
			vs, n = consumePackedVarints(b)
			if n >= 0 && len(vs) != 3 {
				return nil, fmt.Errorf("%w: extents has %d values", ErrMalformed, len(vs))
			}
			if n >= 0 {
				m.Extents = [3]int{vs[0], vs[1], vs[2]}
			}
		case num == fieldOrigin && typ == protowire.BytesType:
			var vs []float64
			vs, n = consumePackedDoubles(b)
			if n >= 0 && len(vs) != 3 {
				return nil, fmt.Errorf("%w: origin has %d values", ErrMalformed, len(vs))
			}
			if n >= 0 {
				m.Origin = [3]float64{vs[0], vs[1], vs[2]}
			}
		case num == fieldOccupancy && typ == protowire.BytesType:
			m.Occupancy, n = consumePackedVarints(b)
		case num == fieldDistance && typ == protowire.BytesType:
			m.Distance, n = consumePackedDoubles(b)
		case num == fieldGradient && typ == protowire.BytesType:
			m.Gradient, n = consumePackedDoubles(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		b = b[n:]
	}

	if err := m.check(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Message) check() error {
	cells := m.Cells()
	if m.Occupancy != nil && len(m.Occupancy) != cells {
		return fmt.Errorf("%w: %d occupancy values for %d cells", ErrMalformed, len(m.Occupancy), cells)
	}
	if m.Distance != nil && len(m.Distance) != cells {
		return fmt.Errorf("%w: %d distances for %d cells", ErrMalformed, len(m.Distance), cells)
	}
	if m.Gradient != nil && len(m.Gradient) != 3*cells {
		return fmt.Errorf("%w: %d gradient values for %d cells", ErrMalformed, len(m.Gradient), cells)
	}
	return nil
}

func consumePackedVarints(b []byte) ([]int, int) {
	payload, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, n
	}
	out := []int{}
	for len(payload) > 0 {
		v, m := protowire.ConsumeVarint(payload)
		if m < 0 {
			return nil, m
		}
		out = append(out, int(v))
		payload = payload[m:]
	}
	return out, n
}

func consumePackedDoubles(b []byte) ([]float64, int) {
	payload, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, n
	}
	if len(payload)%8 != 0 {
		return nil, -1
	}
	out := make([]float64, 0, len(payload)/8)
	for len(payload) > 0 {
		v, m := protowire.ConsumeFixed64(payload)
		if m < 0 {
			return nil, m
		}
		out = append(out, math.Float64frombits(v))
		payload = payload[m:]
	}
	return out, n
}
