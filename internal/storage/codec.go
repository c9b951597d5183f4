package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"snakedqn/internal/nn"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// VersionedRecord tags persisted payloads
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// ModelRecord is the JSON document written by the file store
type ModelRecord struct {
	VersionedRecord
	Key    string    `json:"key"`
	Params nn.Params `json:"params"`
}

func EncodeModelJSON(key string, p nn.Params) ([]byte, error) {
	return json.MarshalIndent(ModelRecord{
		VersionedRecord: currentVersion(),
		Key:             key,
		Params:          p,
	}, "", "  ")
}

func DecodeModelJSON(data []byte) (ModelRecord, error) {
	var rec ModelRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return ModelRecord{}, err
	}
	if err := checkVersion(rec.VersionedRecord); err != nil {
		return ModelRecord{}, err
	}
	if err := rec.Params.Validate(); err != nil {
		return ModelRecord{}, err
	}
	return rec, nil
}

// Wire field numbers of the binary params encoding
const (
	fieldSchemaVersion protowire.Number = 1
	fieldCodecVersion  protowire.Number = 2
	fieldSizes         protowire.Number = 3
	fieldLayer         protowire.Number = 4

	fieldLayerWeights protowire.Number = 1
	fieldLayerBias    protowire.Number = 2
)

// EncodeParams writes p in protobuf wire format: versions, packed sizes and
// one embedded message per layer with packed doubles.
func EncodeParams(p nn.Params) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var b []byte
	b = protowire.AppendTag(b, fieldSchemaVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, CurrentSchemaVersion)
	b = protowire.AppendTag(b, fieldCodecVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, CurrentCodecVersion)

	var sizes []byte
	for _, s := range p.Sizes {
		sizes = protowire.AppendVarint(sizes, uint64(s))
	}
	b = protowire.AppendTag(b, fieldSizes, protowire.BytesType)
	b = protowire.AppendBytes(b, sizes)

	for _, l := range p.Layers {
		var layer []byte
		layer = protowire.AppendTag(layer, fieldLayerWeights, protowire.BytesType)
		layer = protowire.AppendBytes(layer, packDoubles(l.Weights))
		layer = protowire.AppendTag(layer, fieldLayerBias, protowire.BytesType)
		layer = protowire.AppendBytes(layer, packDoubles(l.Bias))

		b = protowire.AppendTag(b, fieldLayer, protowire.BytesType)
		b = protowire.AppendBytes(b, layer)
	}
	return b, nil
}

// DecodeParams reads the output of EncodeParams. Unknown fields are skipped.
func DecodeParams(data []byte) (nn.Params, error) {
	var (
		p   nn.Params
		rec VersionedRecord
	)
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nn.Params{}, protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == fieldSchemaVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nn.Params{}, protowire.ParseError(n)
			}
			rec.SchemaVersion = int(v)
			data = data[n:]
		case num == fieldCodecVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nn.Params{}, protowire.ParseError(n)
			}
			rec.CodecVersion = int(v)
			data = data[n:]
		case num == fieldSizes && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nn.Params{}, protowire.ParseError(n)
			}
			for len(packed) > 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return nn.Params{}, protowire.ParseError(m)
				}
				p.Sizes = append(p.Sizes, int(v))
				packed = packed[m:]
			}
			data = data[n:]
		case num == fieldLayer && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nn.Params{}, protowire.ParseError(n)
			}
			layer, err := decodeLayer(raw)
			if err != nil {
				return nn.Params{}, fmt.Errorf("layer %d: %w", len(p.Layers), err)
			}
			p.Layers = append(p.Layers, layer)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nn.Params{}, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}

	if err := checkVersion(rec); err != nil {
		return nn.Params{}, err
	}
	if err := p.Validate(); err != nil {
		return nn.Params{}, err
	}
	return p, nil
}

func decodeLayer(data []byte) (nn.LayerParams, error) {
	var l nn.LayerParams
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return l, protowire.ParseError(n)
		}
		data = data[n:]
		if typ != protowire.BytesType || (num != fieldLayerWeights && num != fieldLayerBias) {
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return l, protowire.ParseError(n)
			}
			data = data[n:]
			continue
		}
		packed, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return l, protowire.ParseError(n)
		}
		vals, err := unpackDoubles(packed)
		if err != nil {
			return l, err
		}
		if num == fieldLayerWeights {
			l.Weights = vals
		} else {
			l.Bias = vals
		}
		data = data[n:]
	}
	return l, nil
}

func packDoubles(vals []float64) []byte {
	b := make([]byte, 0, 8*len(vals))
	for _, v := range vals {
		b = protowire.AppendFixed64(b, math.Float64bits(v))
	}
	return b
}

func unpackDoubles(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("packed doubles length %d is not a multiple of 8", len(b))
	}
	vals := make([]float64, 0, len(b)/8)
	for len(b) > 0 {
		v, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		vals = append(vals, math.Float64frombits(v))
		b = b[n:]
	}
	return vals, nil
}

func currentVersion() VersionedRecord {
	return VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func checkVersion(v VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return fmt.Errorf("%w: got schema=%d codec=%d want schema=%d codec=%d",
			ErrVersionMismatch, v.SchemaVersion, v.CodecVersion, CurrentSchemaVersion, CurrentCodecVersion)
	}
	return nil
}
