package sim

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// ErrDecode is matched by every *DecodeError.
var ErrDecode = errors.New("malformed board document")

// DecodeError identifies the record of a saved document that could not be
// decoded. Record is a path such as "units[2].x" or "entangled_pairs[0]".
type DecodeError struct {
	Record string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s: %s: %v", e.Record, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode %s: %s", e.Record, e.Reason)
}

// Is makes errors.Is(err, ErrDecode) hold.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func decodeErr(record, reason string, err error) *DecodeError {
	return &DecodeError{Record: record, Reason: reason, Err: err}
}

// UnitRecord is one entity in a saved document.
type UnitRecord struct {
	ID      string  `json:"id"`
	Text    string  `json:"text"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Variant Variant `json:"superposition_symbol"`
}

// Document is the saved board. It carries no version field.
type Document struct {
	Units           []UnitRecord `json:"units"`
	AccumulatedTime float64      `json:"accumulated_time"`
	EntangledPairs  []Pair       `json:"entangled_pairs"`
	TimeDistortion  float64      `json:"time_distortion"`
}

// Decoded is a board staged for Store.replace.
type Decoded struct {
	Entities        []*Entity
	Graph           *EntanglementGraph
	AccumulatedTime float64
	TimeDistortion  float64
}

// Pairs returns the staged entanglement pairs.
func (d *Decoded) Pairs() []Pair {
	return d.Graph.IDs()
}

// Encode captures the store as a document. accumulatedTime is written as
// given so the caller can override the store's own total.
func Encode(s *Store, accumulatedTime float64) Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc := Document{
		Units:           make([]UnitRecord, len(s.entities)),
		AccumulatedTime: accumulatedTime,
		EntangledPairs:  s.graph.IDs(),
		TimeDistortion:  s.aggregate,
	}
	for i, e := range s.entities {
		doc.Units[i] = UnitRecord{
			ID:      e.ID,
			Text:    e.Text,
			X:       e.Position.X,
			Y:       e.Position.Y,
			Variant: e.Variant,
		}
	}
	return doc
}

// MarshalDocument renders doc as indented JSON with glyphs left unescaped.
func MarshalDocument(doc Document) ([]byte, error) {
	if doc.Units == nil {
		doc.Units = []UnitRecord{}
	}
	if doc.EntangledPairs == nil {
		doc.EntangledPairs = []Pair{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding board document: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeDocument validates an in-memory document through the same path as
// raw JSON.
func DecodeDocument(doc Document) (*Decoded, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, decodeErr("document", "cannot be serialized", err)
	}
	return Decode(data)
}

// Decode parses a saved document into a staging board. Missing ids are
// generated, a missing variant defaults to neutral, and missing pairs or
// times default to empty and zero. Any type mismatch or missing required
// field yields a *DecodeError naming the record.
func Decode(data []byte) (*Decoded, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, decodeErr("document", "expected a JSON object", err)
	}
	if top == nil {
		return nil, decodeErr("document", "expected a JSON object", nil)
	}

	d := &Decoded{Graph: NewEntanglementGraph()}

	if raw, ok := field(top, "units"); ok {
		var units []json.RawMessage
		if err := json.Unmarshal(raw, &units); err != nil {
			return nil, decodeErr("units", "expected an array", err)
		}
		seen := make(map[string]bool, len(units))
		for i, u := range units {
			record := fmt.Sprintf("units[%d]", i)
			e, err := decodeUnit(record, u)
			if err != nil {
				return nil, err
			}
			if seen[e.ID] {
				return nil, decodeErr(record+".id", fmt.Sprintf("duplicate id %q", e.ID), nil)
			}
			seen[e.ID] = true
			d.Entities = append(d.Entities, e)
		}
	}

	var err error
	if d.AccumulatedTime, err = optionalNumber(top, "accumulated_time"); err != nil {
		return nil, err
	}
	if d.TimeDistortion, err = optionalNumber(top, "time_distortion"); err != nil {
		return nil, err
	}

	if raw, ok := field(top, "entangled_pairs"); ok {
		var pairs []json.RawMessage
		if err := json.Unmarshal(raw, &pairs); err != nil {
			return nil, decodeErr("entangled_pairs", "expected an array", err)
		}
		for i, p := range pairs {
			record := fmt.Sprintf("entangled_pairs[%d]", i)
			var ids []string
			if err := json.Unmarshal(p, &ids); err != nil {
				return nil, decodeErr(record, "expected an array of two ids", err)
			}
			if len(ids) != 2 {
				return nil, decodeErr(record, fmt.Sprintf("expected 2 ids, got %d", len(ids)), nil)
			}
			if ids[0] == ids[1] {
				return nil, decodeErr(record, "pairs an id with itself", nil)
			}
			// Pairs may name ids absent from units; they stay inert.
			d.Graph.add(ids[0], ids[1])
		}
	}

	return d, nil
}

func decodeUnit(record string, raw json.RawMessage) (*Entity, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, decodeErr(record, "expected an object", err)
	}

	e := &Entity{Variant: VariantNeutral}

	textRaw, ok := field(obj, "text")
	if !ok {
		return nil, decodeErr(record+".text", "missing", nil)
	}
	if err := json.Unmarshal(textRaw, &e.Text); err != nil {
		return nil, decodeErr(record+".text", "expected a string", err)
	}

	var err error
	if e.Position.X, err = requiredNumber(obj, record, "x"); err != nil {
		return nil, err
	}
	if e.Position.Y, err = requiredNumber(obj, record, "y"); err != nil {
		return nil, err
	}

	if idRaw, ok := field(obj, "id"); ok {
		if err := json.Unmarshal(idRaw, &e.ID); err != nil {
			return nil, decodeErr(record+".id", "expected a string", err)
		}
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	if symRaw, ok := field(obj, "superposition_symbol"); ok {
		var sym string
		if err := json.Unmarshal(symRaw, &sym); err != nil {
			return nil, decodeErr(record+".superposition_symbol", "expected a string", err)
		}
		if sym == "" {
			return e, nil
		}
		if !Variant(sym).IsValid() {
			return nil, decodeErr(record+".superposition_symbol",
				fmt.Sprintf("unknown symbol %q; valid: +, *, ~", sym), nil)
		}
		e.Variant = Variant(sym)
	}

	return e, nil
}

// field returns obj[key], treating an explicit null as absent.
func field(obj map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := obj[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}

func requiredNumber(obj map[string]json.RawMessage, record, key string) (float64, error) {
	raw, ok := field(obj, key)
	if !ok {
		return 0, decodeErr(record+"."+key, "missing", nil)
	}
	return number(record+"."+key, raw)
}

func optionalNumber(obj map[string]json.RawMessage, key string) (float64, error) {
	raw, ok := field(obj, key)
	if !ok {
		return 0, nil
	}
	return number(key, raw)
}

func number(record string, raw json.RawMessage) (float64, error) {
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, decodeErr(record, "expected a number", err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, decodeErr(record, "must be finite", nil)
	}
	return v, nil
}
