/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/suparena/docstore/errors"
)

// maxExactInt is the largest integer magnitude a float64 holds exactly.
const maxExactInt = 1 << 53

// DecodeDocument decodes a JSON object. Numbers decode to float64 like
// encoding/json does, except integers a float64 cannot hold exactly, which
// are kept as json.Number. A JSON null yields a nil Document.
func DecodeDocument(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.Malformed("unexpected data after JSON object")
	}
	if doc == nil {
		return nil, nil
	}
	return doc.MapScalars(func(v any) any {
		if n, ok := v.(json.Number); ok {
			return PreciseNumber(n)
		}
		return v
	}), nil
}

// PreciseNumber returns n as a float64 when that loses nothing, n otherwise.
func PreciseNumber(n json.Number) any {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil || i > maxExactInt || i < -maxExactInt {
			return n
		}
		return float64(i)
	}
	f, err := n.Float64()
	if err != nil {
		return n
	}
	return f
}

// MapScalars returns a deep copy of d with fn applied to every value that is
// not an object or an array.
func (d Document) MapScalars(fn func(any) any) Document {
	if d == nil {
		return nil
	}
	return Document(mapScalars(map[string]any(d), fn).(map[string]any))
}

func mapScalars(v any, fn func(any) any) any {
	switch tv := v.(type) {
	case Document:
		return Document(mapScalars(map[string]any(tv), fn).(map[string]any))
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, e := range tv {
			out[k] = mapScalars(e, fn)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = mapScalars(e, fn)
		}
		return out
	default:
		return fn(v)
	}
}
