/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package sample

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/suparena/docstore/registry"
)

func TestFamilyJSONRoundTrip(t *testing.T) {
	for _, f := range Families() {
		t.Run(f.ID, func(t *testing.T) {
			data, err := json.Marshal(f)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}

			var props map[string]any
			if err := json.Unmarshal(data, &props); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if props["id"] != f.ID || props["lastName"] != f.LastName {
				t.Errorf("unexpected property names: %v", props)
			}

			var back Family
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if diff := cmp.Diff(f, back); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFreshCopies(t *testing.T) {
	a := Andersen()
	a.Children[0].Grade = 6

	if Andersen().Children[0].Grade != 5 {
		t.Error("Andersen() should return an independent copy")
	}
}

func TestPartitionKeyRegistered(t *testing.T) {
	path, ok := registry.GetPartitionKeyPath[Family]()
	if !ok || path != PartitionKeyPath {
		t.Errorf("Expected %s to be registered, got %q (ok=%v)", PartitionKeyPath, path, ok)
	}
}
