/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"reflect"
	"sync"

	"github.com/suparena/docstore/storagemodels"
)

// PartitionKeyRegistry associates Go document types with the partition key path
// their collections are created with.

var (
	partitionKeyRegistry = make(map[reflect.Type]string)
	mu                   sync.RWMutex
)

// RegisterPartitionKeyPath associates a Go type T with a partition key path
// such as "/lastName". An invalid path is rejected.
func RegisterPartitionKeyPath[T any](path string) error {
	if err := storagemodels.ValidatePartitionKeyPath(path); err != nil {
		return err
	}
	t := typeOf[T]()

	mu.Lock()
	defer mu.Unlock()
	partitionKeyRegistry[t] = path
	return nil
}

// MustRegisterPartitionKeyPath is like RegisterPartitionKeyPath but panics on
// an invalid path. Intended for init functions.
func MustRegisterPartitionKeyPath[T any](path string) {
	if err := RegisterPartitionKeyPath[T](path); err != nil {
		panic(err)
	}
}

// GetPartitionKeyPath retrieves the partition key path for type T, if any.
func GetPartitionKeyPath[T any]() (string, bool) {
	t := typeOf[T]()

	mu.RLock()
	defer mu.RUnlock()
	p, ok := partitionKeyRegistry[t]
	return p, ok
}

// UnregisterPartitionKeyPath removes the registration for type T.
func UnregisterPartitionKeyPath[T any]() {
	t := typeOf[T]()

	mu.Lock()
	defer mu.Unlock()
	delete(partitionKeyRegistry, t)
}

// typeOf works for interface type parameters too, where reflect.TypeOf(zero) is nil.
func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
