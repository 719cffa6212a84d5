/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"fmt"
	"strings"

	"github.com/suparena/docstore/errors"
)

// Path addresses a database, collection or document in the store:
//
//	/databases/{db}
//	/databases/{db}/collections/{coll}
//	/databases/{db}/collections/{coll}/documents/{id}
type Path string

// PathKind is the resource level a Path addresses.
type PathKind int

const (
	PathInvalid PathKind = iota
	PathDatabase
	PathCollection
	PathDocument
)

func (k PathKind) String() string {
	switch k {
	case PathDatabase:
		return "database"
	case PathCollection:
		return "collection"
	case PathDocument:
		return "document"
	}
	return "invalid"
}

const (
	databasesSegment   = "databases"
	collectionsSegment = "collections"
	documentsSegment   = "documents"
)

// Characters that cannot appear in a resource name.
const reservedNameChars = "/\\?#"

func DatabasePath(db string) Path {
	return Path("/" + databasesSegment + "/" + db)
}

func CollectionPath(db, coll string) Path {
	return Path(string(DatabasePath(db)) + "/" + collectionsSegment + "/" + coll)
}

func DocumentPath(db, coll, id string) Path {
	return Path(string(CollectionPath(db, coll)) + "/" + documentsSegment + "/" + id)
}

// ParsePath parses and validates s.
func ParsePath(s string) (Path, error) {
	p := Path(s)
	if err := p.Validate(); err != nil {
		return "", err
	}
	return p, nil
}

// ValidateName checks a database, collection or document name.
func ValidateName(field, name string) error {
	if name == "" {
		return errors.NewValidationError(field, "must not be empty")
	}
	if strings.ContainsAny(name, reservedNameChars) {
		return errors.NewValidationError(field, fmt.Sprintf("%q contains one of %q", name, reservedNameChars))
	}
	if strings.TrimSpace(name) != name {
		return errors.NewValidationError(field, fmt.Sprintf("%q has leading or trailing whitespace", name))
	}
	return nil
}

func (p Path) String() string {
	return string(p)
}

// Kind returns the resource level of p, or PathInvalid if p is malformed.
func (p Path) Kind() PathKind {
	segs, ok := p.segments()
	if !ok {
		return PathInvalid
	}
	switch len(segs) {
	case 2:
		return PathDatabase
	case 4:
		return PathCollection
	case 6:
		return PathDocument
	}
	return PathInvalid
}

// Validate reports a ValidationError for a malformed path.
func (p Path) Validate() error {
	segs, ok := p.segments()
	if !ok || p.Kind() == PathInvalid {
		return errors.NewValidationError("path", fmt.Sprintf("malformed resource path %q", string(p)))
	}
	names := []string{"database", "collection", "document id"}
	for i := 1; i < len(segs); i += 2 {
		if err := ValidateName(names[i/2], segs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (p Path) Database() string {
	return p.segment(1)
}

func (p Path) Collection() string {
	return p.segment(3)
}

func (p Path) DocumentID() string {
	return p.segment(5)
}

// Parent returns the enclosing resource path; a database path has no parent.
func (p Path) Parent() Path {
	switch p.Kind() {
	case PathCollection:
		return DatabasePath(p.Database())
	case PathDocument:
		return CollectionPath(p.Database(), p.Collection())
	}
	return ""
}

func (p Path) segment(i int) string {
	segs, ok := p.segments()
	if !ok || i >= len(segs) {
		return ""
	}
	return segs[i]
}

// segments splits p and checks the fixed keywords at even positions.
func (p Path) segments() ([]string, bool) {
	s := string(p)
	if !strings.HasPrefix(s, "/") {
		return nil, false
	}
	segs := strings.Split(s[1:], "/")
	keywords := []string{databasesSegment, collectionsSegment, documentsSegment}
	for i := 0; i < len(segs); i += 2 {
		if i/2 >= len(keywords) || segs[i] != keywords[i/2] {
			return nil, false
		}
	}
	if len(segs)%2 != 0 {
		return nil, false
	}
	return segs, true
}
