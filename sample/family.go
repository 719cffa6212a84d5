/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package sample

import (
	"encoding/json"
	"time"

	"github.com/go-openapi/strfmt"

	"github.com/suparena/docstore/registry"
)

// Default names used by the demo.
const (
	DatabaseName     = "FamilyDB"
	CollectionName   = "FamilyCollection"
	PartitionKeyPath = "/lastName"
)

func init() {
	registry.MustRegisterPartitionKeyPath[Family](PartitionKeyPath)
}

// Family stores census data about a family.
type Family struct {

	// Unique identifier of the family document.
	// Required: true
	ID string `json:"id"`

	// Family name, also the partition key.
	// Required: true
	LastName string `json:"lastName"`

	Parents  []Parent `json:"parents,omitempty"`
	Children []Child  `json:"children,omitempty"`
	Address  *Address `json:"address,omitempty"`

	IsRegistered bool `json:"isRegistered"`

	// Timestamp when the family registered.
	// Format: date-time
	RegisteredAt *strfmt.DateTime `json:"registeredAt,omitempty"`
}

func (f Family) String() string {
	data, err := json.Marshal(f)
	if err != nil {
		return f.ID
	}
	return string(data)
}

type Parent struct {
	FamilyName string `json:"familyName,omitempty"`
	FirstName  string `json:"firstName"`
}

type Child struct {
	FamilyName string `json:"familyName,omitempty"`
	FirstName  string `json:"firstName"`
	Gender     string `json:"gender"`
	Grade      int    `json:"grade"`
	Pets       []Pet  `json:"pets,omitempty"`
}

type Pet struct {
	GivenName string `json:"givenName"`
}

type Address struct {
	State  string `json:"state"`
	County string `json:"county"`
	City   string `json:"city"`
}

func dateTime(year int, month time.Month, day int) *strfmt.DateTime {
	dt := strfmt.DateTime(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
	return &dt
}

// Andersen returns a fresh copy of the Andersen.1 family.
func Andersen() Family {
	return Family{
		ID:       "Andersen.1",
		LastName: "Andersen",
		Parents: []Parent{
			{FirstName: "Thomas"},
			{FirstName: "Mary Kay"},
		},
		Children: []Child{
			{
				FirstName: "Henriette Thaulow",
				Gender:    "female",
				Grade:     5,
				Pets:      []Pet{{GivenName: "Fluffy"}},
			},
		},
		Address:      &Address{State: "WA", County: "King", City: "Seattle"},
		IsRegistered: true,
		RegisteredAt: dateTime(2015, time.April, 1),
	}
}

// Wakefield returns a fresh copy of the Wakefield.7 family.
func Wakefield() Family {
	return Family{
		ID:       "Wakefield.7",
		LastName: "Wakefield",
		Parents: []Parent{
			{FamilyName: "Wakefield", FirstName: "Robin"},
			{FamilyName: "Miller", FirstName: "Ben"},
		},
		Children: []Child{
			{
				FamilyName: "Merriam",
				FirstName:  "Jesse",
				Gender:     "female",
				Grade:      8,
				Pets:       []Pet{{GivenName: "Goofy"}, {GivenName: "Shadow"}},
			},
			{
				FamilyName: "Miller",
				FirstName:  "Lisa",
				Gender:     "female",
				Grade:      1,
			},
		},
		Address:      &Address{State: "NY", County: "Manhattan", City: "NY"},
		IsRegistered: false,
	}
}

// Families returns both sample families in insertion order.
func Families() []Family {
	return []Family{Andersen(), Wakefield()}
}
