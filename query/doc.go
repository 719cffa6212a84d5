/*
Package query compiles document filters for docstore.

A filter is a conjunction of equalities between top-level document properties
and scalar literals. It can be built in code:

	pred := query.Equal("lastName", "Andersen").And("isRegistered", true)
	spec := query.Structured(pred)

or parsed from raw text:

	spec, err := query.ParseText("SELECT * FROM Family WHERE Family.lastName = 'Andersen'")

Both forms carry the same Predicate and transports execute them the same way,
so they return the same documents in the same order. Predicate.String renders
the equivalent raw text.

Supported grammar, keywords case-insensitive:

	SELECT * FROM <alias> [WHERE <ref> = <literal> (AND <ref> = <literal>)*]
	<ref>     := <alias>.<field> | <field>
	<literal> := 'text' | "text" | number | true | false

Inside single quotes '' stands for one quote. null, other operators and nested
property references are rejected with errors.ErrMalformed.
*/
package query
