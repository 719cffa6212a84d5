/*
Package sqlite provides a SQLite implementation of datastore.Transport.

It stores databases, collections and documents in three tables of one SQLite
file and evaluates queries with json_extract over the stored JSON bodies. It
serves as a local emulator for development and tests:

	t, err := sqlite.Open(ctx, "./data/docstore.db")
	if err != nil {
	    return err
	}
	defer t.Close()

The transport registers itself as "sqlite"; an empty Settings.Path opens a
private in-memory database.
*/
package sqlite
