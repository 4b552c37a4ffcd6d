package sqlitell

import "strings"

// Pair is one column of a row handed to an Iterate callback. Value is nil
// for NULL; every other value is its text rendering by the engine, so
// blobs arrive as their raw bytes.
type Pair struct {
	Column string
	Value  *string
}

// Iterate runs every statement in sql and calls fn once per result row.
// Returning false from fn stops the iteration without an error.
func (c *Conn) Iterate(sql string, fn func(row []Pair) bool) error {
	if err := c.checkOpen(OpExecute); err != nil {
		return err
	}
	rest := sql
	for strings.TrimSpace(rest) != "" {
		ns, tail, err := c.db.Prepare(rest)
		if err != nil {
			return fromNative(OpExecute, err, strings.TrimSpace(rest))
		}
		if ns == nil {
			if tail == rest || tail == "" {
				break
			}
			rest = tail
			continue
		}
		stmt := c.newStmt(ns, strings.TrimSpace(rest[:len(rest)-len(tail)]))
		stop, err := iterateStmt(stmt, fn)
		if err != nil || stop {
			return err
		}
		rest = tail
	}
	return nil
}

func iterateStmt(stmt *Stmt, fn func([]Pair) bool) (stop bool, err error) {
	defer func() {
		if ferr := stmt.Finalize(); err == nil {
			err = ferr
		}
	}()

	names, err := stmt.ColumnNames()
	if err != nil {
		return false, err
	}
	for {
		state, err := stmt.Step()
		if err != nil {
			return false, err
		}
		if state == StateDone {
			return false, nil
		}
		row := make([]Pair, len(names))
		for i, name := range names {
			row[i].Column = name
			null, err := stmt.IsNull(i)
			if err != nil {
				return false, err
			}
			if null {
				continue
			}
			b, _ := stmt.ns.ColumnText(i)
			v := string(b)
			row[i].Value = &v
		}
		if !fn(row) {
			return true, nil
		}
	}
}
