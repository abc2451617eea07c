// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package statetest provides an in-memory document store with the same
// transaction semantics as the production mgo-backed one: asserts are
// checked before any write lands, an assert failure aborts the whole
// transaction, and transaction sources are retried on abort. State
// tests run against it without a mongod.
package statetest

import (
	"reflect"
	"sort"
	"sync"

	"github.com/juju/errors"
	"github.com/juju/mgo/v3/bson"
	"github.com/juju/mgo/v3/txn"
	jujutxn "github.com/juju/txn/v3"
)

const maxAttempts = 20

// Persistence is an in-memory Database implementation. Documents are
// held bson-marshalled so reads hand out copies, never aliases.
type Persistence struct {
	mu    sync.Mutex
	colls map[string]map[string][]byte
}

// NewPersistence returns an empty in-memory store.
func NewPersistence() *Persistence {
	return &Persistence{colls: make(map[string]map[string][]byte)}
}

// One fetches the document with the given _id into doc.
func (p *Persistence) One(collection, id string, doc interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, ok := p.colls[collection][id]
	if !ok {
		return errors.NotFoundf("document %q in collection %q", id, collection)
	}
	return errors.Trace(bson.Unmarshal(data, doc))
}

// All fetches every document matching query into docs, which must be
// a pointer to a slice. Results come back in _id order.
func (p *Persistence) All(collection string, query bson.D, docs interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	slicePtr := reflect.ValueOf(docs)
	if slicePtr.Kind() != reflect.Ptr || slicePtr.Elem().Kind() != reflect.Slice {
		return errors.NotValidf("result %T", docs)
	}
	elemType := slicePtr.Elem().Type().Elem()
	out := reflect.MakeSlice(slicePtr.Elem().Type(), 0, 0)

	for _, id := range p.sortedIDs(collection) {
		data := p.colls[collection][id]
		var fields bson.M
		if err := bson.Unmarshal(data, &fields); err != nil {
			return errors.Trace(err)
		}
		if !matches(fields, query) {
			continue
		}
		elem := reflect.New(elemType)
		if err := bson.Unmarshal(data, elem.Interface()); err != nil {
			return errors.Trace(err)
		}
		out = reflect.Append(out, elem.Elem())
	}
	slicePtr.Elem().Set(out)
	return nil
}

// RunTransaction applies ops atomically: every assert is checked
// before any write, and a failed assert returns txn.ErrAborted with
// nothing applied.
func (p *Persistence) RunTransaction(ops []txn.Op) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, op := range ops {
		if err := p.check(op); err != nil {
			return err
		}
	}
	for _, op := range ops {
		if err := p.apply(op); err != nil {
			return err
		}
	}
	return nil
}

// Run drives a transaction source the way the production runner does:
// rebuild and retry on abort, stop cleanly on ErrNoOperations.
func (p *Persistence) Run(transactions jujutxn.TransactionSource) error {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		ops, err := transactions(attempt)
		if errors.Cause(err) == jujutxn.ErrNoOperations {
			return nil
		}
		if errors.Cause(err) == jujutxn.ErrTransientFailure {
			continue
		}
		if err != nil {
			return errors.Trace(err)
		}
		err = p.RunTransaction(ops)
		if errors.Cause(err) == txn.ErrAborted {
			continue
		}
		return errors.Trace(err)
	}
	return jujutxn.ErrExcessiveContention
}

// Docs returns the _ids present in the collection, sorted. Tests use
// it to assert on cascade deletes.
func (p *Persistence) Docs(collection string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sortedIDs(collection)
}

func (p *Persistence) sortedIDs(collection string) []string {
	coll := p.colls[collection]
	ids := make([]string, 0, len(coll))
	for id := range coll {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (p *Persistence) check(op txn.Op) error {
	id, ok := op.Id.(string)
	if !ok {
		return errors.NotValidf("document id %v", op.Id)
	}
	data, exists := p.colls[op.C][id]

	switch assert := op.Assert.(type) {
	case nil:
	case bson.D:
		// txn.DocExists and txn.DocMissing are $exists asserts.
		if len(assert) == 1 && assert[0].Name == "$exists" {
			if want, _ := assert[0].Value.(bool); want != exists {
				return txn.ErrAborted
			}
			break
		}
		if !exists {
			return txn.ErrAborted
		}
		var fields bson.M
		if err := bson.Unmarshal(data, &fields); err != nil {
			return errors.Trace(err)
		}
		if !matches(fields, assert) {
			return txn.ErrAborted
		}
	default:
		return errors.NotValidf("assert %#v", op.Assert)
	}
	return nil
}

func (p *Persistence) apply(op txn.Op) error {
	id := op.Id.(string)
	coll := p.colls[op.C]
	if coll == nil {
		coll = make(map[string][]byte)
		p.colls[op.C] = coll
	}

	switch {
	case op.Insert != nil:
		// An unasserted insert over an existing document is a no-op,
		// mirroring mgo/txn; DocMissing asserts catch it in check.
		if _, exists := coll[id]; exists {
			return nil
		}
		data, err := bson.Marshal(op.Insert)
		if err != nil {
			return errors.Trace(err)
		}
		coll[id] = data
	case op.Remove:
		delete(coll, id)
	case op.Update != nil:
		// An unasserted update of a missing document is a no-op,
		// mirroring mgo/txn.
		if _, exists := coll[id]; !exists {
			return nil
		}
		var fields bson.M
		if err := bson.Unmarshal(coll[id], &fields); err != nil {
			return errors.Trace(err)
		}
		if err := applyUpdate(fields, op.Update); err != nil {
			return errors.Trace(err)
		}
		data, err := bson.Marshal(fields)
		if err != nil {
			return errors.Trace(err)
		}
		coll[id] = data
	}
	return nil
}

func applyUpdate(fields bson.M, update interface{}) error {
	doc, err := toBsonD(update)
	if err != nil {
		return errors.Trace(err)
	}
	for _, elem := range doc {
		switch elem.Name {
		case "$set":
			set, err := toBsonD(elem.Value)
			if err != nil {
				return errors.Trace(err)
			}
			for _, field := range set {
				fields[field.Name] = field.Value
			}
		case "$unset":
			unset, err := toBsonD(elem.Value)
			if err != nil {
				return errors.Trace(err)
			}
			for _, field := range unset {
				delete(fields, field.Name)
			}
		default:
			return errors.NotValidf("update operator %q", elem.Name)
		}
	}
	return nil
}

func toBsonD(v interface{}) (bson.D, error) {
	if d, ok := v.(bson.D); ok {
		return d, nil
	}
	data, err := bson.Marshal(v)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var d bson.D
	if err := bson.Unmarshal(data, &d); err != nil {
		return nil, errors.Trace(err)
	}
	return d, nil
}

// matches reports whether the document fields satisfy the query.
// Supported conditions are field equality and $in, which is all the
// state layer uses.
func matches(fields bson.M, query bson.D) bool {
	for _, cond := range query {
		actual, ok := fields[cond.Name]
		if !ok {
			return false
		}
		switch want := cond.Value.(type) {
		case bson.D:
			if len(want) == 1 && want[0].Name == "$in" {
				if !containsValue(want[0].Value, actual) {
					return false
				}
				continue
			}
			if !equalValues(actual, want) {
				return false
			}
		default:
			if !equalValues(actual, cond.Value) {
				return false
			}
		}
	}
	return true
}

func containsValue(candidates, actual interface{}) bool {
	v := reflect.ValueOf(candidates)
	if v.Kind() != reflect.Slice {
		return false
	}
	for i := 0; i < v.Len(); i++ {
		if equalValues(actual, v.Index(i).Interface()) {
			return true
		}
	}
	return false
}

// equalValues compares a stored field against a query value, tolerant
// of the type drift a bson round trip introduces.
func equalValues(a, b interface{}) bool {
	a, b = normalize(a), normalize(b)
	if reflect.DeepEqual(a, b) {
		return true
	}
	if ai, ok := toInt64(a); ok {
		if bi, ok := toInt64(b); ok {
			return ai == bi
		}
	}
	return false
}

// normalize round-trips a value through bson so that, for example, a
// time.Time compares equal to its stored (millisecond, UTC) form.
func normalize(v interface{}) interface{} {
	data, err := bson.Marshal(bson.D{{Name: "v", Value: v}})
	if err != nil {
		return v
	}
	var out bson.M
	if err := bson.Unmarshal(data, &out); err != nil {
		return v
	}
	return out["v"]
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), float64(int64(n)) == n
	}
	return 0, false
}
