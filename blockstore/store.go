/*
 * Copyright (c) 2020 Siemens AG
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy of
 * this software and associated documentation files (the "Software"), to deal in
 * the Software without restriction, including without limitation the rights to
 * use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
 * the Software, and to permit persons to whom the Software is furnished to do so,
 * subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
 * FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
 * COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
 * IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
 * CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 *
 * Author(s): Jonas Plum
 */

// Package blockstore persists decoded block trees in a SQLite case
// database. Every block is stored as its JSON state, validated against an
// embedded JSON schema and lz4 compressed if it is large. The flattened
// attributes of all blocks are indexed in a separate table.
package blockstore

import (
	"bytes"
	"context"
	_ "embed" // block schema
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"crawshaw.io/sqlite"
	"github.com/google/uuid"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
	"github.com/qri-io/jsonschema"
	"github.com/tidwall/gjson"

	"github.com/forensicanalysis/forensicblocks/attribute"
	"github.com/forensicanalysis/forensicblocks/block"
)

const blockstoreVersion = 1
const blockstoreApplicationID = 1651273579 // "blok"

// DefaultCompressThreshold is the state size above which states are
// compressed.
const DefaultCompressThreshold = 4096

//go:embed block.schema.json
var blockSchema []byte

var (
	ErrStoreExists    = errors.New("store already exists")
	ErrStoreNotExists = errors.New("store does not exist")
	ErrTreeNotFound   = errors.New("tree not found")
	ErrInvalidState   = errors.New("block state does not match schema")
)

// Store is a case database of block trees. A Store can be used from
// multiple goroutines; access to the database is serialized.
type Store struct {
	// CompressThreshold is the size in bytes above which states are lz4
	// compressed. Negative values disable compression.
	CompressThreshold int

	cursor *sqlite.Conn
	schema *jsonschema.Schema
	mutex  sync.Mutex
}

// Tree describes a stored block tree.
type Tree struct {
	ID         string
	Name       string
	Root       int64
	Blocks     int64
	InsertTime string
}

// New creates a new store.
func New(url string) (*Store, error) {
	return open(url, true)
}

// Open opens an existing store.
func Open(url string) (*Store, error) {
	return open(url, false)
}

func pragma(conn *sqlite.Conn, name string) (int64, error) {
	stmt, _, err := conn.PrepareTransient("PRAGMA " + name)
	if err != nil {
		return 0, err
	}
	if _, err = stmt.Step(); err != nil {
		return 0, err
	}
	i := stmt.GetInt64(name)
	return i, stmt.Finalize()
}

func setPragma(conn *sqlite.Conn, name string, i int64) error {
	return exec(conn, "PRAGMA "+name+" = "+fmt.Sprint(i))
}

func exec(conn *sqlite.Conn, query string) error {
	stmt, _, err := conn.PrepareTransient(query)
	if err != nil {
		return errors.Wrapf(err, "could not prepare %s", query)
	}
	if _, err = stmt.Step(); err != nil {
		stmt.Finalize() // nolint:errcheck
		return errors.Wrapf(err, "could not exec %s", query)
	}
	return stmt.Finalize()
}

var tables = []string{
	"CREATE TABLE `trees` (id TEXT PRIMARY KEY, name TEXT, root INTEGER, insert_time TEXT)",
	"CREATE TABLE `blocks` (tree TEXT, uid INTEGER, type TEXT, sz INTEGER, state BLOB, PRIMARY KEY (tree, uid))",
	"CREATE TABLE `attributes` (tree TEXT, uid INTEGER, key TEXT, value TEXT)",
	"CREATE INDEX `attributes_key` ON `attributes` (tree, key, value)",
	archiveTable,
}

func open(url string, create bool) (*Store, error) { // nolint:gocyclo
	if url != ":memory:" {
		url = strings.TrimRight(url, "/")

		exists := true
		if _, err := os.Stat(url); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			exists = false
		}

		if create && exists {
			return nil, errors.Wrap(ErrStoreExists, url)
		}
		if !create && !exists {
			return nil, errors.Wrap(ErrStoreNotExists, url)
		}

		if create {
			if err := os.MkdirAll(path.Dir(url), 0750); err != nil {
				return nil, err
			}
			log.Printf("Creating store %s", url)
		}
	}

	schema := &jsonschema.Schema{}
	if err := json.Unmarshal(blockSchema, schema); err != nil {
		return nil, errors.Wrap(err, "could not unmarshal block schema")
	}

	cursor, err := sqlite.OpenConn(url, 0)
	if err != nil {
		return nil, err
	}
	store := &Store{CompressThreshold: DefaultCompressThreshold, cursor: cursor, schema: schema}

	if create {
		if err := setPragma(cursor, "application_id", blockstoreApplicationID); err != nil {
			return nil, err
		}
		if err := setPragma(cursor, "user_version", blockstoreVersion); err != nil {
			return nil, err
		}
		for _, table := range tables {
			if err := exec(cursor, table); err != nil {
				return nil, err
			}
		}
		return store, nil
	}

	applicationID, err := pragma(cursor, "application_id")
	if err != nil {
		return nil, err
	}
	if applicationID != blockstoreApplicationID {
		cursor.Close() // nolint:errcheck
		return nil, errors.Errorf("wrong file format (application_id is %d, requires %d)", applicationID, blockstoreApplicationID)
	}
	version, err := pragma(cursor, "user_version")
	if err != nil {
		return nil, err
	}
	if version != blockstoreVersion {
		cursor.Close() // nolint:errcheck
		return nil, errors.Errorf("wrong file format (user_version is %d, requires %d)", version, blockstoreVersion)
	}
	return store, nil
}

// Close closes the database.
func (store *Store) Close() error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.cursor.Close()
}

/* ################################
#   API
################################ */

// SaveGraph stores all blocks of g as a new tree and returns its id.
func (store *Store) SaveGraph(name string, g *block.Graph) (string, error) {
	root := g.Root()
	if !root.Valid() {
		return "", block.ErrInvalidBlock
	}
	id := "tree--" + uuid.New().String()

	store.mutex.Lock()
	defer store.mutex.Unlock()

	if err := exec(store.cursor, "BEGIN"); err != nil {
		return "", err
	}
	if err := store.insertTree(id, name, g); err != nil {
		if rollbackErr := exec(store.cursor, "ROLLBACK"); rollbackErr != nil {
			log.Printf("could not roll back %s: %s", id, rollbackErr)
		}
		return "", err
	}
	return id, exec(store.cursor, "COMMIT")
}

func (store *Store) insertTree(id, name string, g *block.Graph) error {
	stmt, err := store.cursor.Prepare("INSERT INTO `trees` (id, name, root, insert_time) VALUES ($id, $name, $root, $time)")
	if err != nil {
		return err
	}
	stmt.SetText("$id", id)
	stmt.SetText("$name", name)
	stmt.SetInt64("$root", g.Root().UID())
	stmt.SetText("$time", time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	if _, err := stmt.Step(); err != nil {
		return errors.Wrap(err, "could not insert tree")
	}

	for _, b := range g.Blocks() {
		if err := store.insertBlock(id, b); err != nil {
			return errors.Wrapf(err, "block %d", b.UID())
		}
	}
	return nil
}

func (store *Store) insertBlock(tree string, b block.Block) error {
	state, err := b.State()
	if err != nil {
		return err
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err := store.validate(data); err != nil {
		return err
	}
	blob, err := store.compress(data)
	if err != nil {
		return err
	}

	stmt, err := store.cursor.Prepare("INSERT INTO `blocks` (tree, uid, type, sz, state) VALUES ($tree, $uid, $type, $sz, $state)")
	if err != nil {
		return err
	}
	stmt.SetText("$tree", tree)
	stmt.SetInt64("$uid", b.UID())
	stmt.SetText("$type", b.Type())
	stmt.SetInt64("$sz", int64(len(data)))
	stmt.SetBytes("$state", blob)
	if _, err := stmt.Step(); err != nil {
		return errors.Wrap(err, "could not insert block")
	}

	for key, value := range attribute.Flatten(b.Attributes()) {
		encoded, err := json.Marshal(value)
		if err != nil {
			return err
		}
		stmt, err := store.cursor.Prepare("INSERT INTO `attributes` (tree, uid, key, value) VALUES ($tree, $uid, $key, $value)")
		if err != nil {
			return err
		}
		stmt.SetText("$tree", tree)
		stmt.SetInt64("$uid", b.UID())
		stmt.SetText("$key", key)
		stmt.SetText("$value", string(encoded))
		if _, err := stmt.Step(); err != nil {
			return errors.Wrap(err, "could not insert attribute")
		}
	}
	return nil
}

// LoadGraph restores the tree id. The root is a source block without stream
// that needs to be attached before blocks can be read.
func (store *Store) LoadGraph(id string) (*block.Graph, error) {
	tree, err := store.Tree(id)
	if err != nil {
		return nil, err
	}

	store.mutex.Lock()
	defer store.mutex.Unlock()

	g := block.NewGraph()
	err = store.states(id, func(data []byte) error {
		state := attribute.NewMap()
		if err := json.Unmarshal(data, state); err != nil {
			return err
		}
		b, err := block.FromState(state)
		if err != nil {
			return err
		}
		return g.Add(b)
	})
	if err != nil {
		return nil, err
	}

	root := g.Get(tree.Root)
	if !root.Valid() {
		return nil, errors.Wrapf(block.ErrInvalidBlock, "missing root %d of %s", tree.Root, id)
	}
	if err := g.SetRoot(root); err != nil {
		return nil, err
	}
	return g, g.Relink()
}

// State returns the JSON state of a single block.
func (store *Store) State(id string, uid int64) ([]byte, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	stmt, err := store.cursor.Prepare("SELECT sz, state FROM `blocks` WHERE tree = $tree AND uid = $uid")
	if err != nil {
		return nil, err
	}
	stmt.SetText("$tree", id)
	stmt.SetInt64("$uid", uid)
	var state []byte
	err = rows(stmt, func(stmt *sqlite.Stmt) error {
		state, err = readState(stmt)
		return err
	})
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, errors.Wrapf(block.ErrInvalidBlock, "no block %d in %s", uid, id)
	}
	return state, nil
}

// Tree returns the description of tree id.
func (store *Store) Tree(id string) (*Tree, error) {
	trees, err := store.trees("WHERE id = $id", id)
	if err != nil {
		return nil, err
	}
	if len(trees) == 0 {
		return nil, errors.Wrap(ErrTreeNotFound, id)
	}
	return trees[0], nil
}

// Trees lists all stored trees in insertion order.
func (store *Store) Trees() ([]*Tree, error) {
	return store.trees("", "")
}

func (store *Store) trees(where, id string) ([]*Tree, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	stmt, err := store.cursor.Prepare("SELECT id, name, root, insert_time, " +
		"(SELECT COUNT(*) FROM `blocks` WHERE tree = `trees`.id) AS blocks " +
		"FROM `trees` " + where + " ORDER BY rowid") // #nosec
	if err != nil {
		return nil, err
	}
	if id != "" {
		stmt.SetText("$id", id)
	}
	var trees []*Tree
	err = rows(stmt, func(stmt *sqlite.Stmt) error {
		trees = append(trees, &Tree{
			ID:         stmt.GetText("id"),
			Name:       stmt.GetText("name"),
			Root:       stmt.GetInt64("root"),
			Blocks:     stmt.GetInt64("blocks"),
			InsertTime: stmt.GetText("insert_time"),
		})
		return nil
	})
	return trees, err
}

// Delete removes tree id.
func (store *Store) Delete(id string) error {
	if _, err := store.Tree(id); err != nil {
		return err
	}

	store.mutex.Lock()
	defer store.mutex.Unlock()
	for _, table := range []string{"attributes", "blocks"} {
		if err := store.deleteTree("DELETE FROM `"+table+"` WHERE tree = $id", id); err != nil {
			return err
		}
	}
	return store.deleteTree("DELETE FROM `trees` WHERE id = $id", id)
}

func (store *Store) deleteTree(query, id string) error {
	stmt, err := store.cursor.Prepare(query)
	if err != nil {
		return err
	}
	stmt.SetText("$id", id)
	_, err = stmt.Step()
	return err
}

/* ################################
#   Intern
################################ */

func (store *Store) validate(data []byte) error {
	errs, err := store.schema.ValidateBytes(context.Background(), data)
	if err != nil {
		return err
	}
	if len(errs) > 0 {
		var flaws []string
		for _, keyErr := range errs {
			flaws = append(flaws, keyErr.Error())
		}
		return errors.Wrap(ErrInvalidState, strings.Join(flaws, ", "))
	}
	return nil
}

// compress returns the lz4 frame of data if data exceeds the threshold and
// compression makes it smaller. Like in sqlar archives the stored size
// tells both apart: blobs shorter than sz are compressed.
func (store *Store) compress(data []byte) ([]byte, error) {
	if store.CompressThreshold < 0 || len(data) <= store.CompressThreshold {
		return data, nil
	}
	buf := &bytes.Buffer{}
	zw := lz4.NewWriter(buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	if buf.Len() >= len(data) {
		return data, nil
	}
	return buf.Bytes(), nil
}

func decompress(blob []byte, sz int64) ([]byte, error) {
	if int64(len(blob)) == sz {
		return blob, nil
	}
	data, err := io.ReadAll(lz4.NewReader(bytes.NewReader(blob)))
	if err != nil {
		return nil, errors.Wrap(err, "could not decompress state")
	}
	if int64(len(data)) != sz {
		return nil, errors.Errorf("decompressed state has %d bytes, expected %d", len(data), sz)
	}
	return data, nil
}

func readState(stmt *sqlite.Stmt) ([]byte, error) {
	blob := make([]byte, stmt.GetLen("state"))
	stmt.GetBytes("state", blob)
	return decompress(blob, stmt.GetInt64("sz"))
}

// states calls fn with the JSON state of every block of tree in uid order.
func (store *Store) states(tree string, fn func(data []byte) error) error {
	stmt, err := store.cursor.Prepare("SELECT sz, state FROM `blocks` WHERE tree = $tree ORDER BY uid")
	if err != nil {
		return err
	}
	stmt.SetText("$tree", tree)
	return rows(stmt, func(stmt *sqlite.Stmt) error {
		data, err := readState(stmt)
		if err != nil {
			return err
		}
		return fn(data)
	})
}

func rows(stmt *sqlite.Stmt, fn func(stmt *sqlite.Stmt) error) error {
	for {
		if hasRow, err := stmt.Step(); err != nil {
			return err
		} else if !hasRow {
			break
		}
		if err := fn(stmt); err != nil {
			stmt.Reset() // nolint:errcheck
			return err
		}
	}
	return stmt.Reset()
}

// field reads a single field of a JSON state.
func field(state []byte, name string) gjson.Result {
	return gjson.GetBytes(state, name)
}
