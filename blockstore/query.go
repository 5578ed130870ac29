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

package blockstore

import (
	"encoding/json"

	"crawshaw.io/sqlite"
	"github.com/tidwall/gjson"

	"github.com/forensicanalysis/forensicblocks/attribute"
)

// Summary holds the fields of a stored block needed to print a tree.
type Summary struct {
	UID      int64
	Type     string
	Start    int64
	End      int64
	Size     int64
	Handled  bool
	Children []int64
}

// Summaries returns a summary of every block of tree id, read directly from
// the stored states.
func (store *Store) Summaries(id string) (map[int64]*Summary, error) {
	if _, err := store.Tree(id); err != nil {
		return nil, err
	}

	store.mutex.Lock()
	defer store.mutex.Unlock()

	summaries := map[int64]*Summary{}
	err := store.states(id, func(state []byte) error {
		fields := gjson.GetManyBytes(state, "uid", "type", "start", "end", "size", "is_handled")
		summary := &Summary{
			UID:     fields[0].Int(),
			Type:    fields[1].String(),
			Start:   fields[2].Int(),
			End:     fields[3].Int(),
			Size:    fields[4].Int(),
			Handled: fields[5].Bool(),
		}
		for _, child := range field(state, "children").Array() {
			summary.Children = append(summary.Children, child.Int())
		}
		summaries[summary.UID] = summary
		return nil
	})
	return summaries, err
}

// Attributes returns the indexed attributes of a block. Bytes and
// timestamps are returned in their string form.
func (store *Store) Attributes(id string, uid int64) (*attribute.Map, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	stmt, err := store.cursor.Prepare("SELECT key, value FROM `attributes` WHERE tree = $tree AND uid = $uid")
	if err != nil {
		return nil, err
	}
	stmt.SetText("$tree", id)
	stmt.SetInt64("$uid", uid)

	flat := map[string]interface{}{}
	err = rows(stmt, func(stmt *sqlite.Stmt) error {
		flat[stmt.GetText("key")] = gjson.Parse(stmt.GetText("value")).Value()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return attribute.Unflatten(flat)
}

// Select returns the uids of all blocks of tree id whose flattened attribute
// key equals value.
func (store *Store) Select(id, key string, value interface{}) ([]int64, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	store.mutex.Lock()
	defer store.mutex.Unlock()

	stmt, err := store.cursor.Prepare("SELECT DISTINCT uid FROM `attributes` " +
		"WHERE tree = $tree AND key = $key AND value = $value ORDER BY uid")
	if err != nil {
		return nil, err
	}
	stmt.SetText("$tree", id)
	stmt.SetText("$key", key)
	stmt.SetText("$value", string(encoded))

	var uids []int64
	err = rows(stmt, func(stmt *sqlite.Stmt) error {
		uids = append(uids, stmt.GetInt64("uid"))
		return nil
	})
	return uids, err
}
