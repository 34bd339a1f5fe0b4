package index

import (
	"sort"
)

// Dictionary assigns dense ids, starting at 0, to keys in first-seen order.
type Dictionary struct {
	ids  map[string]int32
	next int32
}

// DictEntry is one key/id pair of a Dictionary.
type DictEntry struct {
	Key string
	ID  int32
}

func NewDictionary() *Dictionary {
	return &Dictionary{ids: make(map[string]int32)}
}

// Assign returns the id for key, allocating the next one if key is new.
func (d *Dictionary) Assign(key string) (id int32, created bool) {
	if id, ok := d.ids[key]; ok {
		return id, false
	}
	id = d.next
	d.ids[key] = id
	d.next++
	return id, true
}

// Put stores an explicit id, as when loading a persisted dictionary.
func (d *Dictionary) Put(key string, id int32) {
	d.ids[key] = id
	if id >= d.next {
		d.next = id + 1
	}
}

func (d *Dictionary) Lookup(key string) (int32, bool) {
	id, ok := d.ids[key]
	return id, ok
}

func (d *Dictionary) Len() int {
	return len(d.ids)
}

// Entries returns all pairs sorted by key.
func (d *Dictionary) Entries() []DictEntry {
	entries := make([]DictEntry, 0, len(d.ids))
	for key, id := range d.ids {
		entries = append(entries, DictEntry{Key: key, ID: id})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key < entries[j].Key
	})
	return entries
}

// Invert maps ids back to keys.
func (d *Dictionary) Invert() map[int32]string {
	keys := make(map[int32]string, len(d.ids))
	for key, id := range d.ids {
		keys[id] = key
	}
	return keys
}
