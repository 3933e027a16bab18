// Package ixbtree implements the clustered B+-tree index: a page-based tree
// of fixed-width keys paired with Rids, stored as parallel arrays inside
// bufferpool frames.
//
// Grounded on pkg/storage/bplustree.go's in-memory split/redistribute/merge
// shape, re-expressed over on-disk node pages the way internal/rmfile
// expresses slotted records over pages, and on the teacher's BE "sortable"
// byte convention from internal/alias/bx for the key bytes themselves.
package ixbtree

import (
	"bytes"

	"github.com/tuannm99/rmdb/internal/alias/bx"
	"github.com/tuannm99/rmdb/internal/rmfile"
)

const (
	nodeHeaderSize = 20

	offIsLeaf   = 0
	offNumKey   = 4
	offParent   = 8
	offPrevLeaf = 12
	offNextLeaf = 16
)

// NodeView overlays a node page's header, key array, and Rid array onto a
// frame's backing buffer. Internal nodes and leaves share this one layout:
// entry i is (key[i], rid[i]); for leaves rid[i] is the record pointer, for
// internal nodes rid[i].PageNo is the child page whose subtree's minimum
// key is key[i] (entry 0 is a sentinel kept for the first-key invariant but
// never consulted for routing).
type NodeView struct {
	buf    []byte
	colLen int32
	order  int32
}

func newNodeView(buf []byte, colLen, order int32) *NodeView {
	return &NodeView{buf: buf, colLen: colLen, order: order}
}

func keysOffset() int32 { return nodeHeaderSize }

func ridsOffset(colLen, order int32) int32 { return nodeHeaderSize + order*colLen }

// nodeCapacityFits reports whether a node of this colLen/order fits in one
// page of the given size.
func nodeCapacityFits(colLen, order int32, pageSize int) bool {
	need := int(ridsOffset(colLen, order) + order*8)
	return need <= pageSize
}

func (n *NodeView) IsLeaf() bool { return n.buf[offIsLeaf] != 0 }

func (n *NodeView) SetIsLeaf(v bool) {
	if v {
		n.buf[offIsLeaf] = 1
	} else {
		n.buf[offIsLeaf] = 0
	}
}

func (n *NodeView) NumKey() int32 { return int32(bx.U32At(n.buf, offNumKey)) }

func (n *NodeView) SetNumKey(v int32) { bx.PutU32At(n.buf, offNumKey, uint32(v)) }

func (n *NodeView) Parent() int32 { return int32(bx.U32At(n.buf, offParent)) }

func (n *NodeView) SetParent(v int32) { bx.PutU32At(n.buf, offParent, uint32(v)) }

func (n *NodeView) PrevLeaf() int32 { return int32(bx.U32At(n.buf, offPrevLeaf)) }

func (n *NodeView) SetPrevLeaf(v int32) { bx.PutU32At(n.buf, offPrevLeaf, uint32(v)) }

func (n *NodeView) NextLeaf() int32 { return int32(bx.U32At(n.buf, offNextLeaf)) }

func (n *NodeView) SetNextLeaf(v int32) { bx.PutU32At(n.buf, offNextLeaf, uint32(v)) }

func (n *NodeView) KeyAt(i int32) []byte {
	off := keysOffset() + i*n.colLen
	return n.buf[off : off+n.colLen]
}

func (n *NodeView) SetKeyAt(i int32, key []byte) { copy(n.KeyAt(i), key) }

func (n *NodeView) RidAt(i int32) rmfile.Rid {
	off := ridsOffset(n.colLen, n.order) + i*8
	return rmfile.Rid{
		PageNo: int32(bx.U32At(n.buf, int(off))),
		SlotNo: int32(bx.U32At(n.buf, int(off)+4)),
	}
}

func (n *NodeView) SetRidAt(i int32, r rmfile.Rid) {
	off := int(ridsOffset(n.colLen, n.order) + i*8)
	bx.PutU32At(n.buf, off, uint32(r.PageNo))
	bx.PutU32At(n.buf, off+4, uint32(r.SlotNo))
}

// LowerBound returns the first index i such that key[i] >= target, or
// NumKey() if no such index exists. A genuinely linear scan: index entry
// counts are small enough (bounded by the page's order) that a linear scan
// beats the bookkeeping of a binary search, and it keeps the comparison
// order stable when keys repeat.
func (n *NodeView) LowerBound(target []byte) int32 {
	nk := n.NumKey()
	for i := int32(0); i < nk; i++ {
		if bytes.Compare(n.KeyAt(i), target) >= 0 {
			return i
		}
	}
	return nk
}

// UpperBound returns the first index i >= 1 such that key[i] > target, or
// NumKey() if no such index exists. Index 0 is always excluded since it is
// the routing sentinel, never a real separator to compare against.
func (n *NodeView) UpperBound(target []byte) int32 {
	nk := n.NumKey()
	for i := int32(1); i < nk; i++ {
		if bytes.Compare(n.KeyAt(i), target) > 0 {
			return i
		}
	}
	return nk
}

// LeafLookup finds key in a leaf node's entries.
func (n *NodeView) LeafLookup(key []byte) (rmfile.Rid, bool) {
	i := n.LowerBound(key)
	if i < n.NumKey() && bytes.Equal(n.KeyAt(i), key) {
		return n.RidAt(i), true
	}
	return rmfile.Rid{}, false
}

// InternalLookup returns the child page to descend into for key.
func (n *NodeView) InternalLookup(key []byte) int32 {
	i := n.LowerBound(key)
	if i < n.NumKey() && bytes.Equal(n.KeyAt(i), key) {
		return n.RidAt(i).PageNo
	}
	if i == 0 {
		return n.RidAt(0).PageNo
	}
	return n.RidAt(i - 1).PageNo
}

// InsertPairs splices keys/rids into the entry arrays starting at pos,
// shifting everything at or after pos to the right. Returns the new
// NumKey().
func (n *NodeView) InsertPairs(pos int32, keys [][]byte, rids []rmfile.Rid) int32 {
	count := int32(len(keys))
	if count == 0 {
		return n.NumKey()
	}
	nk := n.NumKey()
	for i := nk - 1; i >= pos; i-- {
		n.SetKeyAt(i+count, n.KeyAt(i))
		n.SetRidAt(i+count, n.RidAt(i))
	}
	for j := int32(0); j < count; j++ {
		n.SetKeyAt(pos+j, keys[j])
		n.SetRidAt(pos+j, rids[j])
	}
	n.SetNumKey(nk + count)
	return n.NumKey()
}

// Insert places (key, rid) in sorted position unless key is already
// present, in which case it is a no-op. Returns the new NumKey() either
// way, so callers compare against NumKey() before the call to detect
// duplicates.
func (n *NodeView) Insert(key []byte, rid rmfile.Rid) int32 {
	pos := n.LowerBound(key)
	if pos < n.NumKey() && bytes.Equal(n.KeyAt(pos), key) {
		return n.NumKey()
	}
	n.InsertPairs(pos, [][]byte{key}, []rmfile.Rid{rid})
	return n.NumKey()
}

// Erase removes the entry at pos, shifting everything after it left.
func (n *NodeView) Erase(pos int32) {
	nk := n.NumKey()
	for i := pos; i < nk-1; i++ {
		n.SetKeyAt(i, n.KeyAt(i+1))
		n.SetRidAt(i, n.RidAt(i+1))
	}
	n.SetNumKey(nk - 1)
}

// FindChild returns the index of the entry whose child page is childPageNo.
// Panics if not found: an internal node that has forgotten one of its own
// children indicates a broken invariant, not a recoverable condition.
func (n *NodeView) FindChild(childPageNo int32) int32 {
	nk := n.NumKey()
	for i := int32(0); i < nk; i++ {
		if n.RidAt(i).PageNo == childPageNo {
			return i
		}
	}
	panic("ixbtree: child page not found among parent's entries")
}
