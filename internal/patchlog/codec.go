package patchlog

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/marksync/internal/diff"
	"github.com/dshills/marksync/internal/markdown"
)

// Record is one logged patch.
type Record struct {
	Revision uint64
	Time     time.Time
	Patch    *diff.Patch
}

// Encode returns the JSON form of a record, without a trailing newline.
func Encode(rec Record) ([]byte, error) {
	b := []byte(`{}`)
	var err error
	set := func(path string, value any) {
		if err == nil {
			b, err = sjson.SetBytes(b, path, value)
		}
	}
	setRaw := func(path string, raw []byte) {
		if err == nil {
			b, err = sjson.SetRawBytes(b, path, raw)
		}
	}

	set("seq", rec.Patch.Seq)
	set("rev", rec.Revision)
	if !rec.Time.IsZero() {
		set("time", rec.Time.UTC().Format(time.RFC3339Nano))
	}
	set("fallbacks", rec.Patch.Fallbacks)
	setRaw("ops", []byte(`[]`))
	for _, op := range rec.Patch.Ops {
		raw, oerr := encodeOp(op)
		if oerr != nil {
			return nil, oerr
		}
		setRaw("ops.-1", raw)
	}
	if err != nil {
		return nil, fmt.Errorf("encoding patch %d: %w", rec.Patch.Seq, err)
	}
	return b, nil
}

func encodeOp(op diff.Op) ([]byte, error) {
	b := []byte(`{}`)
	var err error
	set := func(path string, value any) {
		if err == nil {
			b, err = sjson.SetBytes(b, path, value)
		}
	}

	set("op", op.Kind.String())
	path := op.Path
	if path == nil {
		path = []int{}
	}
	set("path", path)
	if op.Parent != 0 {
		set("parent", uint64(op.Parent))
	}
	if op.Kind == diff.OpInsert || op.Kind == diff.OpMove {
		set("index", op.Index)
	}
	if op.Target != 0 {
		set("target", uint64(op.Target))
	}
	if err != nil {
		return nil, err
	}
	if op.Node != nil {
		node, err := encodeNode(op.Node)
		if err != nil {
			return nil, err
		}
		return sjson.SetRawBytes(b, "node", node)
	}
	return b, nil
}

func encodeNode(n *markdown.Node) ([]byte, error) {
	b := []byte(`{}`)
	var err error
	set := func(path string, value any) {
		if err == nil {
			b, err = sjson.SetBytes(b, path, value)
		}
	}

	set("id", uint64(n.ID))
	set("kind", n.Kind.String())
	set("start", n.Start)
	set("end", n.End)
	if n.Level != 0 {
		set("level", n.Level)
	}
	if n.Attr != "" {
		set("attr", n.Attr)
	}
	if n.Literal != "" {
		set("literal", n.Literal)
	}
	if len(n.Children) > 0 && err == nil {
		b, err = sjson.SetRawBytes(b, "children", []byte(`[]`))
	}
	for _, c := range n.Children {
		raw, cerr := encodeNode(c)
		if cerr != nil {
			return nil, cerr
		}
		if err == nil {
			b, err = sjson.SetRawBytes(b, "children.-1", raw)
		}
	}
	return b, err
}

// Decode parses one record.
func Decode(line []byte) (Record, error) {
	if !gjson.ValidBytes(line) {
		return Record{}, &DecodeError{Message: "not valid JSON"}
	}
	root := gjson.ParseBytes(line)
	if !root.IsObject() {
		return Record{}, &DecodeError{Message: "not an object"}
	}
	seq := root.Get("seq")
	if !seq.Exists() {
		return Record{}, &DecodeError{Message: "missing seq"}
	}

	rec := Record{
		Revision: root.Get("rev").Uint(),
		Patch: &diff.Patch{
			Seq:       seq.Uint(),
			Fallbacks: int(root.Get("fallbacks").Int()),
		},
	}
	if t := root.Get("time"); t.Exists() {
		ts, err := time.Parse(time.RFC3339Nano, t.String())
		if err != nil {
			return Record{}, &DecodeError{Message: fmt.Sprintf("bad time %q", t.String())}
		}
		rec.Time = ts
	}

	for i, raw := range root.Get("ops").Array() {
		op, err := decodeOp(raw)
		if err != nil {
			return Record{}, &DecodeError{Message: fmt.Sprintf("op %d: %v", i, err)}
		}
		rec.Patch.Ops = append(rec.Patch.Ops, op)
	}
	return rec, nil
}

func decodeOp(r gjson.Result) (diff.Op, error) {
	kind, ok := diff.ParseOpKind(r.Get("op").String())
	if !ok {
		return diff.Op{}, fmt.Errorf("unknown op %q", r.Get("op").String())
	}
	op := diff.Op{
		Kind:   kind,
		Path:   []int{},
		Parent: markdown.NodeID(r.Get("parent").Uint()),
		Index:  int(r.Get("index").Int()),
		Target: markdown.NodeID(r.Get("target").Uint()),
	}
	for _, p := range r.Get("path").Array() {
		op.Path = append(op.Path, int(p.Int()))
	}

	if n := r.Get("node"); n.Exists() {
		node, err := decodeNode(n)
		if err != nil {
			return diff.Op{}, err
		}
		node.Seal()
		op.Node = node
	}
	if (kind == diff.OpInsert || kind == diff.OpReplace) && op.Node == nil {
		return diff.Op{}, fmt.Errorf("%s without node", kind)
	}
	return op, nil
}

func decodeNode(r gjson.Result) (*markdown.Node, error) {
	kind, ok := markdown.ParseKind(r.Get("kind").String())
	if !ok {
		return nil, fmt.Errorf("unknown node kind %q", r.Get("kind").String())
	}
	n := &markdown.Node{
		ID:      markdown.NodeID(r.Get("id").Uint()),
		Kind:    kind,
		Start:   int(r.Get("start").Int()),
		End:     int(r.Get("end").Int()),
		Level:   int(r.Get("level").Int()),
		Attr:    r.Get("attr").String(),
		Literal: r.Get("literal").String(),
	}
	for _, c := range r.Get("children").Array() {
		child, err := decodeNode(c)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}
	return n, nil
}
