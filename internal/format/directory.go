package format

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/rowtable/internal/compress"
	"github.com/hupe1980/rowtable/internal/conv"
)

// State is the lifecycle state of a group.
type State uint8

const (
	// StateOpen marks a group whose writer has not closed yet.
	StateOpen State = 1
	// StateFinalized marks a sealed, readable group.
	StateFinalized State = 2
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Section locates a byte range inside the file.
type Section struct {
	Offset uint64
	Length uint64
}

// End returns the offset one past the section.
func (s Section) End() uint64 { return s.Offset + s.Length }

// GroupEntry describes one table inside the file.
type GroupEntry struct {
	Name         string
	State        State
	Compression  compress.Type
	Rows         uint64
	Cols         uint64
	Placeholder  float32
	RowNames     Section
	Columns      Section
	Bitmap       Section
	Data         Section
	DataChecksum uint32
	// CRC32C of the stored row and column name sections.
	RowNamesChecksum uint32
	ColumnsChecksum  uint32
}

// RowSize returns the byte size of one row.
func (e *GroupEntry) RowSize() int64 {
	return int64(e.Cols) * 4
}

// RowOffset returns the file offset of row i.
func (e *GroupEntry) RowOffset(i int) int64 {
	return int64(e.Data.Offset) + int64(i)*e.RowSize()
}

// Directory is the committed set of groups.
type Directory struct {
	Generation uint64
	Groups     []GroupEntry
}

// Lookup returns the group with the given name.
func (d *Directory) Lookup(name string) (*GroupEntry, bool) {
	for i := range d.Groups {
		if d.Groups[i].Name == name {
			return &d.Groups[i], true
		}
	}
	return nil, false
}

// Put replaces the group with the same name or appends e.
func (d *Directory) Put(e GroupEntry) {
	for i := range d.Groups {
		if d.Groups[i].Name == e.Name {
			d.Groups[i] = e
			return
		}
	}
	d.Groups = append(d.Groups, e)
}

// Encode serializes the directory.
func (d *Directory) Encode() []byte {
	buf := binary.AppendUvarint(nil, uint64(len(d.Groups)))
	for i := range d.Groups {
		e := &d.Groups[i]
		buf = binary.AppendUvarint(buf, uint64(len(e.Name)))
		buf = append(buf, e.Name...)
		buf = append(buf, byte(e.State), byte(e.Compression))
		buf = binary.AppendUvarint(buf, e.Rows)
		buf = binary.AppendUvarint(buf, e.Cols)
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(e.Placeholder))
		for _, s := range []Section{e.RowNames, e.Columns, e.Bitmap, e.Data} {
			buf = binary.AppendUvarint(buf, s.Offset)
			buf = binary.AppendUvarint(buf, s.Length)
		}
		buf = binary.LittleEndian.AppendUint32(buf, e.DataChecksum)
		buf = binary.LittleEndian.AppendUint32(buf, e.RowNamesChecksum)
		buf = binary.LittleEndian.AppendUint32(buf, e.ColumnsChecksum)
	}
	return buf
}

// DecodeDirectory parses a directory and checks that every section lies
// within a file of fileSize bytes.
func DecodeDirectory(buf []byte, fileSize int64) (*Directory, error) {
	c := cursor{buf: buf}
	count := c.uvarint()
	if c.err != nil {
		return nil, c.err
	}
	if count > uint64(len(buf)) {
		return nil, fmt.Errorf("%w: group count %d exceeds directory", ErrCorrupt, count)
	}

	d := &Directory{Groups: make([]GroupEntry, 0, count)}
	for i := uint64(0); i < count; i++ {
		var e GroupEntry
		e.Name = c.string()
		e.State = State(c.byte())
		e.Compression = compress.Type(c.byte())
		e.Rows = c.uvarint()
		e.Cols = c.uvarint()
		e.Placeholder = math.Float32frombits(c.uint32())
		for _, s := range []*Section{&e.RowNames, &e.Columns, &e.Bitmap, &e.Data} {
			s.Offset = c.uvarint()
			s.Length = c.uvarint()
		}
		e.DataChecksum = c.uint32()
		e.RowNamesChecksum = c.uint32()
		e.ColumnsChecksum = c.uint32()
		if c.err != nil {
			return nil, c.err
		}
		if err := e.validate(fileSize); err != nil {
			return nil, err
		}
		d.Groups = append(d.Groups, e)
	}
	if c.off != len(buf) {
		return nil, fmt.Errorf("%w: %d trailing bytes after directory", ErrCorrupt, len(buf)-c.off)
	}
	return d, nil
}

func (e *GroupEntry) validate(fileSize int64) error {
	if e.Name == "" {
		return fmt.Errorf("%w: group with empty name", ErrCorrupt)
	}
	if e.State != StateOpen && e.State != StateFinalized {
		return fmt.Errorf("%w: group %q has %s", ErrCorrupt, e.Name, e.State)
	}
	if !e.Compression.Valid() {
		return fmt.Errorf("%w: group %q uses %s", ErrCorrupt, e.Name, e.Compression)
	}
	if e.Rows == 0 || e.Cols == 0 {
		return fmt.Errorf("%w: group %q has shape %dx%d", ErrCorrupt, e.Name, e.Rows, e.Cols)
	}
	body, err := conv.BodySize(e.Rows, e.Cols)
	if err != nil {
		return fmt.Errorf("%w: group %q: %w", ErrCorrupt, e.Name, err)
	}
	if e.Data.Length != uint64(body) {
		return fmt.Errorf("%w: group %q data is %d bytes, want %d", ErrCorrupt, e.Name, e.Data.Length, body)
	}
	for _, s := range []Section{e.RowNames, e.Columns, e.Bitmap, e.Data} {
		if s.Offset < DataStart && s.Length > 0 {
			return fmt.Errorf("%w: group %q section overlaps superblocks", ErrCorrupt, e.Name)
		}
		if s.End() < s.Offset || s.End() > uint64(fileSize) {
			return fmt.Errorf("%w: group %q section [%d,+%d) outside file of %d bytes",
				ErrCorrupt, e.Name, s.Offset, s.Length, fileSize)
		}
	}
	if e.Data.Offset%Alignment != 0 {
		return fmt.Errorf("%w: group %q data at unaligned offset %d", ErrCorrupt, e.Name, e.Data.Offset)
	}
	return nil
}
