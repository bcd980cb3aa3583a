package value

import "hash/maphash"

// AreaKind distinguishes a Local host path from a Generated, core-owned
// workspace.
type AreaKind uint8

const (
	AreaLocal AreaKind = iota
	AreaGenerated
)

// FileArea is a container of files: either a Local absolute host path or a
// Generated opaque-id workspace the evaluator itself owns.
type FileArea struct {
	Kind AreaKind
	// Path is set when Kind == AreaLocal: an absolute host path.
	Path string
	// GeneratedID is set when Kind == AreaGenerated: a process-local unique
	// identifier allocated by the evaluator (spec 5: "allocated from a
	// process-local source of unique identifiers").
	GeneratedID uint64
}

func (a FileArea) Type() Type { return TypeFileArea }
func (a FileArea) Equal(other Value) bool {
	o, ok := other.(FileArea)
	if !ok || a.Kind != o.Kind {
		return false
	}
	if a.Kind == AreaLocal {
		return a.Path == o.Path
	}
	return a.GeneratedID == o.GeneratedID
}
func (a FileArea) Hash(h *maphash.Hash) {
	h.WriteByte(byte(TypeFileArea))
	h.WriteByte(byte(a.Kind))
	if a.Kind == AreaLocal {
		h.WriteString(a.Path)
	} else {
		var b [8]byte
		putUint64(b[:], a.GeneratedID)
		h.Write(b[:])
	}
}

// Storeable is true only for Generated areas: a Local area's contents may
// change out-of-band, so values referencing it are never admitted into the
// cache (spec 3.1).
func (a FileArea) Storeable() bool { return a.Kind == AreaGenerated }

func (a FileArea) String() string {
	if a.Kind == AreaLocal {
		return "area:local:" + a.Path
	}
	return "area:generated"
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// File is a path within a FileArea.
type File struct {
	Area FileArea
	Path string
}

func (f File) Type() Type { return TypeFile }
func (f File) Equal(other Value) bool {
	o, ok := other.(File)
	return ok && f.Area.Equal(o.Area) && f.Path == o.Path
}
func (f File) Hash(h *maphash.Hash) {
	h.WriteByte(byte(TypeFile))
	f.Area.Hash(h)
	h.WriteString(f.Path)
}

// Storeable mirrors FileArea.Storeable (spec 3.1): a Local-area File is
// never storeable because the host may mutate it out-of-band.
func (f File) Storeable() bool { return f.Area.Storeable() }
func (f File) String() string  { return f.Area.String() + f.Path }

// Directory is a path within a FileArea, analogous to File.
type Directory struct {
	Area FileArea
	Path string
}

func (d Directory) Type() Type { return TypeDirectory }
func (d Directory) Equal(other Value) bool {
	o, ok := other.(Directory)
	return ok && d.Area.Equal(o.Area) && d.Path == o.Path
}
func (d Directory) Hash(h *maphash.Hash) {
	h.WriteByte(byte(TypeDirectory))
	d.Area.Hash(h)
	h.WriteString(d.Path)
}
func (d Directory) Storeable() bool { return d.Area.Storeable() }
func (d Directory) String() string  { return d.Area.String() + d.Path + "/" }
