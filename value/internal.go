package value

import "hash/maphash"

// InternalFunctionID enumerates the closed set of built-in operations (spec
// 4.3.4).
type InternalFunctionID uint8

const (
	InternalPrint InternalFunctionID = iota
	InternalImport
	InternalGetFile
	InternalDownload
	InternalRun
	InternalEscapeRun
	InternalExtractZip
	InternalExtractTarGz
	InternalExtractTarXz
	InternalSHA256
	InternalMergeDirs
)

var internalNames = map[string]InternalFunctionID{
	"print":          InternalPrint,
	"import":         InternalImport,
	"get_file":       InternalGetFile,
	"download":       InternalDownload,
	"run":            InternalRun,
	"escape_run":     InternalEscapeRun,
	"extract_zip":    InternalExtractZip,
	"extract_tar_gz": InternalExtractTarGz,
	"extract_tar_xz": InternalExtractTarXz,
	"sha256":         InternalSHA256,
	"merge_dirs":     InternalMergeDirs,
}

// LookupInternalFunction resolves `internal.<name>` to its ID.
func LookupInternalFunction(name string) (InternalFunctionID, bool) {
	id, ok := internalNames[name]
	return id, ok
}

func (id InternalFunctionID) String() string {
	for name, v := range internalNames {
		if v == id {
			return "_" + name
		}
	}
	return "_unknown"
}

// InternalFunction is a reference to one of the enumerated built-in
// operations.
type InternalFunction struct {
	ID InternalFunctionID
}

func (f InternalFunction) Type() Type { return TypeInternalFunction }
func (f InternalFunction) Equal(other Value) bool {
	o, ok := other.(InternalFunction)
	return ok && f.ID == o.ID
}
func (f InternalFunction) Hash(h *maphash.Hash) {
	h.WriteByte(byte(TypeInternalFunction))
	h.WriteByte(byte(f.ID))
}
func (f InternalFunction) Storeable() bool { return true }
func (f InternalFunction) String() string  { return f.ID.String() }
