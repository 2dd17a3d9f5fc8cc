package value

// Field is one named, typed member of a record Type.
type Field struct {
	Name string
	Type Type
}

// Type is the schema tree parallel to Value: it describes the shape a
// Value of a given Tag must have, without carrying any data itself.
// Containers record their inner type(s); record types additionally carry
// an ordered list of named fields and may nest arbitrarily.
type Type struct {
	Kind   Tag
	Name   string  // interned schema name, meaningful for Record types (e.g. "bro::conn")
	Fields []Field // meaningful for Record
	Elem   *Type   // meaningful for Vector/Set
	Key    *Type   // meaningful for Table
	Val    *Type   // meaningful for Table
}

func BasicType(k Tag) Type { return Type{Kind: k} }

func RecordType(name string, fields ...Field) Type {
	return Type{Kind: Record, Name: name, Fields: append([]Field(nil), fields...)}
}

func VectorType(elem Type) Type { return Type{Kind: Vector, Elem: &elem} }

func SetType(elem Type) Type { return Type{Kind: Set, Elem: &elem} }

func TableType(key, val Type) Type { return Type{Kind: Table, Key: &key, Val: &val} }

// TypeEqual reports structural equality of two schema trees.
func TypeEqual(a, b Type) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case Record:
		if a.Name != b.Name || len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if a.Fields[i].Name != b.Fields[i].Name || !TypeEqual(a.Fields[i].Type, b.Fields[i].Type) {
				return false
			}
		}
		return true
	case Vector, Set:
		if a.Elem == nil || b.Elem == nil {
			return a.Elem == b.Elem
		}
		return TypeEqual(*a.Elem, *b.Elem)
	case Table:
		if (a.Key == nil) != (b.Key == nil) || (a.Val == nil) != (b.Val == nil) {
			return false
		}
		if a.Key != nil && !TypeEqual(*a.Key, *b.Key) {
			return false
		}
		if a.Val != nil && !TypeEqual(*a.Val, *b.Val) {
			return false
		}
		return true
	default:
		return true
	}
}

// TypeOf derives the schema of a concrete Value. Record field names are not
// recoverable from a bare Value (the tagged union carries no field labels),
// so TypeOf synthesizes positional names; callers that need named fields
// carry the authoritative Type alongside the Value (as event.Event does).
func TypeOf(v Value) Type {
	switch Which(v) {
	case Record:
		elems, _ := AsElems(v)
		fields := make([]Field, len(elems))
		for i, e := range elems {
			fields[i] = Field{Type: TypeOf(e)}
		}
		return RecordType("", fields...)
	case Vector:
		elems, _ := AsElems(v)
		if len(elems) == 0 {
			return VectorType(BasicType(None))
		}
		return VectorType(TypeOf(elems[0]))
	case Set:
		elems, _ := AsElems(v)
		if len(elems) == 0 {
			return SetType(BasicType(None))
		}
		return SetType(TypeOf(elems[0]))
	case Table:
		entries, _ := AsTable(v)
		if len(entries) == 0 {
			return TableType(BasicType(None), BasicType(None))
		}
		return TableType(TypeOf(entries[0].Key), TypeOf(entries[0].Val))
	default:
		return BasicType(Which(v))
	}
}
