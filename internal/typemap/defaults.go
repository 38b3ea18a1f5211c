package typemap

// Default is a policy default for an optional field.
type Default string

const (
	DefaultNone        Default = ""
	DefaultEmptyString Default = "empty_string"
	DefaultZero        Default = "zero"
	DefaultFalse       Default = "false"
	DefaultEmptyList   Default = "empty_list"
	DefaultEmptyMap    Default = "empty_map"
	DefaultNull        Default = "null"
)

// DefaultFor returns the default an optional field of type t gets. Named
// references, enums included, and dynamic values default to null.
func DefaultFor(t ResolvedType) Default {
	switch t.Tag {
	case TagPrimitive:
		switch t.Scalar {
		case String:
			return DefaultEmptyString
		case Int32, Int64, Float32, Float64:
			return DefaultZero
		case Boolean:
			return DefaultFalse
		}
		return DefaultNull
	case TagCollection:
		return DefaultEmptyList
	case TagDictionary:
		return DefaultEmptyMap
	}
	return DefaultNull
}
