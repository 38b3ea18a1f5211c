package typemap

// Types that some spec generators reference without ever defining.
var specialTypes = map[string]ResolvedType{
	"Time":         Primitive(Instant, "date-time"),
	"NullTime":     Primitive(Instant, "date-time").WithNullable(true),
	"nullTime":     Primitive(Instant, "date-time").WithNullable(true),
	"UUID":         Primitive(String, "uuid"),
	"NullUUID":     Primitive(String, "uuid").WithNullable(true),
	"nullUUID":     Primitive(String, "uuid").WithNullable(true),
	"Duration":     Primitive(String, ""),
	"NullDuration": Primitive(String, "").WithNullable(true),
	"nullDuration": Primitive(String, "").WithNullable(true),
	"Int64":        Primitive(Int64, "int64"),
	"NullInt64":    Primitive(Int64, "int64").WithNullable(true),
	"nullInt64":    Primitive(Int64, "int64").WithNullable(true),
	"AmountInCent": Primitive(Int64, "int64"),

	"CodeChannel":                 Primitive(String, ""),
	"webAuthnJavaScript":          Primitive(String, ""),
	"courierMessageStatus":        Primitive(String, ""),
	"courierMessageType":          Primitive(String, ""),
	"selfServiceFlowType":         Primitive(String, ""),
	"authenticatorAssuranceLevel": Primitive(String, ""),
	"InvoiceStatus":               Primitive(String, ""),
	"CustomHostnameStatus":        Primitive(String, ""),

	"checkOplSyntaxBody": Dynamic(JSONValue),
}

// Special looks name up in the special type registry.
func Special(name string) (ResolvedType, bool) {
	t, ok := specialTypes[name]
	return t, ok
}
