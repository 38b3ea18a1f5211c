package typemap

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	identRe  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	dottedRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)+$`)
)

// ParseOverride parses a type override descriptor:
//
//	JsonElement | JsonObject | JsonArray | JsonPrimitive | Any
//	Map<String, JsonElement>
//	pkg.Type    (external)
//	Type        (catalog reference in modelsPkg)
func ParseOverride(desc, modelsPkg string) (ResolvedType, error) {
	d := strings.TrimSpace(desc)
	switch d {
	case "":
		return ResolvedType{}, fmt.Errorf("empty type descriptor")
	case "JsonElement":
		return Dynamic(JSONValue), nil
	case "JsonObject":
		return Dynamic(JSONObject), nil
	case "JsonArray":
		return Dynamic(JSONArray), nil
	case "JsonPrimitive":
		return Dynamic(JSONPrimitive), nil
	case "Any":
		return Dynamic(AnyValue), nil
	}
	if compact := strings.Join(strings.Fields(d), ""); compact == "Map<String,JsonElement>" {
		return Dictionary(Primitive(String, ""), Dynamic(JSONValue)), nil
	}
	if dottedRe.MatchString(d) {
		return ExternalNamed(d), nil
	}
	if identRe.MatchString(d) {
		return Named(d, modelsPkg), nil
	}
	return ResolvedType{}, fmt.Errorf("unrecognized type descriptor %q", desc)
}
