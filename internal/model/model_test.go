package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/oapi-typegen/internal/diag"
	"github.com/mark3labs/oapi-typegen/internal/resolve"
	"github.com/mark3labs/oapi-typegen/internal/spec"
	"github.com/mark3labs/oapi-typegen/internal/typemap"
)

func loadDict(t *testing.T, components string) *spec.Dictionary {
	t.Helper()
	doc := "openapi: 3.0.3\ninfo:\n  title: t\n  version: \"1\"\npaths: {}\ncomponents:\n  schemas:\n" + components
	src, err := spec.LoadData(context.Background(), []byte(doc), "test.yaml", spec.WithValidation(false))
	require.NoError(t, err)
	d, err := spec.BuildDocument(context.Background(), src)
	require.NoError(t, err)
	return d.Schemas
}

func derive(t *testing.T, dict *spec.Dictionary, cfg typemap.Config) (*Catalog, []diag.Warning, error) {
	t.Helper()
	var warnings diag.Collector
	res := resolve.New(dict)
	m, err := typemap.NewMapper(cfg, res, &warnings)
	require.NoError(t, err)
	d := NewDeriver(res, m, &warnings)
	if err := d.DeriveAll(); err != nil {
		return nil, warnings.Warnings(), err
	}
	cat, err := d.Finish()
	return cat, warnings.Warnings(), err
}

func mustDerive(t *testing.T, components string) (*Catalog, []diag.Warning) {
	t.Helper()
	cat, warnings, err := derive(t, loadDict(t, components), typemap.DefaultConfig())
	require.NoError(t, err)
	return cat, warnings
}

func lookup(t *testing.T, cat *Catalog, name string) *NamedType {
	t.Helper()
	nt, ok := cat.Lookup(name)
	require.True(t, ok, "no catalog entry %q", name)
	return nt
}

func field(t *testing.T, nt *NamedType, name string) *Field {
	t.Helper()
	f, ok := nt.Field(name)
	require.True(t, ok, "%s has no field %q", nt.Name, name)
	return f
}

func TestDerive_RecordRequiredAndOptional(t *testing.T) {
	cat, warnings := mustDerive(t, `
    Pet:
      type: object
      required: [name]
      properties:
        name:
          type: string
        tag:
          type: string
`)
	assert.Empty(t, warnings)
	require.Equal(t, 1, cat.Len())

	pet := lookup(t, cat, "Pet")
	assert.Equal(t, KindRecord, pet.Kind)
	require.Len(t, pet.Fields, 2)

	name := pet.Fields[0]
	assert.Equal(t, "name", name.Name)
	assert.True(t, name.Required)
	assert.True(t, typemap.Primitive(typemap.String, "").Equal(name.Type))
	assert.Equal(t, typemap.DefaultNone, name.Default)

	tag := pet.Fields[1]
	assert.False(t, tag.Required)
	assert.True(t, tag.Type.Nullable)
	assert.Equal(t, typemap.DefaultEmptyString, tag.Default)
}

func TestDerive_OptionalFieldsAlwaysNullable(t *testing.T) {
	cat, _ := mustDerive(t, `
    Thing:
      type: object
      properties:
        count:
          type: integer
          nullable: false
        items:
          type: array
          items:
            type: string
        owner:
          $ref: '#/components/schemas/Owner'
    Owner:
      type: object
      properties:
        id:
          type: string
`)
	thing := lookup(t, cat, "Thing")
	for _, f := range thing.Fields {
		assert.True(t, f.Type.Nullable, f.Name)
	}
	assert.Equal(t, typemap.DefaultZero, field(t, thing, "count").Default)
	assert.Equal(t, typemap.DefaultEmptyList, field(t, thing, "items").Default)
	assert.Equal(t, typemap.DefaultNull, field(t, thing, "owner").Default)
}

func TestDerive_DefaultsDisabled(t *testing.T) {
	cfg := typemap.DefaultConfig()
	cfg.GenerateDefaults = false
	cat, _, err := derive(t, loadDict(t, `
    Pet:
      type: object
      properties:
        tag:
          type: string
`), cfg)
	require.NoError(t, err)
	assert.Equal(t, typemap.DefaultNone, field(t, lookup(t, cat, "Pet"), "tag").Default)
}

func TestDerive_DiscriminatedSum(t *testing.T) {
	cat, warnings := mustDerive(t, `
    Cat:
      type: object
      required: [petType]
      properties:
        petType:
          type: string
        lives:
          type: integer
    Dog:
      type: object
      required: [petType]
      properties:
        petType:
          type: string
    Pet:
      oneOf:
        - $ref: '#/components/schemas/Cat'
        - $ref: '#/components/schemas/Dog'
      discriminator:
        propertyName: petType
`)
	assert.Empty(t, warnings)

	pet := lookup(t, cat, "Pet")
	assert.Equal(t, KindSum, pet.Kind)
	require.Len(t, pet.Variants, 2)
	assert.Equal(t, "Cat", pet.Variants[0].Name)
	assert.Equal(t, "Dog", pet.Variants[1].Name)
	require.NotNil(t, pet.Discriminator)
	assert.Equal(t, "petType", pet.Discriminator.Property)
	assert.Equal(t, []MappingEntry{{Value: "Cat", Target: "Cat"}, {Value: "Dog", Target: "Dog"}}, pet.Discriminator.Mapping)

	for _, name := range []string{"Cat", "Dog"} {
		member := lookup(t, cat, name)
		assert.Equal(t, []string{"Pet"}, member.Implements)
		pt := field(t, member, "petType")
		assert.True(t, pt.Override, name)
		assert.Equal(t, typemap.DefaultNone, pt.Default)
		assert.True(t, typemap.Primitive(typemap.String, "").Equal(pt.Type))
	}
	assert.False(t, field(t, lookup(t, cat, "Cat"), "lives").Override)
}

func TestDerive_ExplicitDiscriminatorMapping(t *testing.T) {
	cat, _ := mustDerive(t, `
    Shape:
      oneOf:
        - $ref: '#/components/schemas/Circle'
        - $ref: '#/components/schemas/Square'
      discriminator:
        propertyName: kind
        mapping:
          round: '#/components/schemas/Circle'
    Circle:
      type: object
      properties:
        kind:
          type: string
    Square:
      type: object
      properties:
        kind:
          type: string
`)
	shape := lookup(t, cat, "Shape")
	assert.Equal(t, []MappingEntry{{Value: "round", Target: "Circle"}, {Value: "Square", Target: "Square"}}, shape.Discriminator.Mapping)

	kind := field(t, lookup(t, cat, "Circle"), "kind")
	assert.True(t, kind.Override)
	assert.False(t, kind.Required)
	assert.True(t, kind.Type.Nullable)
}

func TestDerive_OptionalDiscriminatorPropertyStaysNullable(t *testing.T) {
	cat, warnings := mustDerive(t, `
    Pet:
      oneOf:
        - $ref: '#/components/schemas/Cat'
        - $ref: '#/components/schemas/Dog'
      discriminator:
        propertyName: petType
    Cat:
      type: object
      properties:
        petType:
          type: string
    Dog:
      type: object
      required: [petType]
      properties:
        petType:
          type: string
`)
	assert.Empty(t, warnings)

	catType := field(t, lookup(t, cat, "Cat"), "petType")
	assert.True(t, catType.Override)
	assert.False(t, catType.Required)
	assert.True(t, typemap.Primitive(typemap.String, "").WithNullable(true).Equal(catType.Type), catType.Type.String())
	assert.Equal(t, typemap.DefaultNone, catType.Default)

	dogType := field(t, lookup(t, cat, "Dog"), "petType")
	assert.True(t, dogType.Required)
	assert.False(t, dogType.Type.Nullable)
}

func TestDerive_MissingDiscriminatorProperty(t *testing.T) {
	cat, warnings := mustDerive(t, `
    Event:
      oneOf:
        - $ref: '#/components/schemas/Click'
      discriminator:
        propertyName: type
    Click:
      type: object
      properties:
        x:
          type: integer
`)
	click := lookup(t, cat, "Click")
	f := field(t, click, "type")
	assert.True(t, f.Override)
	assert.True(t, f.Required)

	require.Len(t, warnings, 1)
	assert.Equal(t, diag.MissingDiscriminatorProperty, warnings[0].Code)
	assert.Equal(t, "Click", warnings[0].Subject)
}

func TestDerive_AmbiguousMembershipLastWins(t *testing.T) {
	cat, warnings := mustDerive(t, `
    Pet:
      oneOf:
        - $ref: '#/components/schemas/Cat'
        - $ref: '#/components/schemas/Dog'
    Animal:
      oneOf:
        - $ref: '#/components/schemas/Dog'
    Cat:
      type: object
      properties:
        a:
          type: string
    Dog:
      type: object
      properties:
        b:
          type: string
`)
	pet := lookup(t, cat, "Pet")
	require.Len(t, pet.Variants, 1)
	assert.Equal(t, "Cat", pet.Variants[0].Name)

	animal := lookup(t, cat, "Animal")
	require.Len(t, animal.Variants, 1)
	assert.Equal(t, "Dog", animal.Variants[0].Name)
	assert.Equal(t, []string{"Animal"}, lookup(t, cat, "Dog").Implements)

	require.Len(t, warnings, 1)
	assert.Equal(t, diag.AmbiguousOneOfMembership, warnings[0].Code)
}

func TestDerive_MappingToMovedMemberIsDropped(t *testing.T) {
	cat, warnings := mustDerive(t, `
    Pet:
      oneOf:
        - $ref: '#/components/schemas/Cat'
        - $ref: '#/components/schemas/Dog'
      discriminator:
        propertyName: petType
        mapping:
          cat: '#/components/schemas/Cat'
          dog: '#/components/schemas/Dog'
    Animal:
      oneOf:
        - $ref: '#/components/schemas/Cat'
    Cat:
      type: object
      required: [petType]
      properties:
        petType:
          type: string
    Dog:
      type: object
      required: [petType]
      properties:
        petType:
          type: string
`)
	pet := lookup(t, cat, "Pet")
	require.Len(t, pet.Variants, 1)
	assert.Equal(t, "Dog", pet.Variants[0].Name)
	require.NotNil(t, pet.Discriminator)
	assert.Equal(t, []MappingEntry{{Value: "dog", Target: "Dog"}}, pet.Discriminator.Mapping)
	assert.Equal(t, []string{"Animal"}, lookup(t, cat, "Cat").Implements)

	var codes []diag.Code
	for _, w := range warnings {
		codes = append(codes, w.Code)
	}
	assert.ElementsMatch(t, []diag.Code{diag.AmbiguousOneOfMembership, diag.DiscriminatorMappingDropped}, codes)
	for _, w := range warnings {
		if w.Code == diag.DiscriminatorMappingDropped {
			assert.Equal(t, "Pet", w.Subject)
			assert.Equal(t, "#/components/schemas/Pet/discriminator/mapping/cat", w.Pointer)
		}
	}
}

func TestDerive_ClashingFieldIdentifiersGetSuffixes(t *testing.T) {
	cat, _ := mustDerive(t, `
    Row:
      type: object
      properties:
        foo_bar:
          type: string
        fooBar:
          type: string
        foo-bar:
          type: integer
        other:
          type: string
`)
	row := lookup(t, cat, "Row")
	var ids []string
	for _, f := range row.Fields {
		ids = append(ids, f.Identifier)
	}
	assert.Equal(t, []string{"fooBar", "fooBar_2", "fooBar_3", "other"}, ids)
	assert.Equal(t, "foo-bar", row.Fields[2].Name)
}

func TestDerive_SynthesizedDiscriminatorAvoidsIdentifierClash(t *testing.T) {
	cat, _ := mustDerive(t, `
    Event:
      oneOf:
        - $ref: '#/components/schemas/Click'
      discriminator:
        propertyName: event_type
    Click:
      type: object
      properties:
        eventType:
          type: string
`)
	click := lookup(t, cat, "Click")
	assert.Equal(t, "eventType", field(t, click, "eventType").Identifier)
	synth := field(t, click, "event_type")
	assert.Equal(t, "eventType_2", synth.Identifier)
	assert.True(t, synth.Required)
}

func TestDerive_InlineOneOfMembers(t *testing.T) {
	cat, _ := mustDerive(t, `
    Result:
      oneOf:
        - type: object
          properties:
            ok:
              type: boolean
        - type: string
`)
	result := lookup(t, cat, "Result")
	require.Len(t, result.Variants, 2)
	assert.Equal(t, "ResultVariant1", result.Variants[0].Name)
	assert.Equal(t, "ResultVariant2", result.Variants[1].Name)

	v1 := lookup(t, cat, "ResultVariant1")
	assert.Equal(t, KindRecord, v1.Kind)
	assert.True(t, v1.Synthesized)
	assert.Equal(t, []string{"Result"}, v1.Implements)

	v2 := lookup(t, cat, "ResultVariant2")
	assert.Equal(t, KindAlias, v2.Kind)
	assert.True(t, typemap.Primitive(typemap.String, "").Equal(*v2.Target))
}

func TestDerive_AdditionalPropertiesTrueIsDictionaryAlias(t *testing.T) {
	cat, _ := mustDerive(t, `
    Labels:
      type: object
      additionalProperties: true
`)
	labels := lookup(t, cat, "Labels")
	assert.Equal(t, KindAlias, labels.Kind)
	want := typemap.Dictionary(typemap.Primitive(typemap.String, ""), typemap.Dynamic(typemap.JSONValue))
	assert.True(t, want.Equal(*labels.Target), labels.Target.String())
	assert.Empty(t, labels.Fields)
}

func TestDerive_UntypedFailNamesSchema(t *testing.T) {
	cfg := typemap.DefaultConfig()
	cfg.DynamicHandling = typemap.DynamicFail
	_, _, err := derive(t, loadDict(t, `
    Anything:
      description: no type here
`), cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, diag.ErrUntypedSchemaRejected))
	var de *diag.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "Anything", de.Subject)
	assert.Equal(t, "#/components/schemas/Anything", de.Pointer)
}

func TestDerive_UntypedWarnProducesAliasAndWarning(t *testing.T) {
	cat, warnings := mustDerive(t, `
    Anything:
      description: no type here
`)
	anything := lookup(t, cat, "Anything")
	assert.Equal(t, KindAlias, anything.Kind)
	assert.Equal(t, typemap.TagDynamic, anything.Target.Tag)
	require.Len(t, warnings, 1)
	assert.Equal(t, diag.DynamicTypeUsed, warnings[0].Code)
}

func TestDerive_EnumsRoundTrip(t *testing.T) {
	cat, _ := mustDerive(t, `
    Status:
      type: string
      enum: [available, in-progress, "", 1st, available, inProgress]
`)
	status := lookup(t, cat, "Status")
	assert.Equal(t, KindEnum, status.Kind)

	var names []string
	var values []any
	for _, m := range status.Members {
		names = append(names, m.Name)
		values = append(values, m.Value)
	}
	assert.Equal(t, []string{"AVAILABLE", "IN_PROGRESS", "EMPTY", "_1ST", "IN_PROGRESS_2"}, names)
	assert.Equal(t, []any{"available", "in-progress", "", "1st", "inProgress"}, values)
	assert.True(t, typemap.Primitive(typemap.String, "").Equal(*status.ValueType))
}

func TestDerive_NestedEnumBecomesTopLevel(t *testing.T) {
	cat, _ := mustDerive(t, `
    Order:
      type: object
      properties:
        status:
          type: string
          enum: [placed, shipped]
`)
	order := lookup(t, cat, "Order")
	status := field(t, order, "status")
	assert.Equal(t, "OrderStatus", status.Type.Name)
	assert.True(t, status.Type.Nullable)
	assert.Equal(t, typemap.DefaultNull, status.Default)

	nested := lookup(t, cat, "OrderStatus")
	assert.Equal(t, KindEnum, nested.Kind)
	assert.True(t, nested.Synthesized)
	assert.Len(t, nested.Members, 2)

	types := cat.Types()
	assert.Equal(t, "Order", types[0].Name)
	assert.Equal(t, "OrderStatus", types[1].Name)
}

func TestDerive_SynthesizedNamesAvoidDictionary(t *testing.T) {
	cat, _ := mustDerive(t, `
    OrderStatus:
      type: string
    Order:
      type: object
      properties:
        status:
          type: string
          enum: [placed]
        lines:
          type: array
          items:
            type: object
            properties:
              sku:
                type: string
`)
	order := lookup(t, cat, "Order")
	assert.Equal(t, "OrderStatus2", field(t, order, "status").Type.Name)
	lines := field(t, order, "lines").Type
	assert.Equal(t, typemap.TagCollection, lines.Tag)
	assert.Equal(t, "OrderLinesItem", lines.Elem.Name)
	assert.Equal(t, KindRecord, lookup(t, cat, "OrderLinesItem").Kind)
}

func TestDerive_AllOfFlattening(t *testing.T) {
	cat, _ := mustDerive(t, `
    Base:
      type: object
      required: [id]
      properties:
        id:
          type: string
        kind:
          type: string
    Special:
      allOf:
        - $ref: '#/components/schemas/Base'
        - type: object
          properties:
            kind:
              type: integer
      properties:
        extra:
          type: boolean
    Name:
      type: string
    Label:
      allOf:
        - $ref: '#/components/schemas/Name'
`)
	special := lookup(t, cat, "Special")
	assert.Equal(t, KindRecord, special.Kind)
	require.Len(t, special.Fields, 3)
	assert.Equal(t, "id", special.Fields[0].Name)
	assert.True(t, special.Fields[0].Required)
	assert.Equal(t, typemap.Int32, special.Fields[1].Type.Scalar)
	assert.Equal(t, "extra", special.Fields[2].Name)

	label := lookup(t, cat, "Label")
	assert.Equal(t, KindAlias, label.Kind)
	assert.Equal(t, typemap.String, label.Target.Scalar)
}

func TestDerive_AllOfCycle(t *testing.T) {
	dict := spec.NewDictionary()
	dict.Put("A", &spec.Schema{AllOf: []*spec.Schema{spec.NewRef("B")}})
	dict.Put("B", &spec.Schema{AllOf: []*spec.Schema{spec.NewRef("A")}})
	_, _, err := derive(t, dict, typemap.DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, diag.ErrCyclicReference))
}

func TestDerive_AnyOfShapes(t *testing.T) {
	cat, _ := mustDerive(t, `
    Either:
      anyOf:
        - type: string
        - type: integer
    Just:
      anyOf:
        - $ref: '#/components/schemas/Thing'
    Tagged:
      anyOf:
        - $ref: '#/components/schemas/Thing'
      discriminator:
        propertyName: kind
    Thing:
      type: object
      properties:
        kind:
          type: string
`)
	either := lookup(t, cat, "Either")
	assert.Equal(t, KindWrapper, either.Kind)
	require.Len(t, either.Fields, 1)
	assert.Equal(t, "value", either.Fields[0].Name)
	assert.Equal(t, typemap.TagDynamic, either.Fields[0].Type.Tag)

	just := lookup(t, cat, "Just")
	assert.Equal(t, KindAlias, just.Kind)
	assert.Equal(t, "Thing", just.Target.Name)

	tagged := lookup(t, cat, "Tagged")
	assert.Equal(t, KindSum, tagged.Kind)
	assert.True(t, field(t, lookup(t, cat, "Thing"), "kind").Override)
}

func TestDerive_BareReferencesAndOverridesSkipped(t *testing.T) {
	cfg := typemap.DefaultConfig()
	cfg.Overrides = map[string]string{"Blob": "JsonObject"}
	cat, _, err := derive(t, loadDict(t, `
    Pet:
      type: object
      properties:
        blob:
          $ref: '#/components/schemas/Blob'
        friend:
          $ref: '#/components/schemas/PetRef'
    PetRef:
      $ref: '#/components/schemas/Pet'
    Blob:
      description: arbitrary
`), cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, cat.Len())
	pet := lookup(t, cat, "Pet")
	assert.True(t, typemap.Dynamic(typemap.JSONObject).WithNullable(true).Equal(field(t, pet, "blob").Type))
	assert.Equal(t, "Pet", field(t, pet, "friend").Type.Name)
}

func TestDerive_DanglingOverrideReference(t *testing.T) {
	cfg := typemap.DefaultConfig()
	cfg.Overrides = map[string]string{"Blob": "Missing"}
	_, _, err := derive(t, loadDict(t, `
    Pet:
      type: object
      properties:
        blob:
          $ref: '#/components/schemas/Blob'
    Blob:
      type: object
`), cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, diag.ErrUnresolvedReference))
	assert.Contains(t, err.Error(), "Missing")
}

func TestDerive_CaseInsensitiveCollisions(t *testing.T) {
	cat, _ := mustDerive(t, `
    Pet:
      type: object
      properties:
        id:
          type: string
    pet:
      type: string
    Owner:
      type: string
`)
	assert.Equal(t, 3, cat.Len())
	assert.Equal(t, "pet", lookup(t, cat, "Pet").CollisionGroup)
	assert.Equal(t, "pet", lookup(t, cat, "pet").CollisionGroup)
	assert.Empty(t, lookup(t, cat, "Owner").CollisionGroup)
	assert.Equal(t, [][]string{{"Pet", "pet"}}, cat.Collisions())
}

func TestDerive_Deterministic(t *testing.T) {
	components := `
    Z:
      type: object
      properties:
        b:
          type: string
        a:
          type: object
          properties:
            x:
              type: integer
    A:
      type: string
      enum: [one, two]
`
	first, _ := mustDerive(t, components)
	second, _ := mustDerive(t, components)
	assert.Equal(t, first.Types(), second.Types())

	var names []string
	for _, nt := range first.Types() {
		names = append(names, nt.Name)
	}
	assert.Equal(t, []string{"Z", "ZA", "A"}, names)
	assert.Equal(t, "b", lookup(t, first, "Z").Fields[0].Name)
}
