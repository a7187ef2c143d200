package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/seedloader/internal/domain"
)

func farmerSchema() *Schema {
	return &Schema{
		Extra: ExtraForbid,
		Fields: map[string]*Field{
			"farmer_id":  {Type: TypeString, Required: true, MinLength: 1},
			"first_name": {Type: TypeString, Required: true},
			"last_name":  {Type: TypeString, Required: true},
			"age":        {Type: TypeInteger},
			"farm_size":  {Type: TypeNumber},
			"active":     {Type: TypeBoolean},
			"joined_at":  {Type: TypeDatetime},
			"status":     {Type: TypeString, Enum: []string{"active", "suspended"}},
			"agent_id":   {Type: TypeString, Nullable: true},
			"contact": {
				Type: TypeObject,
				Fields: map[string]*Field{
					"phone": {Type: TypeString, Required: true},
					"email": {Type: TypeString},
				},
			},
			"plots": {
				Type: TypeArray,
				Items: &Field{
					Type: TypeObject,
					Fields: map[string]*Field{
						"name":     {Type: TypeString, Required: true},
						"hectares": {Type: TypeNumber},
					},
				},
			},
			"tags": {Type: TypeArray, Items: &Field{Type: TypeString}},
		},
	}
}

func decodeRecords(t *testing.T, data string) []any {
	t.Helper()
	records, malformed := Decode([]byte(data), "farmers.json")
	require.Nil(t, malformed)
	return records
}

func TestValidate_ValidRecords(t *testing.T) {
	t.Parallel()

	records := decodeRecords(t, `[
		{"farmer_id": "f-1", "first_name": "Amina", "last_name": "Otieno", "age": 41, "farm_size": 2.5,
		 "active": true, "joined_at": "2023-04-01", "status": "active", "agent_id": null,
		 "contact": {"phone": "+254700000001"},
		 "plots": [{"name": "north", "hectares": 1.5}], "tags": ["tea"]},
		{"farmer_id": "f-2", "first_name": "Brian", "last_name": "Kamau", "joined_at": "2023-04-01T08:00:00Z"}
	]`)

	out := Validate(records, farmerSchema(), "farmers.json")

	assert.True(t, out.IsValid())
	assert.Len(t, out.ValidatedRecords, 2)
	assert.Equal(t, []int{0, 1}, out.SourceIndexes)
	assert.Equal(t, 2, out.Total)
	assert.Equal(t, "farmers.json", out.SourceFile)
}

func TestValidate_MissingRequiredField(t *testing.T) {
	t.Parallel()

	records := decodeRecords(t, `[
		{"farmer_id": "f-1", "first_name": "Amina", "last_name": "Otieno"},
		{"farmer_id": "f-2", "first_name": "Brian"}
	]`)

	out := Validate(records, farmerSchema(), "farmers.json")

	require.Len(t, out.Errors, 1)
	got := out.Errors[0]
	assert.Equal(t, "last_name", got.FieldPath)
	assert.Equal(t, 1, got.RecordIndex)
	assert.Equal(t, domain.KindMissing, got.Kind)
	assert.Equal(t, "field required", got.Message)
	assert.Equal(t, "farmers.json", got.SourceFile)

	require.Len(t, out.ValidatedRecords, 1)
	assert.Equal(t, "f-1", out.ValidatedRecords[0]["farmer_id"])
	assert.Equal(t, []int{0}, out.SourceIndexes)
}

func TestValidate_ExtraFieldRejectsWholeRecord(t *testing.T) {
	t.Parallel()

	records := decodeRecords(t, `[{"farmer_id": "f-1", "first_name": "A", "last_name": "B", "unexpected_field": true}]`)

	out := Validate(records, farmerSchema(), "farmers.json")

	require.Len(t, out.Errors, 1)
	assert.Equal(t, "unexpected_field", out.Errors[0].FieldPath)
	assert.Equal(t, domain.KindExtraForbidden, out.Errors[0].Kind)
	assert.Equal(t, "extra field not permitted", out.Errors[0].Message)
	assert.Empty(t, out.ValidatedRecords, "record must be rejected, not stripped")
}

func TestValidate_ExtraIgnorePolicy(t *testing.T) {
	t.Parallel()

	s := farmerSchema()
	s.Extra = ExtraIgnore
	records := decodeRecords(t, `[{"farmer_id": "f-1", "first_name": "A", "last_name": "B", "unexpected_field": true}]`)

	out := Validate(records, s, "farmers.json")

	assert.True(t, out.IsValid())
	assert.Len(t, out.ValidatedRecords, 1)
}

func TestValidate_TypeMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		record  string
		path    string
		kind    domain.ErrorKind
		message string
	}{
		{"integer", `"age": "forty"`, "age", domain.KindTypeError, "value must be an integer"},
		{"fractional integer", `"age": 41.5`, "age", domain.KindTypeError, "value must be an integer"},
		{"number", `"farm_size": "big"`, "farm_size", domain.KindTypeError, "value must be a number"},
		{"boolean", `"active": "yes"`, "active", domain.KindTypeError, "value must be a boolean"},
		{"datetime", `"joined_at": "last tuesday"`, "joined_at", domain.KindTypeError, "value must be a valid datetime"},
		{"string", `"first_name": 7, "last_name": "B"`, "first_name", domain.KindTypeError, "value must be a string"},
		{"object", `"contact": "none"`, "contact", domain.KindTypeError, "value must be an object"},
		{"array", `"tags": "tea"`, "tags", domain.KindTypeError, "value must be an array"},
		{"enum", `"status": "retired"`, "status", domain.KindEnum, "value must be one of: active, suspended"},
		{"min length", `"farmer_id": ""`, "farmer_id", domain.KindTooShort, "value must have at least 1 characters"},
		{"nested required", `"contact": {"email": "a@b.c"}`, "contact.phone", domain.KindMissing, "field required"},
		{"nested extra", `"contact": {"phone": "1", "fax": "2"}`, "contact.fax", domain.KindExtraForbidden, "extra field not permitted"},
		{"array item", `"plots": [{"name": "a"}, {"name": 3}]`, "plots[1].name", domain.KindTypeError, "value must be a string"},
		{"array scalar item", `"tags": ["tea", 4]`, "tags[1]", domain.KindTypeError, "value must be a string"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := decodeRecords(t, "{"+tt.record+"}")[0].(map[string]any)
			full := decodeRecords(t, `{"farmer_id": "f-1", "first_name": "A", "last_name": "B"}`)[0].(map[string]any)
			for k, v := range rec {
				full[k] = v
			}

			out := Validate([]any{full}, farmerSchema(), "farmers.json")

			require.Len(t, out.Errors, 1, "errors: %v", out.Errors)
			assert.Equal(t, tt.path, out.Errors[0].FieldPath)
			assert.Equal(t, tt.kind, out.Errors[0].Kind)
			assert.Equal(t, tt.message, out.Errors[0].Message)
			assert.Empty(t, out.ValidatedRecords)
		})
	}
}

func TestValidate_CollectsAllErrorsAcrossRecords(t *testing.T) {
	t.Parallel()

	records := decodeRecords(t, `[
		{"farmer_id": "f-1", "extra": 1},
		{"farmer_id": "f-2", "first_name": "A", "last_name": "B"},
		"not an object",
		{"farmer_id": "f-4", "first_name": "A", "last_name": "B", "age": "x", "active": 1}
	]`)

	out := Validate(records, farmerSchema(), "farmers.json")

	var got []string
	for _, e := range out.Errors {
		got = append(got, e.FieldPath)
	}
	// Record 0: extra first, then missing fields in name order.
	assert.Equal(t, []string{"extra", "first_name", "last_name", "root", "active", "age"}, got)
	assert.Equal(t, []int{0, 0, 0, 2, 3, 3}, []int{
		out.Errors[0].RecordIndex, out.Errors[1].RecordIndex, out.Errors[2].RecordIndex,
		out.Errors[3].RecordIndex, out.Errors[4].RecordIndex, out.Errors[5].RecordIndex,
	})
	assert.Equal(t, []int{1}, out.SourceIndexes)
	assert.Equal(t, 4, out.Total)
}

func TestValidate_NullRequiredField(t *testing.T) {
	t.Parallel()

	records := decodeRecords(t, `[{"farmer_id": "f-1", "first_name": null, "last_name": "B"}]`)

	out := Validate(records, farmerSchema(), "farmers.json")

	require.Len(t, out.Errors, 1)
	assert.Equal(t, "first_name", out.Errors[0].FieldPath)
	assert.Equal(t, domain.KindMissing, out.Errors[0].Kind)
}

func TestDecode(t *testing.T) {
	t.Parallel()

	t.Run("array", func(t *testing.T) {
		records, bad := Decode([]byte(`[{"a": 1}, {"a": 2}]`), "x.json")
		require.Nil(t, bad)
		assert.Len(t, records, 2)
	})

	t.Run("single object", func(t *testing.T) {
		records, bad := Decode([]byte(`{"a": 1}`), "x.json")
		require.Nil(t, bad)
		assert.Len(t, records, 1)
	})

	t.Run("empty array", func(t *testing.T) {
		records, bad := Decode([]byte(`[]`), "x.json")
		require.Nil(t, bad)
		assert.Empty(t, records)
	})

	for name, data := range map[string]string{
		"not json":        `{"a": `,
		"scalar":          `42`,
		"string":          `"regions"`,
		"null":            `null`,
		"trailing values": `[] []`,
	} {
		t.Run(name, func(t *testing.T) {
			records, bad := Decode([]byte(data), "x.json")
			assert.Nil(t, records)
			require.NotNil(t, bad)
			assert.Equal(t, 0, bad.RecordIndex)
			assert.Equal(t, RootPath, bad.FieldPath)
			assert.Equal(t, domain.KindMalformed, bad.Kind)
			assert.Equal(t, "x.json", bad.SourceFile)
		})
	}
}

func TestSchema_Check(t *testing.T) {
	t.Parallel()

	require.NoError(t, farmerSchema().Check())

	bad := []*Schema{
		{},
		{Fields: map[string]*Field{"a": {Type: "uuid"}}},
		{Fields: map[string]*Field{"a": {Type: TypeArray}}},
		{Fields: map[string]*Field{"a": {Type: TypeString}}, Extra: "allow"},
		{Fields: map[string]*Field{"a": {Type: TypeObject, Fields: map[string]*Field{"b": nil}}}},
	}
	for i, s := range bad {
		assert.Error(t, s.Check(), "schema %d should be rejected", i)
		assert.Error(t, s.Compile(), "schema %d should not compile", i)
	}
}

func TestValidate_NullValues(t *testing.T) {
	t.Parallel()

	s := farmerSchema()
	s.Fields["grade"] = &Field{Type: TypeString, Nullable: true, Enum: []string{"a", "b"}}

	records := decodeRecords(t, `[
		{"farmer_id": "f-1", "first_name": "A", "last_name": "B", "age": null, "grade": null},
		{"farmer_id": "f-2", "first_name": "A", "last_name": "B", "tags": ["tea", null]}
	]`)

	out := Validate(records, s, "farmers.json")

	assert.Equal(t, []int{0}, out.SourceIndexes, "an optional null is treated as absent")
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "tags[1]", out.Errors[0].FieldPath)
	assert.Equal(t, domain.KindTypeError, out.Errors[0].Kind)
	assert.Equal(t, "value must be a string", out.Errors[0].Message)
}

func TestValidate_SeveralErrorsOnOneField(t *testing.T) {
	t.Parallel()

	s := farmerSchema()
	s.Fields["code"] = &Field{Type: TypeString, MinLength: 3, Enum: []string{"abc", "xyz"}}
	records := decodeRecords(t, `[{"farmer_id": "f-1", "first_name": "A", "last_name": "B", "code": "q"}]`)

	out := Validate(records, s, "farmers.json")

	require.Len(t, out.Errors, 2)
	assert.Equal(t, domain.KindTooShort, out.Errors[0].Kind)
	assert.Equal(t, domain.KindEnum, out.Errors[1].Kind)
	assert.Equal(t, "code", out.Errors[1].FieldPath)
}

func TestValidate_NestedErrorsFollowFieldOrder(t *testing.T) {
	t.Parallel()

	records := decodeRecords(t, `[{"farmer_id": "f-1", "first_name": "A", "last_name": "B", "zone": 1,
		"plots": [{"hectares": "x"}, {"name": "b", "soil": "clay"}], "contact": {"fax": "1"}}]`)

	out := Validate(records, farmerSchema(), "farmers.json")

	var got []string
	for _, e := range out.Errors {
		got = append(got, e.FieldPath)
	}
	assert.Equal(t, []string{
		"zone",
		"contact.fax", "contact.phone",
		"plots[0].hectares", "plots[0].name",
		"plots[1].soil",
	}, got)
}

func TestValidate_UncompilableSchema(t *testing.T) {
	t.Parallel()

	s := &Schema{Fields: map[string]*Field{"a": {Type: TypeArray}}}
	records := decodeRecords(t, `[{"a": []}, {"a": []}]`)

	out := Validate(records, s, "x.json")

	require.Len(t, out.Errors, 2)
	assert.Equal(t, domain.KindMalformed, out.Errors[0].Kind)
	assert.Equal(t, RootPath, out.Errors[1].FieldPath)
	assert.Empty(t, out.ValidatedRecords)
}

func TestSchema_Document(t *testing.T) {
	t.Parallel()

	s := &Schema{
		Extra: ExtraIgnore,
		Fields: map[string]*Field{
			"id":       {Type: TypeString, Required: true},
			"agent_id": {Type: TypeString, Required: true, Nullable: true},
			"seen_at":  {Type: TypeDatetime},
			"contact":  {Type: TypeObject, Fields: map[string]*Field{"phone": {Type: TypeString}}},
		},
	}

	raw, err := s.Document()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, []any{"agent_id", "id"}, doc["required"])
	assert.NotContains(t, doc, "additionalProperties")

	props := doc["properties"].(map[string]any)
	assert.Equal(t, "string", props["id"].(map[string]any)["type"])
	assert.Equal(t, []any{"string", "null"}, props["agent_id"].(map[string]any)["type"])
	assert.Equal(t, formatDatetime, props["seen_at"].(map[string]any)["format"])
	assert.Equal(t, false, props["contact"].(map[string]any)["additionalProperties"])

	require.NoError(t, s.Compile())
}
