package parser

import "testing"

func typeWithFields(name string, fields ...Field) Definition {
	return Definition{
		Name:   name,
		Kind:   KindInterface,
		Fields: fields,
	}
}

func TestValidateTypeCompatibilityReflexive(t *testing.T) {
	user := typeWithFields("User",
		Field{Name: "id", Type: "string"},
		Field{Name: "email", Type: "string", Optional: true},
	)
	result := ValidateTypeCompatibility(user, user)
	if !result.Compatible {
		t.Errorf("a type must be compatible with itself: %+v", result.Issues)
	}
}

func TestValidateTypeCompatibilityRemovedField(t *testing.T) {
	oldT := typeWithFields("User",
		Field{Name: "id", Type: "string"},
		Field{Name: "email", Type: "string"},
	)
	newT := typeWithFields("User",
		Field{Name: "id", Type: "string"},
	)
	result := ValidateTypeCompatibility(oldT, newT)
	if result.Compatible {
		t.Fatal("removing a field must be incompatible")
	}
	if len(result.Issues) != 1 || result.Issues[0].Field != "email" {
		t.Errorf("expected an issue for email, got %+v", result.Issues)
	}
}

func TestValidateTypeCompatibilityNarrowedField(t *testing.T) {
	oldT := typeWithFields("Order", Field{Name: "total", Type: "number | string"})
	newT := typeWithFields("Order", Field{Name: "total", Type: "number"})
	result := ValidateTypeCompatibility(oldT, newT)
	if result.Compatible {
		t.Error("narrowing a union must be incompatible")
	}
}

func TestValidateTypeCompatibilityWidenedField(t *testing.T) {
	cases := []struct {
		name string
		oldF string
		newF string
	}{
		{"same type", "number", "number"},
		{"to any", "number", "any"},
		{"to unknown", "string", "unknown"},
		{"into union", "number", "number | string"},
		{"union superset", "number | string", "number | string | boolean"},
	}
	for _, tc := range cases {
		oldT := typeWithFields("Order", Field{Name: "total", Type: tc.oldF})
		newT := typeWithFields("Order", Field{Name: "total", Type: tc.newF})
		result := ValidateTypeCompatibility(oldT, newT)
		if !result.Compatible {
			t.Errorf("%s: %q -> %q should widen: %+v", tc.name, tc.oldF, tc.newF, result.Issues)
		}
	}
}

func TestValidateTypeCompatibilityNewRequiredField(t *testing.T) {
	oldT := typeWithFields("User", Field{Name: "id", Type: "string"})
	newT := typeWithFields("User",
		Field{Name: "id", Type: "string"},
		Field{Name: "tenant", Type: "string"},
	)
	result := ValidateTypeCompatibility(oldT, newT)
	if result.Compatible {
		t.Error("adding a required field must be incompatible")
	}
}

func TestValidateTypeCompatibilityNewOptionalField(t *testing.T) {
	oldT := typeWithFields("User", Field{Name: "id", Type: "string"})
	newT := typeWithFields("User",
		Field{Name: "id", Type: "string"},
		Field{Name: "nickname", Type: "string", Optional: true},
	)
	result := ValidateTypeCompatibility(oldT, newT)
	if !result.Compatible {
		t.Errorf("adding an optional field is compatible: %+v", result.Issues)
	}
}

func TestValidateTypeCompatibilityOptionalBecomesRequired(t *testing.T) {
	oldT := typeWithFields("User", Field{Name: "email", Type: "string", Optional: true})
	newT := typeWithFields("User", Field{Name: "email", Type: "string"})
	result := ValidateTypeCompatibility(oldT, newT)
	if result.Compatible {
		t.Error("an optional field turning required must be incompatible")
	}
}
