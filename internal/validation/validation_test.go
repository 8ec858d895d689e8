package validation

import (
	"errors"
	"strings"
	"testing"
)

type payload struct {
	Name  string `json:"name" validate:"required,person_name,max=20"`
	Email string `json:"email" validate:"required,email"`
	Start string `json:"start" validate:"required,clock"`
	Role  string `json:"role" validate:"omitempty,oneof=user admin"`
}

func TestStruct(t *testing.T) {
	valid := payload{Name: "Zoë O'Neil-Smith", Email: "zoe@example.com", Start: "09:00", Role: "admin"}
	if err := Struct(valid); err != nil {
		t.Fatalf("valid payload: %v", err)
	}

	invalid := payload{Name: "R2D2", Email: "nope", Start: "25:00", Role: "root"}
	err := Struct(invalid)
	var fe FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors, got %T %v", err, err)
	}
	for _, field := range []string{"name", "email", "start", "role"} {
		if _, ok := fe[field]; !ok {
			t.Errorf("missing error for %s in %v", field, fe)
		}
	}
	if !strings.HasPrefix(fe.Error(), "invalid input: email:") {
		t.Errorf("errors should be sorted by field: %q", fe.Error())
	}
}

func TestStruct_Required(t *testing.T) {
	err := Struct(payload{})
	var fe FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	if fe["name"] != "is required" {
		t.Errorf("name error = %q", fe["name"])
	}
	if _, ok := fe["role"]; ok {
		t.Error("empty optional role must pass")
	}
}
