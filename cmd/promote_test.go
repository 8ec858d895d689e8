package cmd

import (
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
)

func TestSetRole(t *testing.T) {
	store := mock.NewStore()
	ada := store.AddUser(database.NewUser{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Role: database.RoleUser})

	user, err := setRole(t.Context(), store, " ADA@example.com", database.RoleAdmin)
	if err != nil {
		t.Fatalf("setRole: %v", err)
	}
	if user.ID != ada.ID || user.Role != database.RoleAdmin {
		t.Errorf("user = %+v", user)
	}
	stored, _ := store.GetUser(t.Context(), ada.ID)
	if stored.Role != database.RoleAdmin || stored.FirstName != "Ada" {
		t.Errorf("stored = %+v", stored)
	}

	if _, err := setRole(t.Context(), store, "nobody@example.com", database.RoleAdmin); err == nil {
		t.Error("expected error for unknown email")
	}
}
