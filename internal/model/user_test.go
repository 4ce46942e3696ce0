package model

import "testing"

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{"", true},
		{"short", true},
		{"1234567", true},
		{"12345678", false},
		{"a-valid-password", false},
	}

	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
		}
	}
}

func TestItemHasImage(t *testing.T) {
	if (&Item{}).HasImage() {
		t.Error("expected item without image url to report no image")
	}
	if !(&Item{ImageURL: "/uploads/1.jpg"}).HasImage() {
		t.Error("expected item with image url to report an image")
	}
}
