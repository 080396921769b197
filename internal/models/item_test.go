// ABOUTME: Test suite for the Item model
// ABOUTME: Covers display helpers and JSON field mapping against the remote wire format

package models

import (
	"encoding/json"
	"testing"
)

func TestNewItem(t *testing.T) {
	item := NewItem("665f1c2e9b", "sunset", "https://example.com/a.jpg")

	if item.ID != "665f1c2e9b" {
		t.Errorf("expected ID %q, got %q", "665f1c2e9b", item.ID)
	}
	if item.Label != "sunset" {
		t.Errorf("expected Label %q, got %q", "sunset", item.Label)
	}
	if item.Locator != "https://example.com/a.jpg" {
		t.Errorf("expected Locator to be set, got %q", item.Locator)
	}
}

func TestItem_DisplayName(t *testing.T) {
	tests := []struct {
		name string
		item Item
		want string
	}{
		{"label present", NewItem("abc", "beach", ""), "beach"},
		{"empty label", NewItem("abc", "", ""), "abc"},
		{"whitespace label", NewItem("abc", "   ", ""), "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestItem_ShortID(t *testing.T) {
	if got := NewItem("0123456789abcdef", "", "").ShortID(); got != "01234567" {
		t.Errorf("expected truncated id, got %q", got)
	}
	if got := NewItem("abc", "", "").ShortID(); got != "abc" {
		t.Errorf("expected short id unchanged, got %q", got)
	}
}

func TestItem_Valid(t *testing.T) {
	if NewItem("", "x", "y").Valid() {
		t.Error("expected item without id to be invalid")
	}
	if !NewItem("a", "", "").Valid() {
		t.Error("expected item with id to be valid")
	}
}

func TestItem_WireFormat(t *testing.T) {
	raw := `{"_id":"a1","image":"cat","link":"data:image/png;base64,AAAA","__v":0}`

	var item Item
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if item.ID != "a1" || item.Label != "cat" || item.Locator != "data:image/png;base64,AAAA" {
		t.Errorf("unexpected decode result: %+v", item)
	}
}
