package wpclient

import (
	"testing"

	"github.com/docdyhr/mcp-wordpress/internal/operations"
)

func TestRenderPathSubstitutesPathParam(t *testing.T) {
	op, _ := operations.Lookup("posts.get")
	path, query, body, err := renderPath(op, map[string]interface{}{"id": 42})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/wp-json/wp/v2/posts/42" {
		t.Errorf("unexpected path: %s", path)
	}
	if len(query) != 0 || len(body) != 0 {
		t.Errorf("expected no leftover query/body params, got %v %v", query, body)
	}
}

func TestRenderPathMissingRequiredParam(t *testing.T) {
	op, _ := operations.Lookup("posts.get")
	if _, _, _, err := renderPath(op, map[string]interface{}{}); err == nil {
		t.Fatal("expected error for missing required id param")
	}
}

func TestRenderPathRejectsUnknownParam(t *testing.T) {
	op, _ := operations.Lookup("posts.get")
	if _, _, _, err := renderPath(op, map[string]interface{}{"id": 1, "bogus": "x"}); err == nil {
		t.Fatal("expected error for unknown parameter")
	}
}

func TestRenderPathSplitsQueryAndBody(t *testing.T) {
	op, _ := operations.Lookup("posts.create")
	path, query, body, err := renderPath(op, map[string]interface{}{"title": "Hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/wp-json/wp/v2/posts" {
		t.Errorf("unexpected path: %s", path)
	}
	if len(query) != 0 {
		t.Errorf("expected no query params, got %v", query)
	}
	if body["title"] != "Hello" {
		t.Errorf("expected title in body, got %v", body)
	}
}
