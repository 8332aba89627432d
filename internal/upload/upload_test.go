package upload

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"cell.png", "cell.png"},
		{"../../etc/passwd", "passwd"},
		{`..\..\windows\system32`, "system32"},
		{"my photo (1).jpg", "myphoto1.jpg"},
		{"smear;rm -rf.png", "smearrm-rf.png"},
		{"normal_name-2.jpeg", "normal_name-2.jpeg"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSaver_Save(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSaver(dir)
	if err != nil {
		t.Fatal(err)
	}

	path, err := s.Save(strings.NewReader("image bytes"), "cell.png")
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if filepath.Dir(path) != dir {
		t.Errorf("saved outside upload dir: %s", path)
	}
	base := filepath.Base(path)
	if !strings.HasSuffix(base, "_cell.png") {
		t.Errorf("expected timestamp-prefixed name, got %s", base)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "image bytes" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestSaver_ConcurrentNamesDistinct(t *testing.T) {
	s, err := NewSaver(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	p1, err := s.Save(strings.NewReader("one"), "cell.png")
	if err != nil {
		t.Fatal(err)
	}
	p2, err := s.Save(strings.NewReader("two"), "cell.png")
	if err != nil {
		t.Fatal(err)
	}
	if p1 == p2 {
		t.Errorf("colliding uploads got the same path %s", p1)
	}
}

func TestSaver_TraversalStaysInDir(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSaver(dir)
	if err != nil {
		t.Fatal(err)
	}

	path, err := s.Save(strings.NewReader("x"), "../../escape.png")
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("traversal escaped upload dir: %s", path)
	}
}

func TestSaver_EmptyAfterSanitize(t *testing.T) {
	s, err := NewSaver(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Save(strings.NewReader("x"), "///"); err == nil {
		t.Error("expected error for name that sanitizes to empty")
	}
}
