package archive

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFind(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.zip"), "x")
	writeFile(t, filepath.Join(root, "sub", "b.RAR"), "x")
	writeFile(t, filepath.Join(root, "sub", "c.nsp"), "x")
	writeFile(t, filepath.Join(root, "readme.txt"), "x")

	got, err := Find(root, map[string]bool{".zip": true, ".rar": true, ".7z": true})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("found %d archives, want 2: %v", len(got), got)
	}
}

func TestFindGamesSorted(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "z.nsp"), "x")
	writeFile(t, filepath.Join(root, "a.xci"), "x")

	got, err := FindGames(root, map[string]bool{".nsp": true, ".xci": true})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("found %d games, want 2", len(got))
	}
	if filepath.Base(got[0]) != "a.xci" {
		t.Errorf("results not sorted: %v", got)
	}
}

func buildZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestExtractZip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "game.zip")
	buildZip(t, src, map[string]string{
		"title.nsp":       "payload-one",
		"extra/patch.nsp": "payload-two",
	})

	out := t.TempDir()
	var last, total int64
	err := Extract(context.Background(), src, out, Options{}, func(d, tot int64, name string) {
		if d < last {
			t.Errorf("progress went backwards: %d after %d", d, last)
		}
		last, total = d, tot
	})
	if err != nil {
		t.Fatal(err)
	}
	if last != total {
		t.Errorf("final progress %d != total %d", last, total)
	}

	data, err := os.ReadFile(filepath.Join(out, "extra", "patch.nsp"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload-two" {
		t.Errorf("extracted content = %q", data)
	}
}

func TestExtractZipRejectsTraversal(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "evil.zip")
	buildZip(t, src, map[string]string{"../escape.nsp": "boom"})

	err := Extract(context.Background(), src, t.TempDir(), Options{}, func(int64, int64, string) {})
	if err == nil {
		t.Fatal("traversal entry should be rejected")
	}
}

func TestExtractUnsupportedExtension(t *testing.T) {
	t.Parallel()
	err := Extract(context.Background(), "file.tar", t.TempDir(), Options{}, func(int64, int64, string) {})
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("err = %v, want unsupported archive type", err)
	}
}

func TestEntryPath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		entry   string
		wantErr bool
	}{
		{name: "plain", entry: "a.nsp"},
		{name: "nested", entry: "sub/dir/a.nsp"},
		{name: "dot segments collapse", entry: "sub/../a.nsp"},
		{name: "parent escape", entry: "../a.nsp", wantErr: true},
		{name: "deep escape", entry: "sub/../../a.nsp", wantErr: true},
		{name: "absolute", entry: "/etc/passwd", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := entryPath("/out", tt.entry)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("entryPath(%q) = %q, want error", tt.entry, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("entryPath(%q): %v", tt.entry, err)
			}
			if !strings.HasPrefix(got, "/out"+string(os.PathSeparator)) {
				t.Errorf("entryPath(%q) = %q, escapes root", tt.entry, got)
			}
		})
	}
}

func TestParseSevenZipList(t *testing.T) {
	t.Parallel()
	out := strings.NewReader(`Path = games/title.nsp
Size = 1024
Packed Size = 900
Attributes = A_ -rw-r--r--

Path = games
Size = 0
Attributes = D_ drwxr-xr-x

Path = games/update.nsz
Size = 2048
Attributes = A_ -rw-r--r--
`)
	entries, err := parseSevenZipList(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("parsed %d entries, want 2: %+v", len(entries), entries)
	}
	if entries[0].name != "games/title.nsp" || entries[0].size != 1024 {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].name != "games/update.nsz" || entries[1].size != 2048 {
		t.Errorf("entry 1 = %+v", entries[1])
	}
}

func TestOutputBytesClampsToListedSize(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.nsp"), "12345678")

	// Listing claims 4 bytes; the 8 on disk must count as 4.
	got := outputBytes(dir, []listEntry{{name: "a.nsp", size: 4}, {name: "missing.nsp", size: 100}})
	if got != 4 {
		t.Errorf("outputBytes = %d, want 4", got)
	}
}
