package codec

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCompressedName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{in: "/lib/Game.nsp", want: "/lib/Game.nsz"},
		{in: "/lib/Game.XCI", want: "/lib/Game.xcz"},
		{in: "/lib/Game.nsz", wantErr: true},
		{in: "/lib/Game.txt", wantErr: true},
	}
	for _, tt := range tests {
		got, err := CompressedName(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("CompressedName(%q) = %q, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("CompressedName(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("CompressedName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecompressedName(t *testing.T) {
	t.Parallel()
	got, err := DecompressedName("/lib/Game.xcz")
	if err != nil || got != "/lib/Game.xci" {
		t.Errorf("DecompressedName = %q, %v", got, err)
	}
	if _, err := DecompressedName("/lib/Game.nsp"); err == nil {
		t.Error("DecompressedName should reject plain files")
	}
}

func TestCompressRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "game.nsp")
	payload := make([]byte, 3<<20)
	rand.New(rand.NewSource(42)).Read(payload)
	if err := os.WriteFile(src, payload, 0o644); err != nil {
		t.Fatal(err)
	}

	packed := filepath.Join(dir, "game.nsz")
	var c Cell
	if err := Compress(src, packed, &c); err != nil {
		t.Fatal(err)
	}
	if done, total := c.Load(); done != int64(len(payload)) || total != int64(len(payload)) {
		t.Errorf("compress cell = (%d, %d), want (%d, %d)", done, total, len(payload), len(payload))
	}

	var vc Cell
	if err := VerifyContainer(packed, &vc); err != nil {
		t.Fatalf("VerifyContainer: %v", err)
	}

	restored := filepath.Join(dir, "restored.nsp")
	var dc Cell
	if err := Decompress(packed, restored, &dc); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(restored)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("round trip corrupted the payload")
	}
}

func TestDecompressRejectsBadMagic(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "plain.nsz")
	if err := os.WriteFile(src, []byte("this is not a container at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	var c Cell
	if err := Decompress(src, filepath.Join(dir, "out.nsp"), &c); err == nil {
		t.Fatal("bad magic should fail")
	}
}

func TestRunWithCellFinalPoll(t *testing.T) {
	t.Parallel()
	var cell Cell
	cell.SetTotal(10)

	var reports [][2]int64
	// fn finishes faster than any tick fires; the final poll must still
	// surface the completed state.
	err := RunWithCell(context.Background(), time.Hour, &cell, func() error {
		cell.Add(10)
		return nil
	}, func(d, tot int64) {
		reports = append(reports, [2]int64{d, tot})
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) == 0 {
		t.Fatal("no progress reported")
	}
	last := reports[len(reports)-1]
	if last != [2]int64{10, 10} {
		t.Errorf("final report = %v, want [10 10]", last)
	}
}

func TestRunWithCellClampsOvershoot(t *testing.T) {
	t.Parallel()
	var cell Cell
	cell.SetTotal(10)
	cell.Add(25)

	var last [2]int64
	err := RunWithCell(context.Background(), time.Hour, &cell, func() error { return nil },
		func(d, tot int64) { last = [2]int64{d, tot} })
	if err != nil {
		t.Fatal(err)
	}
	if last != [2]int64{10, 10} {
		t.Errorf("report = %v, want clamped [10 10]", last)
	}
}

func TestRunWithCellPropagatesError(t *testing.T) {
	t.Parallel()
	want := errors.New("boom")
	var cell Cell
	err := RunWithCell(context.Background(), time.Hour, &cell, func() error { return want },
		func(int64, int64) {})
	if !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
}

func TestRunWithSizePoll(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	out := filepath.Join(dir, "out.xcz")

	release := make(chan struct{})
	var polled [][2]int64
	done := make(chan error, 1)
	go func() {
		done <- RunWithSizePoll(context.Background(), 5*time.Millisecond, out, 100, func() error {
			if err := os.WriteFile(out, make([]byte, 250), 0o644); err != nil {
				return err
			}
			<-release
			return nil
		}, func(d, tot int64) {
			polled = append(polled, [2]int64{d, tot})
			if len(polled) == 3 {
				close(release)
			}
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunWithSizePoll did not finish")
	}
	for _, p := range polled {
		if p[0] > p[1] {
			t.Errorf("poll %v exceeds the estimated total", p)
		}
	}
	if last := polled[len(polled)-1]; last != [2]int64{100, 100} {
		t.Errorf("final report = %v, want [100 100]", last)
	}
}

func TestLastLine(t *testing.T) {
	t.Parallel()
	if got := lastLine("line one\nline two\n"); got != "line two" {
		t.Errorf("lastLine = %q", got)
	}
	long := lastLine(string(make([]byte, 300)))
	if len(long) > verifyErrLimit {
		t.Errorf("lastLine did not truncate: %d chars", len(long))
	}
}
