package parser

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

const mixedLog = `logs/A.opt,1200,600,18,0,8,0,3,2024,10,8,30,0,250
logs/B.opt,1200,600,18,0,9,0,3,2024,10,9,45,0,100

logs/C.opt,not-a-number,600,18,0,10,0,3,2024,10,10,15,0,10
logs/D.opt,2440,1830,15,0,11,0,3,2024,10,11,20,0,40
`

func writeLog(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileSource_Next(t *testing.T) {
	path := writeLog(t, t.TempDir(), "batch.txt", mixedLog)

	source, err := OpenFile(path, nil)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer source.Close()

	ctx := context.Background()
	var lines []int
	var parseErrs []*ParseError
	for {
		rec, err := source.Next(ctx)
		if err == io.EOF {
			break
		}
		var perr *ParseError
		if errors.As(err, &perr) {
			parseErrs = append(parseErrs, perr)
			continue
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if rec.SourceFile != "batch.txt" {
			t.Errorf("SourceFile = %q, want batch.txt", rec.SourceFile)
		}
		lines = append(lines, rec.SourceLine)
	}

	if want := []int{1, 2, 5}; len(lines) != len(want) || lines[0] != 1 || lines[1] != 2 || lines[2] != 5 {
		t.Errorf("record lines = %v, want %v", lines, want)
	}
	if len(parseErrs) != 1 {
		t.Fatalf("got %d parse errors, want 1", len(parseErrs))
	}
	if parseErrs[0].LineNum != 4 || parseErrs[0].Source != "batch.txt" {
		t.Errorf("ParseError at %s:%d, want batch.txt:4", parseErrs[0].Source, parseErrs[0].LineNum)
	}
	if source.Lines() != 5 {
		t.Errorf("Lines() = %d, want 5", source.Lines())
	}
}

func TestReadFile_Checksum(t *testing.T) {
	path := writeLog(t, t.TempDir(), "batch.txt", mixedLog)

	res, err := ReadFile(context.Background(), path, &Standard)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	sum := sha256.Sum256([]byte(mixedLog))
	want := hex.EncodeToString(sum[:])
	if res.Checksum != want {
		t.Errorf("Checksum = %s, want %s", res.Checksum, want)
	}
	if len(res.Records) != 3 || len(res.Errors) != 1 {
		t.Fatalf("got %d records and %d errors, want 3 and 1", len(res.Records), len(res.Errors))
	}
	for _, rec := range res.Records {
		if rec.SourceChecksum != want {
			t.Errorf("record %d SourceChecksum = %s, want %s", rec.SourceLine, rec.SourceChecksum, want)
		}
	}
	if res.Layout != "standard" {
		t.Errorf("Layout = %q, want standard", res.Layout)
	}
}

func TestReadFile_EmptyFile(t *testing.T) {
	path := writeLog(t, t.TempDir(), "empty.txt", "")

	res, err := ReadFile(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(res.Records) != 0 || len(res.Errors) != 0 {
		t.Errorf("got %d records and %d errors, want none", len(res.Records), len(res.Errors))
	}
}

func TestOpenFile_NotFound(t *testing.T) {
	_, err := OpenFile("/nonexistent/file.txt", nil)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("OpenFile() error = %v, want os.ErrNotExist", err)
	}
}

func TestFileSource_ContextCancellation(t *testing.T) {
	path := writeLog(t, t.TempDir(), "batch.txt", mixedLog)

	source, err := OpenFile(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer source.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := source.Next(ctx); err != context.Canceled {
		t.Errorf("Next() error = %v, want context.Canceled", err)
	}
}

func TestFileSource_Close(t *testing.T) {
	path := writeLog(t, t.TempDir(), "batch.txt", mixedLog)

	source, err := OpenFile(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := source.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := source.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestReadFile_OverlongLineIsSkipped(t *testing.T) {
	long := "logs/X.opt," + strings.Repeat("9", 2*maxLineSize) + "\n"
	lines := strings.SplitAfter(mixedLog, "\n")
	content := lines[0] + long + strings.Join(lines[1:], "")
	path := writeLog(t, t.TempDir(), "batch.txt", content)

	res, err := ReadFile(context.Background(), path, &Standard)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(res.Records) != 3 || len(res.Errors) != 2 {
		t.Fatalf("got %d records and %d errors, want 3 and 2", len(res.Records), len(res.Errors))
	}
	if perr := res.Errors[0]; perr.LineNum != 2 || !strings.Contains(perr.Reason, "exceeds") {
		t.Errorf("first error = %v, want overlong line 2", perr)
	}
	if res.Records[2].SourceLine != 6 || res.Lines != 6 {
		t.Errorf("last record line %d, Lines() = %d, want 6 and 6", res.Records[2].SourceLine, res.Lines)
	}

	sum := sha256.Sum256([]byte(content))
	if res.Checksum != hex.EncodeToString(sum[:]) {
		t.Error("Checksum does not cover the skipped line")
	}
}

func TestReadFile_FinalLineWithoutNewline(t *testing.T) {
	content := "logs/A.opt,1200,600,18,0,8,0,3,2024,10,8,30,0,250\r\nlogs/B.opt,1200,600,18,0,9,0,3,2024,10,9,45,0,100"
	path := writeLog(t, t.TempDir(), "batch.txt", content)

	res, err := ReadFile(context.Background(), path, &Standard)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(res.Records) != 2 || len(res.Errors) != 0 {
		t.Fatalf("got %d records and %d errors, want 2 and 0", len(res.Records), len(res.Errors))
	}
	if res.Records[0].PlateCount != 250 || res.Records[1].PlateCount != 100 {
		t.Errorf("plates = %d, %d", res.Records[0].PlateCount, res.Records[1].PlateCount)
	}
}

func TestReadFile_CleansInvalidBytes(t *testing.T) {
	// 0xD1 is a Windows-1252 "Ñ".
	content := "logs/CA\xd1A.opt,1200,600,18,0,8,0,3,2024,10,8,30,0,250\n" +
		"logs/B\x00B.opt,1200,600,18,0,9,0,3,2024,10,9,45,0,100\n" +
		"logs/\xff\x00,bad\n"
	path := writeLog(t, t.TempDir(), "batch.txt", content)

	res, err := ReadFile(context.Background(), path, &Standard)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(res.Records) != 2 || len(res.Errors) != 1 {
		t.Fatalf("got %d records and %d errors, want 2 and 1", len(res.Records), len(res.Errors))
	}
	if got := res.Records[0].OptimizationName; got != "logs/CAA.opt" {
		t.Errorf("OptimizationName = %q, want logs/CAA.opt", got)
	}
	if got := res.Records[1].JobKey; got != "BB" {
		t.Errorf("JobKey = %q, want BB", got)
	}
	for _, s := range []string{res.Records[0].JobKey, res.Records[1].OptimizationName, res.Errors[0].Line} {
		if !utf8.ValidString(s) || strings.ContainsRune(s, 0) {
			t.Errorf("%q still holds invalid bytes", s)
		}
	}

	sum := sha256.Sum256([]byte(content))
	if res.Checksum != hex.EncodeToString(sum[:]) {
		t.Error("Checksum must cover the raw bytes")
	}
}
