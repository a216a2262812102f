package ocr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeEngine struct {
	byImage map[string]string
	failOn  map[string]bool
	files   []string
}

func (f *fakeEngine) RecognizeFile(_ context.Context, path string) (string, error) {
	f.files = append(f.files, path)
	if f.failOn[path] {
		return "", errors.New("engine down")
	}
	return "text of " + filepath.Base(path), nil
}

func (f *fakeEngine) Recognize(_ context.Context, image []byte) (string, error) {
	key := string(image)
	if f.failOn[key] {
		return "", errors.New("unreadable page")
	}
	return f.byImage[key], nil
}

type fakeRaster struct {
	pages    int
	countErr error
	rendered []int
	dpi      int
}

func (f *fakeRaster) PageCount(context.Context, string) (int, error) {
	return f.pages, f.countErr
}

func (f *fakeRaster) RenderPage(_ context.Context, _ string, index, dpi int) ([]byte, error) {
	f.rendered = append(f.rendered, index)
	f.dpi = dpi
	return []byte(fmt.Sprintf("img-%d", index)), nil
}

func TestExtractPDFCapsPagesAndMarksThem(t *testing.T) {
	eng := &fakeEngine{byImage: map[string]string{"img-0": "first\r\npage", "img-1": "second", "img-2": "third"}}
	ras := &fakeRaster{pages: 5}
	x := NewExtractor(Config{DPI: 150}, eng, ras, discard)

	res, err := x.Extract(context.Background(), "/in/doc.PDF")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	want := "--- Page 1 ---\nfirst\npage\n--- Page 2 ---\nsecond\n"
	if res.Text != want {
		t.Fatalf("text = %q, want %q", res.Text, want)
	}
	if res.Pages != 2 || len(ras.rendered) != 2 || ras.dpi != 150 {
		t.Fatalf("pages=%d rendered=%v dpi=%d", res.Pages, ras.rendered, ras.dpi)
	}
	if res.Language != "eng+ara" || res.Method != "pdf-ocr" {
		t.Fatalf("unexpected metadata: %+v", res)
	}
}

func TestExtractPDFPageFailureKeepsMarker(t *testing.T) {
	eng := &fakeEngine{
		byImage: map[string]string{"img-1": "second"},
		failOn:  map[string]bool{"img-0": true},
	}
	x := NewExtractor(Config{}, eng, &fakeRaster{pages: 2}, discard)

	res, err := x.Extract(context.Background(), "scan.pdf")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Text != "--- Page 1 ---\n\n--- Page 2 ---\nsecond\n" {
		t.Fatalf("text = %q", res.Text)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("warnings = %v", res.Warnings)
	}
}

func TestExtractPDFCountError(t *testing.T) {
	x := NewExtractor(Config{}, &fakeEngine{}, &fakeRaster{countErr: errors.New("corrupt")}, discard)
	if _, err := x.Extract(context.Background(), "bad.pdf"); err == nil {
		t.Fatal("expected an error for an unreadable pdf")
	}
}

func TestExtractSinglePageShorterThanLimit(t *testing.T) {
	eng := &fakeEngine{byImage: map[string]string{"img-0": "only"}}
	ras := &fakeRaster{pages: 1}
	res, err := NewExtractor(Config{}, eng, ras, discard).Extract(context.Background(), "one.pdf")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Text != "--- Page 1 ---\nonly\n" || len(ras.rendered) != 1 {
		t.Fatalf("text = %q rendered = %v", res.Text, ras.rendered)
	}
}

func TestExtractImage(t *testing.T) {
	eng := &fakeEngine{}
	res, err := NewExtractor(Config{}, eng, &fakeRaster{}, discard).Extract(context.Background(), "/in/receipt.jpg")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Text != "text of receipt.jpg" || res.Pages != 1 || res.Method != "image-ocr" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestExtractUnsupportedExtension(t *testing.T) {
	_, err := NewExtractor(Config{}, &fakeEngine{}, &fakeRaster{}, discard).Extract(context.Background(), "notes.docx")
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("err = %v", err)
	}
}

func TestNormalize(t *testing.T) {
	in := "Total:\t\t500.00  \r\n\r\n\r\n\r\nDate: 2023-10-05   \n"
	want := "Total: 500.00\n\nDate: 2023-10-05"
	if got := Normalize(in); got != want {
		t.Fatalf("Normalize = %q, want %q", got, want)
	}
}

func TestHeuristicConfidence(t *testing.T) {
	if heuristicConfidence("   ") != 0 {
		t.Fatal("blank text should score 0")
	}
	low := heuristicConfidence("hello")
	high := heuristicConfidence("INVOICE 2023-10-25 Total USD 500.00")
	if high <= low {
		t.Fatalf("expected financial text to score higher: %v <= %v", high, low)
	}
}

type fakeRunner struct {
	calls [][]string
	out   string
	err   error
	write func(args []string)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.write != nil {
		f.write(args)
	}
	if f.err != nil {
		return nil, []byte("boom"), f.err
	}
	return []byte(f.out), nil, nil
}

func TestCLIEngineArgs(t *testing.T) {
	r := &fakeRunner{out: "hello"}
	eng := NewCLIEngine(Config{Tesseract: "/usr/bin/tesseract", TessdataDir: "/td"}, r, discard)

	txt, err := eng.RecognizeFile(context.Background(), "/x/a.png")
	if err != nil || txt != "hello" {
		t.Fatalf("RecognizeFile = %q, %v", txt, err)
	}
	got := strings.Join(r.calls[0], " ")
	want := "/usr/bin/tesseract /x/a.png stdout -l eng+ara --tessdata-dir /td"
	if got != want {
		t.Fatalf("args = %q, want %q", got, want)
	}

	txt, err = eng.Recognize(context.Background(), []byte("png"))
	if err != nil || txt != "hello" {
		t.Fatalf("Recognize = %q, %v", txt, err)
	}
	tmp := r.calls[1][1]
	if _, statErr := os.Stat(tmp); !os.IsNotExist(statErr) {
		t.Fatalf("temp image %s should be removed", tmp)
	}
}

func TestCLIEngineError(t *testing.T) {
	eng := NewCLIEngine(Config{}, &fakeRunner{err: errors.New("exit 1")}, discard)
	if _, err := eng.RecognizeFile(context.Background(), "a.png"); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("err = %v", err)
	}
}

func TestPopplerRasterizer(t *testing.T) {
	r := &fakeRunner{write: func(args []string) {
		prefix := args[len(args)-1]
		_ = os.WriteFile(prefix+".png", []byte("PNGDATA"), 0o600)
	}}
	p := NewPopplerRasterizer(Config{}, r, discard)
	p.count = func(string) (int, error) { return 3, nil }

	n, err := p.PageCount(context.Background(), "doc.pdf")
	if err != nil || n != 3 {
		t.Fatalf("PageCount = %d, %v", n, err)
	}
	img, err := p.RenderPage(context.Background(), "doc.pdf", 1, 300)
	if err != nil || string(img) != "PNGDATA" {
		t.Fatalf("RenderPage = %q, %v", img, err)
	}
	args := strings.Join(r.calls[0][:9], " ")
	if args != "pdftoppm -r 300 -png -f 2 -l 2 -singlefile doc.pdf" {
		t.Fatalf("args = %q", args)
	}
}
