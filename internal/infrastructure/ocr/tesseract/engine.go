// Package tesseract runs the tesseract CLI as the receipt OCR engine.
package tesseract

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/kirillkom/receipt-assistant/internal/core/domain"
	"github.com/kirillkom/receipt-assistant/internal/core/ports"
)

type Options struct {
	Binary  string
	Lang    string
	Timeout time.Duration
	// MaxImageSide defaults to DefaultMaxImageSide.
	MaxImageSide   int
	SkipPreprocess bool
}

type Engine struct {
	binary     string
	lang       string
	timeout    time.Duration
	maxSide    int
	preprocess bool
}

var _ ports.OCREngine = (*Engine)(nil)

func New(options Options) *Engine {
	binary := strings.TrimSpace(options.Binary)
	if binary == "" {
		binary = "tesseract"
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxSide := options.MaxImageSide
	if maxSide <= 0 {
		maxSide = DefaultMaxImageSide
	}
	return &Engine{
		binary:     binary,
		lang:       strings.TrimSpace(options.Lang),
		timeout:    timeout,
		maxSide:    maxSide,
		preprocess: !options.SkipPreprocess,
	}
}

// Extract preprocesses the image and returns the non-empty trimmed lines
// tesseract reads, in reading order.
func (e *Engine) Extract(ctx context.Context, image []byte) ([]string, error) {
	if len(image) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ocr extract", fmt.Errorf("empty image"))
	}
	pattern := "receipt-*.img"
	if e.preprocess {
		prepared, err := Preprocess(image, e.maxSide)
		if err != nil {
			return nil, err
		}
		image = prepared
		pattern = "receipt-*.png"
	}

	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return nil, fmt.Errorf("create ocr temp file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(image); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write ocr temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close ocr temp file: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := []string{f.Name(), "stdout"}
	if e.lang != "" {
		args = append(args, "-l", e.lang)
	}
	cmd := exec.CommandContext(ctx, e.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, domain.WrapError(domain.ErrTemporary, "ocr extract", ctx.Err())
		}
		return nil, fmt.Errorf("run %s: %w: %s", e.binary, err, strings.TrimSpace(stderr.String()))
	}

	return splitLines(stdout.String()), nil
}

func splitLines(text string) []string {
	lines := make([]string, 0)
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
