package archive

import (
	"context"
	"errors"
	"os"

	"fleet-installer/internal/logger"
	"fleet-installer/internal/runner"
)

const unzip = "/usr/bin/unzip"

// Extract expands a .zip with the system unzip, which keeps bundle symlinks
// and extended attributes intact, and any other supported format in-process.
// Each archive path gets its own fresh directory; repeated calls return it.
func (s *Session) Extract(ctx context.Context, archivePath string) (ExtractionHandle, error) {
	return s.extract(ctx, archivePath, false)
}

// ExtractNative is Extract without the system unzip, for hosts or archives
// where only the in-process extractors should be used.
func (s *Session) ExtractNative(ctx context.Context, archivePath string) (ExtractionHandle, error) {
	return s.extract(ctx, archivePath, true)
}

func (s *Session) extract(ctx context.Context, archivePath string, native bool) (ExtractionHandle, error) {
	s.init()
	if h, ok := s.extractions[archivePath]; ok {
		return h, nil
	}

	format := DetectFormat(archivePath)
	if format == FormatUnknown {
		return ExtractionHandle{}, &ResourceError{Op: "extract", Path: archivePath, Err: errors.New("unsupported archive format")}
	}

	dir, err := os.MkdirTemp(s.TempDir, "fleet-extract-")
	if err != nil {
		return ExtractionHandle{}, &ResourceError{Op: "extract", Path: archivePath, Err: err}
	}

	var output string
	if format == FormatZip && !native {
		var res runner.Result
		res, err = s.Runner.Run(ctx, s.command(unzip, "-qq", "-o", archivePath, "-d", dir))
		output = res.Output()
	} else {
		err = extractNative(format, archivePath, dir)
	}
	if err != nil {
		_ = os.RemoveAll(dir)
		return ExtractionHandle{}, &ResourceError{Op: "extract", Path: archivePath, Output: output, Err: err}
	}

	h := ExtractionHandle{Archive: archivePath, Dir: dir}
	s.extractions[archivePath] = h
	s.extractOrd = append(s.extractOrd, archivePath)
	logger.Debug("[DEBUG] Extracted %s into %s\n", archivePath, dir)
	return h, nil
}

// Remove deletes an extraction directory tree.
func (s *Session) Remove(h ExtractionHandle) error {
	s.init()
	if err := os.RemoveAll(h.Dir); err != nil {
		return &ResourceError{Op: "remove", Path: h.Dir, Err: err}
	}
	delete(s.extractions, h.Archive)
	s.extractOrd = removeKey(s.extractOrd, h.Archive)
	return nil
}
