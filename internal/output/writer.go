package output

import (
	"log/slog"

	domainErrors "fortrandep/internal/core/errors"
	"fortrandep/internal/shared/util"
)

type WriteStatus int

const (
	StatusWritten WriteStatus = iota
	// StatusExists means the target was left alone because it exists and
	// overwriting was not allowed.
	StatusExists
)

func (s WriteStatus) String() string {
	if s == StatusExists {
		return "exists"
	}
	return "written"
}

// WriteGenerated writes content to path unless path exists and overwrite
// is false. A refused write is reported through the status, not an error.
func WriteGenerated(path, content string, overwrite bool) (WriteStatus, error) {
	if !overwrite && util.FileExists(path) {
		slog.Warn("output file already exists, not overwriting", "path", path)
		return StatusExists, nil
	}
	if err := util.WriteFileAtomic(path, []byte(content), 0o644); err != nil {
		err = domainErrors.Wrap(err, domainErrors.CodeInternal, "write output")
		return StatusWritten, domainErrors.AddContext(err, domainErrors.CtxPath, path)
	}
	return StatusWritten, nil
}

// ExistsError describes a refused write for diagnostics.
func ExistsError(path string) error {
	err := domainErrors.New(domainErrors.CodeOutputExists, "output already exists and overwrite is disabled")
	return domainErrors.AddContext(err, domainErrors.CtxPath, path)
}
