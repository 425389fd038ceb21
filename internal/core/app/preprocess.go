package app

import (
	"context"
	"os"
	"strings"

	domainErrors "fortrandep/internal/core/errors"
	"fortrandep/internal/engine/preprocessor"
	"fortrandep/internal/output"
	"fortrandep/internal/shared/observability"
	"fortrandep/internal/shared/util"
)

// PreprocessFile resolves the directives of input with the configured
// macros and include paths and writes the remaining lines to dest. An
// existing dest is only replaced when overwrite is set.
func (a *App) PreprocessFile(ctx context.Context, input, dest string, overwrite bool) error {
	_, span := observability.StartStage(ctx, "preprocess")
	defer span.End()

	if !overwrite && util.FileExists(dest) {
		return output.ExistsError(dest)
	}

	data, err := os.ReadFile(input)
	if err != nil {
		code := domainErrors.CodeInternal
		if os.IsNotExist(err) {
			code = domainErrors.CodeNotFound
		}
		return domainErrors.AddContext(domainErrors.Wrap(err, code, "read source"), domainErrors.CtxPath, input)
	}

	res, err := preprocessor.New(a.macros, a.includes).Process(preprocessor.SplitSource(input, data))
	if err != nil {
		observability.RecordError(span, err)
		return err
	}

	var buf strings.Builder
	for _, l := range res.Lines {
		buf.WriteString(l.Text)
		buf.WriteByte('\n')
	}
	return util.WriteFileAtomic(dest, []byte(buf.String()), 0o644)
}

// WriteObjects reads the header of a generated dependency file and writes
// the matching make object list to dest.
func (a *App) WriteObjects(depfile, dest string, overwrite bool) (output.WriteStatus, error) {
	f, err := os.Open(depfile)
	if err != nil {
		err = domainErrors.Wrap(err, domainErrors.CodeNotFound, "open dependency file")
		return output.StatusWritten, domainErrors.AddContext(err, domainErrors.CtxPath, depfile)
	}
	defer f.Close()

	listing, err := output.ParseObjectListing(f)
	if err != nil {
		return output.StatusWritten, domainErrors.AddContext(err, domainErrors.CtxPath, depfile)
	}
	return output.WriteGenerated(dest, listing.GenerateObjects(a.Config.Output.ObjectExt), overwrite)
}
