package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/mkarlsson/invoice-relay/internal/domain"
)

// compressedSuffix is the fixed suffix of a batch archive on the share.
// The comparison is case-insensitive.
const compressedSuffix = ".zip.lzma"

// archiveDateToken formats the date marker embedded in archive names,
// e.g. "-240115_".
func archiveDateToken(date time.Time) string {
	return "-" + date.Format("060102") + "_"
}

// matchesCandidate reports whether a share entry is a batch archive for
// the given batch name and date.
func matchesCandidate(name, batchName string, date time.Time) bool {
	if !strings.HasPrefix(name, batchName) {
		return false
	}
	if !strings.Contains(name, archiveDateToken(date)) {
		return false
	}
	return strings.HasSuffix(strings.ToLower(name), compressedSuffix)
}

// listCandidates lists the source path and keeps the entries that qualify
// as batch archives for the source and date.
func (p *Pipeline) listCandidates(ctx context.Context, source domain.BatchSource, date time.Time) ([]string, error) {
	names, err := p.share.List(ctx, source.SourcePath)
	if err != nil {
		return nil, err
	}

	candidates := make([]string, 0, len(names))
	for _, name := range names {
		if matchesCandidate(name, source.BatchName, date) {
			candidates = append(candidates, name)
		}
	}

	return candidates, nil
}
