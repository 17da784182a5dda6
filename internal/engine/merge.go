package engine

import (
	"fmt"
	"io"
	"os"

	"github.com/go-git/go-billy/v5"

	"github.com/tanq16/partdl/internal/utils"
)

type syncer interface {
	Sync() error
}

// MergeParts concatenates the part files of ranges, in index order, into
// outputPath and then deletes them. The output is assembled in a temporary
// file and renamed into place, so on error outputPath and the parts are left
// as they were.
func MergeParts(fsys billy.Filesystem, outputPath string, ranges []utils.ByteRange) (int64, error) {
	log := utils.GetLogger("engine/merge")
	if err := checkParts(fsys, outputPath, ranges); err != nil {
		return 0, err
	}

	tempPath := outputPath + utils.MergeSuffix
	written, err := writeMerged(fsys, tempPath, outputPath, ranges)
	if err != nil {
		fsys.Remove(tempPath)
		return 0, err
	}
	if err := fsys.Rename(tempPath, outputPath); err != nil {
		fsys.Remove(tempPath)
		return 0, fmt.Errorf("%w: error finalizing output file: %w", utils.ErrMerge, err)
	}

	for _, r := range ranges {
		if err := fsys.Remove(utils.PartPath(outputPath, r.Index)); err != nil {
			log.Warn().Err(err).Int("part", r.Index).Msg("Could not remove part file")
		}
	}
	log.Debug().Int64("totalBytes", written).Str("outputFile", outputPath).Msg("File assembly completed")
	return written, nil
}

// checkParts verifies the plan covers the file without gaps or duplicates and
// that every part file holds exactly its range.
func checkParts(fsys billy.Filesystem, outputPath string, ranges []utils.ByteRange) error {
	if len(ranges) == 0 {
		return fmt.Errorf("%w: no parts to merge", utils.ErrMerge)
	}
	for i, r := range ranges {
		if r.Index != i {
			return fmt.Errorf("%w: part %d found at position %d", utils.ErrMerge, r.Index, i)
		}
		if i == 0 && r.Start != 0 {
			return fmt.Errorf("%w: first part starts at byte %d", utils.ErrMerge, r.Start)
		}
		if i > 0 && r.Start != ranges[i-1].End+1 {
			return fmt.Errorf("%w: part %d does not follow part %d", utils.ErrMerge, i, i-1)
		}
		path := utils.PartPath(outputPath, r.Index)
		info, err := fsys.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("%w: part %d is missing", utils.ErrMerge, r.Index)
			}
			return fmt.Errorf("%w: %w", utils.ErrMerge, err)
		}
		if info.Size() != r.Length() {
			return fmt.Errorf("%w: part %d has %d bytes, expected %d", utils.ErrMerge, r.Index, info.Size(), r.Length())
		}
	}
	return nil
}

func writeMerged(fsys billy.Filesystem, tempPath, outputPath string, ranges []utils.ByteRange) (int64, error) {
	dest, err := fsys.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return 0, fmt.Errorf("%w: error creating output file: %w", utils.ErrMerge, err)
	}
	defer dest.Close()

	var total int64
	for _, r := range ranges {
		written, err := copyPart(fsys, dest, utils.PartPath(outputPath, r.Index))
		if err != nil {
			return 0, fmt.Errorf("%w: part %d: %w", utils.ErrMerge, r.Index, err)
		}
		if written != r.Length() {
			return 0, fmt.Errorf("%w: part %d copied %d bytes, expected %d", utils.ErrMerge, r.Index, written, r.Length())
		}
		total += written
	}
	if s, ok := dest.(syncer); ok {
		if err := s.Sync(); err != nil {
			return 0, fmt.Errorf("%w: %w", utils.ErrMerge, err)
		}
	}
	if err := dest.Close(); err != nil {
		return 0, fmt.Errorf("%w: %w", utils.ErrMerge, err)
	}
	return total, nil
}

func copyPart(fsys billy.Filesystem, dest io.Writer, path string) (int64, error) {
	part, err := fsys.Open(path)
	if err != nil {
		return 0, err
	}
	defer part.Close()
	return io.Copy(dest, part)
}
