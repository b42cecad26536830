// Package submission packs and unpacks challenge submission archives. An
// archive holds the raw detection results, optionally the locally computed
// evaluation report, and a snapshot of the method's source code.
package submission

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Fixed entry names inside the archive. The submission server looks these up
// by name.
const (
	DetectionResultsName  = "detection_results.json"
	EvaluationResultsName = "evaluation_results.json"
	SourceCodeDir         = "source_code"
)

// Prepare writes a submission zip to archiveFile.
// detectionResults is mandatory. evaluationResults and sourceDir may be empty,
// in which case the corresponding entries are omitted. Source files are stored
// under source_code/ with their paths relative to sourceDir; dot-prefixed
// entries (.git and friends) are skipped.
func Prepare(archiveFile, detectionResults, evaluationResults, sourceDir string) error {
	out, err := os.Create(archiveFile)
	if err != nil {
		return fmt.Errorf("failed to create archive %v: %w", archiveFile, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	if err := addFile(zw, DetectionResultsName, detectionResults); err != nil {
		return err
	}
	if evaluationResults != "" {
		if err := addFile(zw, EvaluationResultsName, evaluationResults); err != nil {
			return err
		}
	}
	if sourceDir != "" {
		if err := addSourceTree(zw, sourceDir); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return out.Close()
}

func addFile(zw *zip.Writer, name, filename string) error {
	src, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open %v: %w", filename, err)
	}
	defer src.Close()
	dst, err := zw.Create(name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to write %v: %w", name, err)
	}
	return nil
}

func addSourceTree(zw *zip.Writer, sourceDir string) error {
	// WalkDir visits entries in lexical order, so archives built from the
	// same tree are identical
	return filepath.WalkDir(sourceDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && p != sourceDir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(sourceDir, p)
		if err != nil {
			return err
		}
		return addFile(zw, path.Join(SourceCodeDir, filepath.ToSlash(rel)), p)
	})
}

// Unpack extracts a submission archive into targetDir. The target must not
// exist yet, so an unpack can never silently mix with leftovers from a
// previous one.
func Unpack(archiveFile, targetDir string) error {
	if _, err := os.Stat(targetDir); err == nil {
		return fmt.Errorf("target directory %v already exists", targetDir)
	} else if !os.IsNotExist(err) {
		return err
	}

	zr, err := zip.OpenReader(archiveFile)
	if err != nil {
		return fmt.Errorf("failed to open archive %v: %w", archiveFile, err)
	}
	defer zr.Close()

	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return err
	}
	for _, f := range zr.File {
		if err := extractEntry(f, targetDir); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(f *zip.File, targetDir string) error {
	// Guard against zip-slip: entry names must stay inside the target
	name := filepath.FromSlash(f.Name)
	if name == "" || filepath.IsAbs(name) || strings.Contains(name, "..") {
		return fmt.Errorf("archive entry %q has an unsafe path", f.Name)
	}
	dst := filepath.Join(targetDir, name)

	if f.FileInfo().IsDir() {
		return os.MkdirAll(dst, 0755)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Verify checks that an archive holds the mandatory detection results entry
// and returns the entry names it contains.
func Verify(archiveFile string) ([]string, error) {
	zr, err := zip.OpenReader(archiveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %v: %w", archiveFile, err)
	}
	defer zr.Close()

	names := make([]string, 0, len(zr.File))
	hasDetections := false
	for _, f := range zr.File {
		names = append(names, f.Name)
		if f.Name == DetectionResultsName {
			hasDetections = true
		}
	}
	if !hasDetections {
		return names, fmt.Errorf("archive %v is missing %v", archiveFile, DetectionResultsName)
	}
	return names, nil
}
