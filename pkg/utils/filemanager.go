// =============================================================================
// crsmerge - File Manager Utility
// =============================================================================
//
// This module provides the file handling shared by the pipeline:
//   - Directory management (data, cache and results directories)
//   - Discovery of extract archives in the data directory
//   - Atomic writes (temp file in the target directory, then rename)
//   - Output file naming
//   - Run summaries
//
// ATOMIC WRITES:
//   Every file the pipeline produces goes through WriteFileAtomic. A reader
//   (or a concurrent run) sees either the old file or the complete new one,
//   never a partial write.
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager knows the directories of a run.
type FileManager struct {
	// DataDir holds the CRS extract archives and the income-group files.
	DataDir string

	// CacheDir holds cached snapshots.
	CacheDir string

	// ResultsDir is the root of all report output.
	ResultsDir string
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(dataDir, cacheDir, resultsDir string) *FileManager {
	return &FileManager{
		DataDir:    dataDir,
		CacheDir:   cacheDir,
		ResultsDir: resultsDir,
	}
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates all required directories if they don't exist.
//
// RETURNS:
//   - An error if any directory cannot be created.
func (fm *FileManager) EnsureDirectories() error {
	for _, dir := range []string{fm.DataDir, fm.CacheDir, fm.ResultsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ResultsPath joins parts under the results directory and creates it.
//
// EXAMPLE:
//
//	fm.ResultsPath("USD_Commitment_Defl", "germany-water", "from_2015")
//	-> results/USD_Commitment_Defl/germany-water/from_2015
func (fm *FileManager) ResultsPath(parts ...string) (string, error) {
	elems := []string{fm.ResultsDir}
	for _, p := range parts {
		if p != "" {
			elems = append(elems, p)
		}
	}
	dir := filepath.Join(elems...)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return dir, nil
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverDataFiles lists the files in the data directory matching pattern,
// sorted by name.
//
// PARAMETERS:
//   - pattern: A glob pattern to match files (e.g., "crs*.zip").
//     If empty, defaults to "*.zip".
//
// RETURNS:
//   - A slice of file paths.
//   - An error if the directory cannot be read.
func (fm *FileManager) DiscoverDataFiles(pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*.zip"
	}

	files, err := filepath.Glob(filepath.Join(fm.DataDir, pattern))
	if err != nil {
		return nil, fmt.Errorf("failed to scan data directory: %w", err)
	}

	var result []string
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			result = append(result, file)
		}
	}
	sort.Strings(result)
	return result, nil
}

// =============================================================================
// ATOMIC WRITES
// =============================================================================

// WriteFileAtomic writes a file through write into a temporary file in the
// same directory and renames it into place. On any error the temporary file
// is removed and path is left untouched.
func WriteFileAtomic(path string, write func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	buf := bufio.NewWriter(tmp)
	if err = write(buf); err != nil {
		return err
	}
	if err = buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set mode on %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName generates an output file name from a format.
//
// PARAMETERS:
//   - format: The format string for the file name.
//     Placeholders:
//     {uuid}      - A random UUID
//     {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//     {date}      - Current date (YYYYMMDD)
//     {time}      - Current time (HHMMSS)
//     {<key>}     - Any key of params
//   - params: A map of placeholder values.
//
// RETURNS:
//   - The generated file name.
//
// EXAMPLE:
//
//	format: "{set}_{value}_{date}"
//	params: {"set": "sane", "value": "USD_Commitment_Defl"}
//	output: "sane_USD_Commitment_Defl_20240115"
func GenerateOutputFileName(format string, params map[string]string) string {
	now := time.Now()

	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
		"{time}":      now.Format("150405"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}
	return SanitizeFileName(result)
}

// SanitizeFileName replaces path separators and spaces so a dataset or
// scope name can be used as a file name.
func SanitizeFileName(name string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", " ", "_", ":", "_")
	return r.Replace(strings.TrimSpace(name))
}

// =============================================================================
// RUN SUMMARY
// =============================================================================

// RunSummary describes one pipeline run.
type RunSummary struct {
	RunID     string
	Command   string
	Dataset   string
	StartTime time.Time
	EndTime   time.Time

	// Counts are printed in insertion order.
	Counts []Count

	Outputs  []string
	Warnings []string
}

// Count is a named figure in a summary.
type Count struct {
	Name  string
	Value int
}

// AddCount appends a named count.
func (s *RunSummary) AddCount(name string, value int) {
	s.Counts = append(s.Counts, Count{Name: name, Value: value})
}

// WriteSummaryLog writes a run summary into dir.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary RunSummary, dir string) (string, error) {
	name := fmt.Sprintf("run_summary_%s_%s.txt", summary.StartTime.Format("20060102_150405"), shortID(summary.RunID))
	path := filepath.Join(dir, name)

	err := WriteFileAtomic(path, func(w io.Writer) error {
		duration := summary.EndTime.Sub(summary.StartTime)
		fmt.Fprintf(w, "crsmerge - Run Summary\n"+
			"================================================================================\n\n"+
			"Run Information:\n"+
			"  Run ID:     %s\n"+
			"  Command:    %s\n"+
			"  Dataset:    %s\n"+
			"  Start Time: %s\n"+
			"  End Time:   %s\n"+
			"  Duration:   %s\n\n",
			summary.RunID,
			summary.Command,
			summary.Dataset,
			summary.StartTime.Format("2006-01-02 15:04:05"),
			summary.EndTime.Format("2006-01-02 15:04:05"),
			duration.String())

		if len(summary.Counts) > 0 {
			fmt.Fprintln(w, "Statistics:")
			for _, c := range summary.Counts {
				fmt.Fprintf(w, "  %-26s %d\n", c.Name+":", c.Value)
			}
			fmt.Fprintln(w)
		}

		if len(summary.Outputs) > 0 {
			fmt.Fprintln(w, "Outputs:")
			fmt.Fprintln(w, "--------------------------------------------------------------------------------")
			for _, o := range summary.Outputs {
				fmt.Fprintf(w, "  %s\n", o)
			}
			fmt.Fprintln(w)
		}

		if len(summary.Warnings) > 0 {
			fmt.Fprintln(w, "Warnings:")
			fmt.Fprintln(w, "--------------------------------------------------------------------------------")
			for _, warning := range summary.Warnings {
				fmt.Fprintf(w, "  %s\n", warning)
			}
			fmt.Fprintln(w)
		}

		_, err := io.WriteString(w, "================================================================================\n"+
			"End of Summary\n")
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to write summary file: %w", err)
	}
	return path, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "norun"
	}
	return id
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
