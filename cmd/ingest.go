package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/docstore"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/progress"
)

var (
	ingestType  string
	ingestLevel string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Bulk-ingest investigation documents from a directory",
	Long: `Walks the given directory (default .), collects every file matching
the configured include patterns, and uploads the batch into the
document store. Unsupported file kinds are reported and skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}

		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.database.Close()

		paths, err := collectFiles(root, deps.cfg.Include, deps.cfg.Exclude)
		if err != nil {
			return fmt.Errorf("scanning %s: %w", root, err)
		}
		if len(paths) == 0 {
			fmt.Fprintln(os.Stderr, "No matching files found.")
			return nil
		}

		reporter := progress.NewReporter()
		reporter.Start(len(paths))

		var files []docstore.RawFile
		for i, path := range paths {
			reporter.Update(i+1, filepath.Base(path))
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			name := filepath.Base(path)
			files = append(files, docstore.RawFile{
				FileName: name,
				MimeKind: docstore.KindFromFileName(name),
				Content:  content,
			})
		}
		reporter.Finish()

		added, rejected := deps.docs.AddBatch(cmd.Context(), files)

		// Apply the type/level flags; batch uploads default to
		// Evidence/Medium.
		docType := docstore.DocumentType(ingestType)
		level := docstore.IntelligenceLevel(ingestLevel)
		if docType != docstore.TypeEvidence || level != docstore.LevelMedium {
			for _, doc := range added {
				_, err := deps.docs.UpdateMetadata(cmd.Context(), doc.ID, docstore.MetadataPatch{
					DocumentType:      &docType,
					IntelligenceLevel: &level,
				})
				if err != nil {
					return fmt.Errorf("tagging %s: %w", doc.FileName, err)
				}
			}
		}

		fmt.Fprintf(os.Stderr, "Ingested %d document(s)", len(added))
		if len(rejected) > 0 {
			fmt.Fprintf(os.Stderr, ", skipped %d", len(rejected))
		}
		fmt.Fprintln(os.Stderr)
		for _, rej := range rejected {
			fmt.Fprintf(os.Stderr, "  skipped %s: %s\n", rej.FileName, rej.Reason)
		}
		return nil
	},
}

// collectFiles walks root and returns relative paths matching the
// include patterns and not matching the exclude patterns.
func collectFiles(root string, include, exclude []string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if !matchesAny(rel, include) || matchesAny(rel, exclude) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	return paths, err
}

// matchesAny checks if relPath matches any of the given glob patterns.
// Patterns are matched against both the full relative path and the bare
// file name, with ** support.
func matchesAny(relPath string, patterns []string) bool {
	normalized := filepath.ToSlash(relPath)
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)
		if matched, err := doublestar.PathMatch(pattern, normalized); err == nil && matched {
			return true
		}
		if matched, err := doublestar.PathMatch(pattern, filepath.Base(normalized)); err == nil && matched {
			return true
		}
	}
	return false
}

func init() {
	ingestCmd.Flags().StringVar(&ingestType, "type", "Evidence", "document type for ingested files")
	ingestCmd.Flags().StringVar(&ingestLevel, "level", "Medium", "intelligence level for ingested files")
	rootCmd.AddCommand(ingestCmd)
}
