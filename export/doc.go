// Package export writes composed blueprints to disk and keeps per-run
// snapshots.
//
// Core types:
//   - Exporter: Writes <project>_implementation_blueprint.md always and a PDF
//     best-effort (goldmark HTML converted by wkhtmltopdf)
//   - Snapshots: Stores run state and metadata under <base>/runs/<run_id>,
//     gzip-compressing large files
//   - Retention: Archives and deletes old run snapshots
//
// Example usage:
//
//	exp := export.New(export.Config{OutputDir: "output", PDF: true})
//	res, err := exp.Export(ctx, "proj-42", markdown)
//	if err != nil {
//	    // markdown could not be written
//	}
//	if res.PDFErr != nil {
//	    // best-effort PDF failed; res.Files still has "markdown"
//	}
package export
