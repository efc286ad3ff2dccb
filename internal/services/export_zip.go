package services

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"appeloffres/api/internal/models"
)

// BlobFetcher reads stored annex files.
type BlobFetcher interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// ArchiveInput is everything bundled into a complete export archive.
type ArchiveInput struct {
	Document ExportDocument
	// BaseName names the PDF and DOCX inside the archive, without extension.
	BaseName string
	Annexes  []models.Annex
}

type archiveEntry struct {
	name string
	size int
}

type archiveFailure struct {
	name   string
	reason string
}

// BuildArchive bundles the PDF and DOCX renderings with every annex and a LISEZMOI.txt manifest.
// An annex that cannot be fetched is listed in the manifest instead of failing the archive.
func BuildArchive(ctx context.Context, in ArchiveInput, blobs BlobFetcher) ([]byte, error) {
	base := strings.TrimSpace(in.BaseName)
	if base == "" {
		base = "DEMANDE"
	}

	pdfData, err := RenderPDF(in.Document)
	if err != nil {
		return nil, err
	}
	docxData, err := RenderDOCX(in.Document)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	modified := in.Document.GeneratedAt

	var entries []archiveEntry
	var failures []archiveFailure

	for _, f := range []struct {
		name string
		data []byte
	}{
		{base + ".pdf", pdfData},
		{base + ".docx", docxData},
	} {
		if err := writeZipEntry(zw, f.name, f.data, modified); err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", f.name, err)
		}
		entries = append(entries, archiveEntry{name: f.name, size: len(f.data)})
	}

	used := make(map[string]bool)
	for _, annex := range in.Annexes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := "annexes/" + uniqueArchiveName(AnnexArchiveName(annex.FileName), used)

		if blobs == nil {
			failures = append(failures, archiveFailure{name: annex.FileName, reason: "stockage indisponible"})
			continue
		}
		data, err := blobs.Get(ctx, annex.StorageKey)
		if err != nil {
			failures = append(failures, archiveFailure{name: annex.FileName, reason: err.Error()})
			continue
		}
		if err := writeZipEntry(zw, name, data, modified); err != nil {
			return nil, fmt.Errorf("failed to add annex %s: %w", name, err)
		}
		entries = append(entries, archiveEntry{name: name, size: len(data)})
	}

	manifest := buildManifest(in.Document, entries, failures)
	if err := writeZipEntry(zw, "LISEZMOI.txt", []byte(manifest), modified); err != nil {
		return nil, fmt.Errorf("failed to add manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

// uniqueArchiveName suffixes the stem with _2, _3... when the name is already taken.
func uniqueArchiveName(name string, used map[string]bool) string {
	candidate := name
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 2; used[strings.ToLower(candidate)]; i++ {
		candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func buildManifest(doc ExportDocument, entries []archiveEntry, failures []archiveFailure) string {
	var b strings.Builder
	b.WriteString("Dossier de demande : " + doc.Title + "\n")
	if doc.Reference != "" {
		b.WriteString("Référence : " + doc.Reference + "\n")
	}
	if doc.CompanyName != "" {
		b.WriteString("Organisme : " + doc.CompanyName + "\n")
	}
	b.WriteString("Généré le " + doc.GeneratedAt.Format("02/01/2006 15:04") + "\n\n")

	b.WriteString("Contenu :\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s (%s)\n", e.name, formatSize(e.size))
	}

	if len(failures) > 0 {
		b.WriteString("\nAnnexes non incluses :\n")
		for _, f := range failures {
			fmt.Fprintf(&b, "- %s : %s\n", f.name, f.reason)
		}
	}
	return b.String()
}

func formatSize(n int) string {
	switch {
	case n >= 1024*1024:
		return fmt.Sprintf("%.1f Mo", float64(n)/(1024*1024))
	case n >= 1024:
		return fmt.Sprintf("%.1f Ko", float64(n)/1024)
	default:
		return fmt.Sprintf("%d octets", n)
	}
}
