package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"appeloffres/api/internal/services"
)

func main() {
	withText := flag.Bool("text", false, "Include the normalized text in the output")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-text] <rc.pdf|rc.txt>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", path, err)
	}

	text := string(data)
	if strings.EqualFold(filepath.Ext(path), ".pdf") || bytes.HasPrefix(data, []byte("%PDF-")) {
		text, err = services.ExtractPDFText(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			log.Fatalf("Failed to extract text from %s: %v", path, err)
		}
	}

	summary := services.AnalyzeRC(text)
	if !*withText {
		summary.NormalizedText = ""
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(summary); err != nil {
		log.Fatal("Failed to encode summary:", err)
	}
}
