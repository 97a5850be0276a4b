package main

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"github.com/jessevdk/go-flags"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/robinjoseph08/golib/logger"
)

// Prints what an exported artifact actually is: sniffed type, size, PDF page
// count, and zip contents for epub/bundle files. Useful when an export looks
// wrong and you need to know whether the bytes or the viewer are at fault.
func main() {
	log := logger.New()

	var opts struct {
		ListEntries bool `short:"l" long:"list" description:"List zip entries for epub/bundle artifacts"`
	}

	args, err := flags.Parse(&opts)
	if err != nil {
		log.Err(err).Fatal("flags parse error")
	}

	if len(args) != 1 {
		fmt.Println("go run ./cmd/scripts/debug/inspect-artifact <path/to/artifact>")
		os.Exit(1)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		log.Err(err).Fatal("file read error")
	}

	mtype := mimetype.Detect(data)
	fmt.Printf("Path: %s\nSize: %d bytes\nSniffed type: %s (%s)\n", args[0], len(data), mtype.String(), mtype.Extension())

	if mtype.Is("application/pdf") {
		pages, err := api.PageCount(bytes.NewReader(data), nil)
		if err != nil {
			log.Err(err).Fatal("pdf page count error")
		}
		fmt.Printf("PDF pages: %d\n", pages)
	}

	isZip := mtype.Is("application/zip") || mtype.Is("application/epub+zip") ||
		mtype.Is("application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	if opts.ListEntries && isZip {
		r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			log.Err(err).Fatal("zip open error")
		}
		for _, f := range r.File {
			fmt.Printf("  %8d  %s\n", f.UncompressedSize64, f.Name)
		}
	}
}
