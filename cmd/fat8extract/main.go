// Command fat8extract extracts every file it can decode from one or more
// D88 disk-image containers into sibling output directories (§6
// "Extraction CLI").
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dsoprea/go-logging"
	"github.com/jessevdk/go-flags"

	"github.com/f8tools/fat8d88"
)

type rootParameters struct {
	Positional struct {
		Filepaths []string `positional-arg-name:"filepath" description:"D88 file-path(s) to extract ('-' for STDIN)"`
	} `positional-args:"yes" required:"1"`
}

var rootArguments = new(rootParameters)

// dirSink writes extracted artifacts under one output directory, on disk.
type dirSink struct {
	dir string
}

func (s dirSink) WriteFile(name string, data []byte) error {
	fullPath := filepath.Join(s.dir, name)

	err := os.WriteFile(fullPath, data, 0644)
	log.PanicIf(err)

	return nil
}

func main() {
	defer func() {
		if state := recover(); state != nil {
			err := log.Wrap(state.(error))
			log.PrintError(err)
			os.Exit(-1)
		}
	}()

	p := flags.NewParser(rootArguments, flags.Default)

	_, err := p.Parse()
	if err != nil {
		os.Exit(1)
	}

	for _, filepathArg := range rootArguments.Positional.Filepaths {
		err := extractOne(filepathArg)
		log.PanicIf(err)
	}
}

func extractOne(inputFilepath string) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			if e, ok := errRaw.(error); ok {
				err = log.Wrap(e)
			} else {
				err = log.Errorf("extract panic: %v", errRaw)
			}
		}
	}()

	var r io.Reader
	var stem string

	if inputFilepath == "-" {
		r = os.Stdin
		stem = "stdin"
	} else {
		f, openErr := os.Open(inputFilepath)
		log.PanicIf(openErr)
		defer f.Close()

		r = f
		stem = strippedStem(inputFilepath)
	}

	results, err := fat8d88.ProcessStream(r)
	log.PanicIf(err)

	parentDir := "."
	if inputFilepath != "-" {
		parentDir = filepath.Dir(inputFilepath)
	}

	contentsDir := filepath.Join(parentDir, stem+" [FAT8 Contents]")
	err = os.MkdirAll(contentsDir, 0755)
	log.PanicIf(err)

	logPath := filepath.Join(contentsDir, "_fat8_d88_output.txt")
	logFile, err := os.Create(logPath)
	log.PanicIf(err)
	defer logFile.Close()

	multiDisk := len(results) > 1

	for _, result := range results {
		diskDirName := "Disk"
		if multiDisk {
			diskDirName = fmt.Sprintf("Disk %02d", result.ImageIndex+1)
		}
		if result.ErrorLog.Count() > 0 {
			diskDirName = fmt.Sprintf("%s [Error Count %02d]", diskDirName, result.ErrorLog.Count())
		}

		diskDir := contentsDir
		if multiDisk || result.ErrorLog.Count() > 0 {
			diskDir = filepath.Join(contentsDir, diskDirName)
			err = os.MkdirAll(diskDir, 0755)
			log.PanicIf(err)
		}

		if result.Variant == nil {
			fmt.Fprintf(logFile, "disk %d: variant detection failed: %s\n", result.ImageIndex, result.ErrorLog.Error())
			continue
		}

		fmt.Fprintf(logFile, "disk %d: variant %s, %d files, %d structural errors\n", result.ImageIndex, result.Variant.Name, len(result.Files), result.ErrorLog.Count())

		sink := dirSink{dir: diskDir}
		err = fat8d88.EmitImage(result, sink)
		log.PanicIf(err)

		for _, ev := range result.ErrorLog.Errors() {
			fmt.Fprintf(logFile, "  - %s\n", ev)
		}
	}

	fmt.Printf("%s: %d disk image(s) extracted to %s\n", inputFilepath, len(results), contentsDir)

	return nil
}

func strippedStem(inputFilepath string) string {
	base := filepath.Base(inputFilepath)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}
